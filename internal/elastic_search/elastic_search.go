package elastic_search

import (
	"context"
	"sync"
	"time"

	"github.com/ZilDuck/zilliqa-nft-marketplace/internal/config"
	"github.com/ZilDuck/zilliqa-nft-marketplace/internal/entity"
	"github.com/aws/aws-sdk-go/aws/credentials"
	v4 "github.com/aws/aws-sdk-go/aws/signer/v4"
	"github.com/olivere/elastic/v7"
	"github.com/patrickmn/go-cache"
	"github.com/sha1sum/aws_signing_client"
	"go.uber.org/zap"
)

type Index interface {
	GetClient() *elastic.Client

	InstallMappings(ctx context.Context) error

	AddIndexRequest(index string, entity entity.Entity)
	AddDeleteRequest(index string, entity entity.Entity)
	HasRequest(entity entity.Entity) bool
	GetRequests() []Request
	GetRequest(id string) *Request
	ClearRequests()

	BatchPersist(ctx context.Context) bool
	Persist(ctx context.Context) int
}

type index struct {
	lk        sync.Mutex
	client    *elastic.Client
	cache     *cache.Cache
	refresh   string
	bulkCount int
}

type Request struct {
	Index  string
	Entity entity.Entity
	Type   RequestType
}

type RequestType string

const (
	IndexRequest  RequestType = "index"
	DeleteRequest RequestType = "delete"
)

const batchSize = 250

func New() (Index, error) {
	client, err := newClient(config.Get().ElasticSearch, config.Get().Aws)
	if err != nil {
		zap.L().With(zap.Error(err)).Error("ElasticSearch: Failed to create client")
		return nil, err
	}

	return newIndex(client, config.Get().ElasticSearch.Refresh, config.Get().ElasticSearch.BulkPersistCount), nil
}

// NewIndex wraps an existing client.
func NewIndex(client *elastic.Client, refresh string, bulkCount int) Index {
	return newIndex(client, refresh, bulkCount)
}

func newIndex(client *elastic.Client, refresh string, bulkCount int) *index {
	return &index{
		client:    client,
		cache:     cache.New(cache.NoExpiration, 10*time.Minute),
		refresh:   refresh,
		bulkCount: bulkCount,
	}
}

func newClient(cfg config.ElasticSearchConfig, aws config.AwsConfig) (*elastic.Client, error) {
	opts := []elastic.ClientOptionFunc{
		elastic.SetURL(cfg.Hosts...),
		elastic.SetSniff(cfg.Sniff),
		elastic.SetHealthcheck(cfg.HealthCheck),
	}

	if cfg.Debug {
		opts = append(opts, elastic.SetTraceLog(ElasticLogger{}))
	}

	if cfg.Aws {
		creds := credentials.NewStaticCredentials(aws.AccessKey, aws.SecretKey, "")
		awsClient, err := aws_signing_client.New(v4.NewSigner(creds), nil, "es", aws.Region)
		if err != nil {
			return nil, err
		}

		opts = append(opts, elastic.SetHttpClient(awsClient))
		opts = append(opts, elastic.SetScheme("https"))
		return elastic.NewClient(opts...)
	}

	if cfg.Username != "" {
		opts = append(opts, elastic.SetBasicAuth(cfg.Username, cfg.Password))
	}

	return elastic.NewClient(opts...)
}

func (i *index) GetClient() *elastic.Client {
	return i.client
}

func (i *index) InstallMappings(ctx context.Context) error {
	zap.L().Info("ElasticSearch: Install Mappings")

	for idx, mapping := range mappings {
		if err := i.createIndex(ctx, idx.Get(), mapping); err != nil {
			zap.L().With(zap.Error(err), zap.String("index", idx.Get())).Error("ElasticSearch: Failed to create index")
			return err
		}
	}

	return nil
}

func (i *index) createIndex(ctx context.Context, index string, mapping string) error {
	exists, err := i.client.IndexExists(index).Do(ctx)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}

	createIndex, err := i.client.CreateIndex(index).BodyString(mapping).Do(ctx)
	if err != nil {
		return err
	}

	if createIndex.Acknowledged {
		zap.S().Infof("ElasticSearch: Created index %s", index)
	}

	return nil
}

func (i *index) AddIndexRequest(index string, entity entity.Entity) {
	zap.L().With(zap.String("index", index), zap.String("slug", entity.Slug())).Debug("ElasticSearch: AddIndexRequest")

	i.cache.Set(entity.Slug(), Request{index, entity, IndexRequest}, cache.DefaultExpiration)
}

func (i *index) AddDeleteRequest(index string, entity entity.Entity) {
	zap.L().With(zap.String("index", index), zap.String("slug", entity.Slug())).Debug("ElasticSearch: AddDeleteRequest")

	// A buffered index request for a document that may already exist is
	// replaced, never dropped.
	i.cache.Set(entity.Slug(), Request{index, entity, DeleteRequest}, cache.DefaultExpiration)
}

func (i *index) HasRequest(entity entity.Entity) bool {
	_, found := i.cache.Get(entity.Slug())

	return found
}

func (i *index) GetRequests() []Request {
	requests := make([]Request, 0)

	for _, item := range i.cache.Items() {
		requests = append(requests, item.Object.(Request))
	}

	return requests
}

func (i *index) GetRequest(id string) *Request {
	if item, found := i.cache.Get(id); found {
		req := item.(Request)
		return &req
	}

	return nil
}

func (i *index) ClearRequests() {
	i.cache.Flush()
}

func (i *index) BatchPersist(ctx context.Context) bool {
	if i.cache.ItemCount() < batchSize {
		return false
	}

	actions := i.cache.ItemCount()
	start := time.Now()
	i.Persist(ctx)

	zap.L().With(
		zap.Duration("elapsed", time.Since(start)),
		zap.Int("actions", actions),
	).Info("ElasticSearch: Persisting data")

	return true
}

// Persist writes every buffered request in bulk. Requests that could not be
// written stay buffered for the next call.
func (i *index) Persist(ctx context.Context) int {
	i.lk.Lock()
	defer i.lk.Unlock()

	persisted := 0
	bulk, batch := i.client.Bulk(), make([]Request, 0)
	for _, r := range i.GetRequests() {
		switch r.Type {
		case IndexRequest:
			bulk.Add(elastic.NewBulkIndexRequest().Index(r.Index).Id(r.Entity.Slug()).Doc(r.Entity))
		case DeleteRequest:
			bulk.Add(elastic.NewBulkDeleteRequest().Index(r.Index).Id(r.Entity.Slug()))
		}
		batch = append(batch, r)

		if bulk.NumberOfActions() >= i.bulkCount {
			persisted += i.persist(ctx, bulk, batch)
			bulk, batch = i.client.Bulk(), make([]Request, 0)
		}
	}

	if bulk.NumberOfActions() != 0 {
		persisted += i.persist(ctx, bulk, batch)
	}

	return persisted
}

func (i *index) persist(ctx context.Context, bulk *elastic.BulkService, batch []Request) int {
	actions := bulk.NumberOfActions()
	zap.S().Debugf("ElasticSearch: Persisting %d actions", actions)

	response, err := bulk.Refresh(i.refresh).Do(ctx)
	if err != nil {
		zap.L().With(zap.Error(err), zap.Int("actions", actions)).Error("ElasticSearch: Failed to persist requests")
		return 0
	}

	return actions - i.settle(response.Failed(), batch)
}

// settle drops written requests from the buffer and returns how many failed.
// A request replaced while the bulk was in flight stays buffered.
func (i *index) settle(failures []*elastic.BulkResponseItem, batch []Request) int {
	failed := make(map[string]bool)
	for _, item := range failures {
		// deleting a document that was never indexed is not a failure
		if item.Status == 404 {
			continue
		}

		zap.L().With(
			zap.Any("error", item.Error),
			zap.String("index", item.Index),
			zap.String("id", item.Id),
		).Error("ElasticSearch: Failed to persist request")
		failed[item.Id] = true
	}

	for _, r := range batch {
		id := r.Entity.Slug()
		if failed[id] {
			continue
		}
		if current := i.GetRequest(id); current != nil && *current == r {
			i.cache.Delete(id)
		}
	}

	return len(failed)
}

type ElasticLogger struct{}

func (ElasticLogger) Printf(format string, v ...interface{}) {
	zap.S().Debugf(format, v...)
}
