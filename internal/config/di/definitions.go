package di

import (
	"context"
	"os"
	"time"

	"github.com/ZilDuck/zilliqa-nft-marketplace/internal/api"
	"github.com/ZilDuck/zilliqa-nft-marketplace/internal/client"
	"github.com/ZilDuck/zilliqa-nft-marketplace/internal/config"
	"github.com/ZilDuck/zilliqa-nft-marketplace/internal/custody"
	"github.com/ZilDuck/zilliqa-nft-marketplace/internal/elastic_search"
	"github.com/ZilDuck/zilliqa-nft-marketplace/internal/event"
	"github.com/ZilDuck/zilliqa-nft-marketplace/internal/exchange"
	"github.com/ZilDuck/zilliqa-nft-marketplace/internal/messenger"
	"github.com/ZilDuck/zilliqa-nft-marketplace/internal/payment"
	"github.com/ZilDuck/zilliqa-nft-marketplace/internal/repository"
	ds "github.com/ipfs/go-datastore"
	ds_sync "github.com/ipfs/go-datastore/sync"
	levelds "github.com/ipfs/go-ds-leveldb"
	"github.com/sarulabs/di/v2"
	ldbopts "github.com/syndtr/goleveldb/leveldb/opt"
	"go.uber.org/zap"
	"golang.org/x/xerrors"
)

const historyRetention = 24 * time.Hour

// Definitions returns the services for cfg. The search, messaging and sandbox
// services are only defined when configured.
func Definitions(cfg *config.Config) []di.Def {
	defs := []di.Def{
		{
			Name: "datastore",
			Build: func(ctn di.Container) (interface{}, error) {
				if cfg.DatastorePath == "" {
					return ds_sync.MutexWrap(ds.NewMapDatastore()), nil
				}

				if err := os.MkdirAll(cfg.DatastorePath, 0755); err != nil {
					return nil, xerrors.Errorf("creating datastore directory %s: %w", cfg.DatastorePath, err)
				}

				store, err := levelds.NewDatastore(cfg.DatastorePath, &levelds.Options{
					Compression: ldbopts.NoCompression,
					NoSync:      false,
					Strict:      ldbopts.StrictAll,
					ReadOnly:    false,
				})
				if err != nil {
					return nil, xerrors.Errorf("open leveldb: %w", err)
				}

				return store, nil
			},
			Close: func(obj interface{}) error {
				return obj.(ds.Datastore).Close()
			},
		},
		{
			Name: "listing.repo",
			Build: func(ctn di.Container) (interface{}, error) {
				return repository.NewListingRepository(ctn.Get("datastore").(ds.Datastore)), nil
			},
		},
		{
			Name: "sequence",
			Build: func(ctn di.Container) (interface{}, error) {
				return repository.NewSequence(ctn.Get("datastore").(ds.Datastore)), nil
			},
		},
		{
			Name: "custody",
			Build: func(ctn di.Container) (interface{}, error) {
				return custody.NewStore(ctn.Get("datastore").(ds.Datastore)), nil
			},
		},
		{
			Name: "ledger",
			Build: func(ctn di.Container) (interface{}, error) {
				return payment.NewLedger(ctn.Get("datastore").(ds.Datastore), cfg.Marketplace.Address), nil
			},
		},
		{
			Name: "fees",
			Build: func(ctn di.Container) (interface{}, error) {
				owner := cfg.Marketplace.FeeOwner
				if owner.IsZero() {
					owner = cfg.Marketplace.Address
				}

				return exchange.NewFeeController(context.Background(), ctn.Get("datastore").(ds.Datastore), owner, cfg.Marketplace.SaleFee)
			},
		},
		{
			Name: "event.manager",
			Build: func(ctn di.Container) (interface{}, error) {
				return event.NewManager(), nil
			},
			Close: func(obj interface{}) error {
				obj.(*event.Manager).Close()
				return nil
			},
		},
		{
			Name: "event.history",
			Build: func(ctn di.Container) (interface{}, error) {
				return event.NewHistory(historyRetention), nil
			},
		},
		{
			Name: "engine",
			Build: func(ctn di.Container) (interface{}, error) {
				return exchange.NewEngine(
					cfg.Marketplace.Address,
					cfg.Marketplace.Treasury,
					ctn.Get("listing.repo").(repository.ListingRepository),
					ctn.Get("sequence").(*repository.Sequence),
					ctn.Get("custody").(*custody.Store),
					ctn.Get("ledger").(*payment.Ledger),
					ctn.Get("fees").(*exchange.FeeController),
					ctn.Get("event.manager").(*event.Manager),
				), nil
			},
		},
		{
			Name: "api.server",
			Build: func(ctn di.Container) (interface{}, error) {
				var sandbox *api.Sandbox
				if cfg.Sandbox {
					sandbox = ctn.Get("sandbox").(*api.Sandbox)
				}

				server := api.NewServer(ctn.Get("engine").(*exchange.Engine), ctn.Get("event.history").(*event.History), sandbox)
				if len(cfg.ElasticSearch.Hosts) != 0 {
					server = server.WithActions(ctn.Get("action.repo").(repository.ActionRepository))
				}

				return server, nil
			},
		},
		{
			Name: "client",
			Build: func(ctn di.Container) (interface{}, error) {
				return client.NewClient(cfg.Api.Url, cfg.Api.Retries, time.Duration(cfg.Api.Timeout)*time.Second), nil
			},
		},
	}

	if cfg.Sandbox {
		defs = append(defs, di.Def{
			Name: "sandbox",
			Build: func(ctn di.Container) (interface{}, error) {
				return api.NewSandbox(
					ctn.Get("engine").(*exchange.Engine),
					ctn.Get("custody").(*custody.Store),
					ctn.Get("ledger").(*payment.Ledger),
				), nil
			},
		})
	}

	if len(cfg.ElasticSearch.Hosts) != 0 {
		defs = append(defs,
			di.Def{
				Name: "elastic",
				Build: func(ctn di.Container) (interface{}, error) {
					return elastic_search.New()
				},
			},
			di.Def{
				Name: "action.indexer",
				Build: func(ctn di.Container) (interface{}, error) {
					return elastic_search.NewActionIndexer(ctn.Get("elastic").(elastic_search.Index)), nil
				},
			},
			di.Def{
				Name: "action.repo",
				Build: func(ctn di.Container) (interface{}, error) {
					return repository.NewActionRepository(ctn.Get("elastic").(elastic_search.Index)), nil
				},
			},
		)
	}

	if cfg.Amqp.Uri != "" {
		defs = append(defs,
			di.Def{
				Name: "messenger",
				Build: func(ctn di.Container) (interface{}, error) {
					return messenger.NewMessenger(cfg.Amqp.Uri, cfg.Index), nil
				},
				Close: func(obj interface{}) error {
					return obj.(messenger.MessageService).Close()
				},
			},
			di.Def{
				Name: "action.publisher",
				Build: func(ctn di.Container) (interface{}, error) {
					return messenger.NewActionPublisher(ctn.Get("messenger").(messenger.MessageService), cfg.Index), nil
				},
			},
		)
	}

	return defs
}

// Container gives typed access to the services defined for a config.
type Container struct {
	ctn di.Container
}

func NewContainer(cfg *config.Config) (*Container, error) {
	builder, err := di.NewBuilder()
	if err != nil {
		return nil, err
	}

	if err := builder.Add(Definitions(cfg)...); err != nil {
		return nil, err
	}

	return &Container{builder.Build()}, nil
}

func (c *Container) has(name string) bool {
	_, ok := c.ctn.Definitions()[name]
	return ok
}

func (c *Container) GetDatastore() ds.Datastore {
	return c.ctn.Get("datastore").(ds.Datastore)
}

func (c *Container) GetListingRepo() repository.ListingRepository {
	return c.ctn.Get("listing.repo").(repository.ListingRepository)
}

func (c *Container) GetCustody() *custody.Store {
	return c.ctn.Get("custody").(*custody.Store)
}

func (c *Container) GetLedger() *payment.Ledger {
	return c.ctn.Get("ledger").(*payment.Ledger)
}

func (c *Container) GetFees() *exchange.FeeController {
	return c.ctn.Get("fees").(*exchange.FeeController)
}

func (c *Container) GetEventManager() *event.Manager {
	return c.ctn.Get("event.manager").(*event.Manager)
}

func (c *Container) GetHistory() *event.History {
	return c.ctn.Get("event.history").(*event.History)
}

func (c *Container) GetEngine() *exchange.Engine {
	return c.ctn.Get("engine").(*exchange.Engine)
}

func (c *Container) GetApiServer() api.Server {
	return c.ctn.Get("api.server").(api.Server)
}

func (c *Container) GetClient() *client.Client {
	return c.ctn.Get("client").(*client.Client)
}

// GetSandbox returns nil when the sandbox is disabled.
func (c *Container) GetSandbox() *api.Sandbox {
	if !c.has("sandbox") {
		return nil
	}

	return c.ctn.Get("sandbox").(*api.Sandbox)
}

func (c *Container) GetActionIndexer() (*elastic_search.ActionIndexer, bool) {
	if !c.has("action.indexer") {
		return nil, false
	}

	indexer, err := c.ctn.SafeGet("action.indexer")
	if err != nil {
		zap.L().With(zap.Error(err)).Error("Failed to start ES")
		return nil, false
	}

	return indexer.(*elastic_search.ActionIndexer), true
}

func (c *Container) GetElastic() (elastic_search.Index, bool) {
	if !c.has("elastic") {
		return nil, false
	}

	elastic, err := c.ctn.SafeGet("elastic")
	if err != nil {
		zap.L().With(zap.Error(err)).Error("Failed to start ES")
		return nil, false
	}

	return elastic.(elastic_search.Index), true
}

func (c *Container) GetActionRepo() (repository.ActionRepository, bool) {
	if !c.has("action.repo") {
		return nil, false
	}

	return c.ctn.Get("action.repo").(repository.ActionRepository), true
}

func (c *Container) GetMessenger() (messenger.MessageService, bool) {
	if !c.has("messenger") {
		return nil, false
	}

	return c.ctn.Get("messenger").(messenger.MessageService), true
}

func (c *Container) GetActionPublisher() (*messenger.ActionPublisher, bool) {
	if !c.has("action.publisher") {
		return nil, false
	}

	return c.ctn.Get("action.publisher").(*messenger.ActionPublisher), true
}

// Delete closes every service that was built.
func (c *Container) Delete() error {
	return c.ctn.Delete()
}
