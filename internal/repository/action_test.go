package repository

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/ZilDuck/zilliqa-nft-marketplace/internal/elastic_search"
	"github.com/ZilDuck/zilliqa-nft-marketplace/internal/entity"
	"github.com/olivere/elastic/v7"
	"github.com/stretchr/testify/require"
)

type fakeSearch struct {
	lk       sync.Mutex
	paths    []string
	bodies   []string
	statuses []int
	response string
}

func (f *fakeSearch) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.lk.Lock()
	defer f.lk.Unlock()

	b, _ := io.ReadAll(r.Body)
	f.paths = append(f.paths, r.URL.Path)
	f.bodies = append(f.bodies, string(b))

	w.Header().Set("Content-Type", "application/json")
	if len(f.statuses) > 0 {
		status := f.statuses[0]
		f.statuses = f.statuses[1:]
		w.WriteHeader(status)
		_, _ = w.Write([]byte(`{"error":{"type":"es_rejected_execution_exception"},"status":429}`))
		return
	}

	_, _ = w.Write([]byte(f.response))
}

func newActionRepository(t *testing.T, fake *fakeSearch) ActionRepository {
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	client, err := elastic.NewClient(elastic.SetURL(srv.URL), elastic.SetSniff(false), elastic.SetHealthcheck(false))
	require.NoError(t, err)

	return NewActionRepository(elastic_search.NewIndex(client, "false", 10))
}

const twoHits = `{
  "took": 1,
  "hits": {
    "total": {"value": 2, "relation": "eq"},
    "hits": [
      {"_index": "i", "_id": "b", "_source": {"seq": 2, "action": "sale", "contract": "0x00000000000000000000000000000000000000aa", "tokenId": 1, "buyer": "0xbuyer", "fee": 20}},
      {"_index": "i", "_id": "a", "_source": {"seq": 1, "action": "listing", "contract": "0x00000000000000000000000000000000000000aa", "tokenId": 1, "listing": {"seller": "0xseller", "contract": "0x00000000000000000000000000000000000000aa", "tokenId": 1, "price": 1000}}}
    ]
  }
}`

func TestGetActionsForToken(t *testing.T) {
	fake := &fakeSearch{response: twoHits}
	repo := newActionRepository(t, fake)

	actions, err := repo.GetActionsForToken(context.Background(), "0x00000000000000000000000000000000000000AA", 1, 10)
	require.NoError(t, err)
	require.Len(t, actions, 2)
	require.Equal(t, entity.SaleAction, actions[0].Action)
	require.Equal(t, int64(20), actions[0].Fee.Int64())
	require.Equal(t, entity.Principal("0xseller"), actions[1].Listing.Seller)

	require.Len(t, fake.paths, 1)
	require.Equal(t, "/"+elastic_search.ActionIndex.Get()+"/_search", fake.paths[0])
	require.True(t, strings.Contains(fake.bodies[0], "0x00000000000000000000000000000000000000aa"))
}

func TestGetLastSaleRetriesWhenThrottled(t *testing.T) {
	fake := &fakeSearch{response: twoHits, statuses: []int{http.StatusTooManyRequests}}
	repo := newActionRepository(t, fake)

	sale, err := repo.GetLastSale(context.Background(), "0x00000000000000000000000000000000000000aa", 1)
	require.NoError(t, err)
	require.Equal(t, uint64(2), sale.Seq)
	require.Len(t, fake.paths, 2)
}

func TestGetLastSaleNotFound(t *testing.T) {
	fake := &fakeSearch{response: `{"took": 1, "hits": {"total": {"value": 0, "relation": "eq"}, "hits": []}}`}
	repo := newActionRepository(t, fake)

	_, err := repo.GetLastSale(context.Background(), "0x00000000000000000000000000000000000000aa", 1)
	require.Equal(t, ErrActionNotFound, err)
}
