package api

import (
	"context"
	"errors"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ZilDuck/zilliqa-nft-marketplace/internal/custody"
	"github.com/ZilDuck/zilliqa-nft-marketplace/internal/entity"
	"github.com/ZilDuck/zilliqa-nft-marketplace/internal/event"
	"github.com/ZilDuck/zilliqa-nft-marketplace/internal/exchange"
	"github.com/ZilDuck/zilliqa-nft-marketplace/internal/payment"
	"github.com/ZilDuck/zilliqa-nft-marketplace/internal/repository"
	ds "github.com/ipfs/go-datastore"
	ds_sync "github.com/ipfs/go-datastore/sync"
	"github.com/stretchr/testify/require"
)

type fakeActions struct {
	actions []entity.MarketplaceAction
	err     error
	size    int
}

func (f *fakeActions) GetActionsForToken(_ context.Context, _ string, _ uint64, size int) ([]entity.MarketplaceAction, error) {
	f.size = size
	return f.actions, f.err
}

func (f *fakeActions) GetLastSale(_ context.Context, _ string, _ uint64) (*entity.MarketplaceAction, error) {
	if f.err != nil {
		return nil, f.err
	}
	for _, a := range f.actions {
		if a.Action == entity.SaleAction {
			return &a, nil
		}
	}
	return nil, repository.ErrActionNotFound
}

func newHistoryServer(t *testing.T, actions repository.ActionRepository) *httptest.Server {
	store := ds_sync.MutexWrap(ds.NewMapDatastore())
	fees, err := exchange.NewFeeController(context.Background(), store, admin, entity.DefaultSaleFee)
	require.NoError(t, err)

	history := event.NewHistory(time.Minute)
	engine := exchange.NewEngine(market, "", repository.NewListingRepository(store), repository.NewSequence(store), custody.NewStore(store), payment.NewLedger(store, market), fees, syncEmitter{history})

	server := NewServer(engine, history, nil)
	if actions != nil {
		server = server.WithActions(actions)
	}

	srv := httptest.NewServer(server.Router())
	t.Cleanup(srv.Close)

	return srv
}

func TestTokenHistory(t *testing.T) {
	actions := &fakeActions{actions: []entity.MarketplaceAction{
		{Seq: 2, Action: entity.SaleAction, Contract: contract, TokenId: 1, Buyer: buyer, Fee: big.NewInt(20)},
		{Seq: 1, Action: entity.ListingAction, Contract: contract, TokenId: 1},
	}}
	srv := newHistoryServer(t, actions)

	var resp []entity.MarketplaceAction
	require.Equal(t, http.StatusOK, call(t, srv, "GET", "/listings/"+contract+"/1/history", "", nil, &resp))
	require.Len(t, resp, 2)
	require.Equal(t, defaultHistorySize, actions.size)

	require.Equal(t, http.StatusOK, call(t, srv, "GET", "/listings/"+contract+"/1/history?size=5", "", nil, &resp))
	require.Equal(t, 5, actions.size)

	var errResp ErrorResponse
	require.Equal(t, http.StatusBadRequest, call(t, srv, "GET", "/listings/"+contract+"/1/history?size=0", "", nil, &errResp))

	var sale entity.MarketplaceAction
	require.Equal(t, http.StatusOK, call(t, srv, "GET", "/listings/"+contract+"/1/last-sale", "", nil, &sale))
	require.Equal(t, uint64(2), sale.Seq)
	require.Equal(t, int64(20), sale.Fee.Int64())
}

func TestTokenHistoryFailures(t *testing.T) {
	var errResp ErrorResponse

	srv := newHistoryServer(t, &fakeActions{})
	require.Equal(t, http.StatusNotFound, call(t, srv, "GET", "/listings/"+contract+"/1/last-sale", "", nil, &errResp))
	require.Equal(t, string(exchange.StateError), errResp.Category)

	srv = newHistoryServer(t, &fakeActions{err: errors.New("connection refused")})
	require.Equal(t, http.StatusBadGateway, call(t, srv, "GET", "/listings/"+contract+"/1/history", "", nil, &errResp))
	require.Equal(t, ErrSearchUnavailable.Error(), errResp.Error)

	// not mounted without a search index
	srv = newHistoryServer(t, nil)
	require.Equal(t, http.StatusNotFound, call(t, srv, "GET", "/listings/"+contract+"/1/history", "", nil, &errResp))
}
