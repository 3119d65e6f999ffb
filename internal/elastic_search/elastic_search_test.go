package elastic_search

import (
	"math/big"
	"testing"

	"github.com/ZilDuck/zilliqa-nft-marketplace/internal/entity"
	"github.com/olivere/elastic/v7"
	"github.com/stretchr/testify/require"
)

func listing(tokenId uint64) entity.Listing {
	return entity.Listing{Seller: "0xseller", Contract: "0xaa", TokenId: tokenId, Price: big.NewInt(100)}
}

func TestIndicesCarryNetworkAndIndexName(t *testing.T) {
	t.Setenv("NETWORK", "testnet")
	t.Setenv("INDEX_NAME", "bazaar")

	require.Equal(t, "testnet.bazaar.action", ActionIndex.Get())
	require.Equal(t, "testnet.bazaar.listing", ListingIndex.Get())
}

func TestActionIndexerBuffersRequests(t *testing.T) {
	idx := newIndex(nil, "false", 10)
	indexer := NewActionIndexer(idx)

	l := listing(1)
	indexer.Record(entity.MarketplaceAction{Seq: 1, Action: entity.ListingAction, Contract: l.Contract, TokenId: l.TokenId, Listing: &l})

	req := idx.GetRequest(l.Slug())
	require.NotNil(t, req)
	require.Equal(t, IndexRequest, req.Type)
	require.Equal(t, ListingIndex.Get(), req.Index)

	indexer.Record(entity.MarketplaceAction{Seq: 2, Action: entity.SaleAction, Contract: l.Contract, TokenId: l.TokenId, Listing: &l, Buyer: "0xbuyer"})

	req = idx.GetRequest(l.Slug())
	require.NotNil(t, req)
	require.Equal(t, DeleteRequest, req.Type)

	// two actions and one listing document
	require.Len(t, idx.GetRequests(), 3)

	indexer.Record(entity.MarketplaceAction{Seq: 3, Action: entity.SaleFeeUpdatedAction})
	require.Len(t, idx.GetRequests(), 4)

	indexer.Record("not an action")
	require.Len(t, idx.GetRequests(), 4)

	idx.ClearRequests()
	require.Empty(t, idx.GetRequests())
}

func TestSettleKeepsFailedAndReplacedRequests(t *testing.T) {
	idx := newIndex(nil, "false", 10)

	a, b, c := listing(1), listing(2), listing(3)
	idx.AddIndexRequest(ListingIndex.Get(), a)
	idx.AddIndexRequest(ListingIndex.Get(), b)
	idx.AddDeleteRequest(ListingIndex.Get(), c)
	batch := idx.GetRequests()

	// b is delisted while the bulk is in flight
	idx.AddDeleteRequest(ListingIndex.Get(), b)

	failed := idx.settle([]*elastic.BulkResponseItem{
		{Index: ListingIndex.Get(), Id: a.Slug(), Status: 500},
		{Index: ListingIndex.Get(), Id: c.Slug(), Status: 404},
	}, batch)

	require.Equal(t, 1, failed)
	require.True(t, idx.HasRequest(a))
	require.True(t, idx.HasRequest(b))
	require.Equal(t, DeleteRequest, idx.GetRequest(b.Slug()).Type)
	require.False(t, idx.HasRequest(c))
}
