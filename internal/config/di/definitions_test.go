package di

import (
	"context"
	"math/big"
	"testing"

	"github.com/ZilDuck/zilliqa-nft-marketplace/internal/config"
	"github.com/ZilDuck/zilliqa-nft-marketplace/internal/entity"
	"github.com/stretchr/testify/require"
)

const contract = "0x00000000000000000000000000000000000000aa"

func testConfig(path string) *config.Config {
	return &config.Config{
		Index:         "marketplace",
		Sandbox:       true,
		DatastorePath: path,
		Marketplace: config.MarketplaceConfig{
			Address: "0x0000000000000000000000000000000000000001",
			SaleFee: entity.DefaultSaleFee,
		},
		Api: config.ApiConfig{Url: "http://localhost:8080", Retries: 1, Timeout: 1},
	}
}

func TestInMemoryContainer(t *testing.T) {
	c, err := NewContainer(testConfig(""))
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Delete() })

	require.NotNil(t, c.GetSandbox())
	require.NotNil(t, c.GetClient())
	require.Same(t, c.GetEngine(), c.GetEngine())

	// the fee owner defaults to the marketplace itself
	require.Equal(t, entity.Principal("0x0000000000000000000000000000000000000001"), c.GetFees().Owner())

	_, ok := c.GetActionIndexer()
	require.False(t, ok)
	_, ok = c.GetActionRepo()
	require.False(t, ok)
	_, ok = c.GetMessenger()
	require.False(t, ok)
	_, ok = c.GetActionPublisher()
	require.False(t, ok)
}

func TestSandboxDisabled(t *testing.T) {
	cfg := testConfig("")
	cfg.Sandbox = false

	c, err := NewContainer(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Delete() })

	require.Nil(t, c.GetSandbox())
	_ = c.GetApiServer()
}

func TestLeveldbStateSurvivesRestart(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t.TempDir())

	c, err := NewContainer(cfg)
	require.NoError(t, err)

	require.NoError(t, c.GetCustody().Mint(ctx, contract, 1, "seller"))
	require.NoError(t, c.GetCustody().SetApprovalForAll(ctx, "seller", contract, cfg.Marketplace.Address, true))

	_, err = c.GetEngine().List(ctx, "seller", contract, 1, big.NewInt(1000))
	require.NoError(t, err)
	require.NoError(t, c.GetEngine().SetSaleFee(ctx, cfg.Marketplace.Address, 7))
	require.NoError(t, c.Delete())

	c, err = NewContainer(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Delete() })

	listing, err := c.GetEngine().GetListing(ctx, contract, 1)
	require.NoError(t, err)
	require.Equal(t, entity.Principal("seller"), listing.Seller)
	require.Equal(t, int64(1000), listing.Price.Int64())

	owner, err := c.GetCustody().OwnerOf(ctx, contract, 1)
	require.NoError(t, err)
	require.Equal(t, cfg.Marketplace.Address, owner)

	// fee changes outlive the configured default
	require.Equal(t, uint64(7), c.GetFees().Fraction())
}
