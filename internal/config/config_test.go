package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/ZilDuck/zilliqa-nft-marketplace/internal/entity"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	cfg := Get()

	require.Equal(t, "zilliqa", cfg.Network)
	require.Equal(t, "8080", cfg.ApiPort)
	require.True(t, cfg.Sandbox)
	require.Equal(t, entity.DefaultSaleFee, cfg.Marketplace.SaleFee)
	require.Empty(t, cfg.ElasticSearch.Hosts)
	require.Equal(t, "", cfg.DatastorePath)
}

func TestEnvironmentOverrides(t *testing.T) {
	t.Setenv("SALE_FEE", "35")
	t.Setenv("SANDBOX", "false")
	t.Setenv("ELASTIC_SEARCH_HOSTS", "http://a:9200,http://b:9200")
	t.Setenv("FEE_OWNER", "0x00000000000000000000000000000000000000AB")

	cfg := Get()

	require.Equal(t, uint64(35), cfg.Marketplace.SaleFee)
	require.False(t, cfg.Sandbox)
	require.Equal(t, []string{"http://a:9200", "http://b:9200"}, cfg.ElasticSearch.Hosts)
	require.Equal(t, entity.Principal("0x00000000000000000000000000000000000000ab"), cfg.Marketplace.FeeOwner)
}

func TestInvalidValuesFallBackToDefaults(t *testing.T) {
	t.Setenv("SALE_FEE", "lots")
	t.Setenv("API_RETRIES", "many")

	cfg := Get()

	require.Equal(t, entity.DefaultSaleFee, cfg.Marketplace.SaleFee)
	require.Equal(t, 3, cfg.Api.Retries)
}

func TestConfigFile(t *testing.T) {
	file := filepath.Join(t.TempDir(), "marketplace.yaml")
	require.NoError(t, os.WriteFile(file, []byte("index_name: bazaar\napi_port: \"9090\"\n"), 0644))
	require.NoError(t, load(file))
	t.Cleanup(func() { v = newViper() })

	cfg := Get()

	require.Equal(t, "bazaar", cfg.Index)
	require.Equal(t, "9090", cfg.ApiPort)
}
