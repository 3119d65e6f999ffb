package config

import (
	"math/big"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/ZilDuck/zilliqa-nft-marketplace/internal/entity"
	"github.com/ZilDuck/zilliqa-nft-marketplace/internal/log"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

type Config struct {
	Env       string
	Network   string
	Index     string
	Debug     bool
	LogPath   string
	SentryDsn string

	ApiPort string
	Sandbox bool

	DatastorePath string

	Marketplace MarketplaceConfig
	Api         ApiConfig
	Amqp        AmqpConfig

	ElasticSearch ElasticSearchConfig
	Aws           AwsConfig
}

type MarketplaceConfig struct {
	Address  entity.Principal
	FeeOwner entity.Principal
	Treasury entity.Principal
	SaleFee  uint64
}

type ApiConfig struct {
	Url     string
	Retries int
	Timeout int
}

type AmqpConfig struct {
	Uri string
}

type AwsConfig struct {
	AccessKey string
	SecretKey string
	Region    string
}

type ElasticSearchConfig struct {
	Hosts            []string
	Sniff            bool
	HealthCheck      bool
	Debug            bool
	Username         string
	Password         string
	Aws              bool
	BulkPersistCount int
	Refresh          string
}

var (
	lk sync.Mutex
	v  = newViper()
)

func newViper() *viper.Viper {
	vp := viper.New()
	vp.AutomaticEnv()

	return vp
}

// Init loads the .env file and an optional CONFIG_FILE, then starts the
// logger for the named binary.
func Init(name string) {
	if err := godotenv.Load(".env"); err != nil {
		zap.L().With(zap.Error(err)).Warn("No .env file loaded")
	}

	if file := getString("CONFIG_FILE", ""); file != "" {
		if err := load(file); err != nil {
			zap.L().With(zap.Error(err), zap.String("file", file)).Fatal("Unable to init config")
		}
	}

	initLogger(name)
}

func load(file string) error {
	lk.Lock()
	defer lk.Unlock()

	v.SetConfigFile(file)
	return v.ReadInConfig()
}

func initLogger(name string) {
	cfg := Get()
	log.NewLogger(filepath.Join(cfg.LogPath, name+".log"), cfg.Debug, cfg.SentryDsn)
}

func Get() *Config {
	return &Config{
		Env:           getString("ENV", ""),
		Network:       getString("NETWORK", "zilliqa"),
		Index:         getString("INDEX_NAME", "marketplace"),
		Debug:         getBool("DEBUG", false),
		LogPath:       getString("LOG_PATH", "./var/log"),
		SentryDsn:     getString("SENTRY_DSN", ""),
		ApiPort:       getString("API_PORT", "8080"),
		Sandbox:       getBool("SANDBOX", true),
		DatastorePath: getString("DATASTORE_PATH", ""),
		Marketplace: MarketplaceConfig{
			Address:  entity.NewPrincipal(getString("MARKETPLACE_ADDRESS", "0x0000000000000000000000000000000000000001")),
			FeeOwner: entity.NewPrincipal(getString("FEE_OWNER", "")),
			Treasury: entity.NewPrincipal(getString("TREASURY_ADDRESS", "")),
			SaleFee:  getUint64("SALE_FEE", entity.DefaultSaleFee),
		},
		Api: ApiConfig{
			Url:     getString("API_URL", "http://localhost:8080"),
			Retries: getInt("API_RETRIES", 3),
			Timeout: getInt("API_TIMEOUT", 10),
		},
		Amqp: AmqpConfig{
			Uri: getString("AMQP_URI", ""),
		},
		Aws: AwsConfig{
			AccessKey: getString("AWS_ACCESS_KEY_ID", ""),
			SecretKey: getString("AWS_SECRET_KEY_ID", ""),
			Region:    getString("AWS_REGION", ""),
		},
		ElasticSearch: ElasticSearchConfig{
			Hosts:            getSlice("ELASTIC_SEARCH_HOSTS", make([]string, 0), ","),
			Sniff:            getBool("ELASTIC_SEARCH_SNIFF", true),
			HealthCheck:      getBool("ELASTIC_SEARCH_HEALTH_CHECK", true),
			Debug:            getBool("ELASTIC_SEARCH_DEBUG", false),
			Username:         getString("ELASTIC_SEARCH_USERNAME", ""),
			Password:         getString("ELASTIC_SEARCH_PASSWORD", ""),
			Aws:              getBool("ELASTIC_SEARCH_AWS", false),
			BulkPersistCount: getInt("ELASTIC_SEARCH_BULK_PERSIST_COUNT", 300),
			Refresh:          getString("ELASTIC_SEARCH_REFRESH", "wait_for"),
		},
	}
}

func getString(key string, defaultValue string) string {
	lk.Lock()
	defer lk.Unlock()

	if v.IsSet(key) {
		return v.GetString(key)
	}

	return defaultValue
}

func getInt(key string, defaultValue int) int {
	valStr := getString(key, "")
	val, _, err := big.ParseFloat(valStr, 10, 0, big.ToNearestEven)
	if err != nil {
		return defaultValue
	}

	intVal, _ := val.Int64()
	return int(intVal)
}

func getUint64(key string, defaultValue uint64) uint64 {
	valStr := getString(key, "")
	if val, err := strconv.ParseUint(valStr, 10, 64); err == nil {
		return val
	}

	return defaultValue
}

func getBool(key string, defaultValue bool) bool {
	valStr := getString(key, "")
	if val, err := strconv.ParseBool(valStr); err == nil {
		return val
	}

	return defaultValue
}

func getSlice(key string, defaultVal []string, sep string) []string {
	valStr := getString(key, "")
	if valStr == "" {
		return defaultVal
	}

	return strings.Split(valStr, sep)
}
