package config

import (
	"errors"
	"io/fs"
	"log"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/BurntSushi/toml"
)

type MainConfig struct {
	AppName               string   `toml:"appName"`
	Host                  string   `toml:"host"`
	Port                  int      `toml:"port"`
	Mode                  string   `toml:"mode"` // debug / release
	RequestTimeoutSeconds int      `toml:"requestTimeoutSeconds"`
	UploadDir             string   `toml:"uploadDir"`
	TLSRedirect           bool     `toml:"tlsRedirect"`
	AllowOrigins          []string `toml:"allowOrigins"`
}

type LogConfig struct {
	LogPath    string `toml:"logPath"`
	Level      string `toml:"level"`
	Console    bool   `toml:"console"`
	MaxSizeMB  int    `toml:"maxSizeMB"`
	MaxBackups int    `toml:"maxBackups"`
	MaxAgeDays int    `toml:"maxAgeDays"`
}

type MysqlConfig struct {
	Host         string `toml:"host"`
	Port         int    `toml:"port"`
	User         string `toml:"user"`
	Password     string `toml:"password"`
	DatabaseName string `toml:"databaseName"`
}

type RedisConfig struct {
	Host         string `toml:"host"`
	Port         int    `toml:"port"`
	Password     string `toml:"password"`
	DB           int    `toml:"db"`
	PoolSize     int    `toml:"poolSize"`
	MinIdleConns int    `toml:"minIdleConns"`
}

type MilvusConfig struct {
	Address        string `toml:"address"`
	Username       string `toml:"username"`
	Password       string `toml:"password"`
	DBName         string `toml:"dbName"`
	CollectionName string `toml:"collectionName"`
	MetricType     string `toml:"metricType"`
}

// VectorConfig 向量库选择：memory（chromem 内存）、chromem（chromem 落盘）、milvus
type VectorConfig struct {
	Backend     string `toml:"backend"`
	Dim         int    `toml:"dim"`
	Collection  string `toml:"collection"`
	PersistPath string `toml:"persistPath"`
}

type KafkaConfig struct {
	Enabled         bool     `toml:"enabled"`
	Brokers         []string `toml:"brokers"`
	ClientID        string   `toml:"clientID"`
	IngestTopic     string   `toml:"ingestTopic"`
	ConsumerGroupID string   `toml:"consumerGroupID"`
	Partitions      int32    `toml:"partitions"`
	Replication     int16    `toml:"replication"`
}

type AIEmbeddingConfig struct {
	Provider        string  `toml:"provider"`
	APIKey          string  `toml:"apiKey"`
	BaseURL         string  `toml:"baseURL"`
	Model           string  `toml:"model"`
	TimeoutSeconds  int     `toml:"timeoutSeconds"`
	ByAzure         bool    `toml:"byAzure"`
	AzureAPIVersion string  `toml:"azureApiVersion"`
	RatePerSecond   float64 `toml:"ratePerSecond"`
}

type AIChatModelConfig struct {
	Provider        string  `toml:"provider"`
	APIKey          string  `toml:"apiKey"`
	AccessKey       string  `toml:"accessKey"`
	SecretKey       string  `toml:"secretKey"`
	BaseURL         string  `toml:"baseURL"`
	Region          string  `toml:"region"`
	Model           string  `toml:"model"`
	Temperature     float32 `toml:"temperature"`
	MaxTokens       int     `toml:"maxTokens"`
	TimeoutSeconds  int     `toml:"timeoutSeconds"`
	ByAzure         bool    `toml:"byAzure"`
	AzureAPIVersion string  `toml:"azureApiVersion"`
	RatePerSecond   float64 `toml:"ratePerSecond"`
}

type AIConfig struct {
	Embedding AIEmbeddingConfig `toml:"embedding"`
	ChatModel AIChatModelConfig `toml:"chatModel"`
}

type RetrieveConfig struct {
	DefaultTopK     int  `toml:"defaultTopK"`
	MaxTopK         int  `toml:"maxTopK"`
	OverFetchFactor int  `toml:"overFetchFactor"`
	LocationStrict  bool `toml:"locationStrict"` // true 时位置过滤为空不回退
}

type AgentConfig struct {
	MaxIterations   int `toml:"maxIterations"`
	HistoryLimit    int `toml:"historyLimit"`
	MaxToolFailures int `toml:"maxToolFailures"`
}

type IngestConfig struct {
	ChunkSize        int    `toml:"chunkSize"`
	ChunkOverlap     int    `toml:"chunkOverlap"`
	Splitter         string `toml:"splitter"` // window / recursive
	EmbedBatchSize   int    `toml:"embedBatchSize"`
	EmbedConcurrency int    `toml:"embedConcurrency"`
	MaxContentBytes  int    `toml:"maxContentBytes"`
	Async            bool   `toml:"async"`
}

type SchedulerConfig struct {
	Enabled     bool   `toml:"enabled"`
	ReindexCron string `toml:"reindexCron"`
}

type PreprocessConfig struct {
	ExtraLocalities map[string][]string `toml:"extraLocalities"`
}

type SessionConfig struct {
	Backend    string `toml:"backend"` // memory / redis
	TTLMinutes int    `toml:"ttlMinutes"`
	KeyPrefix  string `toml:"keyPrefix"`
}

type CatalogConfig struct {
	Backend  string `toml:"backend"` // memory / mysql
	SeedDemo bool   `toml:"seedDemo"`
}

// MCPConfig 以 MCP 协议对外暴露工具
type MCPConfig struct {
	Enabled bool   `toml:"enabled"`
	Name    string `toml:"name"`
	Version string `toml:"version"`
	Path    string `toml:"path"`
}

type Config struct {
	MainConfig       `toml:"mainConfig"`
	LogConfig        `toml:"logConfig"`
	MysqlConfig      `toml:"mysqlConfig"`
	RedisConfig      `toml:"redisConfig"`
	MilvusConfig     `toml:"milvusConfig"`
	VectorConfig     `toml:"vectorConfig"`
	KafkaConfig      `toml:"kafkaConfig"`
	AIConfig         `toml:"aiConfig"`
	RetrieveConfig   `toml:"retrieveConfig"`
	AgentConfig      `toml:"agentConfig"`
	IngestConfig     `toml:"ingestConfig"`
	SchedulerConfig  `toml:"schedulerConfig"`
	PreprocessConfig `toml:"preprocessConfig"`
	SessionConfig    `toml:"sessionConfig"`
	CatalogConfig    `toml:"catalogConfig"`
	MCPConfig        `toml:"mcpConfig"`
}

const defaultConfigPath = "configs/config_local.toml"

var (
	config   *Config
	loadOnce sync.Once
)

// Default 返回填好默认值的配置，不读文件
func Default() *Config {
	c := &Config{}
	c.applyDefaults()
	return c
}

// Load 读取 toml 文件；文件不存在时使用默认配置
func Load(path string) (*Config, error) {
	c := &Config{}
	if strings.TrimSpace(path) != "" {
		if _, err := toml.DecodeFile(path, c); err != nil {
			if !errors.Is(err, fs.ErrNotExist) {
				return nil, err
			}
			log.Printf("config file %s not found, using defaults", path)
		}
	}
	c.applyEnv()
	c.applyDefaults()
	return c, nil
}

// GetConfig 进程级配置，首次调用时加载（路径可由 ESTATE_CONFIG 覆盖）
func GetConfig() *Config {
	loadOnce.Do(func() {
		path := os.Getenv("ESTATE_CONFIG")
		if path == "" {
			path = defaultConfigPath
		}
		c, err := Load(path)
		if err != nil {
			log.Printf("load config failed: %v, using defaults", err)
			c = Default()
		}
		config = c
	})
	return config
}

// SetConfig 替换进程级配置（CLI 的 --config 参数）
func SetConfig(c *Config) {
	loadOnce.Do(func() {})
	config = c
}

func (c *Config) applyEnv() {
	if v := os.Getenv("ESTATE_PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			c.MainConfig.Port = p
		}
	}
	if v := os.Getenv("ESTATE_VECTOR_BACKEND"); v != "" {
		c.VectorConfig.Backend = v
	}
	if v := os.Getenv("ESTATE_LLM_PROVIDER"); v != "" {
		c.AIConfig.ChatModel.Provider = v
	}
	if v := os.Getenv("ESTATE_EMBEDDING_PROVIDER"); v != "" {
		c.AIConfig.Embedding.Provider = v
	}
	if v := os.Getenv("MILVUS_ADDRESS"); v != "" {
		c.MilvusConfig.Address = v
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.KafkaConfig.Brokers = strings.Split(v, ",")
	}
}

func (c *Config) applyDefaults() {
	if c.MainConfig.AppName == "" {
		c.MainConfig.AppName = "EstateGuru"
	}
	if c.MainConfig.Host == "" {
		c.MainConfig.Host = "0.0.0.0"
	}
	if c.MainConfig.Port == 0 {
		c.MainConfig.Port = 8000
	}
	if c.MainConfig.Mode == "" {
		c.MainConfig.Mode = "release"
	}
	if c.MainConfig.RequestTimeoutSeconds <= 0 {
		c.MainConfig.RequestTimeoutSeconds = 60
	}
	if c.MainConfig.UploadDir == "" {
		c.MainConfig.UploadDir = "uploads"
	}
	if c.VectorConfig.Backend == "" {
		c.VectorConfig.Backend = "memory"
	}
	if c.VectorConfig.Dim <= 0 {
		c.VectorConfig.Dim = 384
	}
	if c.VectorConfig.Collection == "" {
		c.VectorConfig.Collection = "real_estate_docs"
	}
	if c.MilvusConfig.DBName == "" {
		c.MilvusConfig.DBName = "estate"
	}
	if c.MilvusConfig.CollectionName == "" {
		c.MilvusConfig.CollectionName = c.VectorConfig.Collection
	}
	if c.RetrieveConfig.DefaultTopK <= 0 {
		c.RetrieveConfig.DefaultTopK = 5
	}
	if c.RetrieveConfig.MaxTopK <= 0 {
		c.RetrieveConfig.MaxTopK = 50
	}
	if c.RetrieveConfig.OverFetchFactor <= 0 {
		c.RetrieveConfig.OverFetchFactor = 2
	}
	if c.AgentConfig.MaxIterations <= 0 {
		c.AgentConfig.MaxIterations = 3
	}
	if c.AgentConfig.HistoryLimit <= 0 {
		c.AgentConfig.HistoryLimit = 10
	}
	if c.AgentConfig.MaxToolFailures <= 0 {
		c.AgentConfig.MaxToolFailures = 2
	}
	if c.IngestConfig.ChunkSize <= 0 {
		c.IngestConfig.ChunkSize = 400
	}
	if c.IngestConfig.ChunkOverlap < 0 || c.IngestConfig.ChunkOverlap >= c.IngestConfig.ChunkSize {
		c.IngestConfig.ChunkOverlap = 0
	}
	if c.IngestConfig.ChunkOverlap == 0 {
		c.IngestConfig.ChunkOverlap = c.IngestConfig.ChunkSize * 15 / 100
	}
	if c.IngestConfig.Splitter == "" {
		c.IngestConfig.Splitter = "window"
	}
	if c.IngestConfig.EmbedBatchSize <= 0 {
		c.IngestConfig.EmbedBatchSize = 16
	}
	if c.IngestConfig.EmbedConcurrency <= 0 {
		c.IngestConfig.EmbedConcurrency = 4
	}
	if c.IngestConfig.MaxContentBytes <= 0 {
		c.IngestConfig.MaxContentBytes = 10 << 20
	}
	if c.KafkaConfig.IngestTopic == "" {
		c.KafkaConfig.IngestTopic = "estate.ingest"
	}
	if c.KafkaConfig.ConsumerGroupID == "" {
		c.KafkaConfig.ConsumerGroupID = "estate-ingest-worker"
	}
	if c.KafkaConfig.ClientID == "" {
		c.KafkaConfig.ClientID = "estateguru"
	}
	if c.SchedulerConfig.ReindexCron == "" {
		c.SchedulerConfig.ReindexCron = "@every 30m"
	}
	if c.SessionConfig.Backend == "" {
		c.SessionConfig.Backend = "memory"
	}
	if c.SessionConfig.TTLMinutes <= 0 {
		c.SessionConfig.TTLMinutes = 60
	}
	if c.SessionConfig.KeyPrefix == "" {
		c.SessionConfig.KeyPrefix = "estate:session:"
	}
	if c.CatalogConfig.Backend == "" {
		c.CatalogConfig.Backend = "memory"
	}
	if c.MCPConfig.Name == "" {
		c.MCPConfig.Name = "estate-tools"
	}
	if c.MCPConfig.Version == "" {
		c.MCPConfig.Version = "1.0.0"
	}
	if c.MCPConfig.Path == "" {
		c.MCPConfig.Path = "/mcp"
	}
	if c.AIConfig.ChatModel.Provider == "" {
		c.AIConfig.ChatModel.Provider = "openai"
	}
}
