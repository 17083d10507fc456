package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/cloudwego/eino-ext/components/model/ark"
	"github.com/cloudwego/eino/components/model"
)

// ErrConfigurationMissing 表示启动所需的存储或凭证配置缺失。
var ErrConfigurationMissing = errors.New("missing required configuration")

// 存储驱动与生成服务提供方。
const (
	StoreMemory   = "memory"
	StoreRedis    = "redis"
	StorePostgres = "postgres"
	StoreSQLite   = "sqlite"

	ProviderWorkersAI = "workersai"
	ProviderArk       = "ark"
)

// Config 聚合整个服务的配置项。
type Config struct {
	Server     ServerConfig
	Store      StoreConfig
	Generation GenerationConfig
}

// Load 从环境变量加载配置，并在缺少必需项时立即失败。
func Load() (*Config, error) {
	server, err := loadServerConfig()
	if err != nil {
		return nil, err
	}

	store, err := loadStoreConfig()
	if err != nil {
		return nil, err
	}

	generation, err := loadGenerationConfig()
	if err != nil {
		return nil, err
	}

	cfg := &Config{Server: server, Store: store, Generation: generation}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// validate collects every missing binding so startup reports them all at once.
func (c *Config) validate() error {
	var missing []string

	switch c.Store.Driver {
	case StoreMemory:
	case StoreRedis:
		if c.Store.RedisAddr == "" {
			missing = append(missing, "REDIS_ADDR")
		}
	case StorePostgres, StoreSQLite:
		if c.Store.DatabaseDSN == "" {
			missing = append(missing, "DATABASE_DSN")
		}
	default:
		return fmt.Errorf("invalid STORE_DRIVER value: %q", c.Store.Driver)
	}

	switch c.Generation.Provider {
	case ProviderWorkersAI:
		if c.Generation.WorkersAI.AccountID == "" {
			missing = append(missing, "CLOUDFLARE_ACCOUNT_ID")
		}
		if c.Generation.WorkersAI.APIToken == "" {
			missing = append(missing, "CLOUDFLARE_SCOPED_TOKEN")
		}
	case ProviderArk:
		if !c.Generation.Ark.Enabled() {
			missing = append(missing, "ARK_MODEL", "ARK_API_KEY or ARK_ACCESS_KEY/ARK_SECRET_KEY")
		}
	case "":
		missing = append(missing, "CLOUDFLARE_SCOPED_TOKEN or ARK_API_KEY")
	default:
		return fmt.Errorf("invalid AI_PROVIDER value: %q", c.Generation.Provider)
	}

	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrConfigurationMissing, strings.Join(missing, ", "))
	}
	return nil
}

// ServerConfig 描述 HTTP 服务配置。
type ServerConfig struct {
	Addr    string
	LogMode string
	// WatchPollInterval 为 watch 连接重新读取会话状态的间隔。
	WatchPollInterval time.Duration
}

// loadServerConfig 解析服务器监听地址。
func loadServerConfig() (ServerConfig, error) {
	port := strings.TrimSpace(os.Getenv("PORT"))
	if port == "" {
		port = "8080"
	}

	logMode := getEnvOrDefault("LOG_MODE", "development")

	poll, err := parseDurationEnv("WATCH_POLL_INTERVAL", 5*time.Second)
	if err != nil {
		return ServerConfig{}, err
	}
	if poll <= 0 {
		return ServerConfig{}, fmt.Errorf("invalid WATCH_POLL_INTERVAL value: %s", poll)
	}

	if strings.Contains(port, ":") {
		// 允许用户直接传入 ":8080" 或 "127.0.0.1:8080"。
		return ServerConfig{Addr: port, LogMode: logMode, WatchPollInterval: poll}, nil
	}

	if strings.Contains(port, " ") {
		return ServerConfig{}, fmt.Errorf("invalid PORT value: %q", port)
	}

	return ServerConfig{Addr: ":" + port, LogMode: logMode, WatchPollInterval: poll}, nil
}

// StoreConfig 描述会话存储配置。
type StoreConfig struct {
	Driver         string
	RedisAddr      string
	RedisPassword  string
	RedisDB        int
	RedisKeyPrefix string
	DatabaseDSN    string
	// SessionTTL 为 0 表示会话永不过期。
	SessionTTL time.Duration
}

func loadStoreConfig() (StoreConfig, error) {
	redisDB := 0
	if db, err := parseOptionalIntEnv("REDIS_DB"); err != nil {
		return StoreConfig{}, err
	} else if db != nil {
		redisDB = *db
	}

	ttl, err := parseDurationEnv("SESSION_TTL", 0)
	if err != nil {
		return StoreConfig{}, err
	}
	if ttl < 0 {
		return StoreConfig{}, fmt.Errorf("invalid SESSION_TTL value: %s", ttl)
	}

	return StoreConfig{
		Driver:         strings.ToLower(getEnvOrDefault("STORE_DRIVER", StoreMemory)),
		RedisAddr:      strings.TrimSpace(os.Getenv("REDIS_ADDR")),
		RedisPassword:  os.Getenv("REDIS_PASSWORD"),
		RedisDB:        redisDB,
		RedisKeyPrefix: getEnvOrDefault("REDIS_KEY_PREFIX", "date-night:session:"),
		DatabaseDSN:    strings.TrimSpace(os.Getenv("DATABASE_DSN")),
		SessionTTL:     ttl,
	}, nil
}

// GenerationConfig 描述行程生成服务配置。
type GenerationConfig struct {
	Provider  string
	Timeout   time.Duration
	WorkersAI WorkersAIConfig
	Ark       ArkConfig
}

// WorkersAIConfig 描述 Cloudflare AI Gateway 上的 Workers AI 模型。
type WorkersAIConfig struct {
	AccountID string
	GatewayID string
	APIToken  string
	Model     string
	BaseURL   string
}

// Enabled 表示是否提供了必需的账号与令牌。
func (c WorkersAIConfig) Enabled() bool {
	return c.AccountID != "" && c.APIToken != ""
}

// Endpoint 拼接 AI Gateway 的 Workers AI 调用地址。
func (c WorkersAIConfig) Endpoint() string {
	base := strings.TrimRight(c.BaseURL, "/")
	return fmt.Sprintf("%s/%s/%s/workers-ai/%s", base, c.AccountID, c.GatewayID, strings.TrimLeft(c.Model, "/"))
}

func loadGenerationConfig() (GenerationConfig, error) {
	timeout, err := parseDurationEnv("GENERATION_TIMEOUT", 60*time.Second)
	if err != nil {
		return GenerationConfig{}, err
	}
	if timeout <= 0 {
		return GenerationConfig{}, fmt.Errorf("invalid GENERATION_TIMEOUT value: %s", timeout)
	}

	ark, err := loadArkConfig()
	if err != nil {
		return GenerationConfig{}, err
	}

	workers := WorkersAIConfig{
		AccountID: strings.TrimSpace(os.Getenv("CLOUDFLARE_ACCOUNT_ID")),
		GatewayID: getEnvOrDefault("CLOUDFLARE_GATEWAY_ID", "date-night"),
		APIToken:  strings.TrimSpace(os.Getenv("CLOUDFLARE_SCOPED_TOKEN")),
		Model:     getEnvOrDefault("WORKERS_AI_MODEL", "@cf/meta/llama-3.1-70b-instruct-preview"),
		BaseURL:   getEnvOrDefault("WORKERS_AI_BASE_URL", "https://gateway.ai.cloudflare.com/v1"),
	}

	provider := strings.ToLower(strings.TrimSpace(os.Getenv("AI_PROVIDER")))
	if provider == "" {
		switch {
		case workers.Enabled():
			provider = ProviderWorkersAI
		case ark.Enabled():
			provider = ProviderArk
		}
	}

	return GenerationConfig{
		Provider:  provider,
		Timeout:   timeout,
		WorkersAI: workers,
		Ark:       ark,
	}, nil
}

// ArkConfig 描述火山方舟大模型相关配置。
type ArkConfig struct {
	APIKey      string
	AccessKey   string
	SecretKey   string
	Model       string
	BaseURL     string
	Region      string
	Temperature *float64
	TopP        *float64
	MaxTokens   *int
}

// Enabled 表示是否提供了必需的密钥。
func (c ArkConfig) Enabled() bool {
	return c.Model != "" && (c.APIKey != "" || (c.AccessKey != "" && c.SecretKey != ""))
}

// NewChatModel 使用配置创建一个模型实例。
func (c ArkConfig) NewChatModel(ctx context.Context) (model.BaseChatModel, error) {
	if !c.Enabled() {
		return nil, fmt.Errorf("%w: 至少提供 ARK_API_KEY + ARK_MODEL 或 AK/SK 组合", ErrConfigurationMissing)
	}

	var temperature *float32
	if c.Temperature != nil {
		val := float32(*c.Temperature)
		temperature = &val
	}

	var topP *float32
	if c.TopP != nil {
		val := float32(*c.TopP)
		topP = &val
	}

	var maxTokens *int
	if c.MaxTokens != nil {
		val := *c.MaxTokens
		maxTokens = &val
	}

	cfg := &ark.ChatModelConfig{
		BaseURL:     c.BaseURL,
		Region:      c.Region,
		APIKey:      c.APIKey,
		AccessKey:   c.AccessKey,
		SecretKey:   c.SecretKey,
		Model:       c.Model,
		MaxTokens:   maxTokens,
		Temperature: temperature,
		TopP:        topP,
	}

	return ark.NewChatModel(ctx, cfg)
}

func loadArkConfig() (ArkConfig, error) {
	temperature, err := parseOptionalFloatEnv("ARK_TEMPERATURE")
	if err != nil {
		return ArkConfig{}, err
	}

	topP, err := parseOptionalFloatEnv("ARK_TOP_P")
	if err != nil {
		return ArkConfig{}, err
	}

	maxTokens, err := parseOptionalIntEnv("ARK_MAX_TOKENS")
	if err != nil {
		return ArkConfig{}, err
	}

	return ArkConfig{
		APIKey:      strings.TrimSpace(os.Getenv("ARK_API_KEY")),
		AccessKey:   strings.TrimSpace(os.Getenv("ARK_ACCESS_KEY")),
		SecretKey:   strings.TrimSpace(os.Getenv("ARK_SECRET_KEY")),
		Model:       strings.TrimSpace(os.Getenv("ARK_MODEL")),
		BaseURL:     getEnvOrDefault("ARK_BASE_URL", "https://ark.cn-beijing.volces.com/api/v3"),
		Region:      getEnvOrDefault("ARK_REGION", "cn-beijing"),
		Temperature: temperature,
		TopP:        topP,
		MaxTokens:   maxTokens,
	}, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func parseDurationEnv(key string, defaultValue time.Duration) (time.Duration, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return defaultValue, nil
	}

	val, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value %q: %w", key, raw, err)
	}
	return val, nil
}

func parseOptionalFloatEnv(key string) (*float64, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}

func parseOptionalIntEnv(key string) (*int, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.Atoi(value)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}
