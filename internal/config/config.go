package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Storage backends understood by cmd/server.
const (
	BackendPostgres = "postgres"
	BackendMongo    = "mongo"
	BackendMemory   = "memory"
)

// Config holds everything the server reads from the environment.
type Config struct {
	Env      string
	Port     int
	LogLevel string

	StorageBackend string
	DatabaseURL    string
	MongoURI       string
	MongoDatabase  string
	DBTimeout      time.Duration

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	JWTSecret   string
	JWTTTL      time.Duration
	CORSOrigins []string

	SMTPHost   string
	SMTPPort   int
	SMTPUser   string
	SMTPPass   string
	MailSender string

	PinataAPIKey     string
	PinataSecretKey  string
	PinataAPIURL     string
	PinataGatewayURL string
	UploadDir        string

	EthRPCURL                string
	EthPrivateKey            string
	NFTContractAddress       string
	NFTContractABI           string
	NFTAccessContractAddress string
	NFTAccessContractABI     string
}

// Load reads the environment and applies defaults. Call godotenv.Load before it
// if a .env file should be honoured.
func Load() (*Config, error) {
	var errs []error
	getIntEnv := func(key string, def int) int {
		v, err := parseEnv(key, def, strconv.Atoi)
		if err != nil {
			errs = append(errs, err)
		}
		return v
	}
	getDurationEnv := func(key string, def time.Duration) time.Duration {
		v, err := parseEnv(key, def, time.ParseDuration)
		if err != nil {
			errs = append(errs, err)
		}
		return v
	}

	cfg := &Config{
		Env:      getEnv("APP_ENV", "development"),
		Port:     getIntEnv("PORT", 8080),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		StorageBackend: strings.ToLower(getEnv("STORAGE_BACKEND", BackendPostgres)),
		DatabaseURL:    getEnv("DATABASE_URL", postgresDSNFromParts()),
		MongoURI:       getEnv("MONGODB_URI", "mongodb://localhost:27017"),
		MongoDatabase:  getEnv("MONGODB_DATABASE", "carelink"),
		DBTimeout:      getDurationEnv("DB_TIMEOUT", 5*time.Second),

		RedisAddr:     os.Getenv("REDIS_ADDR"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisDB:       getIntEnv("REDIS_DB", 0),

		JWTSecret:   os.Getenv("JWT_SECRET"),
		JWTTTL:      getDurationEnv("JWT_TTL", DefaultTokenTTL),
		CORSOrigins: splitList(getEnv("CORS_ORIGINS", "*")),

		SMTPHost:   os.Getenv("SMTP_HOST"),
		SMTPPort:   getIntEnv("SMTP_PORT", 587),
		SMTPUser:   os.Getenv("SMTP_USER"),
		SMTPPass:   os.Getenv("SMTP_PASS"),
		MailSender: os.Getenv("MAIL_SENDER"),

		PinataAPIKey:     os.Getenv("PINATA_API_KEY"),
		PinataSecretKey:  os.Getenv("PINATA_SECRET_KEY"),
		PinataAPIURL:     getEnv("PINATA_API_URL", "https://api.pinata.cloud"),
		PinataGatewayURL: getEnv("PINATA_GATEWAY_URL", "https://gateway.pinata.cloud/ipfs/"),
		UploadDir:        getEnv("UPLOAD_DIR", "./uploads"),

		EthRPCURL:                getEnv("ETH_RPC_URL", "http://127.0.0.1:7545"),
		EthPrivateKey:            os.Getenv("ETH_PRIVATE_KEY"),
		NFTContractAddress:       os.Getenv("NFT_CONTRACT_ADDRESS"),
		NFTContractABI:           getEnv("NFT_CONTRACT_ABI", "artifacts/contracts/FileNFT.sol/FileNFT.json"),
		NFTAccessContractAddress: os.Getenv("NFT_ACCESS_CONTRACT_ADDRESS"),
		NFTAccessContractABI:     getEnv("NFT_ACCESS_CONTRACT_ABI", "artifacts/contracts/NFTTimeAccess.sol/NFTTimeAccess.json"),
	}

	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the settings that have no usable default.
func (c *Config) Validate() error {
	switch c.StorageBackend {
	case BackendPostgres, BackendMongo, BackendMemory:
	default:
		return fmt.Errorf("unknown STORAGE_BACKEND %q", c.StorageBackend)
	}

	if c.JWTSecret == "" {
		if c.StorageBackend != BackendMemory {
			return errors.New("JWT_SECRET must be set")
		}
		c.JWTSecret = "dev-only-secret"
	}
	if c.JWTTTL <= 0 {
		return errors.New("JWT_TTL must be positive")
	}
	return nil
}

// RedisEnabled reports whether the cross-instance relay should be started.
func (c *Config) RedisEnabled() bool { return c.RedisAddr != "" }

// MailEnabled reports whether an SMTP provider is configured.
func (c *Config) MailEnabled() bool { return c.SMTPHost != "" }

// ChainEnabled reports whether the Ethereum side of the NFT relay is configured.
func (c *Config) ChainEnabled() bool {
	return c.EthPrivateKey != "" && c.NFTContractAddress != ""
}

// Addr is the listen address for the HTTP server.
func (c *Config) Addr() string { return fmt.Sprintf(":%d", c.Port) }

func postgresDSNFromParts() string {
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=disable",
		getEnv("DB_HOST", "localhost"),
		getEnv("DB_USER", "user"),
		getEnv("DB_PASSWORD", "password"),
		getEnv("DB_NAME", "carelink"),
		getEnv("DB_PORT", "5432"),
	)
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// parseEnv returns def when key is unset and an error naming key when it is malformed.
func parseEnv[T any](key string, def T, parse func(string) (T, error)) (T, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	out, err := parse(v)
	if err != nil {
		return def, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	return out, nil
}

func splitList(v string) []string {
	var out []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
