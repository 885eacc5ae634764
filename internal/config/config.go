package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	AI        AIConfig        `json:"ai"`
	Storage   StorageConfig   `json:"storage"`
	Favorites FavoritesConfig `json:"favorites"`
	Images    ImagesConfig    `json:"images"`
	Logging   LoggingConfig   `json:"logging"`
}

type AIConfig struct {
	Provider string        `json:"provider"` // "openrouter", "openai", "gemini" or "mock"
	APIKey   string        `json:"api_key"`
	Model    string        `json:"model"`
	Endpoint string        `json:"endpoint"`
	Timeout  time.Duration `json:"timeout"`
}

type StorageConfig struct {
	Dir          string `json:"dir"`
	AccountName  string `json:"account_name"`
	AccountKey   string `json:"-"`
	Container    string `json:"container"`
	CacheRecipes bool   `json:"cache_recipes"`
}

type FavoritesConfig struct {
	Key        string `json:"key"`
	Passphrase string `json:"-"`
}

type ImagesConfig struct {
	SearchURL string `json:"search_url"` // %s is replaced with the escaped recipe title
}

type LoggingConfig struct {
	Level         string `json:"level"`
	Format        string `json:"format"` // "text" or "json"
	BlobAccount   string `json:"blob_account"`
	BlobKey       string `json:"-"`
	BlobContainer string `json:"blob_container"`
	OTLP          string `json:"otlp_endpoint"`
	ServiceName   string `json:"service_name"`
}

var providers = []string{"openrouter", "openai", "gemini", "mock"}

// Load reads an optional .env file and then the process environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to read .env: %w", err)
	}

	timeout, err := time.ParseDuration(getEnvOrDefault("AI_TIMEOUT", "90s"))
	if err != nil {
		return nil, fmt.Errorf("invalid AI_TIMEOUT: %w", err)
	}

	config := &Config{
		AI: AIConfig{
			Provider: strings.ToLower(getEnvOrDefault("AI_PROVIDER", "openrouter")),
			APIKey:   os.Getenv("AI_API_KEY"),
			Model:    os.Getenv("AI_MODEL"),
			Endpoint: os.Getenv("AI_ENDPOINT"),
			Timeout:  timeout,
		},
		Storage: StorageConfig{
			Dir:          getEnvOrDefault("CACHE_DIR", "cache"),
			AccountName:  os.Getenv("AZURE_STORAGE_ACCOUNT_NAME"),
			AccountKey:   os.Getenv("AZURE_STORAGE_PRIMARY_ACCOUNT_KEY"),
			Container:    getEnvOrDefault("AZURE_STORAGE_CONTAINER", "fridgefeast"),
			CacheRecipes: getEnvOrDefault("CACHE_RECIPES", "true") == "true",
		},
		Favorites: FavoritesConfig{
			Key:        getEnvOrDefault("FAVORITES_KEY", "favorites.json"),
			Passphrase: os.Getenv("FAVORITES_PASSPHRASE"),
		},
		Images: ImagesConfig{
			SearchURL: os.Getenv("IMAGE_SEARCH_URL"),
		},
		Logging: LoggingConfig{
			Level:         getEnvOrDefault("LOG_LEVEL", "info"),
			Format:        getEnvOrDefault("LOG_FORMAT", "text"),
			BlobAccount:   os.Getenv("LOG_BLOB_ACCOUNT_NAME"),
			BlobKey:       os.Getenv("LOG_BLOB_ACCOUNT_KEY"),
			BlobContainer: getEnvOrDefault("LOG_BLOB_CONTAINER", "logs"),
			OTLP:          os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
			ServiceName:   getEnvOrDefault("OTEL_SERVICE_NAME", "fridgefeast"),
		},
	}

	if config.AI.APIKey == "" && config.AI.Provider != "mock" {
		// nothing to talk to, fall back to canned answers
		config.AI.Provider = "mock"
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

func (c *Config) Validate() error {
	if !slices.Contains(providers, c.AI.Provider) {
		return fmt.Errorf("unknown AI_PROVIDER %q, want one of %s", c.AI.Provider, strings.Join(providers, ", "))
	}
	if c.AI.Timeout <= 0 {
		return errors.New("AI_TIMEOUT must be positive")
	}
	if strings.TrimSpace(c.Favorites.Key) == "" {
		return errors.New("FAVORITES_KEY must not be empty")
	}
	if c.Images.SearchURL != "" && !strings.Contains(c.Images.SearchURL, "%s") {
		return fmt.Errorf("IMAGE_SEARCH_URL %q must contain %%s", c.Images.SearchURL)
	}
	switch c.Logging.Format {
	case "text", "json":
	default:
		return fmt.Errorf("unknown LOG_FORMAT %q", c.Logging.Format)
	}
	return nil
}

// UsesBlobStorage reports whether favorites and cached recipes live in Azure Blob Storage.
func (s StorageConfig) UsesBlobStorage() bool {
	return s.AccountName != ""
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
