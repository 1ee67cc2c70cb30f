package cmd

import (
	"errors"
	"log"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/spigell/job-matcher/internal/filtering"
	"github.com/spigell/job-matcher/internal/jobs"
	"github.com/spigell/job-matcher/internal/matcher"
)

const (
	app       = "job-matcher"
	envPrefix = "JOB_MATCHER"
)

type Config struct {
	Catalog   *CatalogConfig         `mapstructure:"catalog"`
	Profile   *jobs.CandidateProfile `mapstructure:"profile"`
	Embedding *EmbeddingConfig       `mapstructure:"embedding"`
	Matcher   matcher.Config         `mapstructure:"matcher"`
	Skills    *SkillsConfig          `mapstructure:"skills"`
	Filters   *filtering.Config      `mapstructure:"filters"`
}

type CatalogConfig struct {
	File      string `mapstructure:"file"`
	URL       string `mapstructure:"url"`
	TokenFile string `mapstructure:"token-file"`
	UserAgent string `mapstructure:"user-agent"`
}

type EmbeddingConfig struct {
	Provider   string        `mapstructure:"provider"`
	Model      string        `mapstructure:"model"`
	APIKey     string        `mapstructure:"api-key"`
	APIKeyFile string        `mapstructure:"api-key-file"`
	// BaseURL is used by openai and cohere.
	BaseURL    string `mapstructure:"base-url"`
	MaxRetries int    `mapstructure:"max-retries"`
	// Timeout bounds one provider request. The hash provider makes none.
	Timeout time.Duration `mapstructure:"timeout"`
	// Dimensions sets the vector size for gemini, openai and hash. Cohere v3 models
	// have a fixed size and ignore it.
	Dimensions int          `mapstructure:"dimensions"`
	Cache      *CacheConfig `mapstructure:"cache"`
}

type CacheConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	Backend string        `mapstructure:"backend"`
	TTL     time.Duration `mapstructure:"ttl"`
	Redis   *RedisConfig  `mapstructure:"redis"`
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Prefix   string `mapstructure:"prefix"`
}

type SkillsConfig struct {
	Synonyms map[string][]string `mapstructure:"synonyms"`
}

var (
	// Used for flags.
	cfgFile string

	rootCmd = &cobra.Command{
		Use:   app,
		Short: "job-matcher ranks job postings against a candidate profile using text embeddings",
	}
)

// Execute executes the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	viper.SetEnvPrefix(envPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	bindings := map[string]string{
		"embedding.api-key-file":         "JOB_MATCHER_API_KEY_FILE",
		"catalog.token-file":             "JOB_MATCHER_CATALOG_TOKEN_FILE",
		"embedding.cache.redis.password": "JOB_MATCHER_REDIS_PASSWORD",
	}
	for key, env := range bindings {
		if err := viper.BindEnv(key, env); err != nil {
			log.Fatalf("binding %s environment variable: %v", env, err)
		}
	}

	viper.SetDefault("embedding.provider", providerGemini)
	viper.SetDefault("embedding.cache.backend", cacheBackendMemory)
	viper.SetDefault("matcher.top-k", matcher.DefaultTopK)

	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "a config file (default is job-matcher.yaml in current directory)")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "verbose/debug output")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "json format for logging")
	rootCmd.PersistentFlags().String("log-output", "", "log destination: stderr (default) or a file path")
	rootCmd.PersistentFlags().StringP("catalog", "c", "", "path to the catalog JSON file")

	viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
	viper.BindPFlag("log-output", rootCmd.PersistentFlags().Lookup("log-output"))
	viper.BindPFlag("catalog.file", rootCmd.PersistentFlags().Lookup("catalog"))
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigName(app)
	}

	// The config file is optional unless it was requested explicitly.
	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) && cfgFile == "" {
			return
		}
		log.Fatal(err)
	}
}

func getConfig() (*Config, error) {
	config := &Config{}
	if err := viper.Unmarshal(config); err != nil {
		return nil, err
	}

	if config.Catalog == nil {
		config.Catalog = &CatalogConfig{}
	}
	if config.Embedding == nil {
		config.Embedding = &EmbeddingConfig{}
	}
	if config.Skills == nil {
		config.Skills = &SkillsConfig{}
	}
	if config.Filters == nil {
		config.Filters = &filtering.Config{}
	}

	return config, nil
}
