package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"github.com/seanblong/readmegen/internal/ai"
	"github.com/seanblong/readmegen/internal/crawler"
	"github.com/seanblong/readmegen/internal/pipeline"
	"github.com/seanblong/readmegen/internal/snippet"
)

type Specification struct {
	Provider        string             `yaml:"provider"`
	APIKey          string             `yaml:"providerApiKey" envconfig:"PROVIDER_API_KEY"`
	Model           string             `yaml:"providerModel" envconfig:"PROVIDER_MODEL"`
	ProjectID       string             `yaml:"providerProjectID" envconfig:"PROVIDER_PROJECT_ID"`
	Location        string             `yaml:"providerLocation" envconfig:"PROVIDER_LOCATION"`
	BaseURL         string             `yaml:"providerBaseURL" envconfig:"PROVIDER_BASE_URL"`
	Temperature     float32            `yaml:"temperature"`
	MaxOutputTokens int32              `yaml:"maxOutputTokens" split_words:"true"`
	GithubToken     string             `yaml:"githubToken" envconfig:"GITHUB_TOKEN"`
	GithubAPIURL    string             `yaml:"githubAPIURL" envconfig:"GITHUB_API_URL"`
	RepoRoot        string             `yaml:"repoRoot" split_words:"true"`
	LogLevel        string             `yaml:"logLevel" split_words:"true"`
	Port            int                `yaml:"port" split_words:"true"`
	Crawl           CrawlSpecification `yaml:"crawl"`
	Auth            AuthSpecification  `yaml:"auth"`

	flags *pflag.FlagSet `ignored:"true"`
}

type CrawlSpecification struct {
	MaxDepth         int   `yaml:"maxDepth" split_words:"true"`
	MaxEntriesPerDir int   `yaml:"maxEntriesPerDir" split_words:"true"`
	MaxFileSize      int64 `yaml:"maxFileSize" split_words:"true"`
	MaxFiles         int   `yaml:"maxFiles" split_words:"true"`
	SnippetMaxLines  int   `yaml:"snippetMaxLines" split_words:"true"`
	FetchConcurrency int   `yaml:"fetchConcurrency" split_words:"true"`
	PauseEvery       int   `yaml:"pauseEvery" split_words:"true"`
	PauseMillis      int   `yaml:"pauseMillis" split_words:"true"`
}

type AuthSpecification struct {
	Enabled            bool   `yaml:"enabled"`
	JwtSecret          string `yaml:"jwtSecret" split_words:"true"`
	GithubClientID     string `yaml:"githubClientID" split_words:"true"`
	GithubClientSecret string `yaml:"githubClientSecret" split_words:"true"`
	GithubRedirectURL  string `yaml:"githubRedirectURL" split_words:"true"`
	GithubAllowedOrg   string `yaml:"githubAllowedOrg" split_words:"true"`
}

const envPrefix = "READMEGEN"

func (s *Specification) Usage() {
	fmt.Fprint(os.Stderr, s.flags.FlagUsages())
}

// Load => defaults < YAML < env < flags.
// configPath may be ""; if so we auto-discover.
func Load(configPath string, fs *pflag.FlagSet) (Specification, error) {
	var cfg Specification

	// set defaults (lowest precedence)
	setDefaults(&cfg)
	bindFlags(fs, &cfg)

	// config file
	path := configPath
	if path == "" {
		if v := os.Getenv(envPrefix + "_CONFIG"); v != "" {
			path = v
		} else {
			for _, cand := range []string{
				"config/readmegen.yaml",
				"config/config.yaml",
				"./readmegen.yaml",
				"./config.yaml",
			} {
				if fileExists(cand) {
					path = cand
					break
				}
			}
		}
	}

	if path != "" {
		if !fileExists(path) {
			return Specification{}, fmt.Errorf("config file not found: %s", path)
		}
		if err := loadYAML(path, &cfg); err != nil {
			return Specification{}, fmt.Errorf("load yaml %s: %w", path, err)
		}
	}

	// env overrides config file
	if err := envconfig.Process(envPrefix, &cfg); err != nil {
		return Specification{}, fmt.Errorf("env override: %w", err)
	}

	// flags override everything
	if err := fs.Parse(os.Args[1:]); err != nil {
		return Specification{}, err
	}
	applyChangedFlags(fs, &cfg)

	if strings.TrimSpace(cfg.LogLevel) == "" {
		cfg.LogLevel = "info"
	}
	if err := cfg.Validate(); err != nil {
		return Specification{}, err
	}
	return cfg, nil
}

// Validate rejects settings no run could work with.
func (s *Specification) Validate() error {
	if !ai.Provider(s.Provider).Valid() {
		return fmt.Errorf("unknown provider %q (want gemini, vertexai, openai or stub)", s.Provider)
	}
	c := s.Crawl
	for name, v := range map[string]int64{
		"crawl.maxDepth":         int64(c.MaxDepth),
		"crawl.maxEntriesPerDir": int64(c.MaxEntriesPerDir),
		"crawl.maxFileSize":      c.MaxFileSize,
		"crawl.maxFiles":         int64(c.MaxFiles),
		"crawl.snippetMaxLines":  int64(c.SnippetMaxLines),
		"crawl.fetchConcurrency": int64(c.FetchConcurrency),
	} {
		if v <= 0 {
			return fmt.Errorf("%s must be positive, got %d", name, v)
		}
	}
	if c.PauseEvery < 0 || c.PauseMillis < 0 {
		return fmt.Errorf("crawl pause settings must not be negative")
	}
	if s.MaxOutputTokens <= 0 {
		return fmt.Errorf("maxOutputTokens must be positive, got %d", s.MaxOutputTokens)
	}
	if s.Auth.Enabled && strings.TrimSpace(s.Auth.JwtSecret) == "" {
		return fmt.Errorf("READMEGEN_AUTH_JWT_SECRET is required when auth is enabled")
	}
	return nil
}

// ClientConfig returns the generator settings.
func (s *Specification) ClientConfig() *ai.ClientConfig {
	return &ai.ClientConfig{
		Provider:  ai.Provider(s.Provider),
		APIKey:    s.APIKey,
		Model:     s.Model,
		ProjectID: s.ProjectID,
		Location:  s.Location,
		BaseURL:   s.BaseURL,
	}
}

// PipelineOptions returns the per-run bounds.
func (s *Specification) PipelineOptions() pipeline.Options {
	return pipeline.Options{
		MaxDepth:         s.Crawl.MaxDepth,
		MaxFiles:         s.Crawl.MaxFiles,
		MaxFileSize:      s.Crawl.MaxFileSize,
		SnippetMaxLines:  s.Crawl.SnippetMaxLines,
		FetchConcurrency: s.Crawl.FetchConcurrency,
		Generate: ai.GenerateOptions{
			Temperature:     s.Temperature,
			MaxOutputTokens: s.MaxOutputTokens,
		},
	}
}

// ConfigureCrawler applies the listing bounds to c.
func (s *Specification) ConfigureCrawler(c *crawler.Crawler) {
	c.MaxEntriesPerDir = s.Crawl.MaxEntriesPerDir
	c.PauseEvery = s.Crawl.PauseEvery
	c.Pause = time.Duration(s.Crawl.PauseMillis) * time.Millisecond
}

// ---------- helpers ----------

func loadYAML(path string, into any) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(b, into)
}

func fileExists(p string) bool {
	fi, err := os.Stat(p)
	return err == nil && !fi.IsDir()
}

func bindFlags(fs *pflag.FlagSet, c *Specification) {
	fs.String("config", "", "Path to config file")

	// If --config is provided on the command line, capture it now so
	// config discovery (which runs before flags.Parse) can use it.
	for i, a := range os.Args {
		if a == "--config" {
			if i+1 < len(os.Args) && !strings.HasPrefix(os.Args[i+1], "-") {
				_ = os.Setenv(envPrefix+"_CONFIG", os.Args[i+1])
			}
		} else if strings.HasPrefix(a, "--config=") {
			parts := strings.SplitN(a, "=", 2)
			if len(parts) == 2 {
				_ = os.Setenv(envPrefix+"_CONFIG", parts[1])
			}
		}
	}

	fs.String("provider", c.Provider, "Provider (gemini, vertexai, openai, stub)")
	fs.String("provider-api-key", c.APIKey, "Provider API key")
	fs.String("provider-model", c.Model, "Provider generation model")
	fs.String("provider-project-id", c.ProjectID, "Provider project ID")
	fs.String("provider-location", c.Location, "Provider location/region")
	fs.String("provider-base-url", c.BaseURL, "Provider API base URL")
	fs.Float32("temperature", c.Temperature, "Sampling temperature")
	fs.Int32("max-output-tokens", c.MaxOutputTokens, "Upper bound on generated tokens")

	fs.String("github-token", c.GithubToken, "GitHub API token")
	fs.String("github-api-url", c.GithubAPIURL, "GitHub API root (for GitHub Enterprise)")
	fs.String("repo-root", c.RepoRoot, "Path to a local checkout")

	fs.String("log-level", c.LogLevel, "Log level (debug|info|warn|error)")
	fs.Int("port", c.Port, "API server port")

	fs.Int("max-depth", c.Crawl.MaxDepth, "Maximum directory depth to crawl")
	fs.Int("max-entries-per-dir", c.Crawl.MaxEntriesPerDir, "Entries considered per directory")
	fs.Int64("max-file-size", c.Crawl.MaxFileSize, "Largest file considered, in bytes")
	fs.Int("max-files", c.Crawl.MaxFiles, "Files analyzed after ranking")
	fs.Int("snippet-max-lines", c.Crawl.SnippetMaxLines, "Lines kept per code excerpt")
	fs.Int("fetch-concurrency", c.Crawl.FetchConcurrency, "Concurrent file fetches")
	fs.Int("pause-every", c.Crawl.PauseEvery, "Pause after this many listed entries (0 disables)")
	fs.Int("pause-millis", c.Crawl.PauseMillis, "Length of each listing pause in milliseconds")

	fs.Bool("auth-enabled", c.Auth.Enabled, "Enable GitHub OAuth authentication")
	fs.String("auth-jwt-secret", c.Auth.JwtSecret, "JWT secret for signing tokens")
	fs.String("auth-github-client-id", c.Auth.GithubClientID, "GitHub OAuth App Client ID")
	fs.String("auth-github-client-secret", c.Auth.GithubClientSecret, "GitHub OAuth App Client Secret")
	fs.String("auth-github-redirect-url", c.Auth.GithubRedirectURL, "GitHub OAuth App Redirect URL")
	fs.String("auth-github-allowed-org", c.Auth.GithubAllowedOrg, "Optional: Restrict login to a GitHub organization")

	// Used later for usage/help
	// create a shallow copy of fs (so Usage can be called safely without mutating caller)
	copied := pflag.NewFlagSet("temp", pflag.ContinueOnError)
	*copied = *fs
	c.flags = copied
}

func applyChangedFlags(fs *pflag.FlagSet, c *Specification) {
	setStr := func(name string, dst *string) {
		if fs.Changed(name) {
			v, _ := fs.GetString(name)
			*dst = v
		}
	}
	setInt := func(name string, dst *int) {
		if fs.Changed(name) {
			v, _ := fs.GetInt(name)
			*dst = v
		}
	}
	setBool := func(name string, dst *bool) {
		if fs.Changed(name) {
			v, _ := fs.GetBool(name)
			*dst = v
		}
	}

	// (We ignore --config here; it's for discovery.)
	setStr("provider", &c.Provider)
	setStr("provider-api-key", &c.APIKey)
	setStr("provider-model", &c.Model)
	setStr("provider-project-id", &c.ProjectID)
	setStr("provider-location", &c.Location)
	setStr("provider-base-url", &c.BaseURL)
	if fs.Changed("temperature") {
		c.Temperature, _ = fs.GetFloat32("temperature")
	}
	if fs.Changed("max-output-tokens") {
		c.MaxOutputTokens, _ = fs.GetInt32("max-output-tokens")
	}

	setStr("github-token", &c.GithubToken)
	setStr("github-api-url", &c.GithubAPIURL)
	setStr("repo-root", &c.RepoRoot)

	setStr("log-level", &c.LogLevel)
	setInt("port", &c.Port)

	setInt("max-depth", &c.Crawl.MaxDepth)
	setInt("max-entries-per-dir", &c.Crawl.MaxEntriesPerDir)
	if fs.Changed("max-file-size") {
		c.Crawl.MaxFileSize, _ = fs.GetInt64("max-file-size")
	}
	setInt("max-files", &c.Crawl.MaxFiles)
	setInt("snippet-max-lines", &c.Crawl.SnippetMaxLines)
	setInt("fetch-concurrency", &c.Crawl.FetchConcurrency)
	setInt("pause-every", &c.Crawl.PauseEvery)
	setInt("pause-millis", &c.Crawl.PauseMillis)

	// Auth flags
	setBool("auth-enabled", &c.Auth.Enabled)
	setStr("auth-jwt-secret", &c.Auth.JwtSecret)
	setStr("auth-github-client-id", &c.Auth.GithubClientID)
	setStr("auth-github-client-secret", &c.Auth.GithubClientSecret)
	setStr("auth-github-redirect-url", &c.Auth.GithubRedirectURL)
	setStr("auth-github-allowed-org", &c.Auth.GithubAllowedOrg)
}

func setDefaults(c *Specification) {
	c.LogLevel = "info"
	c.Provider = string(ai.ProviderStub)
	c.Location = ai.DefaultVertexLocation
	c.Temperature = ai.DefaultTemperature
	c.MaxOutputTokens = ai.DefaultMaxOutputTokens
	c.Port = 8080
	c.Crawl = CrawlSpecification{
		MaxDepth:         crawler.DefaultMaxDepth,
		MaxEntriesPerDir: crawler.DefaultMaxEntriesPerDir,
		MaxFileSize:      crawler.DefaultMaxFileSize,
		MaxFiles:         crawler.DefaultMaxFiles,
		SnippetMaxLines:  snippet.DefaultMaxLines,
		FetchConcurrency: pipeline.DefaultFetchConcurrency,
		PauseEvery:       crawler.DefaultPauseEvery,
		PauseMillis:      int(crawler.DefaultPause / time.Millisecond),
	}
	c.Auth.GithubRedirectURL = "http://localhost:3000/auth/callback"
	c.Auth.Enabled = false
}
