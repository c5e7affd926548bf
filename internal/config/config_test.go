package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/pflag"

	"github.com/seanblong/readmegen/internal/ai"
	"github.com/seanblong/readmegen/internal/crawler"
)

// withArgs replaces os.Args for the duration of the test.
func withArgs(t *testing.T, args ...string) {
	t.Helper()
	orig := os.Args
	t.Cleanup(func() { os.Args = orig })
	os.Args = append([]string{"test"}, args...)
}

func TestSpecificationDefaults(t *testing.T) {
	clearTestEnv(t)
	withArgs(t)
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)

	cfg, err := Load("", fs)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Provider != "stub" {
		t.Errorf("Expected Provider %q, got %q", "stub", cfg.Provider)
	}
	if cfg.Location != "us-central1" {
		t.Errorf("Expected Location %q, got %q", "us-central1", cfg.Location)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("Expected LogLevel %q, got %q", "info", cfg.LogLevel)
	}
	if cfg.Port != 8080 {
		t.Errorf("Expected Port 8080, got %d", cfg.Port)
	}
	if cfg.Temperature != ai.DefaultTemperature || cfg.MaxOutputTokens != ai.DefaultMaxOutputTokens {
		t.Errorf("Unexpected generation defaults %v / %d", cfg.Temperature, cfg.MaxOutputTokens)
	}
	if cfg.Crawl.MaxDepth != 2 || cfg.Crawl.MaxFiles != 50 || cfg.Crawl.FetchConcurrency != 4 {
		t.Errorf("Unexpected crawl defaults %+v", cfg.Crawl)
	}
	if cfg.Crawl.PauseMillis != 50 {
		t.Errorf("Expected PauseMillis 50, got %d", cfg.Crawl.PauseMillis)
	}
	if cfg.Auth.Enabled {
		t.Error("Expected auth disabled by default")
	}
	if cfg.Auth.GithubRedirectURL != "http://localhost:3000/auth/callback" {
		t.Errorf("Unexpected redirect URL %q", cfg.Auth.GithubRedirectURL)
	}
}

func TestLoadFromYAMLFile(t *testing.T) {
	tmpDir := t.TempDir()
	configFile := filepath.Join(tmpDir, "test-config.yaml")

	yamlContent := `
provider: "openai"
providerApiKey: "test-api-key"
providerModel: "gpt-4o"
providerBaseURL: "http://localhost:9999/v1"
temperature: 0.2
maxOutputTokens: 2048
githubToken: "ghp_test123"
githubAPIURL: "https://ghe.example.com/api/v3/"
logLevel: "debug"
crawl:
  maxDepth: 3
  maxFiles: 20
  pauseMillis: 0
auth:
  enabled: true
  jwtSecret: "super-secret-key"
  githubClientID: "test-client-id"
  githubClientSecret: "test-client-secret"
  githubRedirectURL: "https://example.com/auth/callback"
  githubAllowedOrg: "test-org"
`
	if err := os.WriteFile(configFile, []byte(yamlContent), 0644); err != nil {
		t.Fatalf("Failed to write test config file: %v", err)
	}

	clearTestEnv(t)
	withArgs(t)
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)

	cfg, err := Load(configFile, fs)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Provider != "openai" {
		t.Errorf("Expected Provider 'openai', got %q", cfg.Provider)
	}
	if cfg.Model != "gpt-4o" {
		t.Errorf("Expected Model 'gpt-4o', got %q", cfg.Model)
	}
	if cfg.Temperature != 0.2 {
		t.Errorf("Expected Temperature 0.2, got %v", cfg.Temperature)
	}
	if cfg.MaxOutputTokens != 2048 {
		t.Errorf("Expected MaxOutputTokens 2048, got %d", cfg.MaxOutputTokens)
	}
	if cfg.GithubAPIURL != "https://ghe.example.com/api/v3/" {
		t.Errorf("Unexpected GithubAPIURL %q", cfg.GithubAPIURL)
	}
	if cfg.Crawl.MaxDepth != 3 || cfg.Crawl.MaxFiles != 20 {
		t.Errorf("Unexpected crawl settings %+v", cfg.Crawl)
	}
	if cfg.Crawl.SnippetMaxLines != 300 {
		t.Errorf("Unset crawl keys should keep defaults, got SnippetMaxLines %d", cfg.Crawl.SnippetMaxLines)
	}
	if !cfg.Auth.Enabled || cfg.Auth.GithubClientID != "test-client-id" {
		t.Errorf("Unexpected auth settings %+v", cfg.Auth)
	}
}

func TestLoadFromEnvironmentVariables(t *testing.T) {
	clearTestEnv(t)
	withArgs(t)

	envVars := map[string]string{
		"READMEGEN_PROVIDER":                  "vertexai",
		"READMEGEN_PROVIDER_PROJECT_ID":       "env-project-id",
		"READMEGEN_PROVIDER_LOCATION":         "europe-west1",
		"READMEGEN_PROVIDER_MODEL":            "gemini-2.5-pro",
		"READMEGEN_TEMPERATURE":               "0.5",
		"READMEGEN_MAX_OUTPUT_TOKENS":         "1024",
		"READMEGEN_GITHUB_TOKEN":              "ghp_env123",
		"READMEGEN_LOG_LEVEL":                 "warn",
		"READMEGEN_CRAWL_MAX_DEPTH":           "4",
		"READMEGEN_CRAWL_FETCH_CONCURRENCY":   "8",
		"READMEGEN_AUTH_ENABLED":              "true",
		"READMEGEN_AUTH_JWT_SECRET":           "env-jwt-secret",
		"READMEGEN_AUTH_GITHUB_CLIENT_ID":     "env-client-id",
		"READMEGEN_AUTH_GITHUB_ALLOWED_ORG":   "env-org",
		"READMEGEN_AUTH_GITHUB_REDIRECT_URL":  "https://env.com/auth/callback",
		"READMEGEN_AUTH_GITHUB_CLIENT_SECRET": "env-client-secret",
	}
	for key, value := range envVars {
		t.Setenv(key, value)
	}

	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	cfg, err := Load("", fs)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Provider != "vertexai" {
		t.Errorf("Expected Provider 'vertexai', got %q", cfg.Provider)
	}
	if cfg.Model != "gemini-2.5-pro" {
		t.Errorf("Expected Model 'gemini-2.5-pro', got %q", cfg.Model)
	}
	if cfg.MaxOutputTokens != 1024 {
		t.Errorf("Expected MaxOutputTokens 1024, got %d", cfg.MaxOutputTokens)
	}
	if cfg.GithubToken != "ghp_env123" {
		t.Errorf("Expected GithubToken from env, got %q", cfg.GithubToken)
	}
	if cfg.Crawl.MaxDepth != 4 || cfg.Crawl.FetchConcurrency != 8 {
		t.Errorf("Unexpected crawl settings %+v", cfg.Crawl)
	}
	if !cfg.Auth.Enabled || cfg.Auth.JwtSecret != "env-jwt-secret" || cfg.Auth.GithubAllowedOrg != "env-org" {
		t.Errorf("Unexpected auth settings %+v", cfg.Auth)
	}
}

func TestLoadFromFlags(t *testing.T) {
	clearTestEnv(t)
	withArgs(t,
		"--provider", "gemini",
		"--provider-api-key", "flag-api-key",
		"--max-files", "10",
		"--max-file-size", "2048",
		"--temperature", "0.9",
		"--log-level", "error",
		"acme/widgets",
	)
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)

	cfg, err := Load("", fs)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Provider != "gemini" {
		t.Errorf("Expected Provider 'gemini', got %q", cfg.Provider)
	}
	if cfg.APIKey != "flag-api-key" {
		t.Errorf("Expected APIKey 'flag-api-key', got %q", cfg.APIKey)
	}
	if cfg.Crawl.MaxFiles != 10 || cfg.Crawl.MaxFileSize != 2048 {
		t.Errorf("Unexpected crawl settings %+v", cfg.Crawl)
	}
	if cfg.Temperature != 0.9 {
		t.Errorf("Expected Temperature 0.9, got %v", cfg.Temperature)
	}
	if cfg.LogLevel != "error" {
		t.Errorf("Expected LogLevel 'error', got %q", cfg.LogLevel)
	}
	if args := fs.Args(); len(args) != 1 || args[0] != "acme/widgets" {
		t.Errorf("Expected positional repo argument, got %v", args)
	}
}

func TestConfigPrecedence(t *testing.T) {
	clearTestEnv(t)
	t.Setenv("READMEGEN_PROVIDER", "openai")
	t.Setenv("READMEGEN_LOG_LEVEL", "warn")
	withArgs(t, "--provider", "gemini")

	tmpDir := t.TempDir()
	configFile := filepath.Join(tmpDir, "c.yaml")
	if err := os.WriteFile(configFile, []byte("provider: vertexai\nlogLevel: debug\nport: 9090\n"), 0644); err != nil {
		t.Fatal(err)
	}

	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	cfg, err := Load(configFile, fs)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Provider != "gemini" {
		t.Errorf("Expected Provider 'gemini' (flag should override env), got %q", cfg.Provider)
	}
	if cfg.LogLevel != "warn" {
		t.Errorf("Expected LogLevel 'warn' (env should override file), got %q", cfg.LogLevel)
	}
	if cfg.Port != 9090 {
		t.Errorf("Expected Port 9090 (from file), got %d", cfg.Port)
	}
}

func TestAllAutoDiscoveryPaths(t *testing.T) {
	tmpDir := t.TempDir()
	origWd, _ := os.Getwd()
	defer func() {
		if err := os.Chdir(origWd); err != nil {
			t.Logf("Failed to restore working directory: %v", err)
		}
	}()
	if err := os.Chdir(tmpDir); err != nil {
		t.Fatalf("Failed to change to temp directory: %v", err)
	}
	if err := os.Mkdir("config", 0755); err != nil {
		t.Fatalf("Failed to create config directory: %v", err)
	}

	testCases := []struct {
		path     string
		content  string
		expected string
	}{
		{"config/readmegen.yaml", `provider: "openai"`, "openai"},
		{"config/config.yaml", `provider: "gemini"`, "gemini"},
		{"./readmegen.yaml", `provider: "vertexai"`, "vertexai"},
		{"./config.yaml", `provider: "stub"`, "stub"},
	}

	for _, tc := range testCases {
		t.Run(tc.path, func(t *testing.T) {
			for _, other := range testCases {
				if err := os.Remove(other.path); err != nil && !os.IsNotExist(err) {
					t.Logf("Failed to remove %s: %v", other.path, err)
				}
			}
			if err := os.WriteFile(tc.path, []byte(tc.content), 0644); err != nil {
				t.Fatalf("Failed to write config file: %v", err)
			}

			clearTestEnv(t)
			withArgs(t)
			fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
			cfg, err := Load("", fs)
			if err != nil {
				t.Fatalf("Load failed for %s: %v", tc.path, err)
			}
			if cfg.Provider != tc.expected {
				t.Errorf("Expected Provider %q, got %q", tc.expected, cfg.Provider)
			}
		})
	}
}

func TestConfigFileFromEnvironment(t *testing.T) {
	tmpDir := t.TempDir()
	configFile := filepath.Join(tmpDir, "custom-config.yaml")
	if err := os.WriteFile(configFile, []byte(`provider: "openai"`), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	clearTestEnv(t)
	withArgs(t)
	t.Setenv("READMEGEN_CONFIG", configFile)

	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	cfg, err := Load("", fs)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Provider != "openai" {
		t.Errorf("Expected Provider 'openai' (from READMEGEN_CONFIG), got %q", cfg.Provider)
	}
}

func TestValidation(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		wantErr string
	}{
		{
			name:    "unknown provider",
			env:     map[string]string{"READMEGEN_PROVIDER": "anthropomorphic"},
			wantErr: "unknown provider",
		},
		{
			name:    "zero depth",
			env:     map[string]string{"READMEGEN_CRAWL_MAX_DEPTH": "0"},
			wantErr: "crawl.maxDepth must be positive",
		},
		{
			name:    "negative concurrency",
			env:     map[string]string{"READMEGEN_CRAWL_FETCH_CONCURRENCY": "-1"},
			wantErr: "crawl.fetchConcurrency must be positive",
		},
		{
			name:    "negative pause",
			env:     map[string]string{"READMEGEN_CRAWL_PAUSE_MILLIS": "-5"},
			wantErr: "pause",
		},
		{
			name:    "auth without secret",
			env:     map[string]string{"READMEGEN_AUTH_ENABLED": "true"},
			wantErr: "READMEGEN_AUTH_JWT_SECRET is required",
		},
		{
			name:    "zero output tokens",
			env:     map[string]string{"READMEGEN_MAX_OUTPUT_TOKENS": "0"},
			wantErr: "maxOutputTokens",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearTestEnv(t)
			withArgs(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
			_, err := Load("", fs)
			if err == nil {
				t.Fatal("Expected validation error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Expected error containing %q, got: %v", tt.wantErr, err)
			}
		})
	}
}

func TestInvalidYAMLFile(t *testing.T) {
	tmpDir := t.TempDir()
	configFile := filepath.Join(tmpDir, "invalid.yaml")
	invalidYAML := `
provider: "test"
invalid: yaml: content: [
`
	if err := os.WriteFile(configFile, []byte(invalidYAML), 0644); err != nil {
		t.Fatalf("Failed to write invalid YAML file: %v", err)
	}

	clearTestEnv(t)
	withArgs(t)
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)

	_, err := Load(configFile, fs)
	if err == nil {
		t.Fatal("Expected error for invalid YAML file")
	}
	if !strings.Contains(err.Error(), "load yaml") {
		t.Errorf("Expected YAML load error, got: %v", err)
	}
}

func TestNonExistentConfigFile(t *testing.T) {
	clearTestEnv(t)
	withArgs(t)
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)

	_, err := Load("/non/existent/config.yaml", fs)
	if err == nil {
		t.Fatal("Expected error for non-existent config file")
	}
	if !strings.Contains(err.Error(), "config file not found") {
		t.Errorf("Expected: config file not found, got: %v", err)
	}
}

func TestInvalidFlagParsing(t *testing.T) {
	clearTestEnv(t)
	withArgs(t, "--max-depth", "invalid-number")
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)

	if _, err := Load("", fs); err == nil {
		t.Fatal("Expected error for invalid flag value")
	}
}

func TestEnvconfigProcessError(t *testing.T) {
	clearTestEnv(t)
	withArgs(t)
	t.Setenv("READMEGEN_PORT", "not-a-number")
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)

	_, err := Load("", fs)
	if err == nil {
		t.Fatal("Expected error for invalid integer in environment variable")
	}
	if !strings.Contains(err.Error(), "env override") {
		t.Errorf("Expected env override error, got: %v", err)
	}
}

func TestFileExists(t *testing.T) {
	tmpDir := t.TempDir()
	existingFile := filepath.Join(tmpDir, "existing.txt")
	if err := os.WriteFile(existingFile, []byte("test"), 0644); err != nil {
		t.Fatalf("Failed to create test file: %v", err)
	}

	if !fileExists(existingFile) {
		t.Error("fileExists should return true for existing file")
	}
	if fileExists(filepath.Join(tmpDir, "nonexistent.txt")) {
		t.Error("fileExists should return false for non-existent file")
	}
	if fileExists(tmpDir) {
		t.Error("fileExists should return false for directory")
	}
}

func TestDerivedSettings(t *testing.T) {
	cfg := Specification{
		Provider:        "openai",
		APIKey:          "k",
		Model:           "m",
		BaseURL:         "http://localhost/v1",
		Temperature:     0.3,
		MaxOutputTokens: 512,
		Crawl: CrawlSpecification{
			MaxDepth:         1,
			MaxEntriesPerDir: 7,
			MaxFileSize:      100,
			MaxFiles:         5,
			SnippetMaxLines:  10,
			FetchConcurrency: 2,
			PauseEvery:       3,
			PauseMillis:      20,
		},
	}

	cc := cfg.ClientConfig()
	if cc.Provider != ai.ProviderOpenAI || cc.APIKey != "k" || cc.Model != "m" || cc.BaseURL != "http://localhost/v1" {
		t.Errorf("Unexpected client config %+v", cc)
	}

	opts := cfg.PipelineOptions()
	if opts.MaxDepth != 1 || opts.MaxFiles != 5 || opts.MaxFileSize != 100 || opts.SnippetMaxLines != 10 || opts.FetchConcurrency != 2 {
		t.Errorf("Unexpected pipeline options %+v", opts)
	}
	if opts.Generate.Temperature != 0.3 || opts.Generate.MaxOutputTokens != 512 {
		t.Errorf("Unexpected generate options %+v", opts.Generate)
	}

	c := crawler.New(nil)
	cfg.ConfigureCrawler(c)
	if c.MaxEntriesPerDir != 7 || c.PauseEvery != 3 || c.Pause != 20*time.Millisecond {
		t.Errorf("Unexpected crawler bounds %+v", c)
	}
}

func TestAllFlagsAreBound(t *testing.T) {
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	cfg := Specification{}
	bindFlags(fs, &cfg)

	expectedFlags := []string{
		"config", "provider", "provider-api-key", "provider-model",
		"provider-project-id", "provider-location", "provider-base-url",
		"temperature", "max-output-tokens", "github-token", "github-api-url",
		"repo-root", "log-level", "port", "max-depth", "max-entries-per-dir",
		"max-file-size", "max-files", "snippet-max-lines", "fetch-concurrency",
		"pause-every", "pause-millis", "auth-enabled", "auth-jwt-secret",
		"auth-github-client-id", "auth-github-client-secret",
		"auth-github-redirect-url", "auth-github-allowed-org",
	}
	for _, flagName := range expectedFlags {
		if fs.Lookup(flagName) == nil {
			t.Errorf("Flag %q not found", flagName)
		}
	}
}

// Helper function to clear test environment variables
func clearTestEnv(t *testing.T) {
	t.Helper()

	envVars := []string{
		"READMEGEN_CONFIG",
		"READMEGEN_PROVIDER",
		"READMEGEN_PROVIDER_API_KEY",
		"READMEGEN_PROVIDER_MODEL",
		"READMEGEN_PROVIDER_PROJECT_ID",
		"READMEGEN_PROVIDER_LOCATION",
		"READMEGEN_PROVIDER_BASE_URL",
		"READMEGEN_TEMPERATURE",
		"READMEGEN_MAX_OUTPUT_TOKENS",
		"READMEGEN_GITHUB_TOKEN",
		"READMEGEN_GITHUB_API_URL",
		"READMEGEN_REPO_ROOT",
		"READMEGEN_LOG_LEVEL",
		"READMEGEN_PORT",
		"READMEGEN_CRAWL_MAX_DEPTH",
		"READMEGEN_CRAWL_MAX_ENTRIES_PER_DIR",
		"READMEGEN_CRAWL_MAX_FILE_SIZE",
		"READMEGEN_CRAWL_MAX_FILES",
		"READMEGEN_CRAWL_SNIPPET_MAX_LINES",
		"READMEGEN_CRAWL_FETCH_CONCURRENCY",
		"READMEGEN_CRAWL_PAUSE_EVERY",
		"READMEGEN_CRAWL_PAUSE_MILLIS",
		"READMEGEN_AUTH_ENABLED",
		"READMEGEN_AUTH_JWT_SECRET",
		"READMEGEN_AUTH_GITHUB_CLIENT_ID",
		"READMEGEN_AUTH_GITHUB_CLIENT_SECRET",
		"READMEGEN_AUTH_GITHUB_REDIRECT_URL",
		"READMEGEN_AUTH_GITHUB_ALLOWED_ORG",
		// unprefixed fallbacks read through envconfig tags
		"PROVIDER_API_KEY",
		"PROVIDER_MODEL",
		"PROVIDER_PROJECT_ID",
		"PROVIDER_LOCATION",
		"PROVIDER_BASE_URL",
		"GITHUB_TOKEN",
		"GITHUB_API_URL",
	}

	for _, envVar := range envVars {
		if err := os.Unsetenv(envVar); err != nil {
			t.Logf("Failed to unset environment variable %s: %v", envVar, err)
		}
	}
}
