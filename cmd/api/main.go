package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"
	"github.com/spf13/pflag"

	"github.com/seanblong/readmegen/internal/ai"
	"github.com/seanblong/readmegen/internal/auth"
	"github.com/seanblong/readmegen/internal/config"
	"github.com/seanblong/readmegen/internal/source"
)

func main() {
	fs := pflag.NewFlagSet("readmegen-api", pflag.ExitOnError)

	cfg, err := config.Load("", fs)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	fs.Usage = cfg.Usage

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		log.Fatalf("Invalid log level '%s': %v", cfg.LogLevel, err)
	}
	zerolog.SetGlobalLevel(level)
	logger := zerolog.New(os.Stdout).Level(level).With().Timestamp().Logger()
	logger.Info().Str("provider", cfg.Provider).Str("log_level", cfg.LogLevel).Bool("auth_enabled", cfg.Auth.Enabled).Msg("starting readmegen api")

	auth.InitializeAuth(
		cfg.Auth.JwtSecret,
		cfg.Auth.GithubClientID,
		cfg.Auth.GithubClientSecret,
		cfg.Auth.GithubRedirectURL,
		cfg.Auth.GithubAllowedOrg,
		cfg.Auth.Enabled,
	)
	if endpoint, ok := auth.EnterpriseEndpoint(cfg.GithubAPIURL); ok {
		if err := auth.SetGithubEndpoints(endpoint, cfg.GithubAPIURL); err != nil {
			log.Fatalf("Failed to configure GitHub endpoints: %v", err)
		}
		logger.Info().Str("api_url", cfg.GithubAPIURL).Msg("using GitHub Enterprise endpoints")
	}
	if auth.IsAuthEnabled() {
		logger.Info().Msg("Authentication is ENABLED")
	} else {
		logger.Info().Msg("Authentication is DISABLED - running in open mode")
	}

	ctx := context.Background()
	gen, err := ai.NewClient(ctx, cfg.ClientConfig())
	if err != nil {
		log.Fatalf("Failed to create AI client: %v", err)
	}

	hosts := func(ctx context.Context, token string) (source.Host, error) {
		return source.NewGitHub(ctx, source.GitHubConfig{Token: token, BaseURL: cfg.GithubAPIURL})
	}
	srv := newServer(cfg, gen, hosts)

	handler := hlog.NewHandler(logger)(
		hlog.AccessHandler(func(r *http.Request, status, size int, dur time.Duration) {
			logger.Info().Str("method", r.Method).Str("path", r.URL.Path).Int("status", status).Int("size", size).Dur("dur", dur).Msg("http")
		})(srv.routes()),
	)

	address := fmt.Sprintf(":%d", cfg.Port)
	s := &http.Server{Addr: address, Handler: handler, ReadHeaderTimeout: 10 * time.Second}
	logger.Info().Str("addr", s.Addr).Msg("api server listening")
	log.Fatal(s.ListenAndServe())
}
