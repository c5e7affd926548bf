package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/pflag"

	"github.com/seanblong/readmegen/internal/ai"
	"github.com/seanblong/readmegen/internal/config"
	"github.com/seanblong/readmegen/internal/pipeline"
	"github.com/seanblong/readmegen/internal/progress"
	"github.com/seanblong/readmegen/internal/source"
	"github.com/seanblong/readmegen/pkg/models"
)

func main() {
	fs := pflag.NewFlagSet("readmegen", pflag.ExitOnError)
	out := fs.StringP("out", "o", "", "Write the README to this file instead of stdout")
	local := fs.Bool("local", false, "Read the repository from --repo-root instead of GitHub")

	cfg, err := config.Load("", fs)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(2)
	}
	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, "usage: readmegen [flags] <owner/repo | github url>")
		fmt.Fprintln(os.Stderr, "       readmegen --local [--repo-root DIR] [flags]")
		cfg.Usage()
	}

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid log level '%s': %v\n", cfg.LogLevel, err)
		os.Exit(2)
	}
	zerolog.SetGlobalLevel(level)
	log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var (
		host   source.Host
		input  string
		ghHost *source.GitHub
	)
	switch {
	case *local || (fs.NArg() == 0 && cfg.RepoRoot != ""):
		root := cfg.RepoRoot
		if root == "" {
			root = "."
		}
		l, err := source.NewLocal(root)
		if err != nil {
			log.Fatal().Err(err).Str("root", root).Msg("invalid repo root")
		}
		host, input = l, l.Ref().String()
	case fs.NArg() == 1:
		gh, err := source.NewGitHub(ctx, source.GitHubConfig{Token: cfg.GithubToken, BaseURL: cfg.GithubAPIURL})
		if err != nil {
			log.Fatal().Err(err).Msg("failed to create GitHub client")
		}
		host, input, ghHost = gh, fs.Arg(0), gh
	default:
		fs.Usage()
		os.Exit(2)
	}

	gen, err := ai.NewClient(ctx, cfg.ClientConfig())
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create AI client")
	}

	svc := pipeline.New(host, gen, cfg.PipelineOptions())
	cfg.ConfigureCrawler(svc.Crawler)

	sink := progress.SinkFunc(func(ev models.ProgressEvent) {
		e := log.Info().Str("phase", string(ev.Phase)).Int("percent", ev.Percent)
		if ev.EstimatedSecondsRemaining != nil {
			e = e.Int("eta_s", *ev.EstimatedSecondsRemaining)
		}
		e.Msg(ev.Message)
	})

	doc, err := svc.Run(ctx, input, sink)
	if err != nil {
		kind := pipeline.Classify(err)
		log.Error().Err(err).Str("kind", string(kind)).Msg(pipeline.Message(err))
		if kind.AuthMayHelp() && ghHost != nil && !ghHost.Authenticated() {
			log.Info().Msg("set READMEGEN_GITHUB_TOKEN to read private repositories")
		}
		os.Exit(1)
	}

	if err := writeOutput(*out, doc.MarkdownText); err != nil {
		log.Fatal().Err(err).Msg("failed to write README")
	}
}

func writeOutput(path, markdown string) error {
	if path == "" {
		_, err := fmt.Fprintln(os.Stdout, markdown)
		return err
	}
	if err := os.WriteFile(path, []byte(markdown+"\n"), 0o644); err != nil {
		return err
	}
	log.Info().Str("path", path).Msg("README written")
	return nil
}
