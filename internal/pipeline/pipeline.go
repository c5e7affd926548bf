// Package pipeline runs one README generation: parse the reference, crawl,
// rank, analyze, summarize, prompt and generate.
package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sourcegraph/conc/pool"

	"github.com/seanblong/readmegen/internal/ai"
	"github.com/seanblong/readmegen/internal/analyzer"
	"github.com/seanblong/readmegen/internal/crawler"
	"github.com/seanblong/readmegen/internal/progress"
	"github.com/seanblong/readmegen/internal/prompt"
	"github.com/seanblong/readmegen/internal/repourl"
	"github.com/seanblong/readmegen/internal/semantic"
	"github.com/seanblong/readmegen/internal/snippet"
	"github.com/seanblong/readmegen/internal/source"
	"github.com/seanblong/readmegen/pkg/models"
)

// DefaultFetchConcurrency bounds concurrent content fetches.
const DefaultFetchConcurrency = 4

// Percent checkpoints of a run.
const (
	percentFetchStart   = 5
	percentFetchEnd     = 40
	percentAnalyzeStart = 40
	percentAnalyzeEnd   = 80
	percentGenerating   = 85
	percentComplete     = 100
)

type Options struct {
	MaxDepth         int
	MaxFiles         int
	MaxFileSize      int64
	SnippetMaxLines  int
	FetchConcurrency int
	Generate         ai.GenerateOptions
}

func DefaultOptions() Options {
	return Options{
		MaxDepth:         crawler.DefaultMaxDepth,
		MaxFiles:         crawler.DefaultMaxFiles,
		MaxFileSize:      crawler.DefaultMaxFileSize,
		SnippetMaxLines:  snippet.DefaultMaxLines,
		FetchConcurrency: DefaultFetchConcurrency,
		Generate:         ai.DefaultOptions(),
	}
}

// Service holds the collaborators of a run. Access is optional; without it
// the metadata is derived from the reference alone.
type Service struct {
	Fetcher   source.Fetcher
	Access    source.AccessChecker
	Generator ai.Generator
	Crawler   *crawler.Crawler
	Analyzer  *analyzer.Analyzer
	Options   Options

	now func() time.Time
}

// New wires a Service around a repository host and a generator.
func New(host source.Host, gen ai.Generator, opts Options) *Service {
	c := crawler.New(host)
	if opts.MaxFileSize > 0 {
		c.MaxFileSize = opts.MaxFileSize
	}
	return &Service{
		Fetcher:   host,
		Access:    host,
		Generator: gen,
		Crawler:   c,
		Analyzer:  analyzer.New(opts.SnippetMaxLines),
		Options:   opts,
	}
}

func (s *Service) clock() func() time.Time {
	if s.now != nil {
		return s.now
	}
	return time.Now
}

// Run generates a README for the repository named by input. Progress goes
// to sink; a failed run ends with exactly one error event. Once ctx is
// done nothing more is emitted and no document is returned.
func (s *Service) Run(ctx context.Context, input string, sink progress.Sink) (*models.GeneratedDocument, error) {
	if sink == nil {
		sink = progress.Discard
	}
	em := newEmitter(ctx, sink, s.clock())
	started := s.clock()()

	em.emit(models.PhaseParsing, 0, "Parsing repository reference")
	ref, err := repourl.Parse(input)
	if err != nil {
		return nil, em.fail(err)
	}
	logger := log.With().Str("repo", ref.String()).Logger()
	logger.Info().Msg("starting README generation")

	meta, err := s.metadata(ctx, ref)
	if err != nil {
		return nil, em.fail(err)
	}

	files, err := s.crawl(ctx, ref, em)
	if err != nil {
		return nil, em.fail(err)
	}
	logger.Info().Int("files", len(files)).Msg("crawl complete")

	ranked := crawler.Prioritize(files, s.Options.MaxFiles)
	em.emit(models.PhaseAnalyzing, percentAnalyzeStart, fmt.Sprintf("Analyzing %d files", len(ranked)))
	analyses := s.analyzeFiles(ctx, ranked, em)
	if err := ctx.Err(); err != nil {
		return nil, em.fail(err)
	}
	logger.Info().Int("analyzed", len(analyses)).Msg("analysis complete")

	summary := semantic.Aggregate(meta, analyses)
	text := prompt.Compose(ref, meta, summary, analyses)

	em.emit(models.PhaseGenerating, percentGenerating, "Generating README")
	raw, err := s.Generator.Generate(ctx, text, s.Options.Generate)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, em.fail(ctxErr)
		}
		if !ai.IsGenerationError(err) {
			err = &ai.GenerationError{Err: err}
		}
		return nil, em.fail(err)
	}
	markdown := prompt.Postprocess(raw)
	if strings.TrimSpace(markdown) == "" {
		return nil, em.fail(&ai.GenerationError{Err: ai.ErrEmptyResponse})
	}

	if err := ctx.Err(); err != nil {
		return nil, em.fail(err)
	}
	em.emit(models.PhaseComplete, percentComplete, "README generated")
	logger.Info().
		Str("archetype", string(summary.ProjectArchetype)).
		Dur("elapsed", s.clock()().Sub(started)).
		Msg("README generated")

	return &models.GeneratedDocument{MarkdownText: markdown, SourceSummary: summary}, nil
}

func (s *Service) metadata(ctx context.Context, ref models.RepoRef) (models.RepoMetadata, error) {
	if s.Access == nil {
		return models.RepoMetadata{Name: ref.Repo, FullName: ref.String()}, nil
	}
	meta, err := s.Access.Check(ctx, ref)
	if err != nil {
		return models.RepoMetadata{}, fmt.Errorf("checking access to %s: %w", ref, err)
	}
	return meta, nil
}

func (s *Service) crawl(ctx context.Context, ref models.RepoRef, em *emitter) ([]models.FileEntry, error) {
	c := s.Crawler
	if c == nil {
		return nil, errors.New("pipeline: no crawler configured")
	}
	entries, err := c.Crawl(ctx, ref, s.Options.MaxDepth, func(done, total int) {
		pct := percentFetchStart
		if total > 0 {
			pct += (percentFetchEnd - percentFetchStart) * done / total
		}
		em.emit(models.PhaseFetching, pct, fmt.Sprintf("Scanned %d of %d top-level entries", done, total))
	})
	if err != nil {
		return nil, fmt.Errorf("crawling %s: %w", ref, err)
	}

	files := make([]models.FileEntry, 0, len(entries))
	for _, f := range entries {
		if analyzer.Skip(f.Name) {
			continue
		}
		files = append(files, f)
	}
	return files, nil
}

// analyzeFiles fetches and analyzes files with bounded concurrency. The
// result keeps ranking order; files that cannot be fetched are left out.
func (s *Service) analyzeFiles(ctx context.Context, files []models.PrioritizedFile, em *emitter) []models.FileAnalysis {
	if len(files) == 0 {
		return nil
	}
	an := s.Analyzer
	if an == nil {
		an = analyzer.New(s.Options.SnippetMaxLines)
	}
	workers := s.Options.FetchConcurrency
	if workers <= 0 {
		workers = DefaultFetchConcurrency
	}

	results := make([]*models.FileAnalysis, len(files))
	var done atomic.Int64

	p := pool.New().WithMaxGoroutines(workers)
	for i, f := range files {
		p.Go(func() {
			defer func() {
				n := int(done.Add(1))
				em.emit(models.PhaseAnalyzing,
					percentAnalyzeStart+(percentAnalyzeEnd-percentAnalyzeStart)*n/len(files),
					fmt.Sprintf("Analyzed %d of %d files", n, len(files)))
			}()
			if ctx.Err() != nil {
				return
			}

			text, err := s.Fetcher.Fetch(ctx, f.ContentLocator, s.Options.MaxFileSize)
			if err != nil {
				log.Warn().Err(err).Str("path", f.Path).Msg("fetch failed, skipping file")
				return
			}
			if bytes.IndexByte([]byte(text), 0) >= 0 {
				log.Debug().Str("path", f.Path).Msg("binary content, skipping file")
				return
			}

			fa := an.Analyze(text, f.Path)
			results[i] = &fa
		})
	}
	p.Wait()

	analyses := make([]models.FileAnalysis, 0, len(files))
	for _, r := range results {
		if r != nil {
			analyses = append(analyses, *r)
		}
	}
	return analyses
}
