// Package crawler walks a repository tree through a source.Lister and ranks
// the files it finds.
package crawler

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/seanblong/readmegen/internal/source"
	"github.com/seanblong/readmegen/pkg/models"
)

const (
	DefaultMaxDepth         = 2
	DefaultMaxEntriesPerDir = 120
	DefaultMaxFileSize      = 1 << 20
	DefaultPauseEvery       = 12
	DefaultPause            = 50 * time.Millisecond
)

// excludedDirs are never descended into.
var excludedDirs = map[string]bool{
	"node_modules": true,
	"vendor":       true,
	"dist":         true,
	"build":        true,
	"__pycache__":  true,
	".git":         true,
}

// ProgressFunc receives root-level progress: done of total root entries processed.
type ProgressFunc func(done, total int)

// Crawler performs a bounded depth-first traversal of a repository.
type Crawler struct {
	Lister           source.Lister
	MaxEntriesPerDir int
	MaxFileSize      int64
	PauseEvery       int
	Pause            time.Duration
}

// New creates a Crawler with default bounds.
func New(lister source.Lister) *Crawler {
	return &Crawler{
		Lister:           lister,
		MaxEntriesPerDir: DefaultMaxEntriesPerDir,
		MaxFileSize:      DefaultMaxFileSize,
		PauseEvery:       DefaultPauseEvery,
		Pause:            DefaultPause,
	}
}

// Crawl lists the repository from its root down to maxDepth. Failures listing
// the root are returned; failures below the root yield an empty subtree.
func (c *Crawler) Crawl(ctx context.Context, ref models.RepoRef, maxDepth int, progress ProgressFunc) ([]models.FileEntry, error) {
	return c.crawlDir(ctx, ref, "", 0, maxDepth, progress)
}

func (c *Crawler) crawlDir(ctx context.Context, ref models.RepoRef, path string, depth, maxDepth int, progress ProgressFunc) ([]models.FileEntry, error) {
	entries, err := c.Lister.List(ctx, ref, path)
	if err != nil {
		return nil, err
	}
	if c.MaxEntriesPerDir > 0 && len(entries) > c.MaxEntriesPerDir {
		entries = entries[:c.MaxEntriesPerDir]
	}

	var files []models.FileEntry
	for i, e := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		switch e.Type {
		case models.EntryFile:
			if c.MaxFileSize <= 0 || e.Size <= c.MaxFileSize {
				files = append(files, models.FileEntry{
					Name:           e.Name,
					Path:           e.Path,
					Size:           e.Size,
					ContentLocator: e.ContentLocator,
				})
			}
		case models.EntryDir:
			if depth < maxDepth && !skipDir(e.Name) {
				sub, err := c.crawlDir(ctx, ref, e.Path, depth+1, maxDepth, nil)
				if err != nil {
					if ctx.Err() != nil {
						return nil, ctx.Err()
					}
					log.Warn().Err(err).Str("repo", ref.String()).Str("path", e.Path).Msg("skipping unreadable subtree")
				}
				files = append(files, sub...)
			}
		}

		if depth == 0 && progress != nil {
			progress(i+1, len(entries))
		}
		if c.PauseEvery > 0 && c.Pause > 0 && (i+1)%c.PauseEvery == 0 {
			if err := sleep(ctx, c.Pause); err != nil {
				return nil, err
			}
		}
	}
	return files, nil
}

func skipDir(name string) bool {
	return strings.HasPrefix(name, ".") || excludedDirs[name]
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
