// Package source provides the repository host capabilities used during a run:
// directory listing, content fetching and the metadata access check.
package source

import (
	"context"

	"github.com/seanblong/readmegen/pkg/models"
)

// Lister lists the entries of one directory of a repository.
type Lister interface {
	List(ctx context.Context, ref models.RepoRef, path string) ([]models.DirEntry, error)
}

// Fetcher retrieves the raw text behind a content locator, reading at most maxBytes.
type Fetcher interface {
	Fetch(ctx context.Context, locator string, maxBytes int64) (string, error)
}

// AccessChecker resolves repository metadata, failing when the repository
// cannot be seen with the current credentials.
type AccessChecker interface {
	Check(ctx context.Context, ref models.RepoRef) (models.RepoMetadata, error)
}

// Host bundles the capabilities a single repository host offers.
type Host interface {
	Lister
	Fetcher
	AccessChecker
}
