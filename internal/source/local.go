package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/karrick/godirwalk"

	"github.com/seanblong/readmegen/pkg/models"
)

// Local implements Host over a checkout on disk. The RepoRef passed to its
// methods is ignored; every path is resolved against Root.
type Local struct {
	Root string
}

// NewLocal creates a Local host rooted at dir.
func NewLocal(dir string) (*Local, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}
	return &Local{Root: abs}, nil
}

// Ref returns the RepoRef used for runs against this checkout. Characters
// not allowed in a repository name are replaced with '-'.
func (l *Local) Ref() models.RepoRef {
	name := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '_', r == '-':
			return r
		}
		return '-'
	}, filepath.Base(l.Root))
	return models.RepoRef{Owner: "local", Repo: name}
}

func (l *Local) List(ctx context.Context, _ models.RepoRef, dir string) ([]models.DirEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	osDir := filepath.Join(l.Root, filepath.FromSlash(dir))
	if err := checkDir(osDir); err != nil {
		return nil, fmt.Errorf("list %s: %w", dir, err)
	}

	dirents, err := godirwalk.ReadDirents(osDir, nil)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", dir, classify(err))
	}
	sort.Sort(dirents)

	entries := make([]models.DirEntry, 0, len(dirents))
	for _, de := range dirents {
		full := filepath.Join(osDir, de.Name())
		rel := path.Join(dir, de.Name())
		switch {
		case de.IsDir():
			entries = append(entries, models.DirEntry{Name: de.Name(), Path: rel, Type: models.EntryDir})
		case de.IsRegular():
			fi, err := os.Stat(full)
			if err != nil {
				continue
			}
			entries = append(entries, models.DirEntry{
				Name:           de.Name(),
				Path:           rel,
				Type:           models.EntryFile,
				Size:           fi.Size(),
				ContentLocator: full,
			})
		}
	}
	return entries, nil
}

func (l *Local) Fetch(ctx context.Context, locator string, maxBytes int64) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	// Locators are produced by List; refuse anything outside the checkout.
	if !strings.HasPrefix(filepath.Clean(locator), l.Root+string(os.PathSeparator)) {
		return "", fmt.Errorf("fetch: %q is outside %s", locator, l.Root)
	}

	f, err := os.Open(locator)
	if err != nil {
		return "", classify(err)
	}
	defer f.Close()

	b, err := io.ReadAll(io.LimitReader(f, maxBytes))
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (l *Local) Check(ctx context.Context, _ models.RepoRef) (models.RepoMetadata, error) {
	if err := ctx.Err(); err != nil {
		return models.RepoMetadata{}, err
	}
	fi, err := os.Stat(l.Root)
	if err != nil {
		return models.RepoMetadata{}, classify(err)
	}
	if !fi.IsDir() {
		return models.RepoMetadata{}, fmt.Errorf("%s: %w", l.Root, ErrNotFound)
	}
	name := filepath.Base(l.Root)
	return models.RepoMetadata{
		Name:      name,
		FullName:  "local/" + name,
		UpdatedAt: fi.ModTime(),
	}, nil
}

func checkDir(dir string) error {
	fi, err := os.Stat(dir)
	if err != nil {
		return classify(err)
	}
	if !fi.IsDir() {
		return ErrNotFound
	}
	return nil
}

func classify(err error) error {
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return fmt.Errorf("%w: %v", ErrNotFound, err)
	case errors.Is(err, fs.ErrPermission):
		return fmt.Errorf("%w: %v", ErrAccessDenied, err)
	}
	return err
}
