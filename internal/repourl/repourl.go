// Package repourl turns user supplied repository references into a RepoRef.
package repourl

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/seanblong/readmegen/pkg/models"
)

// ErrMalformedInput is returned for anything that does not name an owner/repo pair.
var ErrMalformedInput = errors.New("malformed repository reference")

var (
	githubURLPattern = regexp.MustCompile(`^(?:[a-zA-Z][a-zA-Z0-9+.-]*://)?(?:[^@/\s]+@)?(?:www\.)?github\.com[/:]([^/\s]+)/([^/\s?#]+)`)
	shorthandPattern = regexp.MustCompile(`^([^/\s]+)/([^/\s]+)$`)
	segmentPattern   = regexp.MustCompile(`^[A-Za-z0-9._-]+$`)
	// GitHub logins are alphanumerics and hyphens, so a dotted owner is a host
	ownerPattern = regexp.MustCompile(`^[A-Za-z0-9-]+$`)
)

// Parse accepts a GitHub URL (with or without scheme, trailing slash, .git
// suffix or extra path segments) or a bare "owner/repo" shorthand.
func Parse(input string) (models.RepoRef, error) {
	s := strings.TrimSpace(input)
	if s == "" {
		return models.RepoRef{}, fmt.Errorf("%w: empty input", ErrMalformedInput)
	}

	var owner, repo string
	if m := githubURLPattern.FindStringSubmatch(s); m != nil {
		// anything after the repo segment must be path-like, not more words
		if rest := s[len(m[0]):]; strings.ContainsAny(rest, " \t\n") {
			return models.RepoRef{}, fmt.Errorf("%w: %q", ErrMalformedInput, input)
		}
		owner, repo = m[1], m[2]
	} else if m := shorthandPattern.FindStringSubmatch(strings.TrimSuffix(s, "/")); m != nil {
		owner, repo = m[1], m[2]
	} else {
		return models.RepoRef{}, fmt.Errorf("%w: %q", ErrMalformedInput, input)
	}

	repo = strings.TrimSuffix(repo, ".git")
	if !ownerPattern.MatchString(owner) || !segmentPattern.MatchString(repo) {
		return models.RepoRef{}, fmt.Errorf("%w: %q", ErrMalformedInput, input)
	}
	return models.RepoRef{Owner: owner, Repo: repo}, nil
}
