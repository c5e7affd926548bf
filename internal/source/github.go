package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	gh "github.com/google/go-github/v80/github"
	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"

	"github.com/seanblong/readmegen/pkg/models"
)

const (
	// DefaultTimeout is the HTTP timeout for every GitHub call.
	DefaultTimeout = 30 * time.Second

	// DefaultMaxBytes bounds a fetch when the caller passes no limit.
	DefaultMaxBytes = 1 << 20
)

// GitHubConfig configures a GitHub host.
type GitHubConfig struct {
	Token   string
	BaseURL string // API root, e.g. https://github.example.com/api/v3/
	Rate    float64
	Burst   int
	Timeout time.Duration
}

// GitHub implements Host on top of the GitHub REST API.
type GitHub struct {
	gh            *gh.Client
	http          *http.Client
	rateLimiter   *RateLimiter
	authenticated bool
}

// NewGitHub creates a GitHub host. An empty token makes anonymous requests.
func NewGitHub(ctx context.Context, cfg GitHubConfig) (*GitHub, error) {
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Rate == 0 {
		cfg.Rate = DefaultRate
	}
	if cfg.Burst == 0 {
		cfg.Burst = DefaultBurst
	}

	hc := &http.Client{Timeout: cfg.Timeout}
	token := strings.TrimSpace(cfg.Token)
	if token != "" {
		ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
		hc = oauth2.NewClient(ctx, ts)
		hc.Timeout = cfg.Timeout
	}

	client := gh.NewClient(hc)
	if cfg.BaseURL != "" {
		base := cfg.BaseURL
		if !strings.HasSuffix(base, "/") {
			base += "/"
		}
		u, err := url.Parse(base)
		if err != nil {
			return nil, fmt.Errorf("parse github base url: %w", err)
		}
		client.BaseURL = u
	}

	return &GitHub{
		gh:            client,
		http:          hc,
		rateLimiter:   NewRateLimiter(cfg.Rate, cfg.Burst),
		authenticated: token != "",
	}, nil
}

// Authenticated reports whether requests carry a token.
func (g *GitHub) Authenticated() bool { return g.authenticated }

// List returns the entries of one repository directory.
func (g *GitHub) List(ctx context.Context, ref models.RepoRef, path string) ([]models.DirEntry, error) {
	if err := g.rateLimiter.Wait(ctx); err != nil {
		return nil, err
	}

	file, dir, resp, err := g.gh.Repositories.GetContents(ctx, ref.Owner, ref.Repo, path, nil)
	g.updateRateLimitFromResponse(resp)
	if err != nil {
		return nil, g.wrapError(err, "list "+ref.String()+"/"+path)
	}
	if dir == nil && file != nil {
		return nil, fmt.Errorf("list %s/%s: path is a file", ref, path)
	}

	entries := make([]models.DirEntry, 0, len(dir))
	for _, c := range dir {
		var typ models.EntryType
		switch c.GetType() {
		case "file":
			typ = models.EntryFile
		case "dir":
			typ = models.EntryDir
		default:
			// symlinks and submodules are not followed
			continue
		}
		entries = append(entries, models.DirEntry{
			Name:           c.GetName(),
			Path:           c.GetPath(),
			Type:           typ,
			Size:           int64(c.GetSize()),
			ContentLocator: c.GetDownloadURL(),
		})
	}
	return entries, nil
}

// Fetch downloads a file's raw text from its download URL.
func (g *GitHub) Fetch(ctx context.Context, locator string, maxBytes int64) (string, error) {
	if !strings.HasPrefix(locator, "https://") && !strings.HasPrefix(locator, "http://") {
		return "", fmt.Errorf("fetch: unsupported locator %q", locator)
	}
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	if err := g.rateLimiter.Wait(ctx); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, locator, nil)
	if err != nil {
		return "", err
	}
	resp, err := g.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch %s: %w", locator, err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			log.Debug().Err(err).Msg("failed to close response body")
		}
	}()

	if err := g.rateLimiter.CheckResponse(resp); err != nil {
		return "", err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("fetch %s: %s", locator, resp.Status)
	}

	b, err := io.ReadAll(io.LimitReader(resp.Body, maxBytes))
	if err != nil {
		return "", fmt.Errorf("fetch %s: %w", locator, err)
	}
	return string(b), nil
}

// Check fetches repository metadata, which doubles as the access check.
func (g *GitHub) Check(ctx context.Context, ref models.RepoRef) (models.RepoMetadata, error) {
	if err := g.rateLimiter.Wait(ctx); err != nil {
		return models.RepoMetadata{}, err
	}

	repo, resp, err := g.gh.Repositories.Get(ctx, ref.Owner, ref.Repo)
	g.updateRateLimitFromResponse(resp)
	if err != nil {
		return models.RepoMetadata{}, g.wrapError(err, "get repo "+ref.String())
	}

	return models.RepoMetadata{
		Name:          repo.GetName(),
		FullName:      repo.GetFullName(),
		Description:   repo.GetDescription(),
		Language:      repo.GetLanguage(),
		Stars:         repo.GetStargazersCount(),
		Forks:         repo.GetForksCount(),
		Private:       repo.GetPrivate(),
		Topics:        repo.Topics,
		License:       repo.GetLicense().GetName(),
		DefaultBranch: repo.GetDefaultBranch(),
		HTMLURL:       repo.GetHTMLURL(),
		CreatedAt:     repo.GetCreatedAt().Time,
		UpdatedAt:     repo.GetUpdatedAt().Time,
	}, nil
}

func (g *GitHub) updateRateLimitFromResponse(resp *gh.Response) {
	if resp == nil || resp.Response == nil {
		return
	}
	g.rateLimiter.UpdateFromResponse(resp.Response)
}

// wrapError converts go-github errors to the source error taxonomy.
func (g *GitHub) wrapError(err error, operation string) error {
	var rateLimitErr *gh.RateLimitError
	if errors.As(err, &rateLimitErr) {
		return &RateLimitError{
			ResetAt:   rateLimitErr.Rate.Reset.Time,
			Remaining: rateLimitErr.Rate.Remaining,
			Limit:     rateLimitErr.Rate.Limit,
		}
	}

	var abuseErr *gh.AbuseRateLimitError
	if errors.As(err, &abuseErr) {
		rl := &RateLimitError{Remaining: g.rateLimiter.Remaining(), Limit: g.rateLimiter.Limit()}
		if abuseErr.RetryAfter != nil {
			rl.ResetAt = time.Now().Add(*abuseErr.RetryAfter)
		}
		return rl
	}

	var ghErr *gh.ErrorResponse
	if errors.As(err, &ghErr) && ghErr.Response != nil {
		switch ghErr.Response.StatusCode {
		case http.StatusNotFound:
			return fmt.Errorf("%s: %w", operation, ErrNotFound)
		case http.StatusUnauthorized, http.StatusForbidden:
			return fmt.Errorf("%s: %w: %s", operation, ErrAccessDenied, ghErr.Message)
		case http.StatusTooManyRequests:
			return &RateLimitError{ResetAt: g.rateLimiter.ResetTime(), Remaining: 0, Limit: g.rateLimiter.Limit()}
		}
	}

	return fmt.Errorf("%s: %w", operation, err)
}
