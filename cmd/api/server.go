package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/hlog"

	"github.com/seanblong/readmegen/internal/ai"
	"github.com/seanblong/readmegen/internal/auth"
	"github.com/seanblong/readmegen/internal/config"
	"github.com/seanblong/readmegen/internal/pipeline"
	"github.com/seanblong/readmegen/internal/progress"
	"github.com/seanblong/readmegen/internal/source"
	"github.com/seanblong/readmegen/pkg/models"
)

const (
	runTimeout        = 5 * time.Minute
	heartbeatInterval = 15 * time.Second
	maxRequestBytes   = 16 << 10
)

// HostFactory builds a repository host that acts with token. An empty
// token makes anonymous requests.
type HostFactory func(ctx context.Context, token string) (source.Host, error)

type server struct {
	cfg       config.Specification
	generator ai.Generator
	registry  *progress.Registry
	newHost   HostFactory
	heartbeat time.Duration
}

func newServer(cfg config.Specification, gen ai.Generator, hosts HostFactory) *server {
	return &server{
		cfg:       cfg,
		generator: gen,
		registry:  progress.NewRegistry(progress.DefaultBuffer),
		newHost:   hosts,
		heartbeat: heartbeatInterval,
	}
}

type generateRequest struct {
	Repo  string `json:"repo"`
	RunID string `json:"runId"`
}

type generateResponse struct {
	RunID    string                 `json:"runId"`
	Markdown string                 `json:"markdown"`
	Summary  models.SemanticSummary `json:"summary"`
}

type errorResponse struct {
	Error        string               `json:"error"`
	Kind         pipeline.FailureKind `json:"kind"`
	RequiresAuth bool                 `json:"requiresAuth"`
	RunID        string               `json:"runId,omitempty"`
}

func statusFor(kind pipeline.FailureKind) int {
	switch kind {
	case pipeline.FailureMalformedInput:
		return http.StatusBadRequest
	case pipeline.FailureNotFound:
		return http.StatusNotFound
	case pipeline.FailureAccessDenied:
		return http.StatusForbidden
	case pipeline.FailureRateLimited:
		return http.StatusTooManyRequests
	case pipeline.FailureGenerationFailed:
		return http.StatusBadGateway
	case pipeline.FailureCanceled:
		return http.StatusRequestTimeout
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
	}
}

func (s *server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	logger := hlog.FromRequest(r)

	var req generateRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBytes)).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid JSON body", Kind: pipeline.FailureMalformedInput})
		return
	}
	if strings.TrimSpace(req.RunID) == "" {
		req.RunID = uuid.NewString()
	}

	user := auth.GetUserFromContext(r)
	token := s.cfg.GithubToken
	if user != nil && user.AccessToken != "" {
		token = user.AccessToken
	}

	ctx, cancel := context.WithTimeout(r.Context(), runTimeout)
	defer cancel()

	host, err := s.newHost(ctx, token)
	if err != nil {
		logger.Error().Err(err).Msg("failed to create repository host")
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "repository host unavailable", Kind: pipeline.FailureInternal, RunID: req.RunID})
		return
	}

	svc := pipeline.New(host, s.generator, s.cfg.PipelineOptions())
	s.cfg.ConfigureCrawler(svc.Crawler)

	stream := s.registry.Open(req.RunID)
	defer s.registry.Remove(req.RunID)

	start := time.Now()
	doc, err := svc.Run(ctx, req.Repo, stream)
	if err != nil {
		kind := pipeline.Classify(err)
		logger.Warn().Err(err).Str("run_id", req.RunID).Str("kind", string(kind)).Msg("generation failed")
		writeJSON(w, statusFor(kind), errorResponse{
			Error:        pipeline.Message(err),
			Kind:         kind,
			RequiresAuth: kind.AuthMayHelp() && user == nil,
			RunID:        req.RunID,
		})
		return
	}

	logger.Info().Str("run_id", req.RunID).Str("repo", req.Repo).Dur("dur", time.Since(start)).Int("open_runs", s.registry.Len()).Msg("served")
	writeJSON(w, http.StatusOK, generateResponse{RunID: req.RunID, Markdown: doc.MarkdownText, Summary: doc.SourceSummary})
}

// handleProgress streams the events of one run as Server-Sent Events. The
// watcher may connect before the run starts. When it disconnects the run's
// entry is dropped.
func (s *server) handleProgress(w http.ResponseWriter, r *http.Request) {
	runID := r.PathValue("runId")
	if runID == "" {
		http.Error(w, "missing run id", http.StatusBadRequest)
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	stream := s.registry.Open(runID)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ticker := time.NewTicker(s.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			s.registry.Remove(runID)
			hlog.FromRequest(r).Debug().Str("run_id", runID).Int("open_runs", s.registry.Len()).Msg("progress watcher disconnected")
			return
		case <-ticker.C:
			if _, err := fmt.Fprint(w, ": ping\n\n"); err != nil {
				return
			}
			flusher.Flush()
		case ev, ok := <-stream.Events():
			if !ok {
				return
			}
			if err := writeEvent(w, ev); err != nil {
				hlog.FromRequest(r).Warn().Err(err).Str("run_id", runID).Msg("failed to write progress event")
				return
			}
			flusher.Flush()
			if ev.Phase.Terminal() {
				return
			}
		}
	}
}

func writeEvent(w http.ResponseWriter, ev models.ProgressEvent) error {
	b, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Phase, b)
	return err
}

func secureRequest(r *http.Request) bool {
	return r.TLS != nil || strings.HasPrefix(r.Header.Get("X-Forwarded-Proto"), "https")
}

func (s *server) handleAuthStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]bool{"enabled": auth.IsAuthEnabled()})
}

func (s *server) handleLogin(w http.ResponseWriter, r *http.Request) {
	state := auth.GenerateState()

	// Store state in cookie for validation
	http.SetCookie(w, &http.Cookie{
		Name:     "oauth_state",
		Value:    state,
		Path:     "/",
		MaxAge:   600,
		HttpOnly: true,
		Secure:   secureRequest(r),
		SameSite: http.SameSiteLaxMode,
	})
	http.Redirect(w, r, auth.GetGithubLoginURL(state), http.StatusTemporaryRedirect)
}

func (s *server) handleCallback(w http.ResponseWriter, r *http.Request) {
	code := r.URL.Query().Get("code")
	state := r.URL.Query().Get("state")

	stateCookie, err := r.Cookie("oauth_state")
	if err != nil || stateCookie.Value != state {
		http.Error(w, "Invalid state parameter", http.StatusBadRequest)
		return
	}
	http.SetCookie(w, &http.Cookie{Name: "oauth_state", Value: "", Path: "/", MaxAge: -1})

	if code == "" {
		http.Error(w, "Missing code parameter", http.StatusBadRequest)
		return
	}

	accessToken, err := auth.ExchangeCodeForToken(r.Context(), code)
	if err != nil {
		hlog.FromRequest(r).Warn().Err(err).Msg("oauth code exchange failed")
		http.Error(w, "Failed to exchange code for token", http.StatusInternalServerError)
		return
	}

	user, err := auth.GetGithubUser(r.Context(), accessToken)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, auth.ErrNotOrgMember) {
			status = http.StatusForbidden
		}
		http.Error(w, "Failed to get user info: "+err.Error(), status)
		return
	}

	token, err := auth.GenerateJWT(user)
	if err != nil {
		http.Error(w, "Failed to generate token", http.StatusInternalServerError)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     auth.CookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(auth.SessionTTL.Seconds()),
		HttpOnly: true,
		Secure:   secureRequest(r),
		SameSite: http.SameSiteLaxMode,
	})
	writeJSON(w, http.StatusOK, auth.AuthResponse{User: *user})
}

func (s *server) handleMe(w http.ResponseWriter, r *http.Request) {
	tokenString := auth.TokenFromRequest(r)
	if tokenString == "" {
		http.Error(w, "No authentication token", http.StatusUnauthorized)
		return
	}
	user, err := auth.ValidateJWT(tokenString)
	if err != nil {
		http.Error(w, "Invalid token", http.StatusUnauthorized)
		return
	}
	writeJSON(w, http.StatusOK, auth.AuthResponse{User: *user})
}

func (s *server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if tokenString := auth.TokenFromRequest(r); tokenString != "" {
		auth.RevokeSession(tokenString)
	}
	http.SetCookie(w, &http.Cookie{Name: auth.CookieName, Value: "", Path: "/", MaxAge: -1})
	w.WriteHeader(http.StatusOK)
}

func (s *server) routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	mux.HandleFunc("GET /auth/status", s.handleAuthStatus)

	if auth.IsAuthEnabled() {
		mux.HandleFunc("GET /auth/github", s.handleLogin)
		mux.HandleFunc("GET /auth/callback", s.handleCallback)
		mux.HandleFunc("GET /auth/me", s.handleMe)
		mux.HandleFunc("POST /auth/logout", s.handleLogout)
	}

	mux.HandleFunc("GET /progress/{runId}", s.handleProgress)
	mux.HandleFunc("POST /generate", auth.OptionalAuthMiddleware(s.handleGenerate))
	return mux
}
