// Package auth signs users in with GitHub OAuth and carries their session
// in a signed JWT. The GitHub access token used to read private repositories
// stays on the server, keyed by the session id in the JWT.
package auth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	gh "github.com/google/go-github/v80/github"
	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/github"
)

// ContextKey is a custom type for context keys to avoid collisions
type ContextKey string

const UserContextKey ContextKey = "user"

// CookieName holds the session token for browser clients.
const CookieName = "auth_token"

// SessionTTL is how long a signed session stays valid.
const SessionTTL = 24 * time.Hour

// MaxSessions bounds the access tokens held in memory. The least recently
// used session loses its token first.
const MaxSessions = 10000

var ErrNotInitialized = errors.New("auth not initialized")

// ErrNotOrgMember is returned when login is restricted to an organization
// the user does not belong to.
var ErrNotOrgMember = errors.New("user is not a member of the required organization")

type GithubUser struct {
	Login       string `json:"login"`
	Name        string `json:"name"`
	Email       string `json:"email"`
	AvatarURL   string `json:"avatar_url"`
	AccessToken string `json:"-"`
}

type AuthResponse struct {
	User GithubUser `json:"user"`
}

// Claims identify the user. The session id travels as the JWT ID.
type Claims struct {
	Login     string `json:"login"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	AvatarURL string `json:"avatar_url"`
	jwt.RegisteredClaims
}

var (
	authConfig *AuthConfig

	// session id -> GitHub access token
	sessions = expirable.NewLRU[string, string](MaxSessions, nil, SessionTTL)
)

type AuthConfig struct {
	JwtSecret    []byte
	ClientID     string
	ClientSecret string
	RedirectURL  string
	AllowedOrg   string
	Enabled      bool

	// Endpoint and APIBaseURL default to github.com.
	Endpoint   oauth2.Endpoint
	APIBaseURL string
}

// InitializeAuth sets up the auth configuration
func InitializeAuth(jwtSecret, clientID, clientSecret, redirectURL, allowedOrg string, enabled bool) {
	authConfig = &AuthConfig{
		JwtSecret:    []byte(jwtSecret),
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  redirectURL,
		AllowedOrg:   allowedOrg,
		Enabled:      enabled,
		Endpoint:     github.Endpoint,
	}
	sessions.Purge()
}

// SetGithubEndpoints points the OAuth exchange and user lookups at another
// GitHub installation.
func SetGithubEndpoints(endpoint oauth2.Endpoint, apiBaseURL string) error {
	if authConfig == nil {
		return ErrNotInitialized
	}
	authConfig.Endpoint = endpoint
	authConfig.APIBaseURL = apiBaseURL
	return nil
}

// EnterpriseEndpoint derives the OAuth endpoint of a GitHub Enterprise
// Server from its REST API URL, e.g. https://ghe.example.com/api/v3. It
// reports false for github.com and for URLs without a host.
func EnterpriseEndpoint(apiURL string) (oauth2.Endpoint, bool) {
	u, err := url.Parse(strings.TrimSpace(apiURL))
	if err != nil || u.Host == "" {
		return oauth2.Endpoint{}, false
	}
	switch strings.ToLower(u.Hostname()) {
	case "github.com", "api.github.com":
		return oauth2.Endpoint{}, false
	}
	base := u.Scheme + "://" + u.Host
	return oauth2.Endpoint{
		AuthURL:  base + "/login/oauth/authorize",
		TokenURL: base + "/login/oauth/access_token",
	}, true
}

// IsAuthEnabled returns whether authentication is enabled
func IsAuthEnabled() bool {
	if authConfig == nil {
		return false
	}
	return authConfig.Enabled
}

// Scopes lists the OAuth scopes requested at login. repo is needed to read
// private repositories.
func Scopes() []string {
	scopes := []string{"read:user", "user:email", "repo"}
	if authConfig != nil && authConfig.AllowedOrg != "" {
		scopes = append(scopes, "read:org")
	}
	return scopes
}

func oauthConfig() *oauth2.Config {
	return &oauth2.Config{
		ClientID:     authConfig.ClientID,
		ClientSecret: authConfig.ClientSecret,
		RedirectURL:  authConfig.RedirectURL,
		Endpoint:     authConfig.Endpoint,
		Scopes:       Scopes(),
	}
}

// GenerateState creates a random state parameter for OAuth
func GenerateState() string {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		// Fall back to a predictable state in case of error
		return "fallback-state-" + fmt.Sprintf("%d", time.Now().Unix())
	}
	return base64.URLEncoding.EncodeToString(b)
}

// GetGithubLoginURL returns the Github OAuth login URL
func GetGithubLoginURL(state string) string {
	if authConfig == nil {
		return ""
	}
	return oauthConfig().AuthCodeURL(state)
}

// ExchangeCodeForToken exchanges OAuth code for access token
func ExchangeCodeForToken(ctx context.Context, code string) (string, error) {
	if authConfig == nil {
		return "", ErrNotInitialized
	}
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	tok, err := oauthConfig().Exchange(ctx, code)
	if err != nil {
		return "", fmt.Errorf("exchange code: %w", err)
	}
	if tok.AccessToken == "" {
		return "", fmt.Errorf("failed to get access token")
	}
	return tok.AccessToken, nil
}

func githubClient(ctx context.Context, accessToken string) (*gh.Client, error) {
	hc := oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: accessToken}))
	hc.Timeout = 10 * time.Second
	client := gh.NewClient(hc)
	if authConfig != nil && authConfig.APIBaseURL != "" {
		base := authConfig.APIBaseURL
		if !strings.HasSuffix(base, "/") {
			base += "/"
		}
		u, err := url.Parse(base)
		if err != nil {
			return nil, fmt.Errorf("parse github api url: %w", err)
		}
		client.BaseURL = u
	}
	return client, nil
}

// GetGithubUser fetches the signed-in user and enforces the org restriction.
func GetGithubUser(ctx context.Context, accessToken string) (*GithubUser, error) {
	if authConfig == nil {
		return nil, ErrNotInitialized
	}
	client, err := githubClient(ctx, accessToken)
	if err != nil {
		return nil, err
	}

	u, _, err := client.Users.Get(ctx, "")
	if err != nil {
		return nil, fmt.Errorf("get github user: %w", err)
	}
	user := &GithubUser{
		Login:       u.GetLogin(),
		Name:        u.GetName(),
		Email:       u.GetEmail(),
		AvatarURL:   u.GetAvatarURL(),
		AccessToken: accessToken,
	}

	if authConfig.AllowedOrg != "" {
		if !isOrgMember(ctx, client, user.Login, authConfig.AllowedOrg) {
			return nil, ErrNotOrgMember
		}
	}
	return user, nil
}

// isOrgMember checks if user is a member of the specified organization
func isOrgMember(ctx context.Context, client *gh.Client, username, org string) bool {
	member, _, err := client.Organizations.IsMember(ctx, org, username)
	if err != nil {
		log.Warn().Err(err).Str("org", org).Str("user", username).Msg("org membership check failed")
		return false
	}
	return member
}

// GenerateJWT creates a JWT token for the user
func GenerateJWT(user *GithubUser) (string, error) {
	if authConfig == nil {
		return "", ErrNotInitialized
	}
	now := time.Now()
	sid := uuid.NewString()
	claims := Claims{
		Login:     user.Login,
		Name:      user.Name,
		Email:     user.Email,
		AvatarURL: user.AvatarURL,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        sid,
			ExpiresAt: jwt.NewNumericDate(now.Add(SessionTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
			Subject:   user.Login,
		},
	}
	if user.AccessToken != "" {
		sessions.Add(sid, user.AccessToken)
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(authConfig.JwtSecret)
}

// ValidateJWT validates and parses a JWT token. The user's AccessToken is
// empty when the server no longer holds one for the session, e.g. after a
// restart or logout.
func ValidateJWT(tokenString string) (*GithubUser, error) {
	claims, err := parseClaims(tokenString)
	if err != nil {
		return nil, err
	}
	accessToken, _ := sessions.Get(claims.ID)
	return &GithubUser{
		Login:       claims.Login,
		Name:        claims.Name,
		Email:       claims.Email,
		AvatarURL:   claims.AvatarURL,
		AccessToken: accessToken,
	}, nil
}

// RevokeSession forgets the access token held for a session.
func RevokeSession(tokenString string) {
	claims, err := parseClaims(tokenString)
	if err != nil {
		return
	}
	sessions.Remove(claims.ID)
}

func parseClaims(tokenString string) (*Claims, error) {
	if authConfig == nil {
		return nil, ErrNotInitialized
	}
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method")
		}
		return authConfig.JwtSecret, nil
	})
	if err != nil {
		return nil, err
	}
	if claims, ok := token.Claims.(*Claims); ok && token.Valid {
		return claims, nil
	}
	return nil, fmt.Errorf("invalid token")
}

// TokenFromRequest reads the session token from the Authorization header or
// the session cookie.
func TokenFromRequest(r *http.Request) string {
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimPrefix(h, "Bearer ")
	}
	if cookie, err := r.Cookie(CookieName); err == nil {
		return cookie.Value
	}
	return ""
}

// OptionalAuthMiddleware attaches the session user to the request context
// when a valid token is present. Anonymous requests pass through since
// public repositories need no login; a token that fails validation is
// rejected.
func OptionalAuthMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !IsAuthEnabled() {
			next.ServeHTTP(w, r)
			return
		}

		tokenString := TokenFromRequest(r)
		if tokenString == "" {
			next.ServeHTTP(w, r)
			return
		}

		user, err := ValidateJWT(tokenString)
		if err != nil {
			http.Error(w, "Invalid authentication token", http.StatusUnauthorized)
			return
		}

		ctx := context.WithValue(r.Context(), UserContextKey, user)
		next.ServeHTTP(w, r.WithContext(ctx))
	}
}

// GetUserFromContext extracts user from request context
func GetUserFromContext(r *http.Request) *GithubUser {
	if user, ok := r.Context().Value(UserContextKey).(*GithubUser); ok {
		return user
	}
	return nil
}
