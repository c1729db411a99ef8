package auth

import (
	"crypto/subtle"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/sha1n/relic-history/internal/config"
	"github.com/sha1n/relic-history/internal/domain"
)

// APIKeyHeader carries the key for apikey authentication.
const APIKeyHeader = "X-API-Key"

// Policy decides whether a path requires credentials.
type Policy int

const (
	// Protected paths require credentials when authentication is enabled.
	Protected Policy = iota
	// Public paths are always served.
	Public
)

func (p Policy) String() string {
	if p == Public {
		return "public"
	}
	return "protected"
}

// Guard authenticates requests to the HTTP transport. /health is always
// public and /metrics is public only when configured so. Every other path
// requires credentials.
type Guard struct {
	authType  string
	verify    func(*http.Request) bool
	challenge string
	public    map[string]bool
}

// NewGuard validates settings and returns the matching guard.
func NewGuard(settings config.AuthSettings) (*Guard, error) {
	g := &Guard{
		authType: settings.Type,
		public:   map[string]bool{"/health": true, "/metrics": settings.PublicMetrics},
	}

	switch settings.Type {
	case config.AuthTypeNone, "":
		g.authType = config.AuthTypeNone
	case config.AuthTypeBasic:
		if settings.Basic.Username == "" || settings.Basic.Password == "" {
			return nil, fmt.Errorf("%w: basic auth requires non-empty username and password", domain.ErrConfiguration)
		}
		g.verify = basicVerifier(settings.Basic)
		g.challenge = `Basic realm="relic-history"`
	case config.AuthTypeAPIKey:
		if len(settings.APIKeys) == 0 {
			return nil, fmt.Errorf("%w: apikey auth requires at least one API key", domain.ErrConfiguration)
		}
		g.verify = apiKeyVerifier(settings.APIKeys)
	default:
		return nil, fmt.Errorf("%w: unknown auth type: %s", domain.ErrConfiguration, settings.Type)
	}
	return g, nil
}

// Policy returns the policy applied to path.
func (g *Guard) Policy(path string) Policy {
	if g.public[path] {
		return Public
	}
	return Protected
}

// Wrap returns next behind the guard.
func (g *Guard) Wrap(next http.Handler) http.Handler {
	if g.verify == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if g.Policy(r.URL.Path) == Public || g.verify(r) {
			next.ServeHTTP(w, r)
			return
		}
		if g.challenge != "" {
			w.Header().Set("WWW-Authenticate", g.challenge)
		}
		g.unauthorized(w, r)
	})
}

func basicVerifier(settings config.BasicAuthSettings) func(*http.Request) bool {
	return func(r *http.Request) bool {
		user, pass, ok := r.BasicAuth()
		userMatch := subtle.ConstantTimeCompare([]byte(user), []byte(settings.Username)) == 1
		passMatch := subtle.ConstantTimeCompare([]byte(pass), []byte(settings.Password)) == 1
		return ok && userMatch && passMatch
	}
}

func apiKeyVerifier(apiKeys []string) func(*http.Request) bool {
	return func(r *http.Request) bool {
		key := r.Header.Get(APIKeyHeader)
		if key == "" {
			return false
		}
		valid := false
		for _, validKey := range apiKeys {
			// no early exit, every key is compared
			if subtle.ConstantTimeCompare([]byte(key), []byte(validKey)) == 1 {
				valid = true
			}
		}
		return valid
	}
}

func (g *Guard) unauthorized(w http.ResponseWriter, r *http.Request) {
	slog.Warn("Rejected unauthenticated request",
		"path", r.URL.Path,
		"method", r.Method,
		"auth_type", g.authType,
		"remote_addr", r.RemoteAddr,
	)
	http.Error(w, "Unauthorized", http.StatusUnauthorized)
}
