package auth

import (
	"crypto/sha256"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"golang.org/x/crypto/bcrypt"

	"github.com/odyssey-erp/invoicer/internal/platform/httpx"
)

// BearerGate requires an Authorization bearer token. When a bcrypt hash is
// configured the token must match it; otherwise any token is accepted.
type BearerGate struct {
	hash   []byte
	logger *slog.Logger
	exempt map[string]struct{}

	mu       sync.RWMutex
	verified map[[sha256.Size]byte]struct{}
}

// NewBearerGate builds the gate. Paths in exempt skip the check.
func NewBearerGate(hash string, logger *slog.Logger, exempt ...string) *BearerGate {
	if logger == nil {
		logger = slog.Default()
	}
	g := &BearerGate{
		hash:     []byte(strings.TrimSpace(hash)),
		logger:   logger,
		exempt:   make(map[string]struct{}, len(exempt)),
		verified: make(map[[sha256.Size]byte]struct{}),
	}
	for _, p := range exempt {
		g.exempt[p] = struct{}{}
	}
	return g
}

// Verifies reports whether tokens are checked against a hash.
func (g *BearerGate) Verifies() bool {
	return g != nil && len(g.hash) > 0
}

// Middleware rejects requests without a valid token with 401.
func (g *BearerGate) Middleware(next http.Handler) http.Handler {
	if g == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := g.exempt[r.URL.Path]; ok {
			next.ServeHTTP(w, r)
			return
		}
		token, ok := bearerToken(r.Header.Get("Authorization"))
		if !ok {
			httpx.Fail(w, http.StatusUnauthorized, "missing bearer token")
			return
		}
		if !g.Verify(token) {
			g.logger.Warn("bearer token rejected", slog.String("path", r.URL.Path), slog.String("remote", r.RemoteAddr))
			httpx.Fail(w, http.StatusUnauthorized, "invalid bearer token")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Verify checks token against the configured hash. Successful tokens are
// remembered by digest so bcrypt runs once per distinct token.
func (g *BearerGate) Verify(token string) bool {
	if !g.Verifies() {
		return true
	}
	sum := sha256.Sum256([]byte(token))
	g.mu.RLock()
	_, ok := g.verified[sum]
	g.mu.RUnlock()
	if ok {
		return true
	}
	if err := bcrypt.CompareHashAndPassword(g.hash, []byte(token)); err != nil {
		return false
	}
	g.mu.Lock()
	g.verified[sum] = struct{}{}
	g.mu.Unlock()
	return true
}

func bearerToken(header string) (string, bool) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
