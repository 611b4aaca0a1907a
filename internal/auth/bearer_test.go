package auth

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func newGate(t *testing.T, token string) *BearerGate {
	t.Helper()
	hashed, err := bcrypt.GenerateFromPassword([]byte(token), bcrypt.MinCost)
	require.NoError(t, err)
	return NewBearerGate(string(hashed), nil, "/healthz")
}

func serve(g *BearerGate, path, header string) *httptest.ResponseRecorder {
	h := g.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestBearerGate(t *testing.T) {
	g := newGate(t, "s3cret")

	cases := []struct {
		name   string
		path   string
		header string
		want   int
	}{
		{"valid", "/invoices", "Bearer s3cret", http.StatusNoContent},
		{"case insensitive scheme", "/invoices", "bearer s3cret", http.StatusNoContent},
		{"missing", "/invoices", "", http.StatusUnauthorized},
		{"wrong scheme", "/invoices", "Basic s3cret", http.StatusUnauthorized},
		{"wrong token", "/invoices", "Bearer nope", http.StatusUnauthorized},
		{"exempt path", "/healthz", "", http.StatusNoContent},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rr := serve(g, tc.path, tc.header)
			assert.Equal(t, tc.want, rr.Code)
			if tc.want == http.StatusUnauthorized {
				var body map[string]any
				require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
				assert.Equal(t, false, body["success"])
				assert.NotEmpty(t, body["error"])
			}
		})
	}
}

func TestBearerGateCachesVerifiedTokens(t *testing.T) {
	g := newGate(t, "s3cret")
	require.True(t, g.Verify("s3cret"))
	assert.Len(t, g.verified, 1)
	require.True(t, g.Verify("s3cret"))
	assert.Len(t, g.verified, 1)
	assert.False(t, g.Verify("other"))
	assert.Len(t, g.verified, 1)
}

func TestGateWithoutHashOnlyRequiresHeader(t *testing.T) {
	g := NewBearerGate("", nil, "/healthz")
	assert.False(t, g.Verifies())
	assert.Equal(t, http.StatusNoContent, serve(g, "/invoices", "Bearer anything").Code)
	assert.Equal(t, http.StatusUnauthorized, serve(g, "/invoices", "").Code)
	assert.Equal(t, http.StatusNoContent, serve(g, "/healthz", "").Code)
	assert.True(t, g.Verify("anything"))
}
