package invoiceclient

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/invoicer/internal/invoices"
	"github.com/odyssey-erp/invoicer/internal/platform/kv"
)

type apiServer struct {
	*httptest.Server
	lists atomic.Int32
	auth  atomic.Value
}

func newAPIServer(t *testing.T) *apiServer {
	t.Helper()
	repo := invoices.NewRepository(kv.NewMemoryStore(), invoices.RepositoryOptions{})
	handler := invoices.NewHandler(nil, invoices.NewService(repo, nil, nil))

	s := &apiServer{}
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			s.auth.Store(r.Header.Get("Authorization"))
			if r.Method == http.MethodGet && r.URL.Path == "/api/invoices" && r.URL.RawQuery == "" {
				s.lists.Add(1)
			}
			next.ServeHTTP(w, r)
		})
	})
	r.Route("/api/invoices", handler.MountRoutes)
	s.Server = httptest.NewServer(r)
	t.Cleanup(s.Close)
	return s
}

func draft(client string) invoices.Invoice {
	d := NewDraft(time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC))
	d.ClientName = client
	d.LineItems = []invoices.LineItem{{Description: "Design", Quantity: 2, Rate: 500}}
	return d
}

func TestCreateRefreshesCache(t *testing.T) {
	srv := newAPIServer(t)
	c := New(srv.URL+"/api/", "anon-key")
	ctx := context.Background()

	inv, err := c.Create(ctx, draft("Acme"))
	require.NoError(t, err)
	assert.Equal(t, 1000.0, inv.Total)
	assert.Equal(t, "WS-00001", inv.InvoiceNumber)
	assert.Equal(t, int32(1), srv.lists.Load())
	assert.Equal(t, "Bearer anon-key", srv.auth.Load())

	cached, ok := c.Lookup(inv.ID)
	require.True(t, ok)
	assert.Equal(t, inv.InvoiceNumber, cached.InvoiceNumber)
	assert.Len(t, c.Cached(), 1)
}

func TestUpdateStatusPatchesCacheInPlace(t *testing.T) {
	srv := newAPIServer(t)
	c := New(srv.URL+"/api", "")
	ctx := context.Background()

	first, err := c.Create(ctx, draft("Acme"))
	require.NoError(t, err)
	_, err = c.Create(ctx, draft("Beta"))
	require.NoError(t, err)
	before := srv.lists.Load()
	order := c.Cached()

	updated, err := c.UpdateStatus(ctx, first.ID, invoices.StatusPaid)
	require.NoError(t, err)
	assert.Equal(t, invoices.StatusPaid, updated.Status)
	assert.Equal(t, before, srv.lists.Load(), "status change must not refetch the list")

	cached, ok := c.Lookup(first.ID)
	require.True(t, ok)
	assert.Equal(t, invoices.StatusPaid, cached.Status)

	after := c.Cached()
	require.Len(t, after, len(order))
	for i := range order {
		assert.Equal(t, order[i].ID, after[i].ID)
	}
}

func TestDeleteRefreshesCache(t *testing.T) {
	srv := newAPIServer(t)
	c := New(srv.URL+"/api", "")
	ctx := context.Background()

	inv, err := c.Create(ctx, draft("Acme"))
	require.NoError(t, err)
	require.NoError(t, c.Delete(ctx, inv.ID))

	_, ok := c.Lookup(inv.ID)
	assert.False(t, ok)
	assert.Empty(t, c.Cached())
	assert.Equal(t, int32(2), srv.lists.Load())
}

func TestGetMissingIsNotFound(t *testing.T) {
	srv := newAPIServer(t)
	c := New(srv.URL+"/api", "")

	_, err := c.Get(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotFound))

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusNotFound, apiErr.StatusCode)
	assert.Equal(t, "Invoice not found", apiErr.Message)
}

func TestValidationErrorSurfaces(t *testing.T) {
	srv := newAPIServer(t)
	c := New(srv.URL+"/api", "")

	_, err := c.Create(context.Background(), invoices.Invoice{ClientName: "Acme"})
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	assert.False(t, errors.Is(err, ErrNotFound))
	assert.Zero(t, srv.lists.Load())
}

func TestListByStatus(t *testing.T) {
	srv := newAPIServer(t)
	c := New(srv.URL+"/api", "")
	ctx := context.Background()

	inv, err := c.Create(ctx, draft("Acme"))
	require.NoError(t, err)
	_, err = c.Create(ctx, draft("Beta"))
	require.NoError(t, err)
	_, err = c.UpdateStatus(ctx, inv.ID, invoices.StatusSent)
	require.NoError(t, err)

	sent, err := c.ListByStatus(ctx, invoices.StatusSent)
	require.NoError(t, err)
	require.Len(t, sent, 1)
	assert.Equal(t, inv.ID, sent[0].ID)
	assert.Len(t, c.Cached(), 2)
}

func TestConcurrentListsShareOneRequest(t *testing.T) {
	release := make(chan struct{})
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		<-release
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"success":true,"invoices":[]}`))
	}))
	t.Cleanup(srv.Close)
	c := New(srv.URL, "")

	const callers = 8
	var wg sync.WaitGroup
	errs := make(chan error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := c.List(context.Background())
			errs <- err
		}()
	}
	require.Eventually(t, func() bool { return hits.Load() == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()
	close(errs)
	for err := range errs {
		assert.NoError(t, err)
	}
	assert.Equal(t, int32(1), hits.Load())
}

func TestListHonoursContext(t *testing.T) {
	block := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-block
	}))
	t.Cleanup(func() {
		close(block)
		srv.Close()
	})
	c := New(srv.URL, "", WithTimeout(2*time.Second))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := c.List(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestTransportErrorIsNotAPIError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := New(url, "", WithTimeout(time.Second)).Get(context.Background(), "x")
	require.Error(t, err)
	var apiErr *APIError
	assert.False(t, errors.As(err, &apiErr))
}
