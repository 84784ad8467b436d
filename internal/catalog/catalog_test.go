package catalog

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kipsunya/storefront-go/internal/api"
)

func TestService_Products(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/all_products/", r.URL.Path)
		_ = json.NewEncoder(w).Encode(api.ProductPage{
			Count: 1,
			Results: []api.Product{
				{ID: 7, Name: "Beans", Price: 150, InStock: true},
			},
		})
	}))
	defer srv.Close()

	svc := New(api.New(srv.URL))

	page, err := svc.Products(t.Context(), ListOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, page.Count)
	require.Len(t, page.Results, 1)
	assert.Equal(t, "Beans", page.Results[0].Name)
}

func TestService_CachedListings(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.Header().Set("Cache-Control", "max-age=60")
		_ = json.NewEncoder(w).Encode(api.ProductPage{Count: 3})
	}))
	defer srv.Close()

	svc := New(api.New(srv.URL))

	for range 3 {
		page, err := svc.Products(t.Context(), ListOptions{})
		require.NoError(t, err)
		assert.Equal(t, 3, page.Count)
	}

	// repeat listings are served from the caching transport
	assert.Equal(t, int32(1), atomic.LoadInt32(&hits))
}

func TestService_Categories(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/categories/list/", r.URL.Path)
		_ = json.NewEncoder(w).Encode([]api.Category{
			{ID: 1, Name: "Produce", Slug: "produce", ProductCount: 12},
		})
	}))
	defer srv.Close()

	svc := New(api.New(srv.URL))

	cats, err := svc.Categories(t.Context())
	require.NoError(t, err)
	require.Len(t, cats, 1)
	assert.Equal(t, "produce", cats[0].Slug)
}
