package api

import (
	"net/http"

	"github.com/gregjones/httpcache"
	"github.com/gregjones/httpcache/diskcache"
)

// newCacheBackend picks the store behind the caching transport: disk-backed
// when a directory is configured so catalog responses survive across CLI
// invocations, in-memory otherwise.
func newCacheBackend(dir string) httpcache.Cache {
	if dir == "" {
		return httpcache.NewMemoryCache()
	}
	return diskcache.New(dir)
}

// NewCachingHTTPClient returns an HTTP client whose transport honours the
// Cache-Control headers the backend sets on public catalog reads.
func NewCachingHTTPClient(cacheDir string) *http.Client {
	return &http.Client{
		Transport: httpcache.NewTransport(newCacheBackend(cacheDir)),
		Timeout:   defaultTimeout,
	}
}
