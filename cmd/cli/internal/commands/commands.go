package commands

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/kipsunya/storefront-go/internal/api"
	"github.com/kipsunya/storefront-go/internal/cart"
	"github.com/kipsunya/storefront-go/internal/catalog"
	"github.com/kipsunya/storefront-go/internal/logger"
	"github.com/kipsunya/storefront-go/internal/orders"
	"github.com/kipsunya/storefront-go/internal/session"
)

type Globals struct {
	Debug   bool
	Version string
}

// Config is the optional YAML configuration file, by default at
// ~/.kipsunya/config.yaml. Command flags override it.
type Config struct {
	ServerURL string `yaml:"serverUrl" json:"serverUrl"`
	DataDir   string `yaml:"dataDir" json:"dataDir"`
	CacheDir  string `yaml:"cacheDir" json:"cacheDir"`
}

func loadConfig(path string) (*Config, error) {
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return &Config{}, nil
		}
		path = filepath.Join(home, ".kipsunya", "config.yaml")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &Config{}, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return &cfg, nil
}

// app wires the client-side components together for one CLI invocation.
type app struct {
	Session *session.Manager
	Cart    *cart.Manager
	Catalog *catalog.Service
	Orders  *orders.Service
}

func newApp(ctx context.Context, serverURL, configPath string, globals *Globals) (*app, error) {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return nil, err
	}

	if serverURL == "" {
		serverURL = cfg.ServerURL
	}
	if serverURL == "" {
		serverURL = "http://localhost:8000"
	}

	cacheDir := cfg.CacheDir
	if cacheDir == "" {
		if home, err := os.UserHomeDir(); err == nil {
			cacheDir = filepath.Join(home, ".kipsunya", "cache")
		}
	}

	httpc := &http.Client{Timeout: 30 * time.Second}
	if globals.Debug {
		httpc.Transport = logger.NewHTTPRequests(logger.Setup(true), nil)
	}

	client := api.New(serverURL,
		api.WithHTTPClient(httpc),
		api.WithCachingClient(api.NewCachingHTTPClient(cacheDir)),
	)

	store, err := session.NewStore(cfg.DataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize session store: %w", err)
	}

	sess := session.NewManager(client, store)
	cartMgr := cart.NewManager(client, sess)

	// Resume any persisted session; an unauthenticated start is normal.
	sess.Restore(ctx)

	return &app{
		Session: sess,
		Cart:    cartMgr,
		Catalog: catalog.New(client),
		Orders:  orders.New(client, sess),
	}, nil
}
