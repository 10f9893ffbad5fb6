// Package api implements the api sub-command.
package api

import (
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/manifest-network/lens/api"
	"github.com/manifest-network/lens/cache/kvstore"
	"github.com/manifest-network/lens/cmd/common"
	"github.com/manifest-network/lens/config"
	"github.com/manifest-network/lens/denom"
	"github.com/manifest-network/lens/evm"
	"github.com/manifest-network/lens/log"
	"github.com/manifest-network/lens/metrics"
	"github.com/manifest-network/lens/search"
	"github.com/manifest-network/lens/stats"
	storage "github.com/manifest-network/lens/storage/client"
	"github.com/manifest-network/lens/storage/tablesvc"
)

const moduleName = "api"

var (
	configFile string

	apiCmd = &cobra.Command{
		Use:   "serve",
		Short: "Serve the lens API",
		Run:   runServer,
	}
)

func runServer(cmd *cobra.Command, args []string) {
	cfg, err := config.InitConfig(configFile)
	if err != nil {
		log.NewDefaultLogger("init").Error("init failed", "error", err)
		os.Exit(1)
	}
	if err := common.Init(cfg); err != nil {
		log.NewDefaultLogger("init").Error("init failed", "error", err)
		os.Exit(1)
	}
	logger := common.RootLogger()

	if cfg.Server == nil {
		logger.Error("server config not provided")
		os.Exit(1)
	}

	service, err := Init(cfg)
	if err != nil {
		os.Exit(1)
	}
	defer service.Shutdown()

	service.Start()
}

// Init initializes the API service.
func Init(cfg *config.Config) (*Service, error) {
	service, err := NewService(cfg)
	if err != nil {
		common.RootLogger().Error("service failed to start", "error", err)
		return nil, err
	}
	return service, nil
}

// Service is the lens API service.
type Service struct {
	endpoint string
	handler  *api.Handler
	store    kvstore.KVStore
	logger   *log.Logger
}

// NewService creates a new API service from configuration.
func NewService(cfg *config.Config) (*Service, error) {
	logger := common.RootLogger().WithModule(moduleName)

	ts := tablesvc.NewClient(cfg.Source.TableEndpoint, cfg.Source.RequestTimeout, logger)

	queryTTL := 10 * time.Second
	cacheDir := "cache"
	if cfg.Cache != nil {
		if cfg.Cache.QueryTTL > 0 {
			queryTTL = cfg.Cache.QueryTTL
		}
		cacheDir = cfg.Cache.Dir
	}

	store, err := kvstore.OpenKVStore(logger, filepath.Join(cacheDir, "resolved"))
	if err != nil {
		return nil, err
	}

	data := storage.NewStorageClient(ts, evm.NewReconstructor(cfg.Source.ChainID, logger), queryTTL, logger)
	statsService := stats.NewService(ts, logger)
	dispatcher := search.NewDispatcher(search.NewClassifier(cfg.Source.Bech32Prefix), data, logger)
	denoms := denom.NewResolver(ts, cfg.Source.NodeEndpoint, store, metrics.NewCacheMetrics(moduleName), logger)

	return &Service{
		endpoint: cfg.Server.Endpoint,
		handler:  api.NewHandler(data, statsService, dispatcher, denoms, logger),
		store:    store,
		logger:   logger,
	}, nil
}

// Start starts the API service. Blocks until the server exits.
func (s *Service) Start() {
	s.logger.Info("starting api service", "endpoint", s.endpoint)

	server := &http.Server{
		Addr:           s.endpoint,
		Handler:        s.handler.Router(),
		ReadTimeout:    10 * time.Second,
		WriteTimeout:   30 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		s.logger.Error("api service shut down", "err", err)
	}
}

// Shutdown gracefully releases the service's resources.
func (s *Service) Shutdown() {
	if err := s.store.Close(); err != nil {
		s.logger.Warn("closing kvstore", "err", err)
	}
}

// Register registers the api sub-command.
func Register(parentCmd *cobra.Command) {
	apiCmd.Flags().StringVar(&configFile, "config", "./config/lens.yml", "path to the config.yml file")
	parentCmd.AddCommand(apiCmd)
}
