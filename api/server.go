package api

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/docmirror/docmirror/config"
	"github.com/docmirror/docmirror/db/indexdb"
	"github.com/docmirror/docmirror/db/kvdb"
	"github.com/docmirror/docmirror/drive"
	"github.com/docmirror/docmirror/logger"
	"github.com/docmirror/docmirror/services/assemble"
	"github.com/docmirror/docmirror/services/docstore"
	"github.com/docmirror/docmirror/services/extract"
	"github.com/docmirror/docmirror/services/index"
	"github.com/docmirror/docmirror/services/search"
	syncservice "github.com/docmirror/docmirror/services/sync"
	"github.com/docmirror/docmirror/validation"
)

type server struct {
	router     *gin.Engine
	httpServer *http.Server
	kvdb       kvdb.DB
	sync       *syncservice.Service
	search     *search.Service
	assembler  *assemble.Service
	docs       *docstore.Store
	validator  *validation.Validator
	logger     logger.Logger
}

func Run(ctx context.Context, cfg *config.Config) error {
	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt)

	defer cancel()

	s := &server{
		logger: logger.New(),
	}
	if err := s.setupDependencies(ctx, cfg); err != nil {
		return err
	}
	s.setupRouter()
	s.setupHTTPServer(cfg)
	s.setupGracefulShutdown(ctx)

	return nil
}

func (s *server) setupDependencies(ctx context.Context, cfg *config.Config) error {
	boltDB, err := kvdb.New(s.logger, cfg.GetKVDBPath())
	if err != nil {
		s.logger.Error("error creating kvDB", "err", err.Error())
		return err
	}
	s.kvdb = boltDB

	s.docs = docstore.New()
	indexStore := indexdb.NewStore(s.logger, cfg.GetIndexPath())

	indexService := index.New(s.logger, s.docs, indexStore)
	indexService.LoadFromDisk()

	s.search = search.New(s.logger, s.docs, indexStore)
	s.assembler = assemble.New(s.logger, s.search, s.docs)

	var remote syncservice.RemoteStore
	remote, err = drive.NewClient(ctx, s.logger, cfg.GetCredentialsPath(), cfg.GetTokenPath(), cfg.GetTempPath())
	if err != nil {
		if !errors.Is(err, drive.ErrNotAuthenticated) {
			s.logger.Error("error creating drive client", "err", err.Error())
			return err
		}
		s.logger.Warn("drive not authenticated, sync is disabled until credentials are provided")
		remote = drive.Disconnected{}
	}

	stateStore := syncservice.NewStateStore(s.logger, s.kvdb)
	s.sync = syncservice.New(s.logger, remote, extract.New(s.logger), s.docs, stateStore, indexService, cfg.GetDatasetsPath())

	s.validator, err = validation.New(s.logger)
	if err != nil {
		s.logger.Error("error creating validator", "err", err.Error())
		return err
	}

	return nil
}

func (s *server) setupRouter() {
	router := newRouter()

	router.Use(loggingMiddleware(s.logger))

	setupRoutes(router, s.logger, s.sync, s.search, s.assembler, s.docs, s.validator)

	s.router = router
}

func (s *server) setupHTTPServer(cfg *config.Config) {

	httpServer := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.GetPort()),
		Handler: s.router.Handler(),
	}
	s.httpServer = httpServer
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %s\n", err)
		}
	}()
}

func (s *server) setupGracefulShutdown(ctx context.Context) {

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		<-ctx.Done()
		s.logger.Info("starting to shut down http server")
		shutdownCtx := context.Background()
		shutdownCtx, cancel := context.WithTimeout(shutdownCtx, 10*time.Second)
		defer cancel()
		s.kvdb.Close()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("error shutting down http server", "err", err)
			return
		}
		s.logger.Info("shut down http server successfully")
	}()

	wg.Wait()
}
