// Package api serves the admin sync trigger endpoints.
package api

import (
	"context"
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prudhvinik1/appsync/internal/logging"
	"github.com/prudhvinik1/appsync/internal/metrics"
	"github.com/prudhvinik1/appsync/internal/models"
	"github.com/prudhvinik1/appsync/internal/repositories"
	"github.com/prudhvinik1/appsync/internal/services"
	"go.uber.org/zap"
)

type AppSyncer interface {
	SyncAppFromStore(ctx context.Context, appID string, store models.StoreType) services.SyncResult
}

type BatchRunner interface {
	SyncAll(ctx context.Context, trigger models.SyncTrigger) (int, error)
}

type Importer interface {
	Import(ctx context.Context, entries []services.ImportEntry) (*services.ImportReport, error)
}

type Authenticator interface {
	TokenVerifier
	Login(ctx context.Context, email, password string) (*services.LoginResponse, error)
}

type Dependencies struct {
	Engine   AppSyncer
	Batch    BatchRunner
	Importer Importer
	Auth     Authenticator
	Apps     repositories.AppRepository
	Status   repositories.SyncStatusRepository
}

// Server owns the HTTP handlers and the full syncs they start in the
// background.
type Server struct {
	deps   Dependencies
	logger *zap.Logger

	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running atomic.Bool
}

func NewServer(deps Dependencies, logger *zap.Logger) *Server {
	logger = logging.OrNop(logger)
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{deps: deps, logger: logger, ctx: ctx, cancel: cancel}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
	r.Handle("/metrics", metrics.Handler())

	r.Route("/api/admin", func(r chi.Router) {
		r.Post("/login", s.login)

		r.Group(func(r chi.Router) {
			r.Use(RequireAdmin(s.deps.Auth, s.logger))

			r.Post("/apps/{id}/sync", s.syncApp)
			r.Get("/apps/{id}/sync-status", s.appSyncStatus)
			r.Get("/apps/{id}/versions", s.versionHistory)
			r.Post("/apps/bulk-sync", s.bulkSync)

			r.Post("/sync/app", s.syncAppByBody)
			r.Post("/sync/all", s.syncAll)
			r.Post("/sync-all-apps", s.syncAll)
			r.Get("/sync/status", s.lastBatchRun)
		})
	})

	return r
}

// startSyncAll launches a full sync unless one started here is still
// running. It reports whether a new run was started.
func (s *Server) startSyncAll(trigger models.SyncTrigger) bool {
	if !s.running.CompareAndSwap(false, true) {
		return false
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.running.Store(false)
		defer func() {
			if r := recover(); r != nil {
				s.logger.Error("background sync panicked", zap.Any("panic", r))
			}
		}()

		succeeded, err := s.deps.Batch.SyncAll(s.ctx, trigger)
		if err != nil {
			s.logger.Error("background sync failed", zap.Error(err))
			return
		}
		s.logger.Info("background sync completed", zap.Int("succeeded", succeeded))
	}()
	return true
}

// Shutdown cancels background syncs and waits for them to return or for ctx
// to expire.
func (s *Server) Shutdown(ctx context.Context) error {
	s.cancel()
	return s.Wait(ctx)
}

// Wait blocks until every background sync has returned.
func (s *Server) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
