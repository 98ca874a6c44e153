package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/opportunity-crawler/internal/api"
	"github.com/JakeFAU/opportunity-crawler/internal/clock/system"
	"github.com/JakeFAU/opportunity-crawler/internal/dispatcher"
	iduuid "github.com/JakeFAU/opportunity-crawler/internal/id/uuid"
	queuememory "github.com/JakeFAU/opportunity-crawler/internal/queue/memory"
	storememory "github.com/JakeFAU/opportunity-crawler/internal/storage/memory"
	"github.com/JakeFAU/opportunity-crawler/internal/worker"
)

const shutdownTimeout = 10 * time.Second

// Service is the HTTP run service: API, queue, store and worker pool.
type Service struct {
	queue      *queuememory.Queue
	store      *storememory.RunStore
	dispatcher *dispatcher.Dispatcher
	server     *api.Server
	ready      atomic.Bool
	logger     *zap.Logger
}

// NewService wires the run service around the App's batch runner.
func (a *App) NewService() *Service {
	cfg := a.cfg.Server
	clock := system.New()
	q := queuememory.NewQueue(cfg.QueueDepth)
	store := storememory.NewRunStore(clock)

	workers := make([]*worker.Worker, 0, cfg.Workers)
	for i := range cfg.Workers {
		workers = append(workers, worker.New(q, store, a.batch, a.logger.Named("worker").With(zap.Int("index", i))))
	}
	s := &Service{
		queue:      q,
		store:      store,
		dispatcher: dispatcher.New(q, store, iduuid.New(), clock, workers),
		logger:     a.logger.Named("service"),
	}
	s.server = api.NewServer(s.dispatcher, store, api.Config{
		DefaultTries: a.cfg.Batch.Tries,
		Ready:        s.ready.Load,
	}, a.logger.Named("api"))
	return s
}

// Handler exposes the API router.
func (s *Service) Handler() http.Handler {
	return s.server.Handler()
}

// Serve listens on port until ctx ends, then shuts the server down and
// waits for the workers to stop.
func (s *Service) Serve(ctx context.Context, port int) error {
	ln, err := net.Listen("tcp", net.JoinHostPort("", strconv.Itoa(port)))
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	return s.ServeListener(ctx, ln)
}

// ServeListener is Serve over an existing listener.
func (s *Service) ServeListener(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, stop := context.WithCancel(ctx)
	defer stop()

	dispatchDone := make(chan struct{})
	go func() {
		defer close(dispatchDone)
		s.logger.Info("dispatcher started")
		s.dispatcher.Run(ctx)
	}()

	serveErr := make(chan error, 1)
	go func() {
		s.logger.Info("http server started", zap.String("addr", ln.Addr().String()))
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()
	s.ready.Store(true)

	var runErr error
	select {
	case <-ctx.Done():
	case err, ok := <-serveErr:
		if ok {
			runErr = fmt.Errorf("http server: %w", err)
		}
	}
	s.ready.Store(false)
	s.logger.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		s.logger.Error("server shutdown error", zap.Error(err))
	}
	stop()
	s.queue.Close()
	<-dispatchDone
	s.logger.Info("shutdown complete")
	return runErr
}
