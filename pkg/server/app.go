package server

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"EmeraldAgent/internal/usecase"
	xhttp "EmeraldAgent/pkg/http"
	pkgkafka "EmeraldAgent/pkg/kafka"
	applogger "EmeraldAgent/pkg/logger"
)

// Closer is a named resource released on shutdown.
type Closer struct {
	Name  string
	Close func() error
}

// App encapsulates the entire application lifecycle.
type App struct {
	log             *applogger.Logger
	httpServer      *xhttp.Server
	decisions       *usecase.DecisionService
	consumer        *pkgkafka.Consumer
	kh              pkgkafka.MessageHandler
	closers         []Closer
	shutdownTimeout time.Duration
}

// New creates a new App. consumer and kh are both nil when the queue transport
// is disabled. Closers run in order after transports stop.
func New(
	log *applogger.Logger,
	httpServer *xhttp.Server,
	decisions *usecase.DecisionService,
	consumer *pkgkafka.Consumer,
	kh pkgkafka.MessageHandler,
	shutdownTimeout time.Duration,
	closers ...Closer,
) *App {
	if log == nil {
		log = applogger.NewNop()
	}
	if shutdownTimeout <= 0 {
		shutdownTimeout = 30 * time.Second
	}
	return &App{
		log:             log,
		httpServer:      httpServer,
		decisions:       decisions,
		consumer:        consumer,
		kh:              kh,
		closers:         closers,
		shutdownTimeout: shutdownTimeout,
	}
}

// Run starts the transports and blocks until ctx is done or the process is
// interrupted, then shuts down.
func (a *App) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if a.consumer != nil && a.kh != nil {
		a.consumer.RegisterHandler(a.kh)
		if err := a.consumer.Start(); err != nil {
			a.log.Error("kafka consumer start error", applogger.Error(err))
			return err
		}
		a.log.Info("kafka consumer started", applogger.String("topic", a.kh.Topic()))
	}

	if err := a.httpServer.Start(); err != nil {
		a.log.Error("http server start error", applogger.Error(err))
		return err
	}

	<-ctx.Done()
	a.log.Info("shutdown signal received")
	return a.shutdown()
}

// shutdown stops intake first, waits for in-flight work, then releases
// infrastructure.
func (a *App) shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), a.shutdownTimeout)
	defer cancel()

	a.log.Info("shutting down...")

	if err := a.httpServer.Stop(ctx); err != nil {
		a.log.Error("http shutdown error", applogger.Error(err))
	}

	if a.consumer != nil {
		if err := a.consumer.Stop(ctx); err != nil {
			a.log.Warn("kafka consumer stop error", applogger.Error(err))
		}
	}

	if a.decisions != nil {
		a.decisions.Close()
	}

	for _, c := range a.closers {
		if err := c.Close(); err != nil {
			a.log.Warn("close error", applogger.String("resource", c.Name), applogger.Error(err))
		}
	}

	a.log.Info("shutdown complete")
	return nil
}
