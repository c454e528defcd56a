package server

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"FinFuse/internal/usecase"
	pkgch "FinFuse/pkg/clickhouse"
	"FinFuse/pkg/config"
	xhttp "FinFuse/pkg/http"
	pkgkafka "FinFuse/pkg/kafka"
	applogger "FinFuse/pkg/logger"
	pkgqueue "FinFuse/pkg/queue"
)

// App encapsulates the entire application lifecycle.
type App struct {
	cfg         *config.Config
	l           *applogger.Logger
	collector   *usecase.SignalCollector
	consumer    *pkgkafka.Consumer
	kh          pkgkafka.MessageHandler
	chClient    *pkgch.Client
	queue       *pkgqueue.RedisQueue
	httpServer  *xhttp.Server
	httpHandler xhttp.Handler
	IntentProc  *usecase.IntentProcessor
}

// New creates a new App instance with all dependencies.
func New(
	cfg *config.Config,
	l *applogger.Logger,
	collector *usecase.SignalCollector,
	consumer *pkgkafka.Consumer,
	kh pkgkafka.MessageHandler,
	chClient *pkgch.Client,
	queue *pkgqueue.RedisQueue,
) *App {
	return &App{
		cfg:       cfg,
		l:         l,
		collector: collector,
		consumer:  consumer,
		kh:        kh,
		chClient:  chClient,
		queue:     queue,
	}
}

// SetHTTPHandler allows DI to inject an HTTP handler.
func (a *App) SetHTTPHandler(h xhttp.Handler) { a.httpHandler = h }

// Run starts the application and blocks until interrupted.
func (a *App) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	l := a.l
	if l == nil {
		l, _ = applogger.New(&applogger.Config{Level: "info", Format: "console", Output: "stdout"})
	}

	// Aggregate repeated error logs through the retry queue topic
	if a.cfg.Logging.CollectErrors && a.cfg.Logging.LogTopic != "" && a.queue != nil {
		l.AddCollector(&applogger.CollectionConfig{
			TimeInterval:   a.cfg.Logging.FlushInterval,
			CountThreshold: a.cfg.Logging.CountThreshold,
			Topic:          a.cfg.Logging.LogTopic,
			Publisher:      a.queue,
		})
	}

	// Queue must be consuming before anything enqueues replays
	if a.queue != nil {
		if err := a.queue.Start(); err != nil {
			l.Error("queue start error", applogger.Error(err))
			return err
		}
	}

	a.httpServer = a.buildHTTPServer(l)
	a.startCollector(ctx, l)
	a.startConsumer(l)

	if err := a.httpServer.Start(); err != nil {
		l.Error("http server start error", applogger.Error(err))
		return err
	}

	waitForInterrupt()
	l.Info("shutdown signal received")
	return a.shutdown(ctx, l)
}

func (a *App) buildHTTPServer(l *applogger.Logger) *xhttp.Server {
	opts := []xhttp.ServerOption{
		xhttp.WithPort(a.cfg.Server.Port),
		xhttp.WithTimeouts(a.cfg.Server.ReadTimeout, a.cfg.Server.WriteTimeout, a.cfg.Server.ShutdownTimeout),
	}
	if a.cfg.Metrics.Enabled {
		opts = append(opts, xhttp.WithRequestMetrics(l, a.cfg.Metrics.SlowRequest))
	}
	return xhttp.NewServer(a.httpHandler, opts...)
}

func (a *App) startCollector(ctx context.Context, l *applogger.Logger) {
	if !a.cfg.Feed.Enabled || a.collector == nil {
		l.Info("feed collector disabled")
		return
	}
	go func() {
		if err := a.collector.Start(ctx); err != nil {
			l.Error("collector error", applogger.Error(err))
		}
	}()
	l.Info("feed collector started", applogger.Strings("tickers", a.cfg.Feed.Tickers))
}

func (a *App) startConsumer(l *applogger.Logger) {
	if a.consumer == nil || a.kh == nil {
		return
	}
	a.consumer.RegisterHandler(a.kh)
	go func() {
		if err := a.consumer.Start(); err != nil {
			l.Error("kafka consumer error", applogger.Error(err))
		}
	}()
	l.Info("kafka consumer started", applogger.String("topic", a.kh.Topic()))
}

func waitForInterrupt() {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh
}

// shutdown gracefully stops all services. Intake stops first so nothing
// new enters the pipeline, then the outer surfaces, then infrastructure.
func (a *App) shutdown(ctx context.Context, l *applogger.Logger) error {
	l.Info("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(ctx, a.cfg.Server.ShutdownTimeout)
	defer cancel()

	// Stop collector (pipeline + stream)
	if a.collector != nil {
		if err := a.collector.Shutdown(ctx); err != nil {
			l.Warn("collector stop error", applogger.Error(err))
		}
	}

	// Shutdown HTTP server
	if err := a.httpServer.Stop(shutdownCtx); err != nil {
		l.Error("http shutdown error", applogger.Error(err))
	}

	// Stop consumer
	if a.consumer != nil {
		if err := a.consumer.Stop(ctx); err != nil {
			l.Warn("kafka consumer stop error", applogger.Error(err))
		}
	}

	// Stop retry queue after producers of replay work are gone
	if a.queue != nil {
		if err := a.queue.Stop(shutdownCtx); err != nil {
			l.Warn("queue stop error", applogger.Error(err))
		}
	}

	// Close infrastructure clients
	if a.chClient != nil {
		if err := a.chClient.Close(); err != nil {
			l.Warn("clickhouse close error", applogger.Error(err))
		}
	}

	// Close intent processor resources (publisher/store)
	if a.IntentProc != nil {
		a.IntentProc.Close()
	}

	l.Info("shutdown complete")
	return nil
}
