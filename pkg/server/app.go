package server

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"RSIBoard/internal/service/finnhub"
	"RSIBoard/internal/service/ratelimit"
	"RSIBoard/internal/usecase"
	"RSIBoard/pkg/config"
	xhttp "RSIBoard/pkg/http"
	pkgkafka "RSIBoard/pkg/kafka"
	applogger "RSIBoard/pkg/logger"
)

// App encapsulates the entire application lifecycle.
type App struct {
	cfg        *config.Config
	l          *applogger.Logger
	httpServer *xhttp.Server
	scheduler  *usecase.Scheduler
	refresher  *usecase.RSIRefresher

	consumer *pkgkafka.Consumer
	ticks    pkgkafka.MessageHandler
	stream   *finnhub.Client
	limiter  *ratelimit.Limiter
}

// New creates a new App instance with its required parts. Optional parts are
// attached with the Set* methods.
func New(
	cfg *config.Config,
	l *applogger.Logger,
	httpServer *xhttp.Server,
	scheduler *usecase.Scheduler,
	refresher *usecase.RSIRefresher,
) *App {
	return &App{
		cfg:        cfg,
		l:          l,
		httpServer: httpServer,
		scheduler:  scheduler,
		refresher:  refresher,
	}
}

// SetConsumer attaches the Kafka ticks consumer.
func (a *App) SetConsumer(c *pkgkafka.Consumer, h pkgkafka.MessageHandler) {
	a.consumer, a.ticks = c, h
}

// SetStream attaches the Finnhub trade stream.
func (a *App) SetStream(s *finnhub.Client) { a.stream = s }

// SetLimiter attaches the HTTP limiter so idle keys get swept.
func (a *App) SetLimiter(l *ratelimit.Limiter) { a.limiter = l }

// Run starts the application and blocks until interrupted.
func (a *App) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	names := make([]string, 0, len(a.cfg.Instruments))
	for _, in := range a.cfg.Instruments {
		names = append(names, in.Name)
	}
	a.l.Info("starting rsiboard",
		applogger.String("provider", a.cfg.Provider.Type),
		applogger.String("quotes", a.cfg.Quotes.Source),
		applogger.Strings("instruments", names),
		applogger.Duration("refresh_interval_ms", a.cfg.RSI.RefreshInterval),
	)

	if a.limiter != nil {
		go a.limiter.Run(ctx, time.Minute)
	}

	if a.stream != nil {
		go func() {
			if err := a.stream.Run(ctx); err != nil && ctx.Err() == nil {
				a.l.Error("finnhub stream stopped", applogger.Error(err))
			}
		}()
	}

	if a.consumer != nil && a.ticks != nil {
		a.consumer.RegisterHandler(a.ticks)
		if err := a.consumer.Start(); err != nil {
			a.l.Error("kafka consumer start error", applogger.Error(err))
			return err
		}
	}

	if err := a.scheduler.Start(); err != nil {
		a.l.Error("scheduler start error", applogger.Error(err))
		return err
	}

	if err := a.httpServer.Start(); err != nil {
		a.l.Error("http server start error", applogger.Error(err))
		return err
	}

	<-ctx.Done()
	a.l.Info("shutdown signal received")
	return a.shutdown()
}

// shutdown gracefully stops all services.
func (a *App) shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := a.httpServer.Stop(ctx); err != nil {
		a.l.Error("http shutdown error", applogger.Error(err))
	}

	if err := a.scheduler.Stop(ctx); err != nil {
		a.l.Warn("scheduler stop error", applogger.Error(err))
	}

	if a.consumer != nil {
		if err := a.consumer.Stop(ctx); err != nil {
			a.l.Warn("kafka consumer stop error", applogger.Error(err))
		}
	}

	if a.stream != nil {
		if err := a.stream.Close(); err != nil {
			a.l.Warn("finnhub close error", applogger.Error(err))
		}
	}

	// Connections are closed by the injector cleanup after Run returns.
	if err := a.refresher.Close(); err != nil {
		a.l.Warn("snapshot publisher close error", applogger.Error(err))
	}

	a.l.Info("shutdown complete")
	return nil
}
