package di

import (
	"context"
	"fmt"
	"time"

	"RSIBoard/internal/domain/models"
	"RSIBoard/internal/domain/repository"
	"RSIBoard/internal/handler/api"
	internalrepo "RSIBoard/internal/repository"
	"RSIBoard/internal/service/binance"
	"RSIBoard/internal/service/bybit"
	icache "RSIBoard/internal/service/cache"
	"RSIBoard/internal/service/finnhub"
	"RSIBoard/internal/service/moex"
	"RSIBoard/internal/service/quotes"
	"RSIBoard/internal/service/ratelimit"
	"RSIBoard/internal/usecase"
	pkgch "RSIBoard/pkg/clickhouse"
	"RSIBoard/pkg/config"
	xhttp "RSIBoard/pkg/http"
	pkgkafka "RSIBoard/pkg/kafka"
	applogger "RSIBoard/pkg/logger"
	"RSIBoard/pkg/metrics"
	"RSIBoard/pkg/server"
	"RSIBoard/pkg/util"

	"golang.org/x/time/rate"
)

// MarketSource is the configured upstream. Quotes is nil when the provider
// has no last-price endpoint.
type MarketSource struct {
	Candles repository.CandleSource
	Quotes  repository.QuoteSource
}

// ProvideLogger creates the application logger from config.
func ProvideLogger(cfg *config.Config) (*applogger.Logger, error) {
	l, err := applogger.New(&applogger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxAgeDays: cfg.Log.MaxAgeDays,
		MaxBackups: cfg.Log.MaxBackups,
		Compress:   cfg.Log.Compress,
	})
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	return l.With(applogger.String("env", cfg.Environment)), nil
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() repository.Metrics {
	return metrics.New()
}

// ProvideInstruments converts configured instruments to domain models.
func ProvideInstruments(cfg *config.Config) []models.Instrument {
	out := make([]models.Instrument, len(cfg.Instruments))
	for i, in := range cfg.Instruments {
		out[i] = models.Instrument{Name: in.Name, ID: in.ID}
	}
	return out
}

// ProvideTimeframes returns rsi.timeframes when set, else the provider's table.
func ProvideTimeframes(cfg *config.Config) ([]repository.Timeframe, error) {
	if len(cfg.RSI.Timeframes) == 0 {
		return repository.DefaultTimeframes(cfg.Provider.Type)
	}
	out := make([]repository.Timeframe, 0, len(cfg.RSI.Timeframes))
	for _, tf := range cfg.RSI.Timeframes {
		out = append(out, repository.Timeframe{
			Name:     tf.Name,
			Interval: tf.Interval,
			Lookback: time.Duration(tf.LookbackDays) * 24 * time.Hour,
			Bucket:   tf.Bucket,
		})
	}
	return out, nil
}

// ProvideBoardLayout fixes the render order and display zone.
func ProvideBoardLayout(cfg *config.Config, instruments []models.Instrument, tfs []repository.Timeframe) models.BoardLayout {
	names := make([]string, len(instruments))
	for i, in := range instruments {
		names[i] = in.Name
	}
	return models.BoardLayout{
		Instruments: names,
		Timeframes:  repository.TimeframeNames(tfs),
		Location:    util.FixedZone(cfg.RSI.DisplayUTCOffset),
	}
}

// ProvideUpstreamHTTPClient creates the HTTP client shared by REST providers.
func ProvideUpstreamHTTPClient(cfg *config.Config) *xhttp.Client {
	return xhttp.NewClient(xhttp.WithTimeout(cfg.Provider.Timeout))
}

// ProvideClickHouseClient connects to ClickHouse when it is the candle source.
func ProvideClickHouseClient(cfg *config.Config, l *applogger.Logger) (*pkgch.Client, func(), error) {
	if cfg.Provider.Type != "clickhouse" {
		return nil, func() {}, nil
	}
	client, err := pkgch.NewClient(
		pkgch.WithHost(cfg.ClickHouse.Host),
		pkgch.WithPort(cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithMaxConnections(10, 5),
		pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout),
		pkgch.WithMaxExecutionTime(cfg.ClickHouse.MaxExecutionTime),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("clickhouse client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := client.InitSchema(ctx, internalrepo.CandleSchema(cfg.ClickHouse.Database)); err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("clickhouse schema: %w", err)
	}
	return client, closeWith(l, "clickhouse", client.Close), nil
}

// closeWith turns a Close method into a wire cleanup that logs failures.
func closeWith(l *applogger.Logger, name string, closeFn func() error) func() {
	return func() {
		if err := closeFn(); err != nil {
			l.Warn("close error", applogger.String("resource", name), applogger.Error(err))
		}
	}
}

// ProvideUpstreamLimiter creates the request budget shared by the refresher
// and paging adapters.
func ProvideUpstreamLimiter(cfg *config.Config) *rate.Limiter {
	return usecase.NewUpstreamLimiter(cfg.RSI.UpstreamRPS)
}

// ProvideMarketSource builds the adapter selected by provider.type.
func ProvideMarketSource(cfg *config.Config, hc *xhttp.Client, ch *pkgch.Client, pacer *rate.Limiter, l *applogger.Logger) (*MarketSource, error) {
	switch cfg.Provider.Type {
	case "moex":
		c := moex.New(hc, moex.WithBaseURL(cfg.Provider.BaseURL), moex.WithPacer(pacer))
		return &MarketSource{Candles: c, Quotes: c}, nil
	case "bybit":
		c := bybit.New(hc, cfg.Provider.BaseURL, cfg.Provider.Category)
		return &MarketSource{Candles: c, Quotes: c}, nil
	case "binance":
		c := binance.New(cfg.Provider.APIKey, cfg.Provider.SecretKey, cfg.Provider.BaseURL, cfg.Provider.Timeout)
		return &MarketSource{Candles: c, Quotes: c}, nil
	case "clickhouse":
		if ch == nil {
			return nil, fmt.Errorf("clickhouse provider without client")
		}
		return &MarketSource{Candles: internalrepo.NewCHCandleSource(ch, cfg.ClickHouse.Database, l)}, nil
	default:
		return nil, fmt.Errorf("unknown provider type %q", cfg.Provider.Type)
	}
}

// ProvideQuoteBook creates the tick book when quotes come from a stream.
func ProvideQuoteBook(cfg *config.Config) *quotes.Book {
	if cfg.Quotes.Source != "stream" {
		return nil
	}
	return quotes.NewBook(cfg.Quotes.MaxAge)
}

// ProvideQuoteSource picks the live price source for quotes.source.
func ProvideQuoteSource(cfg *config.Config, market *MarketSource, book *quotes.Book) repository.QuoteSource {
	switch cfg.Quotes.Source {
	case "provider":
		return market.Quotes
	case "stream":
		if book != nil {
			return book
		}
	}
	return nil
}

// ProvideFinnhubStream creates the Finnhub trade stream feeding the book.
func ProvideFinnhubStream(cfg *config.Config, book *quotes.Book, l *applogger.Logger) *finnhub.Client {
	if book == nil || cfg.Finnhub.APIKey == "" {
		return nil
	}
	symbols := make([]string, len(cfg.Instruments))
	for i, in := range cfg.Instruments {
		symbols[i] = in.ID
	}
	return finnhub.New(
		cfg.Finnhub.APIKey,
		cfg.Finnhub.WebSocketURL,
		symbols,
		cfg.Finnhub.ReconnectDelay,
		cfg.Finnhub.PingInterval,
		book,
		l,
	)
}

// ProvideKafkaProducer creates a Kafka producer when a snapshot topic is set.
func ProvideKafkaProducer(cfg *config.Config, l *applogger.Logger) (*pkgkafka.Producer, func(), error) {
	if cfg.Kafka.SnapshotTopic == "" {
		return nil, func() {}, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithTimeouts(cfg.Kafka.Producer.WriteTimeout, cfg.Kafka.Producer.ReadTimeout),
		pkgkafka.WithMaxAttempts(cfg.Kafka.Producer.MaxAttempts),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, closeWith(l, "kafka_producer", producer.Close), nil
}

// ProvideKafkaConsumer creates the ticks consumer when the stream source reads Kafka.
func ProvideKafkaConsumer(cfg *config.Config, l *applogger.Logger) (*pkgkafka.Consumer, error) {
	if cfg.Quotes.Source != "stream" || cfg.Kafka.TicksTopic == "" {
		return nil, nil
	}
	consumer, err := pkgkafka.NewConsumer(l,
		pkgkafka.WithConsumerBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithConsumerGroupID(cfg.Kafka.Consumer.GroupID),
		pkgkafka.WithConsumerWorkers(cfg.Kafka.Consumer.Workers),
		pkgkafka.WithConsumerBufferSize(cfg.Kafka.Consumer.BufferSize),
		pkgkafka.WithConsumerRetry(cfg.Kafka.Consumer.RetryMax, cfg.Kafka.Consumer.BackoffMin, cfg.Kafka.Consumer.BackoffMax),
		pkgkafka.WithConsumerFetch(cfg.Kafka.Consumer.MinBytes, cfg.Kafka.Consumer.MaxBytes),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	return consumer, nil
}

// ProvideTickHandler creates the Kafka ticks handler.
func ProvideTickHandler(cfg *config.Config, consumer *pkgkafka.Consumer, book *quotes.Book, m repository.Metrics) *usecase.TickHandler {
	if consumer == nil || book == nil {
		return nil
	}
	return usecase.NewTickHandler(cfg.Kafka.TicksTopic, book, m)
}

// ProvideRedisCache connects the snapshot mirror.
func ProvideRedisCache(cfg *config.Config, l *applogger.Logger) (*icache.RedisCache, func(), error) {
	if !cfg.Redis.Enabled {
		return nil, func() {}, nil
	}
	rc := icache.NewRedisCache(icache.RedisConfig{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rc.Ping(ctx); err != nil {
		_ = rc.Close()
		return nil, nil, fmt.Errorf("redis ping: %w", err)
	}
	return rc, closeWith(l, "redis", rc.Close), nil
}

// ProvideSnapshotPublishers collects the enabled snapshot fan-out targets.
func ProvideSnapshotPublishers(cfg *config.Config, producer *pkgkafka.Producer, rc *icache.RedisCache, layout models.BoardLayout) []repository.SnapshotPublisher {
	var pubs []repository.SnapshotPublisher
	if producer != nil {
		pubs = append(pubs, internalrepo.NewKafkaSnapshotPublisher(producer, cfg.Kafka.SnapshotTopic, layout))
	}
	if rc != nil {
		pubs = append(pubs, internalrepo.NewCacheSnapshotPublisher(rc, cfg.Redis.Key, cfg.Redis.TTL, layout, nil))
	}
	return pubs
}

// ProvideSnapshotStore seeds the in-memory snapshot store.
func ProvideSnapshotStore(instruments []models.Instrument, tfs []repository.Timeframe) *internalrepo.MemorySnapshotStore {
	return internalrepo.NewMemorySnapshotStore(instruments, repository.TimeframeNames(tfs))
}

// ProvideRefresher creates the refresh cycle use case.
func ProvideRefresher(
	cfg *config.Config,
	instruments []models.Instrument,
	tfs []repository.Timeframe,
	market *MarketSource,
	qs repository.QuoteSource,
	store repository.SnapshotStore,
	pubs []repository.SnapshotPublisher,
	pacer *rate.Limiter,
	m repository.Metrics,
	l *applogger.Logger,
) *usecase.RSIRefresher {
	return usecase.NewRSIRefresher(usecase.RefresherConfig{
		Instruments:  instruments,
		Timeframes:   tfs,
		Period:       cfg.RSI.Period,
		Workers:      cfg.RSI.Workers,
		UpstreamRPS:  cfg.RSI.UpstreamRPS,
		CycleTimeout: cfg.RSI.CycleTimeout,
		Limiter:      pacer,
	}, market.Candles, qs, store, pubs, m, l)
}

// ProvideScheduler creates the periodic trigger.
func ProvideScheduler(cfg *config.Config, r *usecase.RSIRefresher, l *applogger.Logger) *usecase.Scheduler {
	return usecase.NewScheduler(r, cfg.RSI.RefreshInterval, l)
}

// ProvideBoardUseCase creates the read side with an in-process render cache.
func ProvideBoardUseCase(store repository.SnapshotStore, layout models.BoardLayout, r *usecase.RSIRefresher) *usecase.BoardUseCase {
	return usecase.NewBoardUseCase(store, layout, icache.NewTTLCache(), r)
}

// ProvideRSIHandler creates the Echo handler.
func ProvideRSIHandler(l *applogger.Logger, board *usecase.BoardUseCase) *api.RSIEchoHandler {
	return api.NewRSIEchoHandler(l, board)
}

// ProvideHTTPLimiter creates the per-IP limiter for /api, nil when disabled.
func ProvideHTTPLimiter(cfg *config.Config) *ratelimit.Limiter {
	if cfg.Server.RateLimit.RPS <= 0 {
		return nil
	}
	return ratelimit.New(cfg.Server.RateLimit.RPS, cfg.Server.RateLimit.Burst, 10*time.Minute)
}

// ProvideHTTPServer creates the Echo server.
func ProvideHTTPServer(cfg *config.Config, h *api.RSIEchoHandler, limiter *ratelimit.Limiter, l *applogger.Logger) *xhttp.Server {
	opts := []xhttp.ServerOption{
		xhttp.WithHost(cfg.Server.Host),
		xhttp.WithPort(cfg.Server.Port),
		xhttp.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout, cfg.Server.ShutdownTimeout),
		xhttp.WithCORSOrigins(cfg.Server.CORSOrigins),
		xhttp.WithStaticDir(cfg.Server.StaticDir),
	}
	if cfg.Metrics.Enabled {
		opts = append(opts, xhttp.WithMetricsPath(cfg.Metrics.Path))
	} else {
		opts = append(opts, xhttp.WithMetricsPath(""))
	}
	if limiter != nil {
		opts = append(opts, xhttp.WithRateLimit("/api", limiter))
	}
	return xhttp.NewServer(h, l, opts...)
}

// ProvideApp assembles the application.
func ProvideApp(
	cfg *config.Config,
	l *applogger.Logger,
	httpServer *xhttp.Server,
	scheduler *usecase.Scheduler,
	refresher *usecase.RSIRefresher,
	consumer *pkgkafka.Consumer,
	ticks *usecase.TickHandler,
	stream *finnhub.Client,
	limiter *ratelimit.Limiter,
) *server.App {
	app := server.New(cfg, l, httpServer, scheduler, refresher)
	if consumer != nil && ticks != nil {
		app.SetConsumer(consumer, ticks)
	}
	if stream != nil {
		app.SetStream(stream)
	}
	if limiter != nil {
		app.SetLimiter(limiter)
	}
	return app
}
