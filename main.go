package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	alarmapp "linesim/internal/alarms/application"
	alarms "linesim/internal/alarms/domain"
	"linesim/internal/alarms/infrastructure/csvexport"
	alarmrepo "linesim/internal/alarms/infrastructure/postgres"
	"linesim/internal/alarms/infrastructure/xlsxexport"
	"linesim/internal/alarms/notify"
	apihttp "linesim/internal/api/http"
	"linesim/internal/auth"
	"linesim/internal/config"
	"linesim/internal/eventing"
	"linesim/internal/observability/logging"
	"linesim/internal/observability/metrics"
	simapp "linesim/internal/simulation/application"
	siminterfaces "linesim/internal/simulation/interfaces"
	"linesim/internal/tags/catalog"
	tags "linesim/internal/tags/domain"
	"linesim/internal/tags/infrastructure/memory"
	tagmqtt "linesim/internal/tags/infrastructure/mqtt"
	tagredis "linesim/internal/tags/infrastructure/redis"
	tagshttp "linesim/internal/tags/interfaces/http"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}
	if len(os.Args) > 1 && os.Args[1] == "token" {
		if err := runToken(os.Args[2:], cfg.Auth.JWTSecret, os.Stdout); err != nil {
			fmt.Fprintf(os.Stderr, "%v\n", err)
			os.Exit(2)
		}
		return
	}

	logger, err := logging.NewLogger(cfg.Log.Level, cfg.Log.Format, "linesim")
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger error: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("linesim stopped with error", zap.Error(err))
	}
}

func run(cfg config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	metrics.Init()

	db, err := openHistorian(cfg.Alarms.DatabaseURL)
	if err != nil {
		return err
	}
	if db != nil {
		defer db.Close()
	}

	index, err := loadHistory(ctx, cfg.Alarms, db, logger.Named("alarms"))
	if err != nil {
		return err
	}

	store := memory.NewStore(memory.WithLogger(logger.Named("tags")))
	store.Seed(catalog.Line())
	noiseTags, err := seedDocument(store, cfg.Tags.DocumentPath, logger.Named("catalog"))
	if err != nil {
		return err
	}

	broker := tagshttp.NewSSEBroker()
	store.AddSink(broker)
	attachMQTT(store, cfg.MQTT, logger.Named("mqtt"))
	attachRedis(ctx, store, cfg.Redis, logger.Named("redis"))

	bus := eventing.NewInMemoryBus()
	forwarder, err := siminterfaces.NewStreamForwarder(broker)
	if err != nil {
		return err
	}
	forwarder.Register(bus)
	notifier, err := buildNotifier(cfg.Notify, logger.Named("notify"))
	if err != nil {
		return err
	}
	if notifier != nil {
		notifier.Register(bus)
	}

	var history simapp.History
	if index != nil {
		history = index
	}
	opts := []simapp.Option{
		simapp.WithEvents(bus),
		simapp.WithLogger(logger.Named("simulation")),
		simapp.WithNoiseTags(noiseTags),
	}
	if cfg.Simulation.Seed != 0 {
		opts = append(opts, simapp.WithSeed(cfg.Simulation.Seed))
	}
	engine, err := simapp.NewEngine(engineConfig(cfg.Simulation), store, history, opts...)
	if err != nil {
		return err
	}

	handler, err := buildHandler(cfg, logger, store, broker, index, engine)
	if err != nil {
		return err
	}
	server := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return engine.Run(gctx)
	})
	if notifier != nil {
		g.Go(func() error {
			return notifier.Run(gctx)
		})
	}
	g.Go(func() error {
		logger.Info("http server listening", zap.String("addr", cfg.HTTP.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		// Stream clients hold their connections until the broker lets go.
		_ = broker.Close()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	err = g.Wait()
	if closeErr := store.Close(); closeErr != nil {
		logger.Warn("tag sinks close error", zap.Error(closeErr))
	}
	logger.Info("linesim stopped")
	return err
}

func buildHandler(cfg config.Config, logger *zap.Logger, store *memory.Store, broker *tagshttp.SSEBroker, index *alarmapp.Index, engine *simapp.Engine) (http.Handler, error) {
	tagsHandler, err := tagshttp.NewHandler(store, store, logger.Named("http"))
	if err != nil {
		return nil, err
	}
	scenariosHandler, err := apihttp.NewScenariosHandler(engine.Runner(), logger.Named("http"))
	if err != nil {
		return nil, err
	}
	var patterns apihttp.PatternIndex
	if index != nil {
		patterns = index
	}
	patternsHandler := apihttp.NewPatternsHandler(patterns)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/healthz", apihttp.NewHealthHandler(engine))
	mux.Handle("/api/v1/tags", tagsHandler)
	mux.Handle("/api/v1/tags/", tagsHandler)
	mux.Handle("/api/v1/tags/stream", tagshttp.NewStreamHandler(broker))
	mux.Handle("/api/v1/patterns", patternsHandler)
	mux.Handle("/api/v1/patterns/", patternsHandler)
	mux.Handle("/api/v1/exports/alarms.csv", apihttp.NewExportAlarmsCSVHandler(patterns))
	mux.Handle("/api/v1/alarms/active", apihttp.NewActiveAlarmsHandler(engine))
	mux.Handle("/api/v1/scenarios", scenariosHandler)
	mux.Handle("/api/v1/scenarios/", scenariosHandler)

	authMiddleware := auth.NewMiddleware([]byte(cfg.Auth.JWTSecret), auth.NewDefaultPolicy([]string{"/healthz", "/metrics"}, nil))
	if !authMiddleware.Enabled() {
		logger.Warn("AUTH_JWT_SECRET not set, API is open")
	}
	return loggingMiddleware(authMiddleware.Wrap(mux), logger.Named("http")), nil
}

// openHistorian returns nil without a database URL.
func openHistorian(dsn string) (*sql.DB, error) {
	if dsn == "" {
		return nil, nil
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("historian open: %w", err)
	}
	return db, nil
}

// loadHistory tries every configured export, then the historian. A missing
// history is not fatal: the engine runs without replay.
func loadHistory(ctx context.Context, cfg config.AlarmsConfig, db *sql.DB, logger *zap.Logger) (*alarmapp.Index, error) {
	policy, err := alarmapp.ParseTimestampPolicy(cfg.TimestampPolicy)
	if err != nil {
		return nil, err
	}
	parser := alarmapp.NewParser(logger, alarmapp.WithTimestampPolicy(policy))

	var sources []alarmapp.NamedSource
	for _, path := range cfg.Paths {
		source, err := exportSource(path, cfg)
		if err != nil {
			logger.Warn("alarm export skipped", zap.String("path", path), zap.Error(err))
			continue
		}
		sources = append(sources, alarmapp.NamedSource{Name: path, Source: source})
	}

	if db != nil {
		var historyOpts []alarmrepo.HistoryOption
		if cfg.HistoryTable != "" {
			historyOpts = append(historyOpts, alarmrepo.WithHistoryTable(cfg.HistoryTable))
		}
		historian, err := alarmrepo.NewHistorySource(db, historyOpts...)
		if err != nil {
			return nil, err
		}
		sources = append(sources, alarmapp.NamedSource{Name: "historian", Source: historian})
	}

	loader, err := alarmapp.NewLoader(parser, logger, sources...)
	if err != nil {
		return nil, err
	}
	index, _, err := loader.Load(ctx)
	if err != nil {
		if errors.Is(err, alarms.ErrSourceUnavailable) {
			logger.Warn("no alarm history available, replay disabled", zap.Error(err))
			return nil, nil
		}
		return nil, err
	}
	return index, nil
}

// buildNotifier returns nil when no webhook is configured.
func buildNotifier(cfg config.NotifyConfig, logger *zap.Logger) (*notify.Notifier, error) {
	if len(cfg.WebhookURLs) == 0 {
		return nil, nil
	}
	channels := make([]notify.Channel, 0, len(cfg.WebhookURLs))
	for _, url := range cfg.WebhookURLs {
		channel, err := notify.NewWebhookChannel(url)
		if err != nil {
			return nil, fmt.Errorf("alarm webhook: %w", err)
		}
		channels = append(channels, channel)
	}
	var template *notify.Template
	if cfg.TemplatePath != "" {
		data, err := os.ReadFile(cfg.TemplatePath)
		if err != nil {
			return nil, fmt.Errorf("alarm template: %w", err)
		}
		template, err = notify.NewTemplate(string(data))
		if err != nil {
			return nil, fmt.Errorf("alarm template: %w", err)
		}
	}
	severities := make([]alarms.Severity, 0, len(cfg.Severities))
	for _, value := range cfg.Severities {
		severities = append(severities, alarms.Severity(value))
	}
	notifier, err := notify.NewNotifier(notify.NewMultiChannel(channels...), template,
		notify.WithLogger(logger),
		notify.WithSeverities(severities...),
		notify.WithScenarioNotifications(cfg.Scenarios),
		notify.WithCooldown(cfg.Cooldown),
		notify.WithDedupeWindow(cfg.DedupeWindow),
		notify.WithEscalation(cfg.Escalation),
	)
	if err != nil {
		return nil, err
	}
	logger.Info("alarm notifications enabled", zap.Int("webhooks", len(channels)))
	return notifier, nil
}

func exportSource(path string, cfg config.AlarmsConfig) (alarms.RowSource, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx", ".xlsm":
		opts := []xlsxexport.Option{xlsxexport.WithColumns(cfg.Columns), xlsxexport.WithHeader(cfg.Header)}
		if cfg.Sheet != "" {
			opts = append(opts, xlsxexport.WithSheet(cfg.Sheet))
		}
		return xlsxexport.NewSource(path, opts...)
	case ".csv":
		return csvexport.NewSource(path, csvexport.WithColumns(cfg.Columns), csvexport.WithHeader(cfg.Header))
	default:
		return nil, fmt.Errorf("unsupported alarm export %q", filepath.Ext(path))
	}
}

// seedDocument loads an exported tag document. Paths the built-in line
// already defines stay under simulator control; the rest get noise.
func seedDocument(store *memory.Store, path string, logger *zap.Logger) ([]tags.Definition, error) {
	if path == "" {
		return nil, nil
	}
	defs, err := catalog.LoadFile(path, logger)
	if err != nil {
		return nil, err
	}
	owned := make(map[string]struct{})
	for _, def := range catalog.Line() {
		owned[def.Path] = struct{}{}
	}
	noise := make([]tags.Definition, 0, len(defs))
	for _, def := range defs {
		if _, ok := owned[def.Path]; ok {
			continue
		}
		noise = append(noise, def)
	}
	added := store.Seed(noise)
	logger.Info("tag document loaded", zap.String("path", path), zap.Int("tags", len(defs)), zap.Int("added", added))
	return noise, nil
}

func attachMQTT(store *memory.Store, cfg config.MQTTConfig, logger *zap.Logger) {
	if cfg.Broker == "" {
		return
	}
	client, err := tagmqtt.Dial(tagmqtt.Config{
		Broker:   cfg.Broker,
		ClientID: cfg.ClientID,
		Username: cfg.Username,
		Password: cfg.Password,
		Timeout:  cfg.Timeout,
	}, logger)
	if err != nil {
		logger.Warn("mqtt mirror disabled", zap.Error(err))
		return
	}
	sink, err := tagmqtt.NewSink(client, cfg.TopicPrefix, tagmqtt.WithQoS(cfg.QoS), tagmqtt.WithRetained(cfg.Retained))
	if err != nil {
		_ = client.Close()
		logger.Warn("mqtt mirror disabled", zap.Error(err))
		return
	}
	store.AddSink(sink)
}

func attachRedis(ctx context.Context, store *memory.Store, cfg config.RedisConfig, logger *zap.Logger) {
	if cfg.Addr == "" {
		return
	}
	client := tagredis.NewClient(tagredis.Config{Addr: cfg.Addr, Password: cfg.Password, DB: cfg.DB, Key: cfg.Key})
	sink, err := tagredis.NewSink(client, cfg.Key)
	if err != nil {
		_ = client.Close()
		logger.Warn("redis mirror disabled", zap.Error(err))
		return
	}
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := sink.Ping(pingCtx); err != nil {
		_ = sink.Close()
		logger.Warn("redis mirror disabled", zap.String("addr", cfg.Addr), zap.Error(err))
		return
	}
	store.AddSink(sink)
}

func engineConfig(cfg config.SimulationConfig) simapp.Config {
	return simapp.Config{
		ProductionInterval:  cfg.ProductionInterval,
		ReplayInterval:      cfg.ReplayInterval,
		MetricsInterval:     cfg.MetricsInterval,
		NoiseInterval:       cfg.NoiseInterval,
		AlternateInterval:   cfg.AlternateInterval,
		BaseRate:            cfg.BaseRate,
		SequenceProbability: cfg.SequenceProbability,
		SequenceMembers:     cfg.SequenceMembers,
		SequenceMemberDelay: cfg.SequenceMemberDelay,
		MaxActiveAlarms:     cfg.MaxActiveAlarms,
		ScenarioStepDelay:   cfg.ScenarioStepDelay,
		ScenarioDwell:       cfg.ScenarioDwell,
		AlternatorEnabled:   cfg.AlternatorEnabled,
	}
}

func loggingMiddleware(next http.Handler, logger *zap.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)
		logger.Debug("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", sw.status),
			zap.Duration("elapsed", time.Since(start)),
		)
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

// Flush keeps the SSE stream working through the middleware.
func (w *statusWriter) Flush() {
	if flusher, ok := w.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}
