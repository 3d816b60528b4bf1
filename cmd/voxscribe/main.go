// Command voxscribe is the main entry point for the voxscribe voice
// transcription bot.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"golang.org/x/sync/errgroup"

	"github.com/voxscribe/voxscribe/internal/capture"
	"github.com/voxscribe/voxscribe/internal/config"
	"github.com/voxscribe/voxscribe/internal/deliver"
	discordbot "github.com/voxscribe/voxscribe/internal/discord"
	"github.com/voxscribe/voxscribe/internal/discord/commands"
	"github.com/voxscribe/voxscribe/internal/guildstore"
	"github.com/voxscribe/voxscribe/internal/health"
	"github.com/voxscribe/voxscribe/internal/ingest"
	"github.com/voxscribe/voxscribe/internal/observe"
	"github.com/voxscribe/voxscribe/internal/pool"
	"github.com/voxscribe/voxscribe/pkg/stt/whisper"
)

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	flag.Parse()

	// ── Logger (level is hot-reloadable via the config watcher) ───────────────
	logLevel := new(slog.LevelVar)
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel})))

	// ── Load configuration ────────────────────────────────────────────────────
	watcher, err := config.NewWatcher(*configPath, func(old, new *config.Config) {
		d := config.Diff(old, new)
		if d.LogLevelChanged {
			logLevel.Set(d.NewLogLevel.Slog())
			slog.Info("log level changed", "level", d.NewLogLevel)
		}
		if d.LanguageChanged {
			slog.Warn("stt.language changed; restart to apply", "language", d.NewLanguage)
		}
	})
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "voxscribe: config file %q not found — copy configs/example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "voxscribe: %v\n", err)
		}
		return 1
	}
	defer watcher.Stop()
	cfg := watcher.Current()
	logLevel.Set(cfg.Server.LogLevel.Slog())

	slog.Info("voxscribe starting",
		"config", *configPath,
		"guild_id", cfg.Discord.GuildID,
		"log_level", cfg.Server.LogLevel,
	)

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Telemetry ─────────────────────────────────────────────────────────────
	otelShutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{ServiceName: "voxscribe"})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := otelShutdown(shutdownCtx); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()
	metrics := observe.DefaultMetrics()

	// ── Database (optional) ───────────────────────────────────────────────────
	var (
		dbpool        *pgxpool.Pool
		settingsStore *guildstore.Store
		ingestStore   *ingest.PostgresStore
	)
	if cfg.Database.DSN != "" {
		dbpool, err = pgxpool.New(ctx, cfg.Database.DSN)
		if err != nil {
			slog.Error("failed to create database pool", "err", err)
			return 1
		}
		defer dbpool.Close()

		settingsStore, err = guildstore.NewStore(ctx, dbpool)
		if err != nil {
			slog.Error("failed to initialise guild settings store", "err", err)
			return 1
		}
		ingestStore, err = ingest.NewPostgresStore(ctx, dbpool)
		if err != nil {
			slog.Error("failed to initialise ingest store", "err", err)
			return 1
		}
		slog.Info("database connected")
	}

	// ── Inference engine ──────────────────────────────────────────────────────
	language := cfg.STT.Language
	if language == "" {
		language = "en"
	}
	engine, err := whisper.New(cfg.STT.ModelPath, whisper.WithLanguage(language))
	if err != nil {
		slog.Error("failed to load whisper model", "model_path", cfg.STT.ModelPath, "err", err)
		return 1
	}
	defer engine.Close()

	// ── Worker pool ───────────────────────────────────────────────────────────
	workers := cfg.Pool.Workers
	if workers == 0 {
		workers = pool.DefaultWorkers()
	}
	workerPool := pool.New(workers)
	defer workerPool.Close()
	if err := observe.RegisterPoolObserver(otel.GetMeterProvider(), workerPool.Completed); err != nil {
		slog.Warn("failed to register pool metrics", "err", err)
	}
	slog.Info("inference pool started", "workers", workers)

	// ── Discord bot ───────────────────────────────────────────────────────────
	bot, err := discordbot.New(ctx, discordbot.Config{
		Token:          cfg.Discord.Token,
		GuildID:        cfg.Discord.GuildID,
		VoiceChannelID: cfg.Discord.VoiceChannelID,
		AdminRoleID:    cfg.Discord.AdminRoleID,
	}, settingsStore)
	if err != nil {
		slog.Error("failed to create Discord bot", "err", err)
		return 1
	}
	defer func() {
		if err := bot.Close(); err != nil {
			slog.Warn("discord bot close error", "err", err)
		}
	}()

	// ── Delivery sink ─────────────────────────────────────────────────────────
	var sink deliver.Sink
	if cfg.Discord.WebhookID != "" {
		sink, err = deliver.NewWebhookSink(bot.Session(), cfg.Discord.WebhookID, cfg.Discord.WebhookToken)
		if err != nil {
			slog.Error("failed to create webhook sink", "err", err)
			return 1
		}
	} else {
		sink = deliver.NewLogSink()
		slog.Warn("no webhook configured; transcripts go to the log only")
	}

	// ── Capture pipeline ──────────────────────────────────────────────────────
	captureCfg := capture.Config{
		Engine:   engine,
		Pool:     workerPool,
		Sink:     sink,
		Metrics:  metrics,
		Language: language,
	}
	if ingestStore != nil {
		captureCfg.Ingest = ingestStore
		captureCfg.Resolver = bot.Resolver(ingestStore)
	} else {
		captureCfg.Resolver = bot.Resolver(nil)
	}
	handler, err := capture.New(captureCfg)
	if err != nil {
		slog.Error("failed to create capture pipeline", "err", err)
		return 1
	}
	defer handler.Close()
	bot.Attach(handler)

	// ── Slash commands ────────────────────────────────────────────────────────
	var cmdSettings commands.SettingsStore
	if settingsStore != nil {
		cmdSettings = settingsStore
	}
	var cmdOptIn commands.OptInStore
	if ingestStore != nil {
		cmdOptIn = ingestStore
	}
	commands.NewTranscriptionCommands(
		bot.Permissions(),
		cfg.Discord.GuildID,
		cmdSettings,
		cmdOptIn,
		handler,
		func() int { return handler.Registry().Len() },
		workerPool.Completed,
	).Register(bot.Router())

	// ── Run ───────────────────────────────────────────────────────────────────
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return bot.Run(gctx)
	})

	if cfg.Server.MetricsAddr != "" {
		checkers := []health.Checker{
			{Name: "discord", Check: bot.Ready},
		}
		if dbpool != nil {
			checkers = append(checkers, health.Checker{Name: "database", Check: func(ctx context.Context) error {
				return dbpool.Ping(ctx)
			}})
		}

		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		health.New(checkers...).Register(mux)
		srv := &http.Server{Addr: cfg.Server.MetricsAddr, Handler: observe.Middleware(metrics)(mux)}

		g.Go(func() error {
			slog.Info("metrics endpoint listening", "addr", cfg.Server.MetricsAddr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("metrics server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	slog.Info("voxscribe ready — press Ctrl+C to shut down")

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("run error", "err", err)
		return 1
	}
	slog.Info("goodbye")
	return 0
}
