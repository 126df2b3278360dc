package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/kickzcaviar/seller-registration/api"
	"github.com/kickzcaviar/seller-registration/config"
	"github.com/kickzcaviar/seller-registration/discord"
	"github.com/kickzcaviar/seller-registration/dynamo"
	"github.com/kickzcaviar/seller-registration/metrics"
	"github.com/kickzcaviar/seller-registration/onboarding"
	"github.com/kickzcaviar/seller-registration/telemetry"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "seller-registration: %s\n", err)
		os.Exit(1)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger := newLogger(cfg.Environment)
	slog.SetDefault(logger)

	shutdownTracing, err := telemetry.SetupTracing(ctx, telemetry.TracingConfig{
		ServiceName: "seller-registration",
		Environment: cfg.Environment.String(),
		Endpoint:    cfg.OtelEndpoint,
		Enabled:     cfg.OtelEnabled,
	})
	if err != nil {
		return err
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			logger.Warn("failed to flush traces", slog.String("error", err.Error()))
		}
	}()

	awsCfg, err := loadAWSConfig(ctx)
	if err != nil {
		return err
	}

	if err := cfg.ResolveSecrets(ctx, newSSMClient(awsCfg)); err != nil {
		return err
	}

	db := dynamo.NewDB(newDynamoClient(awsCfg, cfg.DynamoEndpoint), cfg.SellersTable, cfg.SellerIDPrefix)

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	session, err := discordgo.New("Bot " + cfg.DiscordToken)
	if err != nil {
		return fmt.Errorf("failed to create discord session: %w", err)
	}
	session.Identify.Intents = discordgo.IntentsGuilds

	notifier := discord.NewDMNotifier(session)
	sessions := onboarding.NewSessionStore(cfg.SessionIdleTTL, m)

	flow := onboarding.NewFlow(onboarding.FlowConfig{
		Sessions:  sessions,
		Repo:      db,
		Notifier:  notifier,
		Forwarder: createForwarder(logger, cfg),
		Consent:   onboarding.ConsentPolicy{Version: cfg.ConsentVersion},
		Logger:    logger,
		Metrics:   m,
	})

	session.AddHandler(func(s *discordgo.Session, r *discordgo.Ready) {
		logger.Info("discord session ready", slog.String("user", r.User.Username))
	})

	if err := session.Open(); err != nil {
		return fmt.Errorf("failed to open discord session: %w", err)
	}

	appID := cfg.DiscordAppID
	if appID == "" && session.State != nil && session.State.User != nil {
		appID = session.State.User.ID
	}

	bot := discord.NewBot(session, flow, appID, cfg.DiscordGuildID, logger)
	session.AddHandler(bot.OnInteractionCreate)
	if err := bot.RegisterCommands(ctx); err != nil {
		_ = session.Close()
		return err
	}

	httpAPI := api.NewAPI(logger, api.Config{
		Env:          cfg.Environment,
		Notifier:     notifier,
		Users:        notifier,
		InviteURL:    cfg.DiscordInviteURL,
		NotifySecret: cfg.NotifySecret,
		Gatherer:     reg,
	})
	server := &http.Server{
		Handler:           httpAPI.Handler(),
		Addr:              cfg.Addr(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("http server listening", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		sessions.RunJanitor(ctx, cfg.SessionSweepInterval, logger)
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		logger.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		err := server.Shutdown(shutdownCtx)
		// Stop new interactions before draining webhook forwards.
		if closeErr := session.Close(); closeErr != nil {
			logger.Warn("failed to close discord session", slog.String("error", closeErr.Error()))
		}
		flow.Wait()
		return err
	})

	return g.Wait()
}

func newLogger(env config.Environment) *slog.Logger {
	if env == config.PROD {
		return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
}
