package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/Rrens/oneonone-bot/internal/api"
	"github.com/Rrens/oneonone-bot/internal/botframework"
	"github.com/Rrens/oneonone-bot/internal/config"
	"github.com/Rrens/oneonone-bot/internal/domain"
	"github.com/Rrens/oneonone-bot/internal/logging"
	"github.com/Rrens/oneonone-bot/internal/mail"
	"github.com/Rrens/oneonone-bot/internal/mail/graph"
	"github.com/Rrens/oneonone-bot/internal/repository"
	"github.com/Rrens/oneonone-bot/internal/repository/redis"
	"github.com/Rrens/oneonone-bot/internal/repository/sqldb"
	"github.com/Rrens/oneonone-bot/internal/security"
	"github.com/Rrens/oneonone-bot/internal/service"
)

func main() {
	// Load .env file - try multiple locations
	for _, p := range []string{".env", "../.env", "../../.env"} {
		if err := godotenv.Load(p); err == nil {
			break
		}
	}

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logCloser, err := logging.Setup(cfg.Logging)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to set up logging")
	}
	defer logCloser.Close()

	log.Info().
		Str("host", cfg.Server.Host).
		Int("port", cfg.Server.Port).
		Str("database", cfg.Database.Driver).
		Str("sessions", cfg.Session.Backend).
		Msg("Starting 1:1 survey bot")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Report store
	store, err := repository.OpenReportStore(ctx, cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open report store")
	}
	defer store.Close()

	// Redis
	var redisClient *redis.Client
	if cfg.Redis.Enabled {
		redisClient, err = redis.NewClient(ctx, cfg.Redis)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to Redis")
		}
		defer redisClient.Close()
	}

	sessions, err := repository.NewSessionStore(cfg.Session, redisClient)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create session store")
	}

	connector := botframework.NewClient(ctx, cfg.Bot)

	svc := service.NewConversationService(
		sessions,
		store,
		connector,
		newNotifier(ctx, cfg.Mail),
		cfg.Conversation.IOTimeout,
	)
	svc.SetCompletionBudget(cfg.Conversation.CompletionBudget())

	// Journal
	journal, closeJournal, err := repository.OpenJournal(ctx, cfg.Journal)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open report journal")
	}
	defer closeJournal()
	if journal != nil {
		svc.SetJournal(journal)
		// Entries younger than a completion may still be mid-save.
		minAge := cfg.Conversation.CompletionBudget() + cfg.Conversation.IOTimeout
		go replayJournal(ctx, journal, store, cfg.Journal, minAge)
	}

	deps := api.Dependencies{
		Store:        store,
		Conversation: svc,
		Replier:      connector,
	}
	if cfg.Bot.AuthEnabled() {
		deps.Validator = security.NewBotTokenValidator(cfg.Bot.OpenIDURL, cfg.Bot.AppID, nil)
	} else {
		log.Warn().Msg("MICROSOFT_APP_ID is empty, inbound activities are not authenticated")
	}
	if redisClient != nil {
		deps.Limiter = redis.NewRateLimiter(
			redisClient,
			cfg.Security.RateLimit.MessagesPerMinute,
			cfg.Security.RateLimit.Burst,
		)
	}

	// Create HTTP server
	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      api.NewRouter(cfg, deps),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start server in goroutine
	go func() {
		log.Info().Msgf("Server listening on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutting down server...")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server stopped")
}

func newNotifier(ctx context.Context, cfg config.MailConfig) domain.Notifier {
	if !cfg.Enabled {
		log.Info().Msg("Mail disabled")
		return mail.Discard{}
	}

	sender, err := graph.NewSender(ctx, cfg)
	if err != nil {
		log.Warn().Err(err).Msg("Graph mail is not configured, summaries will not be emailed")
		return mail.Discard{}
	}
	return sender
}

// replayJournal periodically pushes journalled reports the store did not accept
func replayJournal(ctx context.Context, journal *sqldb.Journal, store domain.ReportRepository, cfg config.JournalConfig, minAge time.Duration) {
	if cfg.ReplayInterval <= 0 {
		return
	}

	ticker := time.NewTicker(cfg.ReplayInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := journal.Replay(ctx, store, cfg.ReplayBatch, minAge)
			if err != nil {
				log.Warn().Err(err).Int("replayed", n).Msg("Journal replay stopped")
			} else if n > 0 {
				log.Info().Int("replayed", n).Msg("Journal replay finished")
			}
		}
	}
}
