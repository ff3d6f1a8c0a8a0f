package cli

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/SOWMIYAN-S/bound-by-code-quiz-e1da3e57/internal/app"
	"github.com/SOWMIYAN-S/bound-by-code-quiz-e1da3e57/internal/config"
	"github.com/SOWMIYAN-S/bound-by-code-quiz-e1da3e57/internal/domain"
	"github.com/SOWMIYAN-S/bound-by-code-quiz-e1da3e57/internal/infra/memory"
	pgstore "github.com/SOWMIYAN-S/bound-by-code-quiz-e1da3e57/internal/infra/postgres"
	redisinfra "github.com/SOWMIYAN-S/bound-by-code-quiz-e1da3e57/internal/infra/redis"
	transport "github.com/SOWMIYAN-S/bound-by-code-quiz-e1da3e57/internal/transport/http"
)

const defaultTotalQuestions = 50

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the quiz certificate server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

// certResultStore is the full store surface the wiring needs; both the
// Postgres store and the in-memory store satisfy it.
type certResultStore interface {
	app.ResultStore
	app.CertificateStore
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg); err != nil {
			return err
		}
	}

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	totalQuestions := cfg.Quiz.TotalQuestions
	if totalQuestions <= 0 {
		totalQuestions = defaultTotalQuestions
	}
	scheme := domain.DefaultScheme
	if cfg.Certificate.Prefix != "" {
		scheme.Prefix = cfg.Certificate.Prefix
	}
	if cfg.Certificate.Digits > 0 {
		scheme.Digits = cfg.Certificate.Digits
	}
	leaderboardLimit := cfg.Leaderboard.Limit
	if leaderboardLimit <= 0 {
		leaderboardLimit = 100
	}

	var store certResultStore = memory.NewResultStore(totalQuestions)
	if cfg.Postgres.URL != "" {
		pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
		defer pool.Close()
		store = pgstore.NewResultStore(pool, totalQuestions)
	}

	var leaderboard app.LeaderboardSource = app.NewStoreLeaderboard(store, totalQuestions, leaderboardLimit)
	if cfg.Redis.Addr != "" {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		redisTTL := config.TTLDuration(cfg.Redis.TTL, 10*time.Minute)
		leaderboard = redisinfra.NewLeaderboard(redisClient, store, totalQuestions, leaderboardLimit, redisTTL)
	}

	broadcaster := app.NewLeaderboardBroadcaster()
	results := app.NewResultService(store, leaderboard, broadcaster, totalQuestions)
	certificates := app.NewCertificateService(store, scheme, totalQuestions)

	handler := transport.NewHandler(results, certificates, cfg.Admin.Password)
	wsHandler := transport.NewWSHandler(results, broadcaster)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	handler.Register(mux)
	mux.HandleFunc("/ws/leaderboard", wsHandler.ServeWS)

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.Printf("starting codequest service on :%s", finalPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("failed to start server: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		log.Println("shutting down server...")
	case <-ctx.Done():
		log.Println("context canceled, shutting down server...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
