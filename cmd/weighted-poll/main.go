package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/oklog/run"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/tarantool/go-tarantool/v2"

	"github.com/Xausdorf/weighted-poll/internal/config"
	"github.com/Xausdorf/weighted-poll/internal/gateway/bot"
	"github.com/Xausdorf/weighted-poll/internal/gateway/httpapi"
	applog "github.com/Xausdorf/weighted-poll/internal/logging"
	"github.com/Xausdorf/weighted-poll/internal/metrics"
	"github.com/Xausdorf/weighted-poll/internal/notifier"
	"github.com/Xausdorf/weighted-poll/internal/repository/ttadapter"
	"github.com/Xausdorf/weighted-poll/internal/usecase"
	"github.com/Xausdorf/weighted-poll/internal/worker"
)

const (
	ttReconnectSeconds = 3
	ttMaxRecconects    = 5

	shutdownTimeout = 5 * time.Second
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}

	rootCmd := &cobra.Command{
		Use:   "weighted-poll",
		Short: "Run the weighted poll service",
		RunE: func(c *cobra.Command, args []string) error {
			if err := cfg.Validate(); err != nil {
				return err
			}
			return runService(cfg)
		},
		SilenceUsage: true,
	}
	bindFlags(rootCmd.Flags(), &cfg)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// bindFlags lets command line flags override values loaded from the environment.
func bindFlags(fs *pflag.FlagSet, cfg *config.Config) {
	fs.StringVar(&cfg.HTTPAddress, "http-address", cfg.HTTPAddress, "address of the HTTP API")
	fs.StringVar(&cfg.HTTPAccessLog, "http-access-log", cfg.HTTPAccessLog, "access log file of the HTTP API, disabled when empty")
	fs.IntVar(&cfg.MaxPolls, "max-polls", cfg.MaxPolls, "maximum number of polls kept at once")
	fs.Int64Var(&cfg.ExpireGraceSeconds, "expire-grace", cfg.ExpireGraceSeconds, "seconds a closed poll is kept before removal")
	fs.DurationVar(&cfg.ExpireInterval, "expire-interval", cfg.ExpireInterval, "how often expired polls are removed")
	fs.DurationVar(&cfg.SyncInterval, "sync-interval", cfg.SyncInterval, "how often polls are written to tarantool")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level, {crit, error, warn, info, debug}")
	fs.StringVar(&cfg.LogFormat, "log-format", cfg.LogFormat, "log format, {terminal, json}")
	fs.StringVar(&cfg.LogOutput, "log-output", cfg.LogOutput, "log output file, stdout when empty")
	fs.StringVar(&cfg.Tarantool.Address, "tarantool", cfg.Tarantool.Address, "tarantool address, persistence is disabled when empty")
	fs.StringVar(&cfg.Tarantool.User, "tarantool-user", cfg.Tarantool.User, "tarantool user")
	fs.StringVar(&cfg.RabbitMQ.URL, "rabbitmq", cfg.RabbitMQ.URL, "rabbitmq url, events are not published when empty")
	fs.StringVar(&cfg.RabbitMQ.Queue, "rabbitmq-queue", cfg.RabbitMQ.Queue, "rabbitmq queue of poll events")
	fs.StringVar(&cfg.Mattermost.Server, "mattermost", cfg.Mattermost.Server, "mattermost server, the bot is disabled when empty")
	fs.StringVar(&cfg.Mattermost.UserName, "mattermost-user", cfg.Mattermost.UserName, "mattermost user of the bot")
	fs.StringVar(&cfg.Mattermost.TeamName, "mattermost-team", cfg.Mattermost.TeamName, "mattermost team of the bot")
}

func runService(cfg config.Config) error {
	var closers []func()
	defer func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}()

	log, closeLog, err := applog.New(cfg.LogLevel, cfg.LogFormat, cfg.LogOutput)
	if err != nil {
		return err
	}
	closers = append(closers, func() { closeLog() })

	// signals during startup abort the connection retries
	startCtx, stopStart := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stopStart()

	deps := usecase.Dependencies{
		Metrics: metrics.PromStoreMetrics(),
		Logger:  log,
	}

	if cfg.RabbitMQ.URL != "" {
		conn, err := notifier.Connect(startCtx, cfg.RabbitMQ.URL, log)
		if err != nil {
			log.Crit("connection to rabbitmq refused", "err", err)
			return err
		}
		closers = append(closers, func() { conn.Close() })

		publisher, err := notifier.NewAmqpPublisher(conn, cfg.RabbitMQ.Queue)
		if err != nil {
			log.Crit("failed to open rabbitmq channel", "err", err)
			return err
		}
		closers = append(closers, func() { publisher.Close() })
		deps.Events = publisher
		log.Info("publishing poll events", "queue", cfg.RabbitMQ.Queue)
	}

	store := usecase.NewPollStore(cfg.MaxPolls, deps)
	log.Info("poll store ready", "max_polls", store.MaxPolls())

	var g run.Group

	if cfg.Tarantool.Address != "" {
		conn, err := connectTarantool(startCtx, cfg.Tarantool)
		if err != nil {
			log.Crit("connection to tarantool refused", "err", err)
			return err
		}
		closers = append(closers, func() { conn.Close() })
		log.Info("succesfully connected to tarantool", "address", cfg.Tarantool.Address)

		repo := ttadapter.NewPollRepository(conn)
		polls, err := repo.LoadAll(startCtx)
		if err != nil {
			log.Crit("failed to load polls", "err", err)
			return err
		}
		if err := store.Restore(polls); err != nil {
			log.Crit("failed to restore polls", "err", err, "polls", len(polls))
			return err
		}
		log.Info("polls restored", "polls", len(polls))

		syncer := worker.NewSyncer(store, repo, cfg.SyncInterval, log)
		g.Add(syncer.Run, func(error) {
			syncer.Stop()
		})
	}

	{
		expirer := worker.NewExpirer(store, cfg.ExpireGraceSeconds, cfg.ExpireInterval, log)
		g.Add(expirer.Run, func(error) {
			expirer.Stop()
		})
	}
	{
		var accessLog io.Writer
		if cfg.HTTPAccessLog != "" {
			f, err := os.OpenFile(cfg.HTTPAccessLog, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
			if err != nil {
				log.Crit("failed to open access log", "err", err)
				return err
			}
			closers = append(closers, func() { f.Close() })
			accessLog = f
		}

		handler := httpapi.NewHandler(store, metrics.PromAPIMetrics(), log)
		server := &http.Server{
			Addr:              cfg.HTTPAddress,
			Handler:           handler.HTTPHandler(accessLog),
			ReadHeaderTimeout: 5 * time.Second,
		}
		g.Add(func() error {
			log.Info("http api listening", "address", cfg.HTTPAddress)
			if err := server.ListenAndServe(); err != http.ErrServerClosed {
				return err
			}
			return nil
		}, func(error) {
			ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := server.Shutdown(ctx); err != nil {
				log.Error("failed to shut down http api", "err", err)
			}
		})
	}
	if cfg.Mattermost.Server != "" {
		pollingBot, err := bot.NewPollingBot(cfg.Mattermost, store, log)
		if err != nil {
			log.Crit("failed to start mattermost bot", "err", err)
			return err
		}
		ctx, cancel := context.WithCancel(context.Background())
		g.Add(func() error {
			return pollingBot.Listen(ctx)
		}, func(error) {
			cancel()
			pollingBot.Close()
		})
	}
	stopStart()
	{
		cancel := make(chan struct{})
		g.Add(func() error {
			return interrupt(cancel)
		}, func(error) {
			close(cancel)
		})
	}

	err = g.Run()
	log.Info("shutting down", "reason", err)
	return exitError(err)
}

func connectTarantool(ctx context.Context, cfg config.TarantoolConfig) (*tarantool.Connection, error) {
	dialer := tarantool.NetDialer{
		Address:  cfg.Address,
		User:     cfg.User,
		Password: cfg.Password,
	}
	opts := tarantool.Opts{
		Timeout:       time.Second,
		Reconnect:     ttReconnectSeconds * time.Second,
		MaxReconnects: ttMaxRecconects,
	}

	return tarantool.Connect(ctx, dialer, opts)
}
