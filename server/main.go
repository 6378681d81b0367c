package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "crmboard",
		Short:        "Workflow board service backing the task and lead kanbans",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve()
		},
	}
	cmd.Flags().String("addr", ":8080", "listen address")
	cmd.Flags().String("driver", "pgx", "database driver: pgx or sqlite")
	cmd.Flags().String("dsn", "postgres://postgres:postgres@db:5432/crmboard?sslmode=disable", "database DSN (file path for sqlite)")
	cmd.Flags().String("log-level", "info", "log level: debug, info, warn, error")

	viper.SetEnvPrefix("CRMBOARD")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
	_ = viper.BindPFlags(cmd.Flags())
	return cmd
}

func logLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func serve() error {
	log := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel(viper.GetString("log-level"))}))
	addr := viper.GetString("addr")
	driver := viper.GetString("driver")
	dsn := viper.GetString("dsn")

	store, err := OpenStore(driver, dsn)
	if err != nil {
		log.Error("db open", "driver", driver, "err", err)
		return err
	}
	defer store.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := store.db.PingContext(ctx); err != nil {
		log.Error("db ping", "err", err)
		return err
	}
	if err := store.Migrate(context.Background()); err != nil {
		log.Error("migrate", "err", err)
		return err
	}

	bus := NewEventBus()
	effects := NewDispatcher(store, log)
	engine := NewEngine(store, effects, log)

	mux := http.NewServeMux()
	api := newAPI(store, engine, effects, bus, log)
	api.routes(mux)

	srv := &http.Server{Addr: addr, Handler: withLogging(log, mux),
		ReadTimeout: 15 * time.Second, ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout: 30 * time.Second, IdleTimeout: 120 * time.Second}

	go func() {
		log.Info("listening", "addr", addr, "driver", driver)
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) && err != nil {
			log.Error("listen", "err", err)
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt)
	<-sig
	log.Info("shutting down")
	ctxSh, cancelSh := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelSh()
	if err := srv.Shutdown(ctxSh); err != nil {
		log.Error("shutdown", "err", err)
	}
	// Drain in-flight transition effects before the process exits.
	effects.Wait()
	return nil
}
