package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/common-nighthawk/go-figure"
	"github.com/jrsteele09/fleet-console/internal/config"
	"github.com/jrsteele09/fleet-console/metrics"
	"github.com/jrsteele09/fleet-console/server"
	"github.com/jrsteele09/fleet-console/session"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	flag "github.com/spf13/pflag"
)

const sweepInterval = time.Minute

func main() {
	port := flag.String("port", "", "listen address, e.g. :8080 (overrides PORT)")
	apiURL := flag.String("api-url", "", "fleet API base URL (overrides API_URL)")
	envFile := flag.String("env-file", ".env", "dotenv file to load")
	flag.Parse()

	setEnvIf("PORT", *port)
	setEnvIf("API_URL", *apiURL)

	for {
		if err := run(*envFile); err != nil {
			log.Fatal().Err(err).Msg("Error running server")
			time.Sleep(1 * time.Second)
		} else {
			break
		}
	}
	log.Info().Msg("Server stopped")
}

func run(envFile string) (returnError error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Bytes("stack", debug.Stack()).Msg("Recovered from panic")
			returnError = errors.New("panic recovered")
		}
	}()

	c, err := config.New(envFile)
	if err != nil {
		return fmt.Errorf("config.New: %w", err)
	}
	setupLogging(c)
	displayAppname(c.GetAppName())

	repo, closeRepo, err := sessionRepo(c)
	if err != nil {
		return err
	}
	defer closeRepo()

	var opts []server.Option
	var m *metrics.Metrics
	if c.GetMetricsEnabled() {
		reg := prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		m = metrics.New(reg)
		opts = append(opts, server.WithMetrics(m, reg))
	}

	consoles := server.NewConsoles(server.ConsoleConfig{
		APIURL:      c.GetAPIURL(),
		Timeout:     c.GetAPITimeout(),
		RefreshPath: c.GetRefreshPath(),
		Repo:        repo,
		IdleTimeout: c.GetConsoleIdleTimeout(),
		Metrics:     m,
	})
	srv := server.New(c, consoles, opts...)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go srv.SweepConsoles(ctx, sweepInterval)

	httpServer := &http.Server{Addr: c.GetPort(), Handler: srv, ReadHeaderTimeout: 10 * time.Second}
	errCh := make(chan error, 1)
	go func() { errCh <- listenAndServe(httpServer) }()

	select {
	case err := <-errCh:
		return err
	case <-waitForStopSignal():
	}
	return shutdown(httpServer)
}

// sessionRepo builds the store that persists console sessions.
func sessionRepo(c config.Config) (session.Repo, func(), error) {
	noop := func() {}

	switch c.GetSessionStore() {
	case config.SessionStoreFile:
		folder := filepath.Join(c.GetDataFolder(), "sessions")
		repo, err := session.NewFileRepo(folder)
		if err != nil {
			return nil, noop, fmt.Errorf("session.NewFileRepo: %w", err)
		}
		log.Info().Str("folder", folder).Msg("Persisting sessions to files")
		return repo, noop, nil

	case config.SessionStoreRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     c.GetRedisAddr(),
			Password: c.GetRedisPassword(),
			DB:       c.GetRedisDB(),
		})
		repo := session.NewRedisRepo(client, "", c.GetConsoleIdleTimeout())
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := repo.Ping(ctx); err != nil {
			_ = client.Close()
			return nil, noop, fmt.Errorf("redis ping %s: %w", c.GetRedisAddr(), err)
		}
		log.Info().Str("addr", c.GetRedisAddr()).Msg("Persisting sessions to redis")
		return repo, func() { _ = client.Close() }, nil
	}

	log.Info().Msg("Sessions are kept in memory")
	return session.NewInMemoryRepo(), noop, nil
}

func setupLogging(c config.Config) {
	level, err := zerolog.ParseLevel(c.GetLogLevel())
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	if c.GetEnv() == "DEV" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	}
}

func setEnvIf(key, value string) {
	if value != "" {
		_ = os.Setenv(key, value)
	}
}

func listenAndServe(server *http.Server) error {
	log.Info().Str("addr", server.Addr).Msg("Server listening")
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server.ListenAndServe %w", err)
	}
	return nil
}

func waitForStopSignal() <-chan os.Signal {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	return stop
}

func shutdown(server *http.Server) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server.Shutdown: %w", err)
	}
	return nil
}

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}
