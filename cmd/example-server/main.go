package main

import (
	"net"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Tusanga/ratelimiting/internal/config"
	"github.com/Tusanga/ratelimiting/pkg/limiter"
)

// checker narrows the three limiter backends to what the handler needs.
type checker func(r *http.Request, key string, ts time.Time) (bool, error)

func main() {
	var configPath string

	root := &cobra.Command{
		Use:          "example-server",
		Short:        "HTTP server demonstrating per-IP leaky-bucket rate limiting",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(configPath)
		},
	}
	root.Flags().StringVarP(&configPath, "config", "c", "", "path to YAML config (defaults apply when omitted)")

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(configPath string) error {
	logger, err := zap.NewProduction()
	if err != nil {
		return err
	}
	defer logger.Sync()

	cfg := config.Default()
	if configPath != "" {
		if cfg, err = config.Load(configPath); err != nil {
			return err
		}
	}

	limit, err := limiter.NewLimit(cfg.Capacity, cfg.Window())
	if err != nil {
		return err
	}

	registry := prometheus.NewRegistry()
	recorder := limiter.NewPrometheusRecorder(registry)

	check, backend, err := buildBackend(cfg, limit, recorder, logger)
	if err != nil {
		return err
	}
	logger.Info("limiter ready",
		zap.String("backend", backend),
		zap.Float64("capacity", cfg.Capacity),
		zap.Duration("window", cfg.Window()),
	)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	mux.HandleFunc("/ping", func(w http.ResponseWriter, r *http.Request) {
		ip := clientIP(r)
		ok, err := check(r, ip, time.Now())
		if err != nil {
			// Fail open: protect availability when the backend errors.
			logger.Warn("limiter error", zap.String("ip", ip), zap.Error(err))
		} else if !ok {
			w.WriteHeader(http.StatusTooManyRequests)
			w.Write([]byte("Rate limit exceeded\n"))
			return
		}
		w.Write([]byte("Pong!\n"))
	})

	logger.Info("server listening", zap.String("addr", cfg.Listen))
	return http.ListenAndServe(cfg.Listen, mux)
}

// buildBackend picks the backend in order of preference: Redis when enabled,
// then the sketch, then the exact keyed map with a periodic sweeper.
func buildBackend(cfg *config.Config, limit limiter.Limit, recorder limiter.MetricsRecorder, logger *zap.Logger) (checker, string, error) {
	switch {
	case cfg.Redis.Enabled:
		client := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr})
		rl, err := limiter.NewRedisLimiter(client, limit,
			limiter.WithPrefix(cfg.Redis.Prefix),
			limiter.WithRecorder(recorder),
			limiter.WithTimeout(2*time.Second),
		)
		if err != nil {
			return nil, "", err
		}
		return func(r *http.Request, key string, ts time.Time) (bool, error) {
			return rl.Allow(r.Context(), key, ts)
		}, "redis", nil

	case cfg.Sketch.Enabled:
		s, err := limiter.NewSketch(limit, cfg.Sketch.Rows, cfg.Sketch.Cols,
			limiter.WithRecorder(recorder))
		if err != nil {
			return nil, "", err
		}
		return func(_ *http.Request, key string, ts time.Time) (bool, error) {
			return s.Allow(key, ts)
		}, "sketch", nil

	default:
		kl := limiter.NewKeyedLimiter(limit, limiter.WithRecorder(recorder))
		if interval := cfg.SweepInterval(); interval > 0 {
			go func() {
				for range time.Tick(interval) {
					evicted, err := kl.Sweep(time.Now())
					if err != nil {
						logger.Warn("sweep failed", zap.Error(err))
						continue
					}
					logger.Info("sweep finished",
						zap.Int("evicted", evicted),
						zap.Int("live", kl.Len()),
					)
				}
			}()
		}
		return func(_ *http.Request, key string, ts time.Time) (bool, error) {
			return kl.Allow(key, ts)
		}, "keyed", nil
	}
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
