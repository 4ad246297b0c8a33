package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/hrygo/feedbacksense/ai/cache"
	"github.com/hrygo/feedbacksense/ai/core/llm"
	"github.com/hrygo/feedbacksense/ai/metrics"
	"github.com/hrygo/feedbacksense/ai/observability/logging"
	"github.com/hrygo/feedbacksense/ai/pipeline"
	"github.com/hrygo/feedbacksense/internal/profile"
	"github.com/hrygo/feedbacksense/internal/version"
	"github.com/hrygo/feedbacksense/plugin/kafka"
	"github.com/hrygo/feedbacksense/plugin/webhook"
	"github.com/hrygo/feedbacksense/server"
	"github.com/hrygo/feedbacksense/server/service/analyzer"
	"github.com/hrygo/feedbacksense/store"
	"github.com/hrygo/feedbacksense/store/db"
)

var (
	rootCmd = &cobra.Command{
		Use:   "feedbacksense",
		Short: `A customer feedback analysis service. Classify, prioritize and route feedback to the right team.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Systemd services get their environment from the unit file.
			if !isRunningAsSystemdService() {
				_ = godotenv.Load()
			}
			return nil
		},
		Run: func(_ *cobra.Command, _ []string) {
			instanceProfile := &profile.Profile{
				Mode:         viper.GetString("mode"),
				AnalysisMode: profile.AnalysisMode(viper.GetString("analysis-mode")),
				Addr:         viper.GetString("addr"),
				Port:         viper.GetInt("port"),
				Data:         viper.GetString("data"),
				Driver:       viper.GetString("driver"),
				DSN:          viper.GetString("dsn"),
				LogLevel:     viper.GetString("log-level"),
				LogFormat:    viper.GetString("log-format"),
				Version:      version.GetCurrentVersion(viper.GetString("mode")),
			}
			instanceProfile.FromEnv()
			if err := instanceProfile.Validate(); err != nil {
				panic(err)
			}

			if err := setupLogger(instanceProfile); err != nil {
				panic(err)
			}

			ctx, cancel := context.WithCancel(context.Background())
			s, err := newServer(ctx, instanceProfile)
			if err != nil {
				cancel()
				slog.Error("failed to create server", "error", err)
				return
			}

			c := make(chan os.Signal, 1)
			// Trigger graceful shutdown on SIGINT or SIGTERM.
			signal.Notify(c, terminationSignals...)

			if err := s.Start(ctx); err != nil {
				slog.Error("failed to start server", "error", err)
				// Release the store, cache and publishers opened by newServer.
				s.Shutdown(ctx)
				cancel()
				return
			}

			printGreetings(instanceProfile)

			go func() {
				<-c
				s.Shutdown(ctx)
				cancel()
			}()

			// Wait for CTRL-C.
			<-ctx.Done()
		},
	}

	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version of feedbacksense",
		Run: func(_ *cobra.Command, _ []string) {
			fmt.Println(version.StringFull())
		},
	}
)

func init() {
	viper.SetDefault("mode", "dev")
	viper.SetDefault("analysis-mode", "")
	viper.SetDefault("port", 8000)
	viper.SetDefault("log-level", "info")
	viper.SetDefault("log-format", logging.FormatJSON)

	rootCmd.PersistentFlags().String("mode", "dev", `mode of server, can be "prod" or "dev"`)
	rootCmd.PersistentFlags().String("analysis-mode", "", `how feedback is analyzed, "demo" or "pipeline" (default demo)`)
	rootCmd.PersistentFlags().String("addr", "", "address of server")
	rootCmd.PersistentFlags().Int("port", 8000, "port of server")
	rootCmd.PersistentFlags().String("data", "", "data directory for the sqlite database")
	rootCmd.PersistentFlags().String("driver", "", "database driver (postgres, sqlite), empty disables persistence")
	rootCmd.PersistentFlags().String("dsn", "", "database source name(aka. DSN)")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", logging.FormatJSON, "log format (json, text)")

	for _, name := range []string{"mode", "analysis-mode", "addr", "port", "data", "driver", "dsn", "log-level", "log-format"} {
		if err := viper.BindPFlag(name, rootCmd.PersistentFlags().Lookup(name)); err != nil {
			panic(err)
		}
	}

	viper.SetEnvPrefix("feedbacksense")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	rootCmd.AddCommand(versionCmd)
}

func setupLogger(p *profile.Profile) error {
	level, err := logging.ParseLevel(p.LogLevel)
	if err != nil {
		return err
	}
	logger, err := logging.New(os.Stdout, level, p.LogFormat)
	if err != nil {
		return err
	}
	slog.SetDefault(logger)
	return nil
}

// newServer builds every collaborator the profile asks for.
func newServer(ctx context.Context, p *profile.Profile) (*server.Server, error) {
	exporter := metrics.NewPrometheusExporter(metrics.DefaultConfig())
	var closers []func() error
	var sinks []analyzer.Sink

	var storeInstance *store.Store
	dbDriver, err := db.NewDBDriver(p)
	if err != nil {
		return nil, err
	}
	if dbDriver != nil {
		storeInstance = store.New(dbDriver)
		if err := storeInstance.Migrate(ctx); err != nil {
			_ = storeInstance.Close()
			return nil, fmt.Errorf("failed to migrate: %w", err)
		}
		closers = append(closers, storeInstance.Close)
		sinks = append(sinks, analyzer.StoreSink(storeInstance))
	}

	if len(p.KafkaBrokers) > 0 {
		publisher, err := kafka.NewPublisher(p.KafkaBrokers, p.KafkaTopic)
		if err != nil {
			return nil, err
		}
		closers = append(closers, publisher.Close)
		sinks = append(sinks, analyzer.KafkaSink(publisher))
		slog.Info("kafka publisher enabled", "brokers", p.KafkaBrokers, "topic", publisher.Topic())
	}

	if len(p.RouteWebhooks) > 0 {
		notifier := webhook.NewRouteNotifier(p.RouteWebhooks)
		sinks = append(sinks, analyzer.WebhookSink(notifier))
		slog.Info("route webhooks enabled", "routes", notifier.Routes())
	}

	var recorder *analyzer.Recorder
	opts := []analyzer.Option{analyzer.WithMetrics(exporter)}
	if len(sinks) > 0 {
		recorder = analyzer.NewRecorder(analyzer.DefaultQueueSize, slog.Default(), exporter, sinks...)
		opts = append(opts, analyzer.WithRecorder(recorder))
	}

	var runner analyzer.PipelineRunner
	if p.IsPipeline() {
		agentPipeline, err := newPipeline(ctx, p, exporter)
		if err != nil {
			return nil, err
		}
		runner = agentPipeline

		analysisCache, closeCache := newCache(ctx, p)
		if closeCache != nil {
			closers = append(closers, closeCache)
		}
		opts = append(opts, analyzer.WithCache(analysisCache))
	}

	feedbackAnalyzer, err := analyzer.New(p.AnalysisMode, runner, opts...)
	if err != nil {
		return nil, err
	}

	return server.NewServer(ctx, p, server.Options{
		Analyzer: feedbackAnalyzer,
		Store:    storeInstance,
		Metrics:  exporter,
		Recorder: recorder,
		Logger:   slog.Default(),
		Closers:  closers,
	})
}

func newPipeline(ctx context.Context, p *profile.Profile, exporter *metrics.PrometheusExporter) (*pipeline.Pipeline, error) {
	llmService, err := llm.NewService(&llm.Config{
		Provider: p.LLMProvider,
		Model:    p.LLMModel,
		APIKey:   p.LLMAPIKey,
		BaseURL:  p.LLMBaseURL,
		Timeout:  p.LLMTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create llm service: %w", err)
	}
	slog.Info("LLM service initialized", "provider", p.LLMProvider, "model", llmService.Model())
	go llm.Warmup(ctx, llmService)

	prompts, err := pipeline.DefaultPrompts()
	if p.PromptsFile != "" {
		prompts, err = pipeline.LoadPromptsFile(p.PromptsFile)
	}
	if err != nil {
		return nil, err
	}

	return pipeline.New(llmService,
		pipeline.WithPrompts(prompts),
		pipeline.WithRateLimit(p.PipelineRPS, p.PipelineBurst),
		pipeline.WithObserver(exporter),
	)
}

// newCache connects to redis when configured and falls back to memory.
func newCache(ctx context.Context, p *profile.Profile) (cache.AnalysisCache, func() error) {
	if p.RedisURL != "" {
		connectCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		client, err := cache.Connect(connectCtx, p.RedisURL)
		if err == nil {
			slog.Info("analysis cache enabled", "backend", cache.BackendRedis)
			redisCache := cache.NewRedisAnalysisCache(client, p.CacheTTL)
			return redisCache, redisCache.Close
		}
		slog.Warn("redis unavailable, using in-memory analysis cache", "error", err)
	}
	memoryCache := cache.NewMemoryAnalysisCache(p.CacheSize, p.CacheTTL)
	memoryCache.StartJanitor(cache.DefaultJanitorInterval)
	slog.Info("analysis cache enabled", "backend", cache.BackendMemory, "capacity", memoryCache.Capacity())
	return memoryCache, memoryCache.Close
}

func printGreetings(profile *profile.Profile) {
	fmt.Printf("FeedbackSense %s started successfully!\n", profile.Version)

	if profile.IsDev() {
		fmt.Fprint(os.Stderr, "Development mode is enabled\n")
		if profile.DSN != "" {
			fmt.Fprintf(os.Stderr, "Database: %s\n", profile.DSN)
		}
	}

	fmt.Printf("Analysis mode: %s\n", profile.AnalysisMode)
	if profile.HasStore() {
		fmt.Printf("Database driver: %s\n", profile.Driver)
	} else {
		fmt.Println("Persistence: disabled")
	}

	if len(profile.Addr) == 0 {
		fmt.Printf("Server running on port %d\n", profile.Port)
		fmt.Printf("Access FeedbackSense at: http://localhost:%d\n", profile.Port)
	} else {
		fmt.Printf("Server running on %s:%d\n", profile.Addr, profile.Port)
		fmt.Printf("Access FeedbackSense at: http://%s:%d\n", profile.Addr, profile.Port)
	}
	fmt.Println()
}

// isRunningAsSystemdService detects if the process is running under systemd
func isRunningAsSystemdService() bool {
	return os.Getenv("INVOCATION_ID") != "" || os.Getenv("WATCHDOG_USEC") != ""
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		panic(err)
	}
}
