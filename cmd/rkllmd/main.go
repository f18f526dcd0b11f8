package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/akaoio/rkllmd/internal/config"
	"github.com/akaoio/rkllmd/internal/engine"
	"github.com/akaoio/rkllmd/internal/httpapi"
	"github.com/akaoio/rkllmd/internal/registry"
	"github.com/akaoio/rkllmd/internal/runtime"
	"github.com/akaoio/rkllmd/pkg/types"
)

var version = "dev"

func main() {
	if err := buildRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func buildRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "rkllmd",
		Short:         "NPU inference daemon for *.rkllm models",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(buildServeCmd(), buildModelsCmd(), buildVersionCmd())
	return root
}

func envDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func buildServeCmd() *cobra.Command {
	var (
		cfgPath       string
		addr          string
		modelsDir     string
		defaultModel  string
		backend       string
		maxConcurrent int
		streamBuffer  int
		logLevel      string
		corsOrigins   string
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP inference server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Config{}
			if cfgPath != "" {
				var err error
				cfg, err = config.Load(cfgPath)
				if err != nil {
					return fmt.Errorf("load config: %w", err)
				}
			}
			// Flags override file values; env vars seed the flag defaults.
			if addr != "" {
				cfg.Addr = addr
			}
			if modelsDir != "" {
				cfg.ModelsDir = modelsDir
			}
			if defaultModel != "" {
				cfg.DefaultModel = defaultModel
			}
			if backend != "" {
				cfg.Runtime = backend
			}
			if maxConcurrent > 0 {
				cfg.MaxConcurrent = maxConcurrent
			}
			if streamBuffer > 0 {
				cfg.StreamBuffer = streamBuffer
			}
			if logLevel != "" {
				cfg.LogLevel = logLevel
			}
			if cfg.Addr == "" {
				cfg.Addr = ":8080"
			}
			if cfg.ModelsDir == "" {
				cfg.ModelsDir = "~/models/rkllm"
			}
			if cfg.Runtime == "" {
				cfg.Runtime = "npu"
			}
			if origins := splitCSV(corsOrigins); len(origins) > 0 {
				httpapi.SetCORSOptions(true, origins,
					[]string{http.MethodGet, http.MethodPost, http.MethodOptions},
					[]string{"Content-Type", "X-Log-Level"})
			}
			return serve(cfg)
		},
	}
	cmd.Flags().StringVarP(&cfgPath, "config", "c", os.Getenv("RKLLMD_CONFIG"), "Path to config file (yaml, json or toml)")
	cmd.Flags().StringVar(&addr, "addr", envDefault("RKLLMD_ADDR", ""), "HTTP listen address, e.g. :8080")
	cmd.Flags().StringVar(&modelsDir, "models-dir", envDefault("RKLLMD_MODELS_DIR", ""), "Directory to scan for *.rkllm model files")
	cmd.Flags().StringVar(&defaultModel, "default-model", "", "Model id to bind at startup (default: first found)")
	cmd.Flags().StringVar(&backend, "runtime", "", "Generation backend: npu|mock")
	cmd.Flags().IntVar(&maxConcurrent, "max-concurrent", 0, "Maximum concurrent inferences")
	cmd.Flags().IntVar(&streamBuffer, "stream-buffer", 0, "Stream fragment buffer size")
	cmd.Flags().StringVar(&logLevel, "log-level", "", "Log level: debug|info|warn|error")
	cmd.Flags().StringVar(&corsOrigins, "cors-origins", envDefault("RKLLMD_CORS_ORIGINS", ""), "Comma-separated allowed CORS origins (empty disables CORS)")
	return cmd
}

// splitCSV splits a comma-separated flag value, trimming whitespace and
// dropping empty entries.
func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func newLogger(level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	return zerolog.New(os.Stderr).Level(lvl).With().Timestamp().Logger()
}

func selectRuntime(name string) (runtime.Runtime, error) {
	switch name {
	case "npu":
		return runtime.NewNPURuntime(), nil
	case "mock":
		return runtime.NewMockRuntime(), nil
	default:
		return nil, fmt.Errorf("unknown runtime %q (want npu or mock)", name)
	}
}

func selectModel(models []types.Model, id string) (types.Model, error) {
	if len(models) == 0 {
		return types.Model{}, fmt.Errorf("no *.rkllm models found")
	}
	if id == "" {
		return models[0], nil
	}
	for _, m := range models {
		if m.ID == id {
			return m, nil
		}
	}
	return types.Model{}, fmt.Errorf("model %q not found", id)
}

func serve(cfg config.Config) error {
	logger := newLogger(cfg.LogLevel)
	httpapi.SetLogger(logger)

	models, err := registry.LoadDir(cfg.ModelsDir)
	if err != nil {
		return fmt.Errorf("load models: %w", err)
	}
	model, err := selectModel(models, cfg.DefaultModel)
	if err != nil {
		return err
	}

	rt, err := selectRuntime(cfg.Runtime)
	if err != nil {
		return err
	}
	handle, err := rt.Open(model)
	if err != nil {
		return fmt.Errorf("open model %s: %w", model.ID, err)
	}
	defer rt.Close(handle)

	ecfg := engine.Config{
		Runner:        rt,
		Tokens:        runtime.NewHashTokenizer(),
		MaxConcurrent: cfg.MaxConcurrent,
		StreamBuffer:  cfg.StreamBuffer,
	}
	if cfg.Defaults != nil {
		ecfg.Defaults = *cfg.Defaults
	}
	eng := engine.New(ecfg)
	eng.SetModelHandle(handle)

	// Cancel in-flight work when the process is asked to stop.
	baseCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	httpapi.SetBaseContext(baseCtx)

	mux := httpapi.NewMux(eng, models)
	srv := &http.Server{Addr: cfg.Addr, Handler: mux}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().
			Str("addr", cfg.Addr).
			Str("models_dir", cfg.ModelsDir).
			Str("model", model.ID).
			Str("runtime", cfg.Runtime).
			Msg("rkllmd listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-baseCtx.Done():
	}

	eng.Stop()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown")
		return err
	}
	logger.Info().Msg("shutdown complete")
	return nil
}

func buildModelsCmd() *cobra.Command {
	var modelsDir string
	cmd := &cobra.Command{
		Use:   "models",
		Short: "List *.rkllm models in the models directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			models, err := registry.LoadDir(modelsDir)
			if err != nil {
				return err
			}
			if len(models) == 0 {
				fmt.Println("no models found")
				return nil
			}
			for _, m := range models {
				quant := m.Quant
				if quant == "" {
					quant = "-"
				}
				fmt.Printf("%-32s %-8s %s\n", m.ID, quant, m.Path)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&modelsDir, "models-dir", envDefault("RKLLMD_MODELS_DIR", "~/models/rkllm"), "Directory to scan for *.rkllm model files")
	return cmd
}

func buildVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the rkllmd version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("rkllmd %s\n", version)
		},
	}
}
