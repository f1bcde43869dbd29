// Command weatherwax serves the invoke API: chat requests in, SSE replies out.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"weatherwax/internal/config"
	"weatherwax/internal/httpapi"
	"weatherwax/internal/logging"
	"weatherwax/internal/provider"
)

func main() { os.Exit(run(os.Args[1:], os.Stdout, os.Stderr)) }

type serveOptions struct {
	configPath  string
	addr        string
	logLevel    string
	corsOrigins string
}

// buildRootCmd constructs the command tree. serve is also the root's default action.
func buildRootCmd(stdout, stderr io.Writer) *cobra.Command {
	var o serveOptions
	serveRun := func(cmd *cobra.Command, args []string) error {
		cfg, err := resolveConfig(cmd, &o)
		if err != nil {
			return err
		}
		return serveFn(cmd.Context(), cfg, stderr)
	}
	root := &cobra.Command{
		Use:           "weatherwax",
		Short:         "Chat invocation server streaming Server-Sent Events",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          serveRun,
	}
	root.SetOut(stdout)
	root.SetErr(stderr)

	pf := root.PersistentFlags()
	pf.StringVar(&o.configPath, "config", "", "Path to a YAML/JSON/TOML config file")
	pf.StringVar(&o.addr, "addr", config.DefaultAddr, "HTTP listen address (env WEATHERWAX_ADDR)")
	pf.StringVar(&o.logLevel, "log-level", config.DefaultLogLevel, "Log level: debug|info|warn|error|off")
	pf.StringVar(&o.corsOrigins, "cors-origins", "", "Comma-separated allowed CORS origins; enables CORS when set")

	root.AddCommand(&cobra.Command{
		Use:     "serve",
		Short:   "Run the HTTP API",
		Example: "  weatherwax serve --addr :8000 --config weatherwax.yaml",
		Args:    cobra.NoArgs,
		RunE:    serveRun,
	})
	return root
}

// resolveConfig layers explicitly set flags over file and environment values.
func resolveConfig(cmd *cobra.Command, o *serveOptions) (config.Config, error) {
	cfg, err := config.Resolve(o.configPath)
	if err != nil {
		return cfg, fmt.Errorf("load config: %w", err)
	}
	flags := cmd.Flags()
	if flags.Changed("addr") {
		cfg.Addr = o.addr
	}
	if flags.Changed("log-level") {
		cfg.LogLevel = o.logLevel
	}
	if flags.Changed("cors-origins") {
		cfg.CORSOrigins = config.SplitCSV(o.corsOrigins)
		cfg.CORSEnabled = len(cfg.CORSOrigins) > 0
	}
	return cfg, nil
}

// buildRegistry registers the OpenAI-compatible provider first when it is
// configured, so its first model becomes the default, then the static one.
func buildRegistry(ctx context.Context, cfg config.Config, logger zerolog.Logger) (*provider.Registry, error) {
	reg := provider.NewRegistry()
	if cfg.OpenAI.BaseURL != "" {
		p, err := provider.NewOpenAI(ctx, provider.OpenAIOptions{
			BaseURL:        cfg.OpenAI.BaseURL,
			APIKey:         cfg.OpenAI.APIKey,
			Models:         cfg.OpenAI.Models,
			ConnectTimeout: cfg.ConnectTimeout(),
			Logger:         &logger,
		})
		if err != nil {
			return nil, fmt.Errorf("openai provider: %w", err)
		}
		reg.Register(p)
	}
	interval := time.Duration(cfg.Static.IntervalMS) * time.Millisecond
	reg.Register(provider.NewStatic(cfg.Static.Models, cfg.Static.Reply, interval))
	return reg, nil
}

// configureHTTP pushes cfg into the httpapi package settings.
func configureHTTP(cfg config.Config, logger zerolog.Logger) {
	httpapi.SetLogger(logger)
	httpapi.SetMaxBodyBytes(cfg.MaxBodyBytes)
	httpapi.SetKeepAlive(cfg.KeepAlive())
	httpapi.SetCORSOptions(cfg.CORSEnabled, cfg.CORSOrigins,
		[]string{http.MethodGet, http.MethodPost, http.MethodOptions},
		[]string{"Content-Type", "Accept", "Cache-Control", "Last-Event-ID", "X-Log-Level"},
	)
	if os.Getenv("WEATHERWAX_HTTP_LOG_LEVEL") == "" {
		httpapi.SetDefaultLogLevel(cfg.LogLevel)
	}
}

// serveFn is swapped out by tests.
var serveFn = serve

func serve(ctx context.Context, cfg config.Config, logOut io.Writer) error {
	logger := logging.New(cfg.LogLevel, cfg.LogFormat, logOut)
	reg, err := buildRegistry(ctx, cfg, logger)
	if err != nil {
		return err
	}
	configureHTTP(cfg, logger)
	// Shutdown cancels in-flight streams through the base context.
	httpapi.SetBaseContext(ctx)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           httpapi.NewMux(reg),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", cfg.Addr).Int("models", len(reg.ListModels())).Msg("weatherwax listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	logger.Info().Msg("shutting down")
	shCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shCtx); err != nil {
		logger.Warn().Err(err).Msg("graceful shutdown error")
	}
	return nil
}

// run executes the command tree and returns the process exit code.
func run(args []string, stdout, stderr io.Writer) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	root := buildRootCmd(stdout, stderr)
	root.SetArgs(args)
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(stderr, "weatherwax: %v\n", err)
		return 1
	}
	return 0
}
