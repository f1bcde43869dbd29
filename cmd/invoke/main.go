// Command invoke sends one chat message to an invoke endpoint and prints the
// Server-Sent Events it streams back, one "event data id retry" line each.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"weatherwax/internal/config"
	"weatherwax/internal/invoker"
	"weatherwax/internal/logging"
)

func main() { os.Exit(run(os.Args[1:], os.Stdout, os.Stderr)) }

type options struct {
	configPath string
	baseURI    string
	model      string
	logLevel   string
}

// buildRootCmd wires the invoke command to stdout for events and stderr for
// logs and errors.
func buildRootCmd(stdout, stderr io.Writer) *cobra.Command {
	var o options
	root := &cobra.Command{
		Use:   "invoke <message>",
		Short: "Send a chat message and print the streamed SSE events",
		Example: "  invoke \"hello there\"\n" +
			"  invoke --base-uri http://localhost:9000 --model echo \"hi\"",
		Args: func(cmd *cobra.Command, args []string) error {
			if err := cobra.ExactArgs(1)(cmd, args); err != nil {
				return fmt.Errorf("%w\nUsage: %s", err, cmd.UseLine())
			}
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := resolveConfig(cmd, &o)
			if err != nil {
				return err
			}
			logger := logging.New(cfg.LogLevel, cfg.LogFormat, stderr)
			c := invoker.New(invoker.Config{
				BaseURI:        cfg.BaseURI,
				Path:           cfg.InvokePath,
				Model:          cfg.Model,
				RequestTimeout: cfg.RequestTimeout(),
				ConnectTimeout: cfg.ConnectTimeout(),
				DoneMarker:     cfg.DoneMarker,
			}, invoker.WithLogger(logger))
			defer c.Close()
			return c.Invoke(cmd.Context(), args[0], stdout)
		},
	}
	root.SetOut(stdout)
	root.SetErr(stderr)

	f := root.Flags()
	f.StringVar(&o.configPath, "config", "", "Path to a YAML/JSON/TOML config file")
	f.StringVar(&o.baseURI, "base-uri", config.DefaultBaseURI, "Base URI of the server (env WEATHERWAX_BASE_URI)")
	f.StringVar(&o.model, "model", config.DefaultModel, "Model identifier sent with the request (env WEATHERWAX_MODEL)")
	f.StringVar(&o.logLevel, "log-level", config.DefaultLogLevel, "Log level: debug|info|warn|error|off")
	return root
}

// resolveConfig layers explicitly set flags over file and environment values.
func resolveConfig(cmd *cobra.Command, o *options) (config.Config, error) {
	cfg, err := config.Resolve(o.configPath)
	if err != nil {
		return cfg, fmt.Errorf("load config: %w", err)
	}
	flags := cmd.Flags()
	if flags.Changed("base-uri") {
		cfg.BaseURI = o.baseURI
	}
	if flags.Changed("model") {
		cfg.Model = o.model
	}
	if flags.Changed("log-level") {
		cfg.LogLevel = o.logLevel
	}
	return cfg, nil
}

// run executes the command and returns the process exit code. Interrupts
// cancel the stream so deferred cleanup still runs.
func run(args []string, stdout, stderr io.Writer) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	root := buildRootCmd(stdout, stderr)
	root.SetArgs(args)
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(stderr, "invoke: %v\n", err)
		return 1
	}
	return 0
}
