// Dirigent runs markdown directives against the Anthropic API with a
// scoped set of tools.
//
// Directives are markdown files with YAML frontmatter declaring which
// tools each directive may use. The server exposes them as webhooks;
// the run subcommand executes one from the command line. Configuration
// is loaded from a single YAML file discovered automatically (see
// [config.DefaultSearchPaths]).
//
// Usage:
//
//	dirigent serve                     Start the webhook server
//	dirigent run <directive> [json]    Execute a directive once
//	dirigent init [dir]                Initialize a working directory with defaults
//	dirigent version                   Print version and build information
//	dirigent -o json version           Output version information as JSON
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/nugget/dirigent/internal/api"
	"github.com/nugget/dirigent/internal/buildinfo"
	"github.com/nugget/dirigent/internal/config"
	"github.com/nugget/dirigent/internal/directive"
	"github.com/nugget/dirigent/internal/driver"
	"github.com/nugget/dirigent/internal/llm"
	"github.com/nugget/dirigent/internal/notify"
	"github.com/nugget/dirigent/internal/tools"
	"github.com/nugget/dirigent/internal/usage"
)

// main is intentionally minimal. It constructs the OS-level environment
// (context, stdio, argv) and delegates immediately to [run]. This keeps
// os.Exit, os.Stdout, and os.Args out of the application logic so that
// the full startup-to-shutdown lifecycle can be driven from tests.
func main() {
	ctx := context.Background()

	if err := run(ctx, os.Stdout, os.Stderr, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", err)
		os.Exit(1)
	}
}

// run is the real entry point for the dirigent command. All OS-level
// dependencies are injected as parameters so the lifecycle can be
// driven from tests. Arguments are parsed by hand: the flag package
// relies on package-level globals, which makes it impossible to call
// run() concurrently from tests, and our argument surface is small.
func run(ctx context.Context, stdout io.Writer, stderr io.Writer, args []string) error {
	var configPath string
	var outputFmt string // "text" (default) or "json"
	var command string
	var cmdArgs []string

	for i := 0; i < len(args); i++ {
		switch {
		case args[i] == "-config" && i+1 < len(args):
			configPath = args[i+1]
			i++ // skip the value
		case strings.HasPrefix(args[i], "-config="):
			configPath = strings.TrimPrefix(args[i], "-config=")
		case (args[i] == "-o" || args[i] == "--output") && i+1 < len(args):
			outputFmt = args[i+1]
			i++
		case strings.HasPrefix(args[i], "-o="):
			outputFmt = strings.TrimPrefix(args[i], "-o=")
		case strings.HasPrefix(args[i], "--output="):
			outputFmt = strings.TrimPrefix(args[i], "--output=")
		case args[i] == "-h" || args[i] == "-help" || args[i] == "--help":
			return printUsage(stdout)
		case !strings.HasPrefix(args[i], "-") && command == "":
			command = args[i]
		default:
			if command != "" {
				cmdArgs = append(cmdArgs, args[i])
			} else {
				return fmt.Errorf("unknown flag: %s", args[i])
			}
		}
	}

	if outputFmt == "" {
		outputFmt = "text"
	}
	if outputFmt != "text" && outputFmt != "json" {
		return fmt.Errorf("unknown output format: %q (expected text or json)", outputFmt)
	}

	switch command {
	case "serve":
		return runServe(ctx, stdout, configPath)
	case "run":
		if len(cmdArgs) == 0 {
			return fmt.Errorf("usage: dirigent run <directive> [input-json]")
		}
		return runOnce(ctx, stdout, stderr, configPath, cmdArgs)
	case "init":
		dir := "."
		if len(cmdArgs) > 0 {
			dir = cmdArgs[0]
		}
		return runInit(stdout, dir)
	case "version":
		return runVersion(stdout, outputFmt)
	case "":
		return printUsage(stdout)
	default:
		return fmt.Errorf("unknown command: %s", command)
	}
}

// runServe starts the webhook server and blocks until shutdown.
func runServe(ctx context.Context, stdout io.Writer, configPath string) error {
	logger := newLogger(stdout, slog.LevelInfo)
	logger.Info("starting Dirigent", "version", buildinfo.Version, "commit", buildinfo.GitCommit, "built", buildinfo.BuildTime)

	cfg, cfgPath, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	// Reconfigure the logger now that the configured level is known.
	if cfg.LogLevel != "" {
		level, err := config.ParseLogLevel(cfg.LogLevel)
		if err != nil {
			return err
		}
		logger = newLogger(stdout, level)
	}

	logger.Info("config loaded",
		"path", cfgPath,
		"port", cfg.Listen.Port,
		"model", cfg.Anthropic.Model,
		"directives_dir", cfg.DirectivesDir,
	)

	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return fmt.Errorf("create data directory %s: %w", cfg.DataDir, err)
	}

	registry := tools.NewRegistry()
	if err := registerBuiltinTools(registry, logger); err != nil {
		return fmt.Errorf("register tools: %w", err)
	}
	logger.Info("tool registry initialized", "tools", registry.Names())

	exec := tools.NewExecutor(registry, logger)
	client := llm.NewAnthropicClient(cfg.Anthropic.APIKey, cfg.Anthropic.MaxTokens, cfg.Anthropic.ThinkingBudget, logger)
	store := directive.NewStore(cfg.DirectivesDir)

	usageStore, err := usage.NewStore(cfg.UsageDBPath())
	if err != nil {
		return err
	}
	defer usageStore.Close()

	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var notifier driver.Notifier
	var mqttPub *notify.Publisher
	if cfg.MQTT.Enabled {
		mqttPub = notify.New(cfg.MQTT, logger)
		notifier = mqttPub
		go func() {
			if err := mqttPub.Start(ctx); err != nil {
				logger.Warn("mqtt publisher stopped", "error", err)
			}
		}()
	}

	d := driver.New(registry, exec, client, notifier, logger, driver.Options{
		Model:         cfg.Anthropic.Model,
		MaxTurns:      cfg.Driver.MaxTurns,
		RetryAttempts: cfg.Driver.RetryAttempts,
	})

	server := api.NewServer(cfg.Listen.Address, cfg.Listen.Port, store, d, usageStore, cfg.Pricing, cfg.Anthropic.Model, buildinfo.Version, logger)

	go func() {
		<-ctx.Done()
		logger.Info("shutdown signal received")

		if mqttPub != nil {
			offlineCtx, offlineCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer offlineCancel()
			if err := mqttPub.Stop(offlineCtx); err != nil {
				logger.Error("mqtt shutdown failed", "error", err)
			}
		}

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	if err := server.Start(ctx); err != nil {
		if ctx.Err() == nil {
			return fmt.Errorf("server failed: %w", err)
		}
	}

	logger.Info("Dirigent stopped")
	return nil
}

// runOnce handles "dirigent run <directive> [input-json]": one
// directive execution from the command line, with the response printed
// to stdout. Useful for testing directives without starting the server.
func runOnce(ctx context.Context, stdout io.Writer, stderr io.Writer, configPath string, args []string) error {
	// Logs go to stderr so stdout carries only the model's response.
	logger := newLogger(stderr, slog.LevelInfo)

	cfg, cfgPath, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	logger.Info("config loaded", "path", cfgPath)

	var input map[string]any
	if len(args) > 1 {
		if err := json.Unmarshal([]byte(args[1]), &input); err != nil {
			return fmt.Errorf("parse input JSON: %w", err)
		}
	}

	registry := tools.NewRegistry()
	if err := registerBuiltinTools(registry, logger); err != nil {
		return fmt.Errorf("register tools: %w", err)
	}
	exec := tools.NewExecutor(registry, logger)
	client := llm.NewAnthropicClient(cfg.Anthropic.APIKey, cfg.Anthropic.MaxTokens, cfg.Anthropic.ThinkingBudget, logger)
	store := directive.NewStore(cfg.DirectivesDir)

	d, err := store.Load(args[0])
	if err != nil {
		return err
	}

	drv := driver.New(registry, exec, client, nil, logger, driver.Options{
		Model:         cfg.Anthropic.Model,
		MaxTurns:      cfg.Driver.MaxTurns,
		RetryAttempts: cfg.Driver.RetryAttempts,
	})

	result, err := drv.Run(ctx, driver.Request{
		Directive:  d,
		Input:      input,
		TurnBudget: -1,
	})
	if err != nil {
		return fmt.Errorf("run %s: %w", d.Name, err)
	}

	fmt.Fprintln(stdout, result.Response)
	logger.Info("run finished",
		"state", result.State,
		"turns", result.Usage.Turns,
		"input_tokens", result.Usage.InputTokens,
		"output_tokens", result.Usage.OutputTokens,
	)
	return nil
}

// runVersion prints build metadata in the requested output format.
func runVersion(w io.Writer, outputFmt string) error {
	info := buildinfo.Info()
	if outputFmt == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(info)
	}
	fmt.Fprintln(w, buildinfo.String())
	for _, k := range []string{"version", "git_commit", "build_time", "go_version", "os", "arch"} {
		if v, ok := info[k]; ok {
			fmt.Fprintf(w, "  %-12s %s\n", k+":", v)
		}
	}
	return nil
}

// printUsage writes the top-level help text to w.
func printUsage(w io.Writer) error {
	fmt.Fprintln(w, "Dirigent - Directive Executor")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Usage: dirigent [flags] <command> [args]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  serve                    Start the webhook server")
	fmt.Fprintln(w, "  run <directive> [json]   Execute a directive once")
	fmt.Fprintln(w, "  init [dir]               Initialize working directory with defaults (default: .)")
	fmt.Fprintln(w, "  version                  Show version information")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Flags:")
	fmt.Fprintln(w, "  -config <path>    Path to config file (default: auto-discover)")
	fmt.Fprintln(w, "  -o, --output fmt  Output format: text (default) or json")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Config search order:")
	fmt.Fprintln(w, "  ./dirigent.yaml, ~/.config/dirigent/config.yaml, /etc/dirigent/config.yaml")
	return nil
}

// newLogger creates a structured logger writing to w at the given
// level. All log output goes through slog; this helper standardizes
// the handler configuration across subcommands.
func newLogger(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{
		Level:       level,
		ReplaceAttr: config.ReplaceLogLevelNames,
	}))
}

// loadConfig locates and parses the YAML configuration file. If
// explicit is non-empty, that exact path is used (and must exist).
// Otherwise [config.FindConfig] searches the default locations.
func loadConfig(explicit string) (*config.Config, string, error) {
	cfgPath, err := config.FindConfig(explicit)
	if err != nil {
		return nil, "", err
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, cfgPath, fmt.Errorf("load config %s: %w", cfgPath, err)
	}

	return cfg, cfgPath, nil
}
