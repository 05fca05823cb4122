// Package main provides the turnmesh binary entry point, a terminal chat
// harness around the turn engine.
package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/hupe1980/turnmesh"
	"github.com/hupe1980/turnmesh/config"
	"github.com/hupe1980/turnmesh/logging"
)

const (
	Version   = "0.1.0"
	BuildTime = "dev"
	appName   = "turnmesh"
)

func main() {
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			_, _ = fmt.Fprintf(os.Stderr, "PANIC: %v\nStack trace:\n%s\n", r, string(buf[:n]))
			os.Exit(2)
		}
	}()

	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   appName,
		Short: "Conversational turn orchestrator",
		Long: `turnmesh runs dialogue turns across annotators and candidate
generators: annotations are computed as a dependency graph, generators race
for the response under a turn deadline, and the best safe candidate wins.`,
		SilenceUsage: true,
	}

	cmd.AddCommand(chatCmd(), initCmd())

	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "%s version %s (build: %s)\n", appName, Version, BuildTime)
		},
	})

	return cmd
}

type chatFlags struct {
	configPath  string
	llm         string
	metricsAddr string
	logLevel    string
}

func chatCmd() *cobra.Command {
	var flags chatFlags

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Chat with the configured agent on stdin/stdout",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			cfg, err := loadConfig(flags)
			if err != nil {
				return err
			}

			return runChat(ctx, cfg, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVarP(&flags.configPath, "config", "c", "", "Config file path (YAML)")
	cmd.Flags().StringVar(&flags.llm, "llm", "", "LLM provider (openai, anthropic, none)")
	cmd.Flags().StringVar(&flags.metricsAddr, "metrics-addr", "", "Listen address for /metrics (empty = disabled)")
	cmd.Flags().StringVar(&flags.logLevel, "log-level", "", "Log level (debug, info, warn, error)")

	return cmd
}

func initCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init <path>",
		Short: "Write the default configuration to a YAML file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := config.DefaultConfig().SaveToFile(args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", args[0])
			return nil
		},
	}
}

func loadConfig(flags chatFlags) (*config.Config, error) {
	cfg := config.DefaultConfig()

	if flags.configPath != "" {
		fileCfg, err := config.LoadFromFile(flags.configPath)
		if err != nil {
			return nil, fmt.Errorf("load config: %w", err)
		}
		cfg = fileCfg
	}

	override := &config.Config{}
	override.LLM.Provider = flags.llm
	override.Metrics.Addr = flags.metricsAddr
	override.Logging.Level = flags.logLevel
	cfg.Merge(override)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func runChat(ctx context.Context, cfg *config.Config, in io.Reader, out io.Writer) error {
	logger := newLogger(cfg.Logging)

	var reg *prometheus.Registry
	if cfg.Metrics.Addr != "" {
		reg = prometheus.NewRegistry()

		srv := serveMetrics(cfg.Metrics.Addr, reg, logger)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	var registerer prometheus.Registerer
	if reg != nil {
		registerer = reg
	}

	m, err := build(cfg, registerer, logger)
	if err != nil {
		return fmt.Errorf("build agent: %w", err)
	}

	return chat(ctx, m, uuid.NewString(), in, out)
}

// chat reads one utterance per line and prints each reply until the session
// ends, the input is exhausted or ctx is done.
func chat(ctx context.Context, m *turnmesh.TurnMesh, sessionID string, in io.Reader, out io.Writer) error {
	scanner := bufio.NewScanner(in)

	for {
		if _, err := fmt.Fprint(out, "> "); err != nil {
			return err
		}

		if !scanner.Scan() {
			return scanner.Err()
		}

		utterance := strings.TrimSpace(scanner.Text())
		if utterance == "" {
			continue
		}

		res, err := m.HandleTurn(ctx, sessionID, utterance, map[string]string{"channel": "cli"})
		if err != nil {
			return err
		}

		if _, err := fmt.Fprintln(out, res.Text); err != nil {
			return err
		}

		if res.ShouldEndSession {
			return nil
		}

		if ctx.Err() != nil {
			return nil
		}
	}
}

func serveMetrics(addr string, reg *prometheus.Registry, logger logging.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))

	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", "addr", addr, "error", err)
		}
	}()

	logger.Info("metrics server listening", "addr", addr)

	return srv
}
