// Package main provides the coderonin binary entry point.
// Coderonin serves the Code Ronin sabotage engine: it injects realistic bugs into a player's
// Python code using a text generator grounded in skill documentation.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"runtime"
	"strings"
	"syscall"

	// Register LLM providers via init()
	_ "github.com/c360studio/coderonin/llm/providers"

	"github.com/c360studio/coderonin/config"
	"github.com/c360studio/coderonin/sabotage"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

const (
	Version   = "0.1.0"
	BuildTime = "dev"
	appName   = "coderonin"
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

// globalFlags are shared by every subcommand.
type globalFlags struct {
	configPath string
	logLevel   string
}

func rootCmd() *cobra.Command {
	g := &globalFlags{}

	cmd := &cobra.Command{
		Use:   appName,
		Short: "Code Ronin sabotage engine",
		Long: `Coderonin injects a realistic bug into a player's Python code whenever the
chaos meter fires. The bug severity follows the meter's difficulty score:
syntax (<= 33), logic (<= 66) or semantic (> 66).

Set GROQ_API_KEY to enable generation and SERPER_API_KEY to ground pandas
sabotage in live documentation.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVarP(&g.configPath, "config", "c", "", "Config file path (YAML)")
	cmd.PersistentFlags().StringVar(&g.logLevel, "log-level", "info", "Log level (debug, info, warn, error)")

	cmd.AddCommand(
		serveCmd(g),
		sabotageCmd(g),
		patternsCmd(),
		configCmd(g),
		&cobra.Command{
			Use:   "version",
			Short: "Print version information",
			Run: func(cmd *cobra.Command, args []string) {
				fmt.Fprintf(cmd.OutOrStdout(), "%s version %s (build: %s)\n", appName, Version, BuildTime)
			},
		},
	)

	return cmd
}

// setup configures logging and loads configuration.
func (g *globalFlags) setup(stderr io.Writer) (*config.Config, *slog.Logger, error) {
	logger := newLogger(stderr, g.logLevel)
	slog.SetDefault(logger)

	cfg, err := config.NewLoader(logger).Load(g.configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, logger, nil
}

func newLogger(w io.Writer, logLevel string) *slog.Logger {
	level := slog.LevelInfo
	switch strings.ToLower(logLevel) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

func serveCmd(g *globalFlags) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the sabotage HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := g.setup(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.Server.Addr = addr
			}

			app, err := NewApp(cfg, logger)
			if err != nil {
				return err
			}
			defer app.Close()

			ln, err := net.Listen("tcp", cfg.Server.Addr)
			if err != nil {
				return fmt.Errorf("listen on %s: %w", cfg.Server.Addr, err)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return app.Serve(ctx, ln)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (overrides server.addr)")
	return cmd
}

func sabotageCmd(g *globalFlags) *cobra.Command {
	var (
		file       string
		difficulty float64
		skill      string
		endGoal    string
		docQuery   string
	)

	cmd := &cobra.Command{
		Use:   "sabotage",
		Short: "Sabotage one Python file and print the result as JSON",
		Long: `Reads Python code from --file (or stdin), runs one sabotage and prints
{"sabotagedCode", "explanation", "type"}. Exits non-zero when sabotage is
unavailable or the generator reply could not be used.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := g.setup(cmd.ErrOrStderr())
			if err != nil {
				return err
			}

			code, err := readCode(file, cmd.InOrStdin())
			if err != nil {
				return err
			}

			app, err := NewApp(cfg, logger)
			if err != nil {
				return err
			}
			defer app.Close()

			return runSabotage(cmd.Context(), app.Saboteur(), sabotage.Request{
				Code:       code,
				Difficulty: difficulty,
				Skill:      skill,
				EndGoal:    endGoal,
				DocQuery:   docQuery,
			}, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "Python file to sabotage (default: stdin)")
	cmd.Flags().Float64VarP(&difficulty, "difficulty", "d", 50, "Chaos meter score")
	cmd.Flags().StringVarP(&skill, "skill", "s", "", "Skill (Pandas, OOPS, CP, Cryptography)")
	cmd.Flags().StringVar(&endGoal, "end-goal", "", "What the code is supposed to do")
	cmd.Flags().StringVar(&docQuery, "doc-query", "", "Documentation query (default: derived from the code)")
	return cmd
}

func readCode(file string, stdin io.Reader) (string, error) {
	var (
		data []byte
		err  error
	)
	if file == "" || file == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(file)
	}
	if err != nil {
		return "", fmt.Errorf("read code: %w", err)
	}
	return string(data), nil
}

func runSabotage(ctx context.Context, s *sabotage.Saboteur, req sabotage.Request, out io.Writer) error {
	result, err := s.Run(ctx, req)
	if err != nil {
		return err
	}
	if result == nil {
		if !s.Available() {
			return fmt.Errorf("sabotage unavailable (check GROQ_API_KEY)")
		}
		return fmt.Errorf("sabotage failed; see log for details")
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}

func patternsCmd() *cobra.Command {
	var category string

	cmd := &cobra.Command{
		Use:   "patterns",
		Short: "List chaos patterns",
		RunE: func(cmd *cobra.Command, args []string) error {
			return printPatterns(cmd.OutOrStdout(), sabotage.DefaultRegistry(), category)
		},
	}

	cmd.Flags().StringVar(&category, "category", "", "Only list one category (name or difficulty score)")
	return cmd
}

func printPatterns(w io.Writer, reg *sabotage.Registry, category string) error {
	cats := reg.Categories()
	if category != "" {
		c, err := sabotage.ParseCategory(category)
		if err != nil {
			return err
		}
		cats = []sabotage.Category{c}
	}

	for _, c := range cats {
		fmt.Fprintf(w, "%s\n", c.Upper())
		for _, p := range reg.Patterns(c) {
			fmt.Fprintf(w, "  %-22s %s\n", p.Name, p.Description)
		}
	}
	return nil
}

func configCmd(g *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect or initialise configuration",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "init",
		Short: "Write the default user config if none exists",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger(cmd.ErrOrStderr(), g.logLevel)
			return config.NewLoader(logger).EnsureUserConfig()
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration (API keys redacted)",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := g.setup(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			return printConfig(cmd.OutOrStdout(), cfg)
		},
	})

	return cmd
}

func printConfig(w io.Writer, cfg *config.Config) error {
	redacted := *cfg
	if redacted.Generator.APIKey != "" {
		redacted.Generator.APIKey = "<set>"
	}
	if redacted.Docs.SearchAPIKey != "" {
		redacted.Docs.SearchAPIKey = "<set>"
	}
	data, err := yaml.Marshal(&redacted)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	_, err = w.Write(data)
	return err
}
