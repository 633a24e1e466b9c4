package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	_ "github.com/joho/godotenv/autoload"
	"github.com/lmittmann/tint"
	"github.com/mattn/go-isatty"
	"github.com/urfave/cli/v3"

	"github.com/starford/tankobon/internal"
	"github.com/starford/tankobon/internal/models"
	pkgconfig "github.com/starford/tankobon/pkg/config"
)

var version = "dev"

func isTerminal(f *os.File) bool {
	fd := f.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// cliLogger writes to stderr so stdout stays clean for tables, JSON and
// the MCP transport.
func cliLogger(level slog.Level) *slog.Logger {
	if isTerminal(os.Stderr) {
		return slog.New(tint.NewHandler(os.Stderr, &tint.Options{Level: level}))
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

func loadConfig(cmd *cli.Command) (*internal.Config, error) {
	cfg := internal.NewDefaultConfig()
	if err := pkgconfig.LoadWithDefaults(cmd.String("config"), "", cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if root := cmd.String("root"); root != "" {
		cfg.Library.Root = root
	}
	return cfg, nil
}

func serve(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	opts := []internal.Option{
		internal.WithConfig(cfg),
		internal.WithVersion(version),
	}

	if err := internal.Run(ctx, opts...); err != nil {
		return fmt.Errorf("app run error: %w", err)
	}

	return nil
}

func serveMCP(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	return internal.RunMCP(ctx,
		internal.WithConfig(cfg),
		internal.WithLogger(cliLogger(cfg.App.LogLevel)),
		internal.WithVersion(version),
	)
}

func withServices(cmd *cli.Command, fn func(*internal.Services) error) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	services, err := internal.NewServices(cfg, cliLogger(cfg.App.LogLevel))
	if err != nil {
		return err
	}
	defer services.Close()
	return fn(services)
}

func scan(ctx context.Context, cmd *cli.Command) error {
	return withServices(cmd, func(s *internal.Services) error {
		recs, err := s.Archives.ListArchives(ctx, cmd.Args().First())
		if err != nil {
			return err
		}
		return output(cmd, os.Stdout, recs, func(color bool) string { return renderScan(recs, color) })
	})
}

func repair(ctx context.Context, cmd *cli.Command) error {
	return withServices(cmd, func(s *internal.Services) error {
		results, err := s.Archives.Repair(ctx, cmd.Args().First(), cmd.Bool("dry-run"))
		if err != nil {
			return err
		}
		if err := output(cmd, os.Stdout, results, func(color bool) string { return renderRepair(results, color) }); err != nil {
			return err
		}
		if n := countFailed(results); n > 0 {
			return fmt.Errorf("%d archives could not be repaired", n)
		}
		return nil
	})
}

func countFailed(results []models.RepairResult) int {
	n := 0
	for _, r := range results {
		if !r.OK && !r.DryRun {
			n++
		}
	}
	return n
}

// output renders a table on a terminal and indented JSON otherwise or
// when --json is set.
func output(cmd *cli.Command, w *os.File, v any, table func(color bool) string) error {
	if cmd.Bool("json") || !isTerminal(w) {
		return writeJSON(w, v)
	}
	_, err := fmt.Fprintln(w, table(true))
	return err
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func jsonFlag() cli.Flag {
	return &cli.BoolFlag{
		Name:  "json",
		Usage: "Print JSON even when stdout is a terminal",
	}
}

func main() {
	cmd := &cli.Command{
		Name:    "tankobon",
		Usage:   "Normalize the dates embedded in CBZ/CBR manga archives",
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "Path to config file (.yaml or .toml)",
				DefaultText: "config/config.yaml",
				Value:       "config/config.yaml",
				Sources:     cli.EnvVars("APP_CONFIG_FILE"),
			},
			&cli.StringFlag{
				Name:    "root",
				Usage:   "Library root, overrides library.root",
				Sources: cli.EnvVars("TANKOBON_LIBRARY_ROOT"),
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Run the HTTP API, event stream and optional library watcher",
				Action: serve,
			},
			{
				Name:      "scan",
				Usage:     "Classify the embedded date of every archive under DIR",
				ArgsUsage: "[DIR]",
				Flags:     []cli.Flag{jsonFlag()},
				Action:    scan,
			},
			{
				Name:      "repair",
				Usage:     "Rewrite the embedded date of every archive under DIR that is not ok",
				ArgsUsage: "[DIR]",
				Flags: []cli.Flag{
					jsonFlag(),
					&cli.BoolFlag{
						Name:  "dry-run",
						Usage: "Show the planned dates without writing",
					},
				},
				Action: repair,
			},
			{
				Name:   "mcp",
				Usage:  "Serve the MCP tools over stdio",
				Action: serveMCP,
			},
		},
		Action: serve,
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
