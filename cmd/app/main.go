package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/starford/bloc/internal"
	pkgconfig "github.com/starford/bloc/pkg/config"
)

func loadConfig(cmd *cli.Command) (*internal.Config, error) {
	cfg := internal.NewDefaultConfig()
	if err := pkgconfig.LoadOptional(cmd.String("config"), cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}

func serve(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := internal.Run(ctx, internal.WithConfig(cfg)); err != nil {
		return fmt.Errorf("app run error: %w", err)
	}
	return nil
}

func runMCP(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	return internal.RunMCP(ctx, internal.WithConfig(cfg))
}

func exportNotes(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	var ids []int64
	for _, raw := range cmd.StringSlice("id") {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid id %q", raw)
		}
		ids = append(ids, id)
	}
	path, err := internal.ExportNotes(ctx, ids, cmd.String("out"), internal.WithConfig(cfg))
	if err != nil {
		return err
	}
	if path != "-" {
		fmt.Fprintln(os.Stderr, path)
	}
	return nil
}

func importNotes(ctx context.Context, cmd *cli.Command) error {
	file := cmd.Args().First()
	if file == "" {
		return fmt.Errorf("usage: import FILE")
	}
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	sum, err := internal.ImportFile(ctx, file, internal.WithConfig(cfg))
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "imported %d notes, first id %d\n", sum.Count, sum.FirstID)
	return nil
}

func main() {
	cmd := &cli.Command{
		Name:   "bloc",
		Usage:  "Offline note collection with autosave, legacy migration and JSON import/export",
		Action: serve,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "Path to config file",
				DefaultText: "config/config.yaml",
				Value:       "config/config.yaml",
				Sources:     cli.EnvVars("APP_CONFIG_FILE"),
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Run the HTTP API (default)",
				Action: serve,
			},
			{
				Name:   "export",
				Usage:  "Export selected notes to a JSON file",
				Action: exportNotes,
				Flags: []cli.Flag{
					&cli.StringSliceFlag{Name: "id", Usage: "Note id to export (repeatable)"},
					&cli.StringFlag{Name: "out", Aliases: []string{"o"}, Usage: "Output file, - for stdout"},
				},
			},
			{
				Name:      "import",
				Usage:     "Append the notes from an export file",
				ArgsUsage: "FILE",
				Action:    importNotes,
			},
			{
				Name:   "mcp",
				Usage:  "Serve MCP tools over stdio",
				Action: runMCP,
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
