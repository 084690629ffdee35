package main

import (
	"context"
	"fmt"
	"os"

	"github.com/caarlos0/env/v11"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	pgmq "github.com/pgqueue/pgmq-go"
)

var dsn string

var rootCmd = &cobra.Command{
	Use:   "pgmq",
	Short: "pgmq queue administration",
	Long:  "CLI tool for administering pgmq queues: create, drop, purge, inspect and send.",
}

type envConfig struct {
	DatabaseURL string `env:"DATABASE_URL"`
}

func init() {
	rootCmd.PersistentFlags().StringVar(&dsn, "dsn", "",
		"Database connection string (falls back to DATABASE_URL)")
}

func connString() (string, error) {
	if dsn != "" {
		return dsn, nil
	}
	var cfg envConfig
	if err := env.Parse(&cfg); err != nil {
		return "", fmt.Errorf("failed to read environment: %w", err)
	}
	if cfg.DatabaseURL == "" {
		return "", fmt.Errorf("no connection string: pass --dsn or set DATABASE_URL")
	}
	return cfg.DatabaseURL, nil
}

func openClient(ctx context.Context) (*pgmq.Client, error) {
	cs, err := connString()
	if err != nil {
		return nil, err
	}
	cfg, err := pgxpool.ParseConfig(cs)
	if err != nil {
		return nil, fmt.Errorf("failed to parse connection string: %w", err)
	}
	client, err := pgmq.Dial(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect: %w", err)
	}
	return client, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
