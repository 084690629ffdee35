package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var createUnlogged bool

var createCmd = &cobra.Command{
	Use:   "create <queue>",
	Short: "Create a queue (no-op if it already exists)",
	Args:  cobra.ExactArgs(1),
	RunE:  runCreate,
}

var dropCmd = &cobra.Command{
	Use:   "drop <queue>",
	Short: "Drop a queue and its entire backlog, active and archived",
	Args:  cobra.ExactArgs(1),
	RunE:  runDrop,
}

var purgeCmd = &cobra.Command{
	Use:   "purge <queue>",
	Short: "Delete all messages in a queue's active backlog",
	Args:  cobra.ExactArgs(1),
	RunE:  runPurge,
}

func init() {
	createCmd.Flags().BoolVar(&createUnlogged, "unlogged", false,
		"back the queue with an unlogged table (faster, not crash-safe)")
	rootCmd.AddCommand(createCmd)
	rootCmd.AddCommand(dropCmd)
	rootCmd.AddCommand(purgeCmd)
}

func runCreate(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	client, err := openClient(ctx)
	if err != nil {
		return err
	}
	defer client.Close()

	if createUnlogged {
		err = client.CreateUnloggedQueue(ctx, args[0])
	} else {
		err = client.CreateQueue(ctx, args[0])
	}
	if err != nil {
		return fmt.Errorf("failed to create queue: %w", err)
	}
	fmt.Printf("Queue %s created\n", args[0])
	return nil
}

func runDrop(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	client, err := openClient(ctx)
	if err != nil {
		return err
	}
	defer client.Close()

	if err := client.DropQueue(ctx, args[0]); err != nil {
		return fmt.Errorf("failed to drop queue: %w", err)
	}
	fmt.Printf("Queue %s dropped\n", args[0])
	return nil
}

func runPurge(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	client, err := openClient(ctx)
	if err != nil {
		return err
	}
	defer client.Close()

	purged, err := client.PurgeQueue(ctx, args[0])
	if err != nil {
		return fmt.Errorf("failed to purge queue: %w", err)
	}
	fmt.Printf("Purged %d message(s) from %s\n", purged, args[0])
	return nil
}
