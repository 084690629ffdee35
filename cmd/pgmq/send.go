package main

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	pgmq "github.com/pgqueue/pgmq-go"
)

var sendDelay time.Duration

var sendCmd = &cobra.Command{
	Use:   "send <queue> <json>",
	Short: "Send a JSON message to a queue",
	Args:  cobra.ExactArgs(2),
	RunE:  runSend,
}

func init() {
	sendCmd.Flags().DurationVar(&sendDelay, "delay", 0,
		"delay before the message becomes visible (e.g. 30s, 5m)")
	rootCmd.AddCommand(sendCmd)
}

func runSend(cmd *cobra.Command, args []string) error {
	queue, payload := args[0], args[1]
	if !json.Valid([]byte(payload)) {
		return fmt.Errorf("payload is not valid JSON")
	}

	ctx := context.Background()
	client, err := openClient(ctx)
	if err != nil {
		return err
	}
	defer client.Close()

	id, err := client.Send(ctx, queue, json.RawMessage(payload), pgmq.WithDelay(sendDelay))
	if err != nil {
		return fmt.Errorf("failed to send message: %w", err)
	}
	fmt.Printf("Sent message %d to %s\n", id, queue)
	return nil
}
