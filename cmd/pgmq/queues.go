package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var queuesCmd = &cobra.Command{
	Use:   "queues",
	Short: "List all queues",
	RunE:  runQueues,
}

var metricsCmd = &cobra.Command{
	Use:   "metrics <queue>",
	Short: "Show backlog metrics for a queue",
	Args:  cobra.ExactArgs(1),
	RunE:  runMetrics,
}

func init() {
	rootCmd.AddCommand(queuesCmd)
	rootCmd.AddCommand(metricsCmd)
}

func runQueues(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	client, err := openClient(ctx)
	if err != nil {
		return err
	}
	defer client.Close()

	queues, err := client.ListQueues(ctx)
	if err != nil {
		return fmt.Errorf("failed to list queues: %w", err)
	}
	if len(queues) == 0 {
		fmt.Println("No queues")
		return nil
	}
	for _, q := range queues {
		kind := "logged"
		if q.IsUnlogged {
			kind = "unlogged"
		}
		if q.IsPartitioned {
			kind += ", partitioned"
		}
		fmt.Printf("%s\t(%s, created %s)\n", q.Name, kind, q.CreatedAt.Format("2006-01-02 15:04:05"))
	}
	return nil
}

func runMetrics(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	client, err := openClient(ctx)
	if err != nil {
		return err
	}
	defer client.Close()

	m, err := client.Metrics(ctx, args[0])
	if err != nil {
		return fmt.Errorf("failed to get metrics: %w", err)
	}

	fmt.Printf("Queue:          %s\n", m.QueueName)
	fmt.Printf("Backlog length: %d\n", m.QueueLength)
	fmt.Printf("Total messages: %d\n", m.TotalMessages)
	if m.OldestMsgAgeSec != nil {
		fmt.Printf("Oldest message: %ds old\n", *m.OldestMsgAgeSec)
	}
	if m.NewestMsgAgeSec != nil {
		fmt.Printf("Newest message: %ds old\n", *m.NewestMsgAgeSec)
	}
	fmt.Printf("Scraped at:     %s\n", m.ScrapeTime.Format("2006-01-02 15:04:05"))
	return nil
}
