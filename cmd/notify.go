/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/socialhub/apiserver/config"
	"github.com/socialhub/apiserver/internal/events"
	"github.com/socialhub/apiserver/internal/logger"
	"github.com/socialhub/apiserver/internal/mq"
	"github.com/spf13/cobra"
)

// notifyCmd consumes activity events from the configured broker.
var notifyCmd = &cobra.Command{
	Use:   "notify",
	Short: "Consume activity events and deliver notifications",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.LoadConfig()
		log := logger.SetupDefault(os.Stdout, cfg.LogLevel)

		switch cfg.Queue.Backend {
		case config.QueueRabbitMQ, config.QueuePubSub:
		default:
			return errors.New("notify requires MQ_BACKEND=rabbitmq or pubsub")
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		queue, err := mq.Open(ctx, cfg.Queue)
		if err != nil {
			return err
		}
		defer queue.Close()

		err = events.NewNotifier(queue, cfg.Queue.Channel, log).Run(ctx)
		if err != nil && ctx.Err() == nil {
			return err
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(notifyCmd)
}
