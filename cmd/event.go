package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/frahmantamala/fitness-content/internal/auth"
	"github.com/frahmantamala/fitness-content/internal/core/events"
	"github.com/frahmantamala/fitness-content/pkg/logger"
	"github.com/spf13/cobra"
)

var eventCmd = &cobra.Command{
	Use:   "event",
	Short: "Event management commands",
	Long:  `Publish domain events by hand, e.g. to flush the shared permission cache after editing roles in the database.`,
}

var publishEventCmd = &cobra.Command{
	Use:       "publish [event-type]",
	Short:     "Publish an event",
	Long:      `Publish an event on a local bus wired to the same subscribers as the server.`,
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{events.EventTypeRBACChanged},
	Run: func(cmd *cobra.Command, args []string) {
		if err := publishEvent(args[0]); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
	},
}

var (
	eventSubject   string
	eventSubjectID uint
)

func publishEvent(eventType string) error {
	if eventType != events.EventTypeRBACChanged {
		return fmt.Errorf("unsupported event type %q", eventType)
	}

	config, err := loadConfig(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	lg := logger.L()
	ctx := context.Background()

	rdb, err := initRedis(ctx, config.Cache)
	if err != nil {
		return err
	}
	if rdb == nil {
		lg.Warn("no redis configured, only the in process cache of this command is purged")
	} else {
		defer rdb.Close()
	}

	eventBus := events.NewEventBus(lg)
	auth.NewTieredCache(config.Cache.Size, config.Cache.TTL, rdb, lg).InvalidateOn(eventBus)

	event := events.NewRBACChangedEvent(eventSubject, eventSubjectID)
	lg.Info("publishing event", "event_type", eventType, "event_id", event.EventID())

	if err := eventBus.PublishSync(ctx, event); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	lg.Info("event published successfully")
	return nil
}

func init() {
	publishEventCmd.Flags().StringVar(&eventSubject, "subject", "roles", "changed resource type")
	publishEventCmd.Flags().UintVar(&eventSubjectID, "id", 0, "changed resource id")

	eventCmd.AddCommand(publishEventCmd)

	rootCmd.AddCommand(eventCmd)
}
