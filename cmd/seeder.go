package cmd

import (
	"context"
	"log"

	"github.com/frahmantamala/fitness-content/internal/seed"
	"github.com/frahmantamala/fitness-content/pkg/logger"
	"github.com/spf13/cobra"
)

var seedPassword string

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Seed the database with sample data",
	Long:  `Seed roles, permissions, demo users, a small catalog and the shared directories for development and testing purposes.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := loadConfig(configPath)
		if err != nil {
			log.Fatalf("failed to load config: %v", err)
		}
		logger.Setup(logger.Options{Env: cfg.Env, Level: cfg.Observability.Logging.Level, Format: cfg.Observability.Logging.Format})
		lg := logger.L()

		db, err := initGorm(cfg.Database)
		if err != nil {
			log.Fatalf("failed to init db: %v", err)
		}

		ctx := context.Background()
		seeder := seed.New(db, lg).WithPassword(seedPassword, cfg.Security.BCryptCost)

		if clearData {
			if err := seeder.Clear(ctx); err != nil {
				log.Fatalf("failed to clear data: %v", err)
			}
		}

		if err := seeder.Run(ctx); err != nil {
			log.Fatalf("failed to seed: %v", err)
		}

		for _, u := range seed.DemoUsers {
			lg.Info("demo user ready", "email", u.Email, "role", u.Role)
		}
	},
}

func init() {
	seedCmd.Flags().StringVar(&seedPassword, "password", "password", "password of the demo users")
}
