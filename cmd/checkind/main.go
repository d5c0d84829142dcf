package main

import (
	"errors"
	"fmt"
	"log"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"seat-checkin-backend/config"
	"seat-checkin-backend/internal/db"
	"seat-checkin-backend/internal/store"
)

type rootOptions struct {
	configPath string
}

func main() {
	log.SetOutput(os.Stdout)
	log.SetPrefix("checkind ")
	log.SetFlags(log.LstdFlags)

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("failed to read .env: %v", err)
	}

	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "checkind",
		Short: "Seat check-in station",
		Long:  "Runs a check-in station that shares attendance with other stations through one database.",
	}

	defaultPath := os.Getenv("CONFIG_PATH")
	if defaultPath == "" {
		defaultPath = "./config/config.yaml" // Default path for local development
	}
	cmd.PersistentFlags().StringVar(&opts.configPath, "config", defaultPath, "path to the YAML configuration")

	cmd.AddCommand(newServeCommand(opts))
	cmd.AddCommand(newRosterCommand(opts))
	cmd.AddCommand(newClearCommand(opts))

	return cmd
}

func (o *rootOptions) load() (*config.Config, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration from %s: %w", o.configPath, err)
	}
	log.Printf("configuration loaded successfully from %s", o.configPath)
	return cfg, nil
}

// openStore connects the shared check-in store. The memory driver has no
// database and cannot share records with other stations.
func openStore(cfg *config.Config) (store.Store, *gorm.DB, error) {
	if cfg.Database.Driver == "memory" {
		log.Println("using in-process check-in store; records are not shared")
		return store.NewMemoryStore(), nil, nil
	}

	gormDB, err := db.Init(&cfg.Database)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	return store.NewGormStore(gormDB, cfg.Store.PollInterval), gormDB, nil
}
