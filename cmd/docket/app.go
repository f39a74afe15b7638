package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/zulandar/docket/internal/blob"
	"github.com/zulandar/docket/internal/config"
	"github.com/zulandar/docket/internal/db"
	"github.com/zulandar/docket/internal/events"
	"github.com/zulandar/docket/internal/identity"
	"github.com/zulandar/docket/internal/logging"
	"github.com/zulandar/docket/internal/workflow"
	"gorm.io/gorm"
)

const defaultConfigPath = "docket.yaml"

func addConfigFlag(cmd *cobra.Command, configPath *string) {
	cmd.Flags().StringVarP(configPath, "config", "c", defaultConfigPath, "path to Docket config file")
}

func addActorFlag(cmd *cobra.Command, actorID *uint) {
	cmd.Flags().UintVar(actorID, "as", 0, "user ID to act as (required)")
	cmd.MarkFlagRequired("as")
}

// connectFromConfig loads the config, configures logging and connects to
// the database.
func connectFromConfig(cmd *cobra.Command, configPath string) (*config.Config, *gorm.DB, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	logging.Setup(cfg.Log, cmd.ErrOrStderr())

	gormDB, err := db.Connect(cfg.Database)
	if err != nil {
		return nil, nil, err
	}
	return cfg, gormDB, nil
}

// app is the wired engine behind one command invocation.
type app struct {
	cfg *config.Config
	db  *gorm.DB
	svc *workflow.Service
	pub events.Publisher
}

func openApp(cmd *cobra.Command, configPath string) (*app, error) {
	cfg, gormDB, err := connectFromConfig(cmd, configPath)
	if err != nil {
		return nil, err
	}
	store, err := blob.Open(cmd.Context(), cfg.Blob)
	if err != nil {
		closeDB(gormDB)
		return nil, err
	}
	pub := events.New(cfg.Events)
	return &app{
		cfg: cfg,
		db:  gormDB,
		svc: workflow.New(gormDB, store, pub, cfg.Timeouts),
		pub: pub,
	}, nil
}

func (a *app) Close() {
	a.pub.Close()
	closeDB(a.db)
}

func closeDB(gormDB *gorm.DB) {
	if sqlDB, err := gormDB.DB(); err == nil {
		sqlDB.Close()
	}
}

// actor resolves --as to a known user.
func (a *app) actor(ctx context.Context, id uint) (*identity.Actor, error) {
	if id == 0 {
		return nil, fmt.Errorf("--as is required")
	}
	actor, err := identity.Lookup(ctx, a.db, id)
	if err != nil {
		return nil, err
	}
	return actor, nil
}
