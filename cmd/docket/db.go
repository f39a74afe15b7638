package main

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/zulandar/docket/internal/config"
	"github.com/zulandar/docket/internal/db"
	"github.com/zulandar/docket/internal/logging"
)

func newDBCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "db",
		Short: "Database management commands",
	}

	cmd.AddCommand(newDBInitCmd())
	cmd.AddCommand(newDBResetCmd())
	return cmd
}

func newDBInitCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize the Docket database",
		Long:  "Creates the database if needed, migrates all tables and seeds reference data from config.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDBInit(cmd, configPath)
		},
	}

	addConfigFlag(cmd, &configPath)
	return cmd
}

func runDBInit(cmd *cobra.Command, configPath string) error {
	out := cmd.OutOrStdout()

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logging.Setup(cfg.Log, cmd.ErrOrStderr())
	fmt.Fprintf(out, "Loaded config from %s\n", configPath)

	if err := ensureDatabase(cmd, cfg); err != nil {
		return err
	}
	return migrateAndSeed(cmd, cfg)
}

// ensureDatabase creates the database on server-backed drivers. SQLite
// creates its file on first connect.
func ensureDatabase(cmd *cobra.Command, cfg *config.Config) error {
	if cfg.Database.Driver == "sqlite" {
		return nil
	}
	adminDB, err := db.ConnectAdmin(cfg.Database)
	if err != nil {
		return err
	}
	defer closeDB(adminDB)
	if err := db.CreateDatabase(adminDB, cfg.Database.Name); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Database %s ready\n", cfg.Database.Name)
	return nil
}

func migrateAndSeed(cmd *cobra.Command, cfg *config.Config) error {
	out := cmd.OutOrStdout()

	gormDB, err := db.Connect(cfg.Database)
	if err != nil {
		return err
	}
	defer closeDB(gormDB)

	if err := db.AutoMigrate(gormDB); err != nil {
		return err
	}
	fmt.Fprintf(out, "Migrated %d tables\n", len(db.AllModels()))

	counts, err := db.SeedReference(gormDB, cfg.Seed)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Seeded %d ministries, %d state departments, %d agencies, %d users\n",
		counts.Ministries, counts.StateDepartments, counts.Agencies, counts.Users)

	fmt.Fprintln(out, "\nDocket database initialized successfully.")
	return nil
}

func newDBResetCmd() *cobra.Command {
	var (
		configPath string
		yes        bool
	)

	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Drop and re-initialize the Docket database",
		Long: `Drops the configured database and re-creates it from config.

For SQLite the database file is removed. Blobs in the document store are
left untouched.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDBReset(cmd, configPath, yes)
		},
	}

	addConfigFlag(cmd, &configPath)
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "skip confirmation prompt")
	return cmd
}

func runDBReset(cmd *cobra.Command, configPath string, skipConfirm bool) error {
	out := cmd.OutOrStdout()

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logging.Setup(cfg.Log, cmd.ErrOrStderr())

	name := cfg.Database.Name
	if cfg.Database.Driver == "sqlite" {
		name = cfg.Database.Path
	}
	if !skipConfirm && !confirmReset(cmd, name) {
		fmt.Fprintln(out, "Aborted.")
		return nil
	}

	if err := dropDatabase(cfg); err != nil {
		return err
	}
	fmt.Fprintf(out, "Dropped database %s\n", name)

	if err := ensureDatabase(cmd, cfg); err != nil {
		return err
	}
	return migrateAndSeed(cmd, cfg)
}

func dropDatabase(cfg *config.Config) error {
	if cfg.Database.Driver == "sqlite" {
		if err := os.Remove(cfg.Database.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("remove %s: %w", cfg.Database.Path, err)
		}
		return nil
	}
	adminDB, err := db.ConnectAdmin(cfg.Database)
	if err != nil {
		return err
	}
	defer closeDB(adminDB)
	return db.DropDatabase(adminDB, cfg.Database.Name)
}

func confirmReset(cmd *cobra.Command, name string) bool {
	out := cmd.OutOrStdout()

	fmt.Fprintf(out, "WARNING: This will permanently delete all data in database %q.\n", name)
	fmt.Fprintln(out, "This action cannot be undone.")
	fmt.Fprintln(out)
	fmt.Fprint(out, "Type \"yes\" to confirm: ")

	scanner := bufio.NewScanner(cmd.InOrStdin())
	if scanner.Scan() {
		return strings.TrimSpace(scanner.Text()) == "yes"
	}
	return false
}
