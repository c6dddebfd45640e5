package main

import (
	"fmt"
	"os"

	"github.com/pavitra93/go-rental-marketplace/shared/config"
	"github.com/pavitra93/go-rental-marketplace/shared/models"
	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

type opener func() (*gorm.DB, error)

func main() {
	config.LoadEnv()
	config.ConfigureLogging("migrate")

	if err := newRootCmd(config.ConnectDatabase).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd(open opener) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "migrate",
		Short:         "Rental marketplace schema tool",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.AddCommand(upCmd(open), checkCmd(open))
	return rootCmd
}

func upCmd(open opener) *cobra.Command {
	return &cobra.Command{
		Use:   "up",
		Short: "Create or update every table and the PostGIS index",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := open()
			if err != nil {
				return err
			}
			defer closeDB(db)

			if err := config.Migrate(db); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Schema is up to date")
			return nil
		},
	}
}

func checkCmd(open opener) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Verify connectivity and report missing tables",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := open()
			if err != nil {
				return err
			}
			defer closeDB(db)

			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			if err := sqlDB.PingContext(cmd.Context()); err != nil {
				return fmt.Errorf("database unreachable: %w", err)
			}

			missing := 0
			out := cmd.OutOrStdout()
			for _, model := range models.All() {
				stmt := &gorm.Statement{DB: db}
				if err := stmt.Parse(model); err != nil {
					return fmt.Errorf("failed to parse model: %w", err)
				}
				status := "ok"
				if !db.Migrator().HasTable(model) {
					status = "missing"
					missing++
				}
				fmt.Fprintf(out, "%-20s %s\n", stmt.Schema.Table, status)
			}

			if missing > 0 {
				return fmt.Errorf("%d tables missing, run migrate up", missing)
			}
			return nil
		},
	}
}

func closeDB(db *gorm.DB) {
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}
