package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/tendant/simple-blog/pkg/simpleblog"
	"github.com/tendant/simple-blog/pkg/simpleblog/config"
	"github.com/tendant/simple-blog/pkg/simpleblog/logger"
	repopg "github.com/tendant/simple-blog/pkg/simpleblog/repo/postgres"
)

// NewRootCommand builds the blogadmin command tree.
func NewRootCommand() *cobra.Command {
	var envFiles []string

	rootCmd := &cobra.Command{
		Use:   "blogadmin",
		Short: "Maintenance commands for the blog backend",
		Long: `blogadmin applies database migrations and removes orphaned media.

Configuration is read from the same environment variables as the server.`,
		Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringSliceVar(&envFiles, "env-file", nil, "dotenv files to load (default .env)")

	rootCmd.AddCommand(NewMigrateCommand(&envFiles))
	rootCmd.AddCommand(NewSweepCommand(&envFiles))

	return rootCmd
}

func loadConfig(cmd *cobra.Command, envFiles []string) (*config.ServerConfig, error) {
	cfg, err := config.LoadFromEnv(envFiles)
	if err != nil {
		return nil, err
	}
	logger.Setup(cfg.Environment, cmd.ErrOrStderr())
	return cfg, nil
}

func postgresConfig(cmd *cobra.Command, envFiles []string) (*config.ServerConfig, error) {
	cfg, err := loadConfig(cmd, envFiles)
	if err != nil {
		return nil, err
	}
	if cfg.DatabaseType != "postgres" {
		return nil, errors.New("migrations require DATABASE_TYPE=postgres")
	}
	return cfg, nil
}

// NewMigrateCommand creates the migrate command
func NewMigrateCommand(envFiles *[]string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the database schema",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := postgresConfig(cmd, *envFiles)
			if err != nil {
				return err
			}
			if err := repopg.RunMigrations(cfg.MigrationURL()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Migrations applied")
			return nil
		},
	})

	var steps int
	down := &cobra.Command{
		Use:   "down",
		Short: "Roll back migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if steps < 1 {
				return fmt.Errorf("--steps must be at least 1, got %d", steps)
			}
			cfg, err := postgresConfig(cmd, *envFiles)
			if err != nil {
				return err
			}
			if err := repopg.RollbackMigrations(cfg.MigrationURL(), steps); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Rolled back %d migration(s)\n", steps)
			return nil
		},
	}
	down.Flags().IntVar(&steps, "steps", 1, "number of migrations to roll back")
	cmd.AddCommand(down)

	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the current schema version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := postgresConfig(cmd, *envFiles)
			if err != nil {
				return err
			}
			version, dirty, err := repopg.MigrationVersion(cfg.MigrationURL())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "version=%d dirty=%t\n", version, dirty)
			return nil
		},
	})

	return cmd
}

// NewSweepCommand creates the sweep command
func NewSweepCommand(envFiles *[]string) *cobra.Command {
	var dryRun bool
	var grace time.Duration

	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Delete media objects no identity or blog references",
		Long: `Lists objects under the avatar and blog folders and deletes those older than
--grace that no stored record references. Use --dry-run to only print them.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, *envFiles)
			if err != nil {
				return err
			}
			rt, err := cfg.BuildStores(cmd.Context())
			if err != nil {
				return err
			}
			defer rt.Close()

			reconciler := simpleblog.NewReconciler(rt.Repository, rt.Store, cfg.AppName, simpleblog.WithGrace(grace))
			result, err := reconciler.Sweep(cmd.Context(), dryRun)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for _, key := range result.Orphans {
				fmt.Fprintln(out, key)
			}
			fmt.Fprintf(out, "scanned=%d orphans=%d deleted=%d failures=%d\n",
				result.Scanned, len(result.Orphans), result.Deleted, result.Failures)
			if result.Failures > 0 {
				return fmt.Errorf("%d object(s) could not be deleted", result.Failures)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "only list orphaned objects")
	cmd.Flags().DurationVar(&grace, "grace", simpleblog.DefaultSweepGrace, "skip objects younger than this")

	return cmd
}
