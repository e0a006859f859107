package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prudhvinik1/appsync/internal/app"
	"github.com/prudhvinik1/appsync/internal/config"
	"github.com/prudhvinik1/appsync/internal/database"
	"github.com/prudhvinik1/appsync/internal/logging"
	"github.com/prudhvinik1/appsync/internal/models"
	"github.com/prudhvinik1/appsync/internal/playstore"
	"github.com/prudhvinik1/appsync/internal/services"
	"github.com/prudhvinik1/appsync/internal/utils"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "appsyncctl",
		Short:         "Admin tasks for the app directory sync service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(
		newImportCmd(),
		newSyncCmd(),
		newSyncAllCmd(),
		newMigrateCmd(),
		newHashPasswordCmd(),
		newCategoryCmd(),
		newFetchCmd(),
	)
	return root
}

// withApp loads configuration, connects to storage and calls fn. The
// context is cancelled on SIGINT or SIGTERM.
func withApp(cmd *cobra.Command, fn func(ctx context.Context, a *app.App) error) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer logger.Sync()

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	return fn(ctx, a)
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newImportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import <manifest.yaml>",
		Short: "Create or relink apps from a manifest and sync them",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("failed to open manifest: %w", err)
			}
			defer f.Close()

			entries, err := services.ParseManifest(f)
			if err != nil {
				return err
			}
			if len(entries) == 0 {
				return errors.New("manifest lists no apps")
			}

			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				report, err := a.Importer.Import(ctx, entries)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), report)
			})
		},
	}
}

func newSyncCmd() *cobra.Command {
	var store string

	cmd := &cobra.Command{
		Use:   "sync <app-id>",
		Short: "Sync one app from its store listing",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			storeType := models.StoreType(store)
			if !storeType.Valid() {
				return fmt.Errorf("unknown store type %q", store)
			}

			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				result := a.Engine.SyncAppFromStore(ctx, args[0], storeType)
				if !result.Success {
					return fmt.Errorf("sync failed (%s): %w", result.Reason, result.Err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "synced %s in %s (version changed: %t)\n",
					args[0], result.Duration.Round(time.Millisecond), result.VersionChanged)
				return printJSON(cmd.OutOrStdout(), result.App)
			})
		},
	}
	cmd.Flags().StringVar(&store, "store", string(models.StoreGooglePlay), "store type (google_play or app_store)")
	return cmd
}

func newSyncAllCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sync-all",
		Short: "Sync every app in batches",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				succeeded, err := a.Orchestrator.SyncAll(ctx, models.TriggerManual)
				if err != nil {
					return err
				}
				run, err := a.Status.GetLastBatchRun(ctx)
				if err != nil {
					a.Logger.Warn("batch run summary unavailable", zap.Error(err))
					fmt.Fprintf(cmd.OutOrStdout(), "%d apps synced\n", succeeded)
					return nil
				}
				return printJSON(cmd.OutOrStdout(), run)
			})
		},
	}
}

func newMigrateCmd() *cobra.Command {
	var (
		databaseURL string
		down        int
	)

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply (or roll back) database migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if databaseURL == "" {
				return errors.New("DATABASE_URL is required")
			}
			if down > 0 {
				if err := database.MigrateDown(databaseURL, down); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "rolled back %d migration(s)\n", down)
				return nil
			}
			if err := database.Migrate(databaseURL); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
			return nil
		},
	}
	cmd.Flags().StringVar(&databaseURL, "database-url", os.Getenv("DATABASE_URL"), "postgres connection string")
	cmd.Flags().IntVar(&down, "down", 0, "roll back this many migrations instead of applying")
	return cmd
}

func newHashPasswordCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "hash-password",
		Short: "Read a password from stdin and print its bcrypt hash for ADMIN_PASSWORD_HASH",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
			if err != nil && !errors.Is(err, io.EOF) {
				return fmt.Errorf("failed to read password: %w", err)
			}
			hash, err := utils.HashPassword(strings.TrimRight(line, "\r\n"))
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), hash)
			return nil
		},
	}
}

func newCategoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "category",
		Short: "Manage app categories",
	}

	var icon, color string
	add := &cobra.Command{
		Use:   "add <id> <name>",
		Short: "Create a category",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			category := &models.Category{ID: args[0], Name: args[1]}
			if icon != "" {
				category.Icon = &icon
			}
			if color != "" {
				category.Color = &color
			}
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				if err := a.Categories.Create(ctx, category); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "created category %s\n", category.ID)
				return nil
			})
		},
	}
	add.Flags().StringVar(&icon, "icon", "", "icon name")
	add.Flags().StringVar(&color, "color", "", "display color")

	list := &cobra.Command{
		Use:   "list",
		Short: "List categories",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				categories, err := a.Categories.List(ctx)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), categories)
			})
		},
	}

	cmd.AddCommand(add, list)
	return cmd
}

func newFetchCmd() *cobra.Command {
	cfg := playstore.Config{}

	cmd := &cobra.Command{
		Use:   "fetch <package-id>",
		Short: "Print the parsed Google Play listing for a package without touching storage",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := playstore.ValidatePackageID(args[0]); err != nil {
				return err
			}
			logger, err := logging.New("warn", "console")
			if err != nil {
				return fmt.Errorf("failed to create logger: %w", err)
			}
			defer logger.Sync()

			data, err := playstore.NewClient(cfg, logger).FetchCatalogData(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), data)
		},
	}
	cmd.Flags().StringVar(&cfg.BaseURL, "base-url", envOr("PLAY_BASE_URL", playstore.DefaultBaseURL), "store base URL")
	cmd.Flags().StringVar(&cfg.Lang, "lang", envOr("PLAY_LANG", "en"), "listing language")
	cmd.Flags().StringVar(&cfg.Country, "country", envOr("PLAY_COUNTRY", "us"), "listing country")
	cmd.Flags().DurationVar(&cfg.Timeout, "timeout", playstore.DefaultTimeout, "request timeout")
	return cmd
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
