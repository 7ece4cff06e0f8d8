// Command signctl runs maintenance tasks against the configured store:
// migrations, seeding, backups and offline quote pricing.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/Simplici0/signworks/internal/app"
	"github.com/Simplici0/signworks/internal/config"
	"github.com/Simplici0/signworks/internal/logging"
	"github.com/Simplici0/signworks/internal/migrations"
	"github.com/Simplici0/signworks/internal/model"
	"github.com/Simplici0/signworks/internal/seed"
)

var loadConfig = config.Load // mockable

type commandLine struct {
	cfg config.Config
	log *logrus.Logger
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cli := &commandLine{}
	root := &cobra.Command{
		Use:          "signctl",
		Short:        "Maintenance tasks for the signworks backend",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			cli.cfg = cfg
			cli.log = logging.New(cfg.LogLevel, cfg.LogFormat)
			cli.log.SetOutput(cmd.ErrOrStderr())
			return nil
		},
	}

	root.AddCommand(cli.migrateCmd(), cli.seedCmd(), cli.backupCmd(), cli.quoteCmd())
	return root
}

func (cli *commandLine) migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending SQL migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if cli.cfg.DBDriver == app.DriverFile {
				fmt.Fprintln(cmd.OutOrStdout(), "file store needs no migrations")
				return nil
			}
			if err := app.Migrate(cli.cfg); err != nil {
				return err
			}

			database, err := app.OpenDatabase(cli.cfg)
			if err != nil {
				return err
			}
			defer database.Close()
			version, err := migrations.Version(database.DB.DB, database.Dialect)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "schema at version %d\n", version)
			return nil
		},
	}
}

func (cli *commandLine) seedCmd() *cobra.Command {
	var sample bool
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Create the admin user, default settings and the default catalog",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := app.OpenStore(cli.cfg, true)
			if err != nil {
				return err
			}
			defer st.Close()

			stats, err := seed.Run(cmd.Context(), st, seed.Config{
				AdminEmail:    cli.cfg.AdminEmail,
				AdminPassword: cli.cfg.AdminPassword,
				Catalog:       true,
				SampleData:    sample,
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "inserted %d records\n", stats.Inserts)
			return nil
		},
	}
	cmd.Flags().BoolVar(&sample, "sample", false, "also create demo clients and a demo order")
	return cmd
}

func (cli *commandLine) backupCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Export or import a JSON backup",
	}

	var output string
	export := &cobra.Command{
		Use:   "export",
		Short: "Write a backup to a file or stdout",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cli.withApp(cmd.Context(), func(a *app.App) error {
				var w io.Writer = cmd.OutOrStdout()
				if output != "" && output != "-" {
					f, err := os.Create(output)
					if err != nil {
						return fmt.Errorf("create %s: %w", output, err)
					}
					defer f.Close()
					w = f
				}
				return a.Backup.Export(cmd.Context(), w)
			})
		},
	}
	export.Flags().StringVarP(&output, "output", "o", "", "file to write, stdout when empty")

	imp := &cobra.Command{
		Use:   "import FILE",
		Short: "Restore a backup file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("open %s: %w", args[0], err)
			}
			defer f.Close()

			return cli.withApp(cmd.Context(), func(a *app.App) error {
				stats, err := a.Backup.Import(cmd.Context(), f)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "imported %d clients, %d materials, %d inks, %d orders\n",
					stats.Clients, stats.Materials, stats.Inks, stats.Orders)
				return nil
			})
		},
	}

	cmd.AddCommand(export, imp)
	return cmd
}

// quoteCmd prices an order read from a JSON file without touching the store.
// Lines must carry their cost snapshots.
func (cli *commandLine) quoteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "quote FILE",
		Short: "Print the price breakdown of an order JSON file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read %s: %w", args[0], err)
			}
			var o model.ServiceOrder
			if err := json.Unmarshal(raw, &o); err != nil {
				return fmt.Errorf("decode %s: %w", args[0], err)
			}
			o.Recalculate()

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(o.Breakdown)
		},
	}
}

func (cli *commandLine) withApp(ctx context.Context, fn func(*app.App) error) error {
	st, err := app.OpenStore(cli.cfg, true)
	if err != nil {
		return err
	}
	a, err := app.New(ctx, cli.cfg, st, cli.log)
	if err != nil {
		st.Close()
		return err
	}
	defer a.Close()
	return fn(a)
}
