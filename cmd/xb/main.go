package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"xb-go/internal/app"
	"xb-go/internal/config"
	"xb-go/internal/encryption"
	"xb-go/internal/xb"
)

// activateFromConfig is the --activate value used when the flag is given
// without a directory.
const activateFromConfig = "engine.datadir"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		reportError(os.Stderr, err, time.Now())
		os.Exit(1)
	}
}

// loadConfig loads the dotenv file, reads the config file and applies XB_*
// environment overrides.
func loadConfig() (*config.Config, error) {
	defaults, err := app.GetDefaults()
	if err != nil {
		return nil, fmt.Errorf("getting defaults: %w", err)
	}
	if err := config.LoadEnvFile(defaults["env_file"]); err != nil {
		return nil, err
	}

	cfg, err := config.ReadFromFile(defaults["config_path"])
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	if err := config.ApplyEnv(cfg, nil); err != nil {
		return nil, err
	}
	return cfg, nil
}

// newApp reads the config and creates an XBApp. The caller must defer a.Close().
func newApp(ctx context.Context) (*app.XBApp, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	a, err := app.NewXBApp(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("initializing app: %w", err)
	}
	return a, nil
}

var rootCmd = &cobra.Command{
	Use:           "xb",
	Short:         "Scheduled full and incremental database backups",
	SilenceUsage:  true,
	SilenceErrors: true,
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the backup scheduler until interrupted",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()
		return a.Run(cmd.Context())
	},
}

var tickCmd = &cobra.Command{
	Use:   "tick",
	Short: "Run one scheduler tick and exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		report, err := a.Tick(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Printf("%s backup uploaded: %s (%s)\n", report.Result.Kind, report.Result.Key, humanize.IBytes(uint64(report.Result.Size)))
		if report.Swept > 0 {
			fmt.Printf("Deleted %d expired archive(s)\n", report.Swept)
		}
		return nil
	},
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored backups, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		all, _ := cmd.Flags().GetBool("all")

		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		catalog, err := a.Catalog(cmd.Context())
		if err != nil {
			return err
		}
		records := catalog.Recent(xb.DefaultListingSize)
		if all {
			records = catalog.All()
		}
		if len(records) == 0 {
			fmt.Println("No backups found.")
			return nil
		}
		printCatalog(os.Stdout, records, false)
		if !all && catalog.Len() > len(records) {
			fmt.Printf("(%d older backup(s) not shown, use --all)\n", catalog.Len()-len(records))
		}
		return nil
	},
}

var restoreCmd = &cobra.Command{
	Use:   "restore",
	Short: "Restore a backup chain into the restore directory",
	RunE: func(cmd *cobra.Command, args []string) error {
		key, _ := cmd.Flags().GetString("key")
		yes, _ := cmd.Flags().GetBool("yes")
		activate, _ := cmd.Flags().GetString("activate")
		ctx := cmd.Context()

		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		if activate == activateFromConfig {
			activate = a.Config().Engine.DataDir
			if activate == "" {
				return &config.ConfigMissingError{Key: "engine.datadir"}
			}
		}

		p := newPrompter(os.Stdin, os.Stdout, int(os.Stdin.Fd()))

		catalog, err := a.Catalog(ctx)
		if err != nil {
			return err
		}
		if key == "" {
			records := catalog.Recent(xb.DefaultListingSize)
			if len(records) == 0 {
				fmt.Println("No backups found.")
				return nil
			}
			target, err := p.selectBackup(records)
			if errors.Is(err, errQuit) {
				fmt.Println("Aborted.")
				return nil
			}
			if err != nil {
				return err
			}
			key = target.Key
		}

		chain, err := a.Resolve(catalog, key)
		if err != nil {
			return err
		}
		printChain(os.Stdout, chain)

		if !yes {
			question := fmt.Sprintf("Restore into %s?", a.Config().RestoreDir)
			if activate != "" {
				question = fmt.Sprintf("Restore and copy back into %s?", activate)
			}
			ok, err := p.confirm(question)
			if err != nil {
				return err
			}
			if !ok {
				fmt.Println("Aborted.")
				return nil
			}
		}

		if a.NeedsPassphrase() {
			pass, ok := os.LookupEnv("XB_PASSPHRASE")
			if !ok {
				if pass, err = p.passphrase("Passphrase: "); err != nil {
					return err
				}
			}
			if err := a.Unlock(pass); err != nil {
				return err
			}
		}

		res, err := a.Restore(ctx, chain, activate)
		if err != nil {
			return err
		}
		fmt.Printf("Prepared backup at %s\n", res.BaseDir)
		if activate != "" {
			fmt.Printf("Copied back into %s\n", activate)
		}
		return nil
	},
}

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Delete archives older than the retention window",
	RunE: func(cmd *cobra.Command, args []string) error {
		dryRun, _ := cmd.Flags().GetBool("dry-run")

		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		if dryRun {
			catalog, err := a.Catalog(cmd.Context())
			if err != nil {
				return err
			}
			expired := a.Expired(catalog)
			if len(expired) == 0 {
				fmt.Println("Nothing to delete.")
				return nil
			}
			fmt.Printf("Would delete %d archive(s):\n", len(expired))
			printCatalog(os.Stdout, expired, false)
			return nil
		}

		deleted, err := a.Sweep(cmd.Context())
		if len(deleted) > 0 {
			printCatalog(os.Stdout, deleted, false)
		}
		fmt.Printf("Deleted %d archive(s)\n", len(deleted))
		return err
	},
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "View recent ticks, restores and sweeps",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		runs, err := a.History(cmd.Context(), limit)
		if err != nil {
			return err
		}
		if len(runs) == 0 {
			fmt.Println("No runs recorded.")
			return nil
		}
		printHistory(os.Stdout, runs)
		return nil
	},
}

// config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}

		cfg := config.NewConfig(defaults["base_dir"])
		if err := config.Init(defaults["config_path"], cfg); err != nil {
			return fmt.Errorf("failed to initialize config: %w", err)
		}

		fmt.Printf("Configuration initialized at %s\n", defaults["config_path"])
		fmt.Printf("Base Dir: %s\n", defaults["base_dir"])
		fmt.Println("Set store.bucket and the engine connection before running 'xb run'.")
		return nil
	},
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "View effective configuration (file plus environment)",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		masked := *cfg
		if masked.Engine.Password != "" {
			masked.Engine.Password = "****"
		}
		if masked.Store.SecretKey != "" {
			masked.Store.SecretKey = "****"
		}

		var m config.Manager
		if err := m.Write(os.Stdout, &masked); err != nil {
			return err
		}
		if err := cfg.Validate(); err != nil {
			fmt.Printf("\n# invalid: %v\n", err)
		}
		return nil
	},
}

// keys command
var keysCmd = &cobra.Command{
	Use:   "keys",
	Short: "Manage archive encryption keys",
}

var keysInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Generate the archive encryption key pair",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		enc, err := encryption.NewEncryptorFromConfig(cfg.Encryption)
		if err != nil {
			return err
		}
		if enc == nil {
			return fmt.Errorf("encryption.type is %q: nothing to initialize", cfg.Encryption.Type)
		}

		p := newPrompter(os.Stdin, os.Stdout, int(os.Stdin.Fd()))
		pass, err := p.newPassphrase()
		if err != nil {
			return err
		}
		if err := enc.Setup(pass); err != nil {
			return err
		}
		fmt.Printf("Keys written to %s and %s\n", cfg.Encryption.PublicKeyPath, cfg.Encryption.PrivateKeyPath)
		return nil
	},
}

func init() {
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configListCmd)
	keysCmd.AddCommand(keysInitCmd)

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(tickCmd)
	rootCmd.AddCommand(listCmd)
	listCmd.Flags().BoolP("all", "a", false, "List every stored backup")
	rootCmd.AddCommand(restoreCmd)
	restoreCmd.Flags().StringP("key", "k", "", "Restore this archive key without the selection prompt")
	restoreCmd.Flags().BoolP("yes", "y", false, "Skip the confirmation prompt")
	restoreCmd.Flags().String("activate", "", "Copy the prepared backup back into this data directory")
	restoreCmd.Flags().Lookup("activate").NoOptDefVal = activateFromConfig
	rootCmd.AddCommand(sweepCmd)
	sweepCmd.Flags().Bool("dry-run", false, "Only list what would be deleted")
	rootCmd.AddCommand(historyCmd)
	historyCmd.Flags().IntP("limit", "n", 20, "Maximum number of runs to show")
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(keysCmd)
}
