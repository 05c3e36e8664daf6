package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"newsdigest/internal/archive"
	"newsdigest/internal/config"
	"newsdigest/internal/llm"
	"newsdigest/internal/mailbox"
	"newsdigest/internal/notify"
	"newsdigest/internal/pipeline"
	"newsdigest/internal/server"
	"newsdigest/internal/summarize"
)

var version = "dev"

var (
	verbose    bool
	configPath string
	cfg        *config.Config
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "newsdigest",
	Short:   "Daily newsletter digests",
	Long:    "NewsDigest fetches newsletter emails, summarizes them with an LLM, and archives one digest per day.",
	Version: version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if verbose {
			log.SetFlags(log.LstdFlags | log.Lshortfile)
		} else {
			log.SetFlags(log.LstdFlags)
		}

		// Credentials may live in a local .env file
		_ = godotenv.Load()

		// Skip config loading for init and version
		if cmd.Name() == "init" || cmd.Name() == "version" {
			return nil
		}

		path, err := config.ResolveConfigPath(configPath)
		if err != nil {
			return err
		}
		cfg, err = config.Load(path)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to config file")

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(backfillCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(reindexCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("newsdigest", version)
	},
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration in ~/.config/newsdigest/",
	RunE: func(cmd *cobra.Command, args []string) error {
		target := filepath.Join(config.ConfigDir(), "config.yaml")
		if _, err := os.Stat(target); err == nil {
			fmt.Printf("Config already exists: %s\n", target)
			return nil
		}

		if err := os.MkdirAll(config.ConfigDir(), 0o755); err != nil {
			return fmt.Errorf("creating config directory: %w", err)
		}

		if err := os.WriteFile(target, config.DefaultConfigYAML, 0o644); err != nil {
			return fmt.Errorf("writing config: %w", err)
		}

		fmt.Printf("Created config: %s\n", target)
		fmt.Println("Edit it to configure newsletter senders, then set credentials in the environment or a .env file.")
		return nil
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show archive and system status",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore()
		if err != nil {
			return err
		}

		keys, err := store.Dates()
		if err != nil {
			return fmt.Errorf("listing archive: %w", err)
		}
		index, err := store.ReadIndex()
		if err != nil {
			return fmt.Errorf("reading index: %w", err)
		}

		fmt.Printf("Archive: %s\n\n", store.Dir())
		fmt.Printf("Archived days: %d\n", len(keys))
		if len(keys) > 0 {
			latest := keys[len(keys)-1]
			fmt.Printf("Latest digest: %s", latest)
			if entry, ok := index[latest]; ok {
				fmt.Printf(" (%d newsletters)", entry.Count)
			}
			fmt.Println()
		}

		fmt.Println("\nConfiguration:")
		fmt.Printf("  Mailbox: %s:%d/%s\n", cfg.Mailbox.Host, cfg.Mailbox.Port, cfg.Mailbox.Folder)
		fmt.Printf("  Senders: %d configured\n", len(cfg.SenderList()))
		fmt.Printf("  Provider: %s\n", cfg.Summarization.Provider)
		fmt.Printf("  Timezone: %s\n", cfg.Timezone)
		return nil
	},
}

// --- run command ---

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Fetch newsletters since the last digest, summarize, and archive today's digest",
	RunE: func(cmd *cobra.Command, args []string) error {
		pipe, err := buildPipeline()
		if err != nil {
			return err
		}

		if err := pipe.Run(context.Background()); err != nil {
			return err
		}
		fmt.Println("Done. Run 'newsdigest serve' to browse the archive.")
		return nil
	},
}

// --- backfill command ---

var backfillCmd = &cobra.Command{
	Use:   "backfill [start-date]",
	Short: "Generate digests for each day from start-date through today",
	Long:  "Backfill generates one digest per calendar day from start-date (YYYY-MM-DD) through today. Days that already have a digest are left untouched.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		loc, err := cfg.Location()
		if err != nil {
			return err
		}
		start, err := time.ParseInLocation("2006-01-02", args[0], loc)
		if err != nil {
			return fmt.Errorf("invalid start date %q (want YYYY-MM-DD)", args[0])
		}

		pipe, err := buildPipeline()
		if err != nil {
			return err
		}

		if err := pipe.Backfill(context.Background(), start); err != nil {
			return err
		}
		fmt.Println("Backfill complete.")
		return nil
	},
}

// --- serve command ---

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the local web server",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore()
		if err != nil {
			return err
		}
		loc, err := cfg.Location()
		if err != nil {
			return err
		}

		if !cmd.Flags().Changed("port") {
			servePort = cfg.Server.Port
		}

		fmt.Printf("Starting server at http://localhost:%d\n", servePort)
		fmt.Println("Press Ctrl+C to stop")
		return server.Serve(store, loc, servePort)
	},
}

func init() {
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 8000, "Port to run server on")
}

// --- reindex command ---

var reindexCmd = &cobra.Command{
	Use:   "reindex",
	Short: "Rebuild index.json from the archived records",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore()
		if err != nil {
			return err
		}

		if err := store.RebuildIndex(); err != nil {
			return fmt.Errorf("rebuilding index: %w", err)
		}
		keys, _ := store.Dates()
		fmt.Printf("Rebuilt index for %d archived days.\n", len(keys))
		return nil
	},
}

func openStore() (*archive.Store, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	dataDir := cfg.GetDataDir()
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}
	return archive.New(dataDir, loc), nil
}

func buildPipeline() (*pipeline.Pipeline, error) {
	store, err := openStore()
	if err != nil {
		return nil, err
	}
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}

	username := os.Getenv(cfg.Mailbox.UsernameEnv)
	password := os.Getenv(cfg.Mailbox.PasswordEnv)
	if username == "" || password == "" {
		return nil, fmt.Errorf("mailbox credentials missing: set %s and %s", cfg.Mailbox.UsernameEnv, cfg.Mailbox.PasswordEnv)
	}

	senders := cfg.SenderList()
	if len(senders) == 0 {
		log.Printf("Warning: no newsletter senders configured, every message in %s will be processed", cfg.Mailbox.Folder)
	}

	client := mailbox.NewClient(mailbox.Config{
		Host:     cfg.Mailbox.Host,
		Port:     cfg.Mailbox.Port,
		Folder:   cfg.Mailbox.Folder,
		Username: username,
		Password: password,
		Senders:  senders,
	})

	summ := cfg.Summarization
	provider := llm.CreateProvider(
		summ.Provider,
		summ.GeminiModel,
		summ.GeminiAPIKeyEnv,
		summ.OpenAIModel,
		summ.OpenAIAPIKeyEnv,
	)
	if provider == nil {
		return nil, fmt.Errorf("no LLM provider configured: set %s or %s", summ.GeminiAPIKeyEnv, summ.OpenAIAPIKeyEnv)
	}

	summarizer := summarize.New(
		provider,
		time.Duration(summ.RequestIntervalSeconds)*time.Second,
		summ.MaxTokens,
	)

	var notifier pipeline.Notifier
	if cfg.Notification.Enabled {
		recipient := os.Getenv(cfg.Notification.RecipientEnv)
		if recipient == "" {
			log.Printf("Warning: notifications enabled but %s is not set, skipping delivery", cfg.Notification.RecipientEnv)
		} else {
			notifier = notify.NewMailer(
				cfg.Notification.SMTPHost,
				cfg.Notification.SMTPPort,
				username,
				password,
				username,
				[]string{recipient},
			)
		}
	}

	return pipeline.New(
		store,
		client,
		summarizer,
		notifier,
		loc,
		time.Duration(cfg.Backfill.DayIntervalSeconds)*time.Second,
	), nil
}
