// Package app provides the docvec command line application.
package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/kart-io/version"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/kart-io/docvec/cmd/docvec/app/options"
	"github.com/kart-io/docvec/internal/docvec"
)

const (
	// Name is the name of the application.
	Name = "docvec"

	commandDesc = `docvec ingests segmented documents into a vector index and serves
similarity search over them.

Each content unit is summarized with its neighbor context into a
search-optimized representative text, embedded, and upserted under a stable
idempotency key, so re-running ingestion never duplicates records. The query
API returns normalized {content, metadata} results ordered by relevance.`
)

// NewRootCommand creates the docvec root command with its subcommands.
func NewRootCommand() *cobra.Command {
	opts := options.NewServerOptions()

	root := &cobra.Command{
		Use:           Name,
		Short:         "Document ingestion and vector search service",
		Long:          commandDesc,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringP("config", "c", "", "Path to config file")
	version.AddFlags(root.PersistentFlags())
	opts.AddFlags(root.PersistentFlags())

	root.AddCommand(newServeCommand(opts))
	root.AddCommand(newIngestCommand(opts))

	return root
}

func newServeCommand(opts *options.ServerOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the docvec HTTP server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := setup(cmd, opts)
			if err != nil {
				return err
			}

			ctx := signalContext()

			server, err := cfg.NewServer(ctx)
			if err != nil {
				return fmt.Errorf("failed to create server: %w", err)
			}

			return server.Run(ctx)
		},
	}
}

func newIngestCommand(opts *options.ServerOptions) *cobra.Command {
	var (
		file       string
		sourceName string
		dryRun     bool
		force      bool
	)

	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Ingest a segmented document into the vector index",
		Long: `Ingest reads the external segmenter's JSON element stream from a file and
runs the enrichment pipeline over it. Re-running is safe: records are keyed
by (source, sequence index) and overwritten, never duplicated. Use --force to
also re-index units the ledger knows are unchanged.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := setup(cmd, opts)
			if err != nil {
				return err
			}

			if sourceName == "" {
				sourceName = strings.TrimSuffix(filepath.Base(file), filepath.Ext(file))
			}

			ctx := signalContext()

			rt, err := cfg.NewRuntime()
			if err != nil {
				return fmt.Errorf("failed to initialize runtime: %w", err)
			}
			defer rt.Close(context.Background())

			if force {
				if err := rt.ForgetSource(ctx, sourceName); err != nil {
					return fmt.Errorf("failed to reset ledger for %s: %w", sourceName, err)
				}
			}

			pipeline, err := rt.NewPipeline(ctx, sourceName, dryRun)
			if err != nil {
				return err
			}

			f, err := os.Open(file)
			if err != nil {
				return fmt.Errorf("failed to open elements file: %w", err)
			}
			defer f.Close()

			report, err := pipeline.Run(ctx, f)
			if err != nil {
				return err
			}

			fmt.Printf("run %s: %d succeeded, %d failed, %d skipped\n",
				report.RunID, report.Succeeded, report.Failed, report.Skipped)
			for _, failure := range report.Failures {
				fmt.Printf("  unit %d: %s: %s\n", failure.SequenceIndex, failure.Kind, failure.Message)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "Path to the segmenter's JSON element stream")
	cmd.Flags().StringVarP(&sourceName, "source", "s", "", "Logical source name (defaults to the file name)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Segment and window only, make no outbound calls")
	cmd.Flags().BoolVar(&force, "force", false, "Re-index units even if the ledger marks them unchanged")
	_ = cmd.MarkFlagRequired("file")

	return cmd
}

// setup loads configuration and initializes logging; shared by every
// subcommand.
func setup(cmd *cobra.Command, opts *options.ServerOptions) (*docvec.Config, error) {
	version.PrintAndExitIfRequested()

	if err := loadConfig(cmd, opts); err != nil {
		return nil, err
	}

	cfg, err := opts.Config()
	if err != nil {
		return nil, err
	}

	if err := opts.Log.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	return cfg, nil
}

// loadConfig merges the config file, environment variables and flags into
// the options, with flags taking precedence.
func loadConfig(cmd *cobra.Command, opts *options.ServerOptions) error {
	configFile, _ := cmd.Flags().GetString("config")
	if configFile != "" {
		viper.SetConfigFile(configFile)
	} else {
		viper.SetConfigName(Name)
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		viper.AddConfigPath("./configs")
		viper.AddConfigPath("/etc/" + Name)
	}

	viper.SetEnvPrefix(strings.ToUpper(Name))
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("failed to read config file: %w", err)
		}
	}

	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return fmt.Errorf("failed to bind flags: %w", err)
	}

	if err := viper.Unmarshal(opts); err != nil {
		return fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return nil
}

// signalContext returns a context cancelled on SIGINT or SIGTERM. A second
// signal exits immediately.
func signalContext() context.Context {
	ctx, cancel := context.WithCancel(context.Background())
	c := make(chan os.Signal, 2)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-c
		cancel()
		<-c
		os.Exit(1)
	}()
	return ctx
}
