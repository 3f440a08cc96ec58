package main

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"submission-intake/internal/config"
	"submission-intake/internal/server"
)

const programName = "intake"

type globalOptions struct {
	configFile string
	debug      bool
}

// app carries what every subcommand needs once flags are parsed.
type app struct {
	cfg    *config.Config
	logger *logrus.Logger
}

func newRootCommand(a *app) *cobra.Command {
	opts := &globalOptions{}

	root := &cobra.Command{
		Use:           programName,
		Short:         "Submission intake service",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(opts.configFile)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			if opts.debug {
				cfg.Log.Level = "debug"
			}
			logger, err := server.NewLogger(cfg.Log.Level, cfg.Log.Format)
			if err != nil {
				return fmt.Errorf("log level: %w", err)
			}
			a.cfg = cfg
			a.logger = logger
			return nil
		},
	}

	root.PersistentFlags().StringVar(&opts.configFile, "config", "", "path to a YAML or JSON config file")
	root.PersistentFlags().BoolVarP(&opts.debug, "debug", "D", false, "enable debug logging")

	root.AddCommand(serveCommand(a))
	root.AddCommand(migrateCommand(a))
	return root
}

func main() {
	if err := newRootCommand(&app{}).Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", programName, err)
		os.Exit(1)
	}
}
