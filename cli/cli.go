// Package cli holds the dynforms command line.
package cli

import (
	"os"

	"github.com/mbolis/dynamic-forms/config"
	"github.com/mbolis/dynamic-forms/log"
	"github.com/spf13/cobra"
)

// New builds the root command. Flag defaults are read from the environment,
// so any .env file must be loaded first.
func New() *cobra.Command {
	cfg := &config.Config{}

	root := &cobra.Command{
		Use:          "dynforms",
		Short:        "Multi-tenant dynamic form server",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cfg.Debug {
				log.SetLevel(log.DebugLevel)
			}
			return log.SetFormat(cfg.LogFormat)
		},
	}
	cfg.BindLogging(root.PersistentFlags())
	cfg.BindDB(root.PersistentFlags())

	root.AddCommand(
		NewServe(cfg),
		NewMigrate(cfg),
		NewRekey(cfg),
		NewUserAdd(cfg),
	)
	return root
}

func Execute() {
	err := config.LoadEnv()
	if err != nil {
		log.Fatal("main.env:", err)
	}

	if err := New().Execute(); err != nil {
		os.Exit(1)
	}
}
