// Command reconagent discovers a matching procedure between two tabular
// files by iteratively generating, executing, and evaluating model-authored
// matching code.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/WeiKhjan/reconciliation-agent/internal/config"
	"github.com/WeiKhjan/reconciliation-agent/internal/logging"
)

const version = "0.2.0"

var (
	flagConfig string
	flagDebug  bool

	cfg *config.Config
)

func main() {
	root := &cobra.Command{
		Use:           "reconagent",
		Short:         "LLM-driven data reconciliation agent",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// .env is optional; real env vars win either way.
			_ = godotenv.Load()

			var err error
			cfg, err = config.Load(flagConfig)
			if err != nil {
				return err
			}
			if flagDebug {
				cfg.Logging.Debug = true
			}
			return logging.Initialize(cfg.Logging.Debug)
		},
	}
	root.PersistentFlags().StringVarP(&flagConfig, "config", "c", "reconagent.yaml", "path to config file")
	root.PersistentFlags().BoolVar(&flagDebug, "debug", false, "enable debug logging")

	root.AddCommand(newRunCmd())
	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println("reconagent " + version)
		},
	})

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		logging.Sync()
		os.Exit(1)
	}
	logging.Sync()
}
