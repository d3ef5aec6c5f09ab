package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/Nehilsa2/autosearch/config"
	"github.com/Nehilsa2/autosearch/logging"
)

func main() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		logging.Sync()
		os.Exit(1)
	}
	logging.Sync()
}

// app carries what PersistentPreRunE loads to the subcommands
type app struct {
	v       *viper.Viper
	cfgFile string
	envFile string

	cfg    *config.Config
	logger *zap.Logger
}

// flagKeys binds command flags to the config keys they override
var flagKeys = map[string]string{
	"control-url": "browser.controlURL",
	"headless":    "browser.headless",
	"db":          "storage.path",
	"namespace":   "storage.namespace",
	"log-level":   "logger.level",
}

// NewRootCmd builds the autosearch command tree
func NewRootCmd() *cobra.Command {
	a := &app{v: viper.New()}

	cmd := &cobra.Command{
		Use:   "autosearch",
		Short: "Type random words into a search engine, one human-paced search at a time",
		Long: `autosearch drives a browser tab through an endless search cycle: type a
random word into the search box, skim the results, maybe open one, come back
and start over. The word queue survives restarts in a local SQLite database.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			for name, key := range flagKeys {
				if f := cmd.Flags().Lookup(name); f != nil {
					if err := a.v.BindPFlag(key, f); err != nil {
						return err
					}
				}
			}

			cfg, err := config.Load(a.v, a.cfgFile, a.envFile)
			if err != nil {
				return err
			}
			a.cfg = cfg

			logging.InitializeLogger(cfg.Logger)
			a.logger = logging.GetLogger()
			return nil
		},
	}

	cmd.PersistentFlags().StringVarP(&a.cfgFile, "config", "c", "", "config file (default ./autosearch.yaml or $XDG_CONFIG_HOME/autosearch/autosearch.yaml)")
	cmd.PersistentFlags().StringVar(&a.envFile, "env-file", "", "dotenv file to load (default ./.env when present)")
	cmd.PersistentFlags().String("db", "", "SQLite database path")
	cmd.PersistentFlags().String("namespace", "", "storage namespace for the word queue")
	cmd.PersistentFlags().String("log-level", "", "log level (debug, info, warn, error)")
	cmd.SetVersionTemplate("{{.Version}}\n")

	cmd.AddCommand(
		a.newRunCmd(),
		a.newStepCmd(),
		a.newStatusCmd(),
		a.newResetCmd(),
		newVersionCmd(),
	)
	return cmd
}
