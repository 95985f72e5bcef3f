// Command slate is the host process for the slate engine: a REPL with
// persisted history, plus one-shot run and eval modes.
package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	charmlog "github.com/charmbracelet/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/slate-lang/slate/pkg/slate"
)

var logger = charmlog.NewWithOptions(os.Stderr, charmlog.Options{Prefix: "slate"})

func main() {
	if err := rootCmd().Execute(); err != nil {
		logger.Error(err.Error())
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "slate",
		Short:         "Host process for the embedded slate runtime",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := initViper(cmd); err != nil {
				return err
			}
			if viper.GetBool("verbose") {
				logger.SetLevel(charmlog.DebugLevel)
			}
			slate.SetLogger(logger)
			if name := viper.GetString("program-name"); name != "" {
				slate.SetProgramName(name)
			}
			if path := viper.GetString("module-path"); path != "" {
				slate.SetModuleSearchPath(path)
			}
			return nil
		},
	}

	root.PersistentFlags().Bool("verbose", false, "enable debug logging")
	root.PersistentFlags().String("history-db", defaultHistoryPath(), "path to the REPL history database")
	root.PersistentFlags().String("program-name", "slate", "program name reported to the runtime")
	root.PersistentFlags().String("module-path", "", "module search path for the runtime")

	root.AddCommand(replCmd(), runCmd(), evalCmd())
	return root
}

func initViper(cmd *cobra.Command) error {
	viper.SetEnvPrefix("SLATE")
	viper.AutomaticEnv()
	if err := viper.BindPFlags(cmd.Root().PersistentFlags()); err != nil {
		return err
	}
	if home, err := os.UserHomeDir(); err == nil {
		viper.AddConfigPath(home)
		viper.SetConfigName(".slate")
		viper.SetConfigType("yaml")
		if err := viper.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return fmt.Errorf("read config: %w", err)
			}
		}
	}
	return nil
}

func defaultHistoryPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "slate-history.db"
	}
	return filepath.Join(home, ".slate", "history.db")
}
