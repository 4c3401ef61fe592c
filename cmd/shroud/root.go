package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

var version = "dev"

// app carries the state shared by every subcommand once flags are parsed.
type app struct {
	v     *viper.Viper
	cfg   *config
	log   *zap.Logger
	stdin *os.File
}

// Execute runs the CLI and returns the process exit code.
func Execute() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	a := &app{v: newViper(), log: zap.NewNop(), stdin: os.Stdin}
	rootCmd := newRootCmd(a)
	err := rootCmd.ExecuteContext(ctx)
	_ = a.log.Sync()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

func newRootCmd(a *app) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "shroud",
		Short:         "Privacy layer for tabular customer data",
		Long:          "Classify, pseudonymize, mask, merge and vault tabular record sets containing personal data.",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(a.v, cmd.Flags())
			if err != nil {
				return err
			}
			log, err := newLogger(cfg.LogLevel, cmd.ErrOrStderr())
			if err != nil {
				return fmt.Errorf("invalid log level: %w", err)
			}
			a.cfg, a.log = cfg, log
			return nil
		},
	}
	addGlobalFlags(rootCmd.PersistentFlags())
	_ = a.v.BindEnv(keyPassword)

	rootCmd.AddCommand(newClassifyCmd(a))
	rootCmd.AddCommand(newProcessCmd(a))
	rootCmd.AddCommand(newStoreCmd(a))
	rootCmd.AddCommand(newRetrieveCmd(a))
	rootCmd.AddCommand(newVerifyCmd(a))
	rootCmd.AddCommand(newDeleteCmd(a))
	rootCmd.AddCommand(newListCmd(a))
	rootCmd.AddCommand(newMaskCmd(a))
	rootCmd.AddCommand(newMergeCmd(a))
	return rootCmd
}

func (a *app) password(cmd *cobra.Command) (string, error) {
	return readPassword(a.v, a.stdin, cmd.ErrOrStderr())
}
