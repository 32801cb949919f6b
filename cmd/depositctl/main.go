// Command depositctl manages users, repositories and access grants of a
// deposit directly through the configured store.
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/livrasand/gitdeposit/internal/config"
	"github.com/livrasand/gitdeposit/internal/deposit"
	"github.com/livrasand/gitdeposit/internal/git"
	"github.com/livrasand/gitdeposit/internal/utils"
)

var Version = "0.1.0-dev"

// app is the state shared by every subcommand, built before any of them runs.
type app struct {
	cfg     *config.Config
	service *deposit.Service
	// password is read by user add when --password is not given.
	password func(label string) (string, error)
}

func newRootCmd() *cobra.Command {
	a := &app{password: promptPassword}
	var logLevel string

	rootCmd := &cobra.Command{
		Use:           "depositctl",
		Short:         "Manage users and repositories of a git deposit",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			_ = godotenv.Load()
			a.cfg = config.Load()
			if cmd.Flags().Changed("log-level") || os.Getenv("LOG_LEVEL") == "" {
				a.cfg.LogLevel = logLevel
			}
			utils.InitLogger(a.cfg)

			st, err := deposit.OpenStore(a.cfg)
			if err != nil {
				return err
			}
			a.service = deposit.NewService(st, a.cfg, git.NewRunner(a.cfg.GitBinary))
			return nil
		},
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "Log level (debug, info, warn, error)")

	rootCmd.AddCommand(newUserCmd(a))
	rootCmd.AddCommand(newRepoCmd(a))
	rootCmd.AddCommand(newGrantCmd(a))
	rootCmd.AddCommand(newRevokeCmd(a))
	rootCmd.AddCommand(newStatsCmd(a))
	return rootCmd
}

func run(args []string, stdout, stderr io.Writer) int {
	rootCmd := newRootCmd()
	rootCmd.SetArgs(args)
	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(stderr, errorMessage(err))
		return 1
	}
	return 0
}

func main() {
	code := run(os.Args[1:], os.Stdout, os.Stderr)
	utils.Sync()
	os.Exit(code)
}
