// Package commands implements the ownid-sample CLI.
package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/ownid/ownid-go/internal/logger"
	"github.com/ownid/ownid-go/internal/sampleconfig"
)

var version = "dev"

// SetVersion sets the version reported by the version command.
func SetVersion(v string) {
	version = v
}

// RootOptions holds the global flags and the state derived from them.
type RootOptions struct {
	ConfigFile string
	LogLevel   string
	LogFormat  string
	RedisAddr  string
	Locale     string

	Config  sampleconfig.Config
	Context context.Context
	cancel  context.CancelFunc
}

// Execute runs the root command.
func Execute() error {
	return NewRootCmd().Execute()
}

// NewRootCmd builds the command tree.
func NewRootCmd() *cobra.Command {
	opts := &RootOptions{}

	root := &cobra.Command{
		Use:   "ownid-sample",
		Short: "Passwordless register and login sample",
		Long: `ownid-sample drives a passwordless flow the way a host application would:
it validates the email, launches the flow, and dispatches the result to the
backend, falling back to login-and-link when the account has a password.

Without --redis-addr the backend runs on an in-process Redis that is
discarded on exit.`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		CompletionOptions: cobra.CompletionOptions{DisableDefaultCmd: true},
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return opts.initialize(cmd)
		},
		PersistentPostRun: func(_ *cobra.Command, _ []string) {
			if opts.cancel != nil {
				opts.cancel()
			}
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&opts.ConfigFile, "config", "", "config file (default: ./ownid-sample.yaml, ~/.config/ownid/sample.yaml)")
	flags.StringVar(&opts.LogLevel, "log-level", "", "log level: debug, info, warn, error (default: warn)")
	flags.StringVar(&opts.LogFormat, "log-format", "", "log format: text or json (default: text)")
	flags.StringVar(&opts.RedisAddr, "redis-addr", "", "redis address (default: in-process redis)")
	flags.StringVar(&opts.Locale, "locale", "", "locale passed to the flow (default: en)")

	root.AddCommand(newVersionCmd())
	root.AddCommand(newRegisterCmd(opts))
	root.AddCommand(newLoginCmd(opts))
	return root
}

func (o *RootOptions) initialize(cmd *cobra.Command) error {
	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	o.Context = ctx
	o.cancel = cancel

	result, err := sampleconfig.Load(sampleconfig.LoadOptions{
		ConfigFile: o.ConfigFile,
		Flags:      configFlags(cmd),
	})
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	o.Config = result.Config

	logger.SetDefault(logger.New(logger.Config{
		Level:  logger.Level(o.Config.Logging.Level),
		Format: logger.Format(o.Config.Logging.Format),
		Output: cmd.ErrOrStderr(),
	}))
	if result.ConfigFileUsed != "" {
		logger.Default().Debug("loaded configuration", "file", result.ConfigFileUsed)
	}
	return nil
}

// configFlags collects the local and inherited flags that override config keys.
func configFlags(cmd *cobra.Command) *pflag.FlagSet {
	flags := pflag.NewFlagSet("config", pflag.ContinueOnError)
	for _, name := range []string{"locale", "redis-addr", "log-level", "log-format", "metrics", "audit"} {
		if flags.Lookup(name) != nil {
			continue
		}
		if f := cmd.Flags().Lookup(name); f != nil {
			flags.AddFlag(f)
		} else if f := cmd.InheritedFlags().Lookup(name); f != nil {
			flags.AddFlag(f)
		}
	}
	return flags
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "ownid-sample %s\n", version)
			return err
		},
	}
}
