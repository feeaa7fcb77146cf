// Package app implements the ammolib command line.
package app

import (
	"io"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

const defaultLogLevel = logrus.WarnLevel

// globalFlags are shared by every command.
type globalFlags struct {
	configFile string
	envFile    string
	verbosity  string
}

func Run(args []string, out, stderr io.Writer) error {
	c := RootCommand(out, stderr)
	c.SetArgs(args)
	return c.Execute()
}

func RootCommand(out, stderr io.Writer) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "ammolib",
		Short:         "AMMO request builder and distributor tooling",
		SilenceErrors: true,
	}

	cmd.SetOut(out)
	cmd.SetErr(stderr)
	cmd.Root().SilenceUsage = true

	flags := &globalFlags{}
	config := &Config{}
	cmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		if err := loadConfig(config, flags.configFile, flags.envFile); err != nil {
			return err
		}

		level := flags.verbosity
		if level == "" {
			level = config.Logging.Level
		}
		if err := setUpLogger(stderr, level); err != nil {
			return err
		}

		return nil
	}

	logger := logrus.StandardLogger()
	cmd.AddCommand(NewCmdConfig(out, config))
	cmd.AddCommand(NewCmdValidate(out))
	cmd.AddCommand(NewCmdVersion(out))
	cmd.AddCommand(NewCmdInspect(out, logger.WithField("cmd", "inspect")))
	cmd.AddCommand(NewCmdRequest(out, logger.WithField("cmd", "request"), config))
	cmd.AddCommand(NewCmdStore(out, logger.WithField("cmd", "store"), config))
	cmd.AddCommand(NewCmdServer(logger.WithField("cmd", "server"), config))

	cmd.PersistentFlags().StringVarP(&flags.verbosity, "verbosity", "v", "", "Log level (debug, info, warn, error, fatal, panic)")
	cmd.PersistentFlags().StringVarP(&flags.configFile, "config", "c", "", "Configuration file")
	cmd.PersistentFlags().StringVar(&flags.envFile, "env-file", ".env", "Environment file loaded before the configuration")

	return cmd
}

func setUpLogger(out io.Writer, level string) error {
	if level == "" {
		level = defaultLogLevel.String()
	}
	logrus.SetOutput(out)
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return errors.Wrap(err, "parsing log level")
	}
	logrus.SetLevel(lvl)
	return nil
}
