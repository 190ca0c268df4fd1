package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/xiaoha/batterywidget/pkg/client"
	"github.com/xiaoha/batterywidget/pkg/version"
)

var (
	logLevel       = "info"
	unixSocketPath = "/var/run/batterywidget.sock"
	settingsPath   = "/etc/batterywidget/batterywidget.toml"
	language       = "zh"
	timeZone       = "Asia/Shanghai"
)

var (
	gBasic        = "Basic:"
	gAdvanced     = "Advanced:"
	commandGroups = []string{
		gBasic,
		gAdvanced,
	}
)

func setupLogger() error {
	level, err := logrus.ParseLevel(logLevel)
	if err != nil {
		return fmt.Errorf("failed to parse log level: %v", err)
	}
	logrus.SetLevel(level)
	logrus.SetFormatter(&logrus.TextFormatter{})
	if term.IsTerminal(int(os.Stderr.Fd())) {
		logrus.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: time.Kitchen,
		})
	}

	return nil
}

func handleCmdError(err error) {
	if errors.Is(err, client.ErrDaemonNotRunning) {
		fmt.Fprintln(os.Stderr, "\nError: batterywidget daemon is not running")
		fmt.Fprintln(os.Stderr, "Start it with 'batterywidget daemon' or check --daemon-socket.")
	} else if errors.Is(err, client.ErrPermissionDenied) {
		fmt.Fprintln(os.Stderr, "\nError: Permission Denied")
		fmt.Fprintln(os.Stderr, "  - Try running the command again with 'sudo'")
		fmt.Fprintln(os.Stderr, "  - Or start the daemon with '--always-allow-non-root-access' to grant permissions to your user")
	}
}

func apiClient() *client.Client {
	return client.NewClient(unixSocketPath)
}

func main() {
	cmd := NewCommand()
	if err := cmd.Execute(); err != nil {
		handleCmdError(err)
		os.Exit(1)
	}
}

func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "batterywidget",
		Short: "batterywidget shows the charge of a shared power bank as a widget",
		Long: `batterywidget shows the charge of a shared power bank as a widget.

A daemon polls the battery API for every placed widget, renders its
surface and answers host events (tap, update, removal) over a unix socket.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			err := setupLogger()
			if err != nil {
				return err
			}

			if cmd.Name() == "daemon" {
				return nil
			}
			if err := resolveClientSettings(cmd.Flags().Changed); err != nil {
				return err
			}
			if cmd.Name() == "version" {
				return nil
			}

			if daemonVersion, err := apiClient().GetVersion(); err == nil {
				if daemonVersion != version.Version {
					logrus.WithFields(logrus.Fields{
						"clientVersion": version.Version,
						"daemonVersion": daemonVersion,
					}).Warn("Version mismatch between client and daemon. Restart the daemon after upgrading.")
				}
			}

			return nil
		},
	}

	globalFlags := cmd.PersistentFlags()
	globalFlags.StringVarP(&logLevel, "log-level", "l", "info", "log level (trace, debug, info, warn, error, fatal, panic)")
	globalFlags.StringVar(&settingsPath, "settings", settingsPath, "daemon settings file path")
	globalFlags.StringVar(&unixSocketPath, "daemon-socket", unixSocketPath, "batterywidget daemon unix socket path")
	globalFlags.StringVar(&language, "language", language, "display language (zh, en)")
	globalFlags.StringVar(&timeZone, "time-zone", timeZone, "time zone of printed report times (empty for local time)")

	for _, i := range commandGroups {
		cmd.AddGroup(&cobra.Group{
			ID:    i,
			Title: i,
		})
	}

	cmd.AddCommand(
		NewDaemonCommand(),
		NewVersionCommand(),
		NewConfigureCommand(),
		NewUpdateCommand(),
		NewTapCommand(),
		NewRefreshCommand(),
		NewRemoveCommand(),
		NewDisableCommand(),
		NewStatusCommand(),
		NewWatchCommand(),
		NewInstallCommand(),
		NewUninstallCommand(),
	)

	return cmd
}
