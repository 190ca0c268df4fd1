package main

import (
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/xiaoha/batterywidget/pkg/daemon"
	"github.com/xiaoha/batterywidget/pkg/version"
)

var (
	// alwaysAllowNonRootAccess indicates whether to always allow non-root users to access the daemon.
	alwaysAllowNonRootAccess = false
)

// NewDaemonCommand .
func NewDaemonCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "daemon",
		Short:   "Run batterywidget daemon in the foreground",
		GroupID: gAdvanced,
		RunE: func(cmd *cobra.Command, _ []string) error {
			logrus.WithFields(logrus.Fields{
				"version": version.Version,
				"commit":  version.GitCommit,
			}).Info("batterywidget daemon starting")

			// Without an explicit flag the settings file decides.
			socket := ""
			if cmd.Flags().Changed("daemon-socket") {
				socket = unixSocketPath
			}
			return daemon.Run(settingsPath, socket, cmd.Flags().Changed("log-level"), alwaysAllowNonRootAccess)
		},
	}

	f := cmd.Flags()

	f.BoolVar(&alwaysAllowNonRootAccess, "always-allow-non-root-access", false,
		"Always allow non-root users to access the daemon.")

	return cmd
}
