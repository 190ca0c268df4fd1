package main

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	daemonutils "github.com/xiaoha/batterywidget/pkg/utils/daemon"
)

var gInstallation = "Installation:"

func init() {
	commandGroups = append(commandGroups, gInstallation)
}

// NewInstallCommand .
func NewInstallCommand() *cobra.Command {
	allowNonRootAccess := false

	cmd := &cobra.Command{
		Use:     "install",
		Short:   "Install batterywidget daemon as a systemd service",
		GroupID: gInstallation,
		Long: `Install batterywidget daemon as a systemd service.

This makes the daemon run in the background and start on boot. You must run this command as root.

By default, only root is allowed to access the daemon socket. Use --allow-non-root-access to let your user control widgets without sudo.`,
		RunE: func(_ *cobra.Command, _ []string) error {
			if allowNonRootAccess {
				logrus.Info("non-root users are allowed to access the batterywidget daemon.")
			} else {
				logrus.Info("only root user is allowed to access the batterywidget daemon.")
			}

			err := daemonutils.Install(settingsPath, allowNonRootAccess)
			if err != nil {
				// check if current user is root
				if os.Geteuid() != 0 {
					logrus.Errorf("you must run this command as root")
				}
				return fmt.Errorf("failed to install daemon: %v. Are you root?", err)
			}

			logrus.Infof("installation succeeded")
			return nil
		},
	}

	cmd.Flags().BoolVar(&allowNonRootAccess, "allow-non-root-access", false, "Allow non-root users to access the batterywidget daemon.")

	return cmd
}

// NewUninstallCommand .
func NewUninstallCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "uninstall",
		Short:   "Uninstall the batterywidget systemd service",
		GroupID: gInstallation,
		Long: `Uninstall the batterywidget systemd service.

This stops the daemon and removes its unit. Saved widget configuration is kept. You must run this command as root.`,
		RunE: func(_ *cobra.Command, _ []string) error {
			err := daemonutils.Uninstall()
			if err != nil {
				if os.Geteuid() != 0 {
					logrus.Errorf("you must run this command as root")
				}
				return fmt.Errorf("failed to uninstall daemon: %v. Are you root?", err)
			}

			logrus.Infof("successfully uninstalled batterywidget daemon")
			return nil
		},
	}
}
