// Package daemon installs the batterywidget daemon as a systemd service.
package daemon

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
)

var (
	unitPath = "/etc/systemd/system/batterywidget.service"
)

const unitTemplate = `[Unit]
Description=batterywidget daemon
After=network-online.target
Wants=network-online.target

[Service]
ExecStart=/path/to/batterywidget daemon --settings /path/to/settings{{NON_ROOT}}
Restart=on-failure
RestartSec=5

[Install]
WantedBy=multi-user.target
`

// Unit returns the service unit running exePath with settingsPath.
func Unit(exePath, settingsPath string, allowNonRoot bool) string {
	unit := strings.ReplaceAll(unitTemplate, "/path/to/batterywidget", exePath)
	unit = strings.ReplaceAll(unit, "/path/to/settings", settingsPath)
	nonRoot := ""
	if allowNonRoot {
		nonRoot = " --always-allow-non-root-access"
	}
	return strings.ReplaceAll(unit, "{{NON_ROOT}}", nonRoot)
}

func Install(settingsPath string, allowNonRoot bool) error {
	// Get the path to the current executable
	exePath, err := os.Executable()
	if err != nil {
		return fmt.Errorf("failed to get the path to the current executable: %w", err)
	}
	exePath, err = filepath.Abs(exePath)
	if err != nil {
		return fmt.Errorf("failed to get the absolute path to the current executable: %w", err)
	}

	err = os.Chmod(exePath, 0755)
	if err != nil {
		return fmt.Errorf("failed to chmod the current executable to 0755: %w", err)
	}

	logrus.Infof("current executable path: %s", exePath)

	// warn if the file already exists
	_, err = os.Stat(unitPath)
	if err == nil {
		logrus.Warnf("%s already exists, overwriting", unitPath)
	}

	logrus.Infof("writing service unit to %s", unitPath)

	err = os.WriteFile(unitPath, []byte(Unit(exePath, settingsPath, allowNonRoot)), 0644)
	if err != nil {
		return fmt.Errorf("failed to write %s: %w", unitPath, err)
	}

	logrus.Infof("starting batterywidget")

	for _, args := range [][]string{
		{"daemon-reload"},
		{"enable", "--now", filepath.Base(unitPath)},
	} {
		if out, err := exec.Command("systemctl", args...).CombinedOutput(); err != nil {
			return fmt.Errorf("systemctl %s failed: %w: %s", strings.Join(args, " "), err, out)
		}
	}

	return nil
}
