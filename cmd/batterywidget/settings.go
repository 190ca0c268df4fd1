package main

import (
	"time"

	"github.com/sirupsen/logrus"

	"github.com/xiaoha/batterywidget/pkg/settings"
)

// displayLocation is the zone report times are printed in.
var displayLocation = time.Local

// resolveClientSettings reads the daemon settings file so the client dials
// the same socket and prints times like the daemon renders them. Flags set
// on the command line win. An unreadable settings file leaves the flag
// defaults in place.
func resolveClientSettings(changed func(name string) bool) error {
	conf, err := settings.LoadFromFile(settingsPath)
	if err != nil {
		logrus.WithField("path", settingsPath).Debugf("using default settings: %v", err)
		conf = settings.Default()
	}

	if !changed("daemon-socket") && conf.SocketPath != "" {
		unixSocketPath = conf.SocketPath
	}
	if !changed("language") && conf.Language != "" {
		language = conf.Language
	}
	if !changed("time-zone") {
		timeZone = conf.TimeZone
	}

	zone := settings.Default()
	zone.TimeZone = timeZone
	loc, err := zone.Location()
	if err != nil {
		return err
	}
	displayLocation = loc

	logrus.WithFields(logrus.Fields{
		"socketPath": unixSocketPath,
		"timeZone":   loc.String(),
		"language":   language,
	}).Debug("client settings resolved")
	return nil
}
