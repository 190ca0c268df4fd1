package main

import (
	"fmt"

	"github.com/fatih/color"

	"github.com/xiaoha/batterywidget/pkg/render"
	"github.com/xiaoha/batterywidget/pkg/types"
)

func parseInstanceArg(args []string) (types.InstanceID, error) {
	if len(args) != 1 {
		return 0, fmt.Errorf("invalid number of arguments")
	}

	id, err := types.ParseInstanceID(args[0])
	if err != nil {
		return 0, fmt.Errorf("invalid instance id: %v", err)
	}

	return id, nil
}

func parseInstanceArgs(args []string) ([]types.InstanceID, error) {
	ids := make([]types.InstanceID, 0, len(args))
	for _, a := range args {
		id, err := types.ParseInstanceID(a)
		if err != nil {
			return nil, fmt.Errorf("invalid instance id: %v", err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func formatter() render.Formatter {
	return render.NewFormatter(displayLocation, render.Language(language))
}

func bool2Text(b bool) string {
	if b {
		return color.New(color.Bold, color.FgGreen).Sprint("✔")
	}
	return color.New(color.Bold, color.FgRed).Sprint("✘")
}

func bold(format string, a ...interface{}) string {
	return color.New(color.Bold).Sprintf(format, a...)
}
