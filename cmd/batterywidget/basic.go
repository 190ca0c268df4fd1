package main

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/xiaoha/batterywidget/pkg/config"
	"github.com/xiaoha/batterywidget/pkg/render"
	"github.com/xiaoha/batterywidget/pkg/version"
)

func NewVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version",
		Run: func(cmd *cobra.Command, _ []string) {
			cmd.Printf("%s %s\n", version.Version, version.GitCommit)
		},
	}
}

func NewConfigureCommand() *cobra.Command {
	var u config.Update

	cmd := &cobra.Command{
		Use:     "configure [instance]",
		Short:   "Choose the battery shown by a widget",
		GroupID: gBasic,
		Long: `Choose the battery shown by a widget.

The daemon checks the battery against the battery API before saving it, then
updates the widget right away.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseInstanceArg(args)
			if err != nil {
				return err
			}

			st, err := apiClient().Configure(id, u)
			if err != nil {
				return fmt.Errorf("failed to configure widget: %v", err)
			}

			logrus.WithFields(st.Config.LogrusFields()).Infof("successfully configured widget %s", id)
			if st.State != nil {
				cmd.Println(render.NewConsole(os.Stdout, formatter()).Line(id, st.State.Display))
			}

			return nil
		},
	}

	f := cmd.Flags()
	f.StringVarP(&u.BatteryID, "battery", "b", "", "battery id (required)")
	f.StringVar(&u.RegionCode, "region", "", "region code (default 0755)")
	f.StringVar(&u.BaseURL, "base-url", "", "battery API base url")
	f.IntVar(&u.RefreshIntervalMinutes, "interval", 0, "refresh interval in minutes (default 30)")
	_ = cmd.MarkFlagRequired("battery")

	return cmd
}

func NewUpdateCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "update [instance...]",
		Short:   "Refresh widgets as if the host asked for an update",
		GroupID: gBasic,
		Long: `Refresh widgets as if the host asked for an update.

Without arguments every configured widget is updated. Each updated widget is
also re-armed for its periodic refresh.`,
		RunE: func(_ *cobra.Command, args []string) error {
			ids, err := parseInstanceArgs(args)
			if err != nil {
				return err
			}

			if err := apiClient().Update(ids...); err != nil {
				return fmt.Errorf("failed to update widgets: %v", err)
			}

			logrus.Infof("successfully updated widgets")
			return nil
		},
	}
}

func NewTapCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "tap [instance]",
		Short:   "Tap a widget",
		GroupID: gAdvanced,
		Long: `Tap a widget.

A single tap opens the configuration. Two taps within 500ms refresh the widget
immediately.`,
		RunE: func(_ *cobra.Command, args []string) error {
			id, err := parseInstanceArg(args)
			if err != nil {
				return err
			}

			kind, err := apiClient().Tap(id)
			if err != nil {
				return fmt.Errorf("failed to tap widget: %v", err)
			}

			logrus.Infof("%s tap on widget %s", kind, id)
			return nil
		},
	}
}

func NewRefreshCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "refresh [instance]",
		Short:   "Refresh a widget now",
		GroupID: gBasic,
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseInstanceArg(args)
			if err != nil {
				return err
			}

			res, err := apiClient().Refresh(id)
			if err != nil {
				return fmt.Errorf("failed to refresh widget: %v", err)
			}

			if !res.Rendered {
				logrus.Infof("a refresh of widget %s is already in progress", id)
				return nil
			}
			cmd.Println(render.NewConsole(os.Stdout, formatter()).Line(id, res.State))
			return nil
		},
	}
}

func NewRemoveCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "remove [instance]",
		Short:   "Remove a widget and forget its configuration",
		GroupID: gBasic,
		RunE: func(_ *cobra.Command, args []string) error {
			id, err := parseInstanceArg(args)
			if err != nil {
				return err
			}

			if err := apiClient().Remove(id); err != nil {
				return fmt.Errorf("failed to remove widget: %v", err)
			}

			logrus.Infof("successfully removed widget %s", id)
			return nil
		},
	}
}

func NewDisableCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "disable",
		Short:   "Stop all widgets",
		GroupID: gAdvanced,
		Long: `Stop all widgets.

Every periodic refresh is cancelled and in-memory state is dropped, as when the
last widget is removed from the host. Saved configuration is kept; run
"batterywidget update" to start again.`,
		RunE: func(_ *cobra.Command, _ []string) error {
			if err := apiClient().Disable(); err != nil {
				return fmt.Errorf("failed to disable widgets: %v", err)
			}

			logrus.Infof("successfully disabled all widgets")
			return nil
		},
	}
}
