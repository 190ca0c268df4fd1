package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/xiaoha/batterywidget/pkg/events"
	"github.com/xiaoha/batterywidget/pkg/render"
	"github.com/xiaoha/batterywidget/pkg/types"
)

func NewWatchCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "watch",
		GroupID: gAdvanced,
		Short:   "Follow widget renders as they happen",
		RunE: func(_ *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			// Fail fast with a useful error if the daemon is not there.
			if _, err := apiClient().GetVersion(); err != nil {
				return err
			}

			console := render.NewConsole(os.Stdout, formatter())
			for ev := range apiClient().SubscribeEvents(ctx) {
				logrus.WithFields(logrus.Fields{
					"event": ev.Name,
					"data":  string(ev.Data),
				}).Debug("new event")

				switch ev.Name {
				case events.WidgetRender:
					payload, err := events.DecodeAs[events.RenderEvent](ev)
					if err != nil {
						logrus.WithError(err).Error("failed to decode widget.render event")
						continue
					}
					console.Render(types.InstanceID(payload.Instance), renderEventState(payload))
				case events.WidgetConfigure:
					payload, err := events.DecodeAs[events.InstanceEvent](ev)
					if err != nil {
						logrus.WithError(err).Error("failed to decode widget.configure event")
						continue
					}
					console.OpenConfiguration(types.InstanceID(payload.Instance))
				case events.WidgetRemoved:
					payload, _ := events.DecodeAs[events.InstanceEvent](ev)
					logrus.Infof("widget %d removed", payload.Instance)
				case events.WidgetDisabled:
					logrus.Info("all widgets disabled")
				}
			}

			return nil
		},
	}
}

func renderEventState(e events.RenderEvent) types.DisplayState {
	switch types.DisplayKind(e.Kind) {
	case types.DisplayOk:
		return types.Ok(e.Percentage, e.ReportedAt, e.BatteryID)
	case types.DisplayError:
		return types.ErrorState(types.Reason(e.Reason))
	default:
		return types.Unconfigured()
	}
}
