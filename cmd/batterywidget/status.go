package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/xiaoha/batterywidget/pkg/render"
	"github.com/xiaoha/batterywidget/pkg/types"
	"github.com/xiaoha/batterywidget/pkg/widget"
)

func NewStatusCommand() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:     "status [instance]",
		GroupID: gBasic,
		Short:   "Show widget configuration and display state",
		Long:    `Show the configuration, display state and refresh schedule of one or all widgets.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			var list []widget.Status
			if len(args) > 0 {
				id, err := parseInstanceArg(args)
				if err != nil {
					return err
				}
				st, err := apiClient().GetInstance(id)
				if err != nil {
					return fmt.Errorf("failed to get widget status: %w", err)
				}
				list = []widget.Status{*st}
			} else {
				var err error
				list, err = apiClient().ListInstances()
				if err != nil {
					return fmt.Errorf("failed to get widget status: %w", err)
				}
			}

			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(list)
			}

			if len(list) == 0 {
				cmd.Println("No widgets placed.")
				return nil
			}

			console := render.NewConsole(os.Stdout, formatter())
			for i, st := range list {
				if i > 0 {
					cmd.Println()
				}
				printStatus(cmd, console, st)
			}

			if info, err := apiClient().GetDaemonInfo(); err == nil {
				cmd.Println()
				printDaemonInfo(cmd, info)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print status as JSON")

	return cmd
}

func printStatus(cmd *cobra.Command, console *render.Console, st widget.Status) {
	id := st.Config.ID
	cmd.Println(bold("Widget %s:", id))

	if st.Config.Configured() {
		cmd.Printf("  Battery: %s\n", bold("%s", st.Config.BatteryID))
		cmd.Printf("  Region: %s\n", st.Config.RegionCode)
		cmd.Printf("  API: %s\n", st.Config.BaseURL)
		cmd.Printf("  Refresh interval: %s\n", bold("%d minutes", st.Config.RefreshIntervalMinutes))
	} else {
		cmd.Printf("  Configured: %s\n", bool2Text(false))
	}

	if st.State == nil {
		cmd.Println("  Not updated since the daemon started.")
		return
	}

	cmd.Printf("  Display: %s\n", console.Line(id, st.State.Display))
	cmd.Printf("  Fetch: %s", st.State.Fetch.Phase)
	if st.State.Fetch.Phase == types.FetchInFlight {
		cmd.Printf(" (since %s)", st.State.Fetch.StartedAt.In(displayLocation).Format(render.ReportTimeLayout))
	}
	cmd.Println()
	cmd.Printf("  Periodic refresh armed: %s\n", bool2Text(st.State.Armed))
}

func printDaemonInfo(cmd *cobra.Command, info *types.DaemonInfo) {
	if info.HostUpdate == nil {
		cmd.Printf("Periodic host update: %s\n", bool2Text(false))
		return
	}
	cmd.Printf("Next host update: %s\n", bold("%s", info.HostUpdate.NextRun.In(displayLocation).Format(render.ReportTimeLayout)))
}
