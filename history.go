package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/khaledhikmat/wildwatch-go/model"
	"github.com/khaledhikmat/wildwatch-go/service/data"
)

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recent alerts",
	Long: `Show the most recent alerts and what each channel did with them.

Example:
  wildwatch history --limit 20 --output json`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfgSvc, err := loadConfig()
		if err != nil {
			return err
		}

		dataSvc, err := data.New(cfgSvc)
		if err != nil {
			return fmt.Errorf("open data service: %w", err)
		}
		defer dataSvc.Finalize()

		records, err := dataSvc.RetrieveAlerts(historyLimit)
		if err != nil {
			return fmt.Errorf("retrieve alerts: %w", err)
		}

		if output == "json" {
			out, err := json.MarshalIndent(records, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(out))
			return nil
		}

		if len(records) == 0 {
			fmt.Println("No alerts found.")
			return nil
		}

		fmt.Printf("\n%-19s  %-12s  %-10s  %-14s  %-10s  %-8s  %s\n",
			"TIME", "CAMERA", "KIND", "CATEGORY", "DISTANCE", "STATUS", "CHANNELS")
		fmt.Println(strings.Repeat("-", 100))
		for _, r := range records {
			fmt.Printf("%-19s  %-12s  %-10s  %-14s  %-10s  %-8s  %s\n",
				r.Event.Timestamp.Local().Format("2006-01-02 15:04:05"),
				r.Event.CameraID,
				r.Event.Kind(),
				r.Event.Category,
				distanceColumn(r.Event),
				r.Status,
				channelsColumn(r.Result),
			)
		}
		fmt.Printf("\nTotal: %d alert(s)\n", len(records))
		return nil
	},
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "number of alerts to show (0 for all)")
	rootCmd.AddCommand(historyCmd)
}

func distanceColumn(e model.AlertEvent) string {
	if !e.HasDistance() {
		return "unknown"
	}
	return fmt.Sprintf("%.0fcm", e.DistanceCM)
}

func channelsColumn(r model.DispatchResult) string {
	if r.LoggedOnly {
		return "logged only"
	}
	if len(r.Channels) == 0 {
		return "none"
	}
	parts := make([]string, 0, len(r.Channels))
	for _, c := range r.Channels {
		mark := "ok"
		if !c.Success {
			mark = "failed"
		}
		parts = append(parts, c.Channel+":"+mark)
	}
	return strings.Join(parts, " ")
}
