package main

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/khaledhikmat/wildwatch-go/dispatch"
	"github.com/khaledhikmat/wildwatch-go/model"
)

var (
	classifyHeight     int
	classifyConfidence float64
	classifyCamera     string
)

var classifyCmd = &cobra.Command{
	Use:   "classify <label>",
	Short: "Show how a detection would be handled",
	Long: `Run one detection through the processor and the router without
sending anything: danger tier, estimated distance, proximity and the
channels and recipients that would be notified.

Example:
  wildwatch classify person --height 420`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfgSvc, err := loadConfig()
		if err != nil {
			return err
		}

		processor := newProcessor(cfgSvc)
		raw := model.RawDetection{
			CameraID:   classifyCamera,
			Category:   args[0],
			Confidence: classifyConfidence,
			Box:        model.BBox{Height: classifyHeight},
		}
		d := processor.Decide(raw, time.Now())

		result := map[string]interface{}{
			"label":    raw.Category,
			"decision": d.Reason,
		}
		if d.Emitted() {
			route := dispatch.NewDispatcher(cfgSvc.GetContacts(), cfgSvc.GetAlertParameters()).Route(d.Event)
			result["tier"] = d.Tier
			result["distance"] = distanceColumn(d.Event)
			result["proximity"] = d.Proximity
			result["message"] = dispatch.Render(d.Event).Text
			result["route"] = route
		}

		if output == "json" {
			data, err := json.MarshalIndent(result, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(data))
			return nil
		}

		fmt.Printf("%-10s %s\n", "label", raw.Category)
		fmt.Printf("%-10s %s\n", "decision", d.Reason)
		if !d.Emitted() {
			return nil
		}

		route := result["route"].(dispatch.Route)
		fmt.Printf("%-10s %s\n", "tier", d.Tier)
		fmt.Printf("%-10s %s\n", "distance", result["distance"])
		fmt.Printf("%-10s %v\n", "proximity", d.Proximity)
		fmt.Printf("%-10s %s\n", "message", result["message"])
		if route.LoggedOnly {
			fmt.Printf("%-10s %s\n", "route", "logged only")
			return nil
		}
		fmt.Printf("%-10s %s\n", "sms", strings.Join(route.SMS, ", "))
		fmt.Printf("%-10s %s\n", "email", strings.Join(route.Email, ", "))
		fmt.Printf("%-10s %s\n", "sound", route.Cue)
		fmt.Printf("%-10s record=%v tampering=%v\n", "flags", route.RecordVideo, route.PossibleTampering)
		return nil
	},
}

func init() {
	classifyCmd.Flags().IntVar(&classifyHeight, "height", 0, "bounding box height in pixels (0 for unknown distance)")
	classifyCmd.Flags().Float64Var(&classifyConfidence, "confidence", 1, "detector confidence")
	classifyCmd.Flags().StringVar(&classifyCamera, "camera", "cli", "camera id, for per-camera focal length")
	rootCmd.AddCommand(classifyCmd)
}
