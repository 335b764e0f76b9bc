package main

import (
	"encoding/json"
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
	"gocv.io/x/gocv"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		info := map[string]string{
			"version": version,
			"commit":  commit,
			"go":      runtime.Version(),
			"opencv":  gocv.OpenCVVersion(),
		}
		if output == "json" {
			data, _ := json.MarshalIndent(info, "", "  ")
			fmt.Println(string(data))
			return
		}
		fmt.Printf("wildwatch %s (commit %s, %s, OpenCV %s)\n", info["version"], info["commit"], info["go"], info["opencv"])
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
