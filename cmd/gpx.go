package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"raceday-api/gpx"
)

type gpxReport struct {
	File   string `json:"file"`
	Points int    `json:"points"`
	gpx.Stats
}

func gpxCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "gpx [route.gpx]",
		Short: "Print distance, ascent and descent of a GPX file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}

			res := gpx.Analyze(data)
			if !res.Parsed() {
				return fmt.Errorf("%s: %w", args[0], res.Err)
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(gpxReport{File: args[0], Points: res.Points, Stats: res.Stats})
		},
	}
}
