/*
Copyright © 2025 Joseph Goksu josephgoksu@gmail.com
*/
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/josephgoksu/Wayline/internal/config"
	"github.com/josephgoksu/Wayline/internal/housekeeping"
	"github.com/josephgoksu/Wayline/internal/ui"
)

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Delete sessions and analyses older than the retention window",
	RunE: func(cmd *cobra.Command, args []string) error {
		retention, err := config.LoadRetentionConfig()
		if err != nil {
			return err
		}
		s, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer s.Close()

		res, err := housekeeping.NewSweeper(s.ctx.Store, retention.Window, retention.SweepInterval).RunOnce()
		if err != nil {
			return err
		}
		if isJSON() {
			return printJSON(res)
		}
		fmt.Printf("%s removed %d sessions and %d analyses older than %s\n",
			ui.Icon("✓", ui.StyleSuccess), res.Sessions, res.Analyses, retention.Window)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(sweepCmd)
}
