/*
Copyright © 2025 Joseph Goksu josephgoksu@gmail.com
*/
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/josephgoksu/Wayline/internal/app"
	"github.com/josephgoksu/Wayline/internal/logger"
	"github.com/josephgoksu/Wayline/internal/reasoning"
	"github.com/josephgoksu/Wayline/internal/ui"
)

var reasonCmd = &cobra.Command{
	Use:   "reason [goal]",
	Short: "Order tasks toward a goal",
	Long: `Run a bounded reasoning session over your tasks: query the graph, infer
missing dependencies, pull in document context, then order the tasks into a
plan with parallel waves and per-task confidence.

Without a goal argument the active goal is used.`,
	Example: `  wayline reason
  wayline reason "Launch the beta" --tasks task-1a2b3c4d,task-5e6f7a8b`,
	Args: cobra.MaximumNArgs(1),
	RunE: runReason,
}

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Inspect reasoning sessions",
}

var sessionShowCmd = &cobra.Command{
	Use:   "show [session-id]",
	Short: "Print a session with its trace (default: the current session)",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		format, _ := cmd.Flags().GetString("format")
		if isJSON() {
			format = "json"
		}
		s, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer s.Close()

		sess, err := loadSession(app.NewReasoningApp(s.ctx), args)
		if err != nil {
			return err
		}
		switch format {
		case "json":
			return printJSON(sess)
		case "yaml":
			enc := yaml.NewEncoder(os.Stdout)
			enc.SetIndent(2)
			if err := enc.Encode(sess); err != nil {
				return err
			}
			return enc.Close()
		case "text":
			fmt.Print(ui.RenderSession(sess, taskNames(s)))
			return nil
		}
		return fmt.Errorf("unknown format %q (text, json or yaml)", format)
	},
}

func runReason(cmd *cobra.Command, args []string) error {
	ids, _ := cmd.Flags().GetStringSlice("tasks")
	req := app.StartRequest{TaskIDs: splitIDs(ids)}
	if len(args) == 1 {
		req.GoalText = args[0]
		logger.SetGoal(args[0])
	}

	s, err := openApp(cmd.Context())
	if err != nil {
		return err
	}
	defer s.Close()

	res, err := app.NewReasoningApp(s.ctx).Start(cmd.Context(), currentUser(), req)
	if err != nil {
		return err
	}
	if isJSON() {
		return printJSON(res)
	}
	fmt.Print(ui.RenderPlan(*res, taskNames(s)))
	if res.Status == reasoning.StatusCompleted {
		fmt.Println(ui.StyleSubtle.Render("\nLook for missing steps with: wayline gaps"))
	}
	return nil
}

func loadSession(a *app.ReasoningApp, args []string) (*reasoning.Session, error) {
	if len(args) == 1 {
		return a.Session(currentUser(), args[0])
	}
	return a.Current(currentUser())
}

func init() {
	rootCmd.AddCommand(reasonCmd, sessionCmd)
	sessionCmd.AddCommand(sessionShowCmd)

	reasonCmd.Flags().StringSliceP("tasks", "t", nil, "restrict the session to these task ids")
	sessionShowCmd.Flags().StringP("format", "f", "text", "output format: text, json or yaml")
}
