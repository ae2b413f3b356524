/*
Copyright © 2025 Joseph Goksu josephgoksu@gmail.com
*/
package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/josephgoksu/Wayline/internal/app"
	"github.com/josephgoksu/Wayline/internal/logger"
	"github.com/josephgoksu/Wayline/internal/memory"
	"github.com/josephgoksu/Wayline/internal/ui"
)

var goalCmd = &cobra.Command{
	Use:   "goal",
	Short: "Set or show the active goal",
	Long: `The active goal is what ` + "`wayline reason`" + ` orders tasks toward when no
goal text is given. Each user has one active goal.`,
}

var goalSetCmd = &cobra.Command{
	Use:   "set <text>",
	Short: "Replace the active goal",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer s.Close()

		logger.SetGoal(args[0])
		if err := app.NewTaskApp(s.ctx).SetGoal(currentUser(), args[0]); err != nil {
			return err
		}
		if isJSON() {
			return printJSON(map[string]string{"goal": args[0]})
		}
		fmt.Printf("%s goal set\n", ui.Icon("✓", ui.StyleSuccess))
		return nil
	},
}

var goalShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the active goal",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer s.Close()

		goal, err := app.NewTaskApp(s.ctx).Goal(currentUser())
		if err != nil && !errors.Is(err, memory.ErrNotFound) {
			return err
		}
		if isJSON() {
			return printJSON(map[string]string{"goal": goal})
		}
		if goal == "" {
			fmt.Println(ui.StyleSubtle.Render("No active goal. Set one with `wayline goal set`."))
			return nil
		}
		fmt.Println(goal)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(goalCmd)
	goalCmd.AddCommand(goalSetCmd, goalShowCmd)
}
