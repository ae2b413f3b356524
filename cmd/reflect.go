/*
Copyright © 2025 Joseph Goksu josephgoksu@gmail.com
*/
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/josephgoksu/Wayline/internal/app"
	"github.com/josephgoksu/Wayline/internal/ui"
)

var reflectCmd = &cobra.Command{
	Use:   "reflect <text>",
	Short: "Record a reflection and apply it to task priorities",
	Long: `Record a free-text note about your situation. It is classified once into a
constraint, opportunity, capacity, sequencing or information intent, and its
effects (blocked, demoted, boosted) are applied to matching tasks.`,
	Example: `  wayline reflect "Legal blocked all customer outreach until March"
  wayline reflect "Low energy this week" --tasks task-1a2b3c4d`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ids, _ := cmd.Flags().GetStringSlice("tasks")
		s, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer s.Close()

		res, err := app.NewReflectionApp(s.ctx).Submit(cmd.Context(), currentUser(), app.SubmitReflectionRequest{
			Text:    args[0],
			TaskIDs: splitIDs(ids),
		})
		if err != nil {
			return err
		}
		if isJSON() {
			return printJSON(res)
		}
		fmt.Printf("%s reflection %s\n", ui.Icon("✓", ui.StyleSuccess), res.Reflection.ID)
		if res.Intent != nil {
			fmt.Println(ui.StyleSubtle.Render(fmt.Sprintf("  %s/%s, %s: %s",
				res.Intent.Type, res.Intent.Subtype, res.Intent.Strength, res.Intent.Summary)))
		}
		fmt.Print(ui.RenderOutcome(res.Outcome, taskNames(s)))
		return nil
	},
}

var reflectionCmd = &cobra.Command{
	Use:     "reflection",
	Aliases: []string{"reflections"},
	Short:   "List and toggle reflections",
}

var reflectionListCmd = &cobra.Command{
	Use:   "list",
	Short: "List reflections and the current task effects",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer s.Close()

		list, err := app.NewReflectionApp(s.ctx).List(currentUser())
		if err != nil {
			return err
		}
		if isJSON() {
			return printJSON(list)
		}
		fmt.Print(ui.RenderReflections(*list))
		if len(list.Effects) > 0 {
			fmt.Println()
			fmt.Print(ui.RenderEffects(list.Effects, taskNames(s)))
		}
		return nil
	},
}

var reflectionToggleCmd = &cobra.Command{
	Use:       "toggle <reflection-id> <on|off>",
	Short:     "Activate or deactivate a reflection",
	Long:      `Switch a reflection on or off. Effects are recomputed from cached intents, so no AI call is made.`,
	Args:      cobra.ExactArgs(2),
	ValidArgs: []string{"on", "off"},
	RunE: func(cmd *cobra.Command, args []string) error {
		active, err := parseSwitch(args[1])
		if err != nil {
			return err
		}
		s, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer s.Close()

		res, err := app.NewReflectionApp(s.ctx).Toggle(cmd.Context(), currentUser(), args[0], active)
		if err != nil {
			return err
		}
		if isJSON() {
			return printJSON(res)
		}
		state := "off"
		if res.Active {
			state = "on"
		}
		fmt.Printf("%s reflection %s %s\n", ui.Icon("✓", ui.StyleSuccess), res.ReflectionID, state)
		fmt.Print(ui.RenderOutcome(res.Outcome, taskNames(s)))
		return nil
	},
}

func parseSwitch(v string) (bool, error) {
	switch v {
	case "on", "true", "1":
		return true, nil
	case "off", "false", "0":
		return false, nil
	}
	return false, fmt.Errorf("expected on or off, got %q", v)
}

func init() {
	rootCmd.AddCommand(reflectCmd, reflectionCmd)
	reflectionCmd.AddCommand(reflectionListCmd, reflectionToggleCmd)
	reflectCmd.Flags().StringSliceP("tasks", "t", nil, "tasks the reflection is about")
}
