/*
Copyright © 2025 Joseph Goksu josephgoksu@gmail.com
*/
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/josephgoksu/Wayline/internal/app"
	"github.com/josephgoksu/Wayline/internal/task"
	"github.com/josephgoksu/Wayline/internal/ui"
)

var taskCmd = &cobra.Command{
	Use:     "task",
	Aliases: []string{"tasks"},
	Short:   "Manage tasks and their dependencies",
}

var taskAddCmd = &cobra.Command{
	Use:   "add <text>",
	Short: "Add a task",
	Example: `  wayline task add "Design mockups" --effort 16 --depends-on task-1a2b3c4d
  wayline task add "Write launch post" --effort 2 --level low`,
	Args: cobra.ExactArgs(1),
	RunE: runTaskAdd,
}

var taskListCmd = &cobra.Command{
	Use:   "list",
	Short: "List tasks",
	RunE: func(cmd *cobra.Command, args []string) error {
		archived, _ := cmd.Flags().GetBool("archived")
		s, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer s.Close()

		list, err := app.NewTaskApp(s.ctx).List(currentUser(), archived)
		if err != nil {
			return err
		}
		if isJSON() {
			return printJSON(list)
		}
		fmt.Print(ui.RenderTasks(list.Tasks))
		return nil
	},
}

var taskShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show one task",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer s.Close()

		t, err := app.NewTaskApp(s.ctx).Get(currentUser(), args[0])
		if err != nil {
			return err
		}
		if isJSON() {
			return printJSON(t)
		}
		fmt.Println(ui.StyleTitle.Render(t.Text))
		fmt.Printf("  id       %s\n", t.ID)
		fmt.Printf("  effort   %.2fh\n", t.EstimatedEffort)
		fmt.Printf("  level    %s\n", t.CognitionLevel)
		fmt.Printf("  source   %s\n", t.Source)
		if t.Archived {
			fmt.Println("  " + ui.StyleWarning.Render("archived"))
		}
		return nil
	},
}

var taskArchiveCmd = &cobra.Command{
	Use:   "archive <id>",
	Short: "Archive a task (it is never deleted)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer s.Close()

		if err := app.NewTaskApp(s.ctx).Archive(currentUser(), args[0]); err != nil {
			return err
		}
		if isJSON() {
			return printJSON(map[string]any{"id": args[0], "archived": true})
		}
		fmt.Printf("%s archived %s\n", ui.Icon("✓", ui.StyleSuccess), args[0])
		return nil
	},
}

var taskLinkCmd = &cobra.Command{
	Use:   "link <from-id> <to-id>",
	Short: "Add a dependency edge (from depends on to)",
	Long: `Add an edge between two tasks. With the default prerequisite relationship
<from-id> depends on <to-id>. The edge is rejected if it would close a cycle.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		rel, _ := cmd.Flags().GetString("relationship")
		s, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer s.Close()

		_, err = app.NewTaskApp(s.ctx).Link(currentUser(), app.LinkInput{
			FromID:       args[0],
			ToID:         args[1],
			Relationship: task.Relationship(rel),
		})
		if err != nil {
			return describeError(err)
		}
		if isJSON() {
			return printJSON(map[string]string{"from_id": args[0], "to_id": args[1], "relationship": rel})
		}
		fmt.Printf("%s %s %s %s\n", ui.Icon("✓", ui.StyleSuccess), args[0], rel, args[1])
		return nil
	},
}

func runTaskAdd(cmd *cobra.Command, args []string) error {
	effort, _ := cmd.Flags().GetFloat64("effort")
	level, _ := cmd.Flags().GetString("level")
	deps, _ := cmd.Flags().GetStringSlice("depends-on")

	s, err := openApp(cmd.Context())
	if err != nil {
		return err
	}
	defer s.Close()

	t, err := app.NewTaskApp(s.ctx).Create(currentUser(), app.CreateTaskInput{
		Text:            args[0],
		EstimatedEffort: effort,
		CognitionLevel:  task.CognitionLevel(level),
		DependsOn:       splitIDs(deps),
	})
	if err != nil {
		return describeError(err)
	}
	if isJSON() {
		return printJSON(t)
	}
	fmt.Printf("%s added %s %s\n", ui.Icon("✓", ui.StyleSuccess), t.ID, ui.StyleSubtle.Render(t.Text))
	return nil
}

func init() {
	rootCmd.AddCommand(taskCmd)
	taskCmd.AddCommand(taskAddCmd, taskListCmd, taskShowCmd, taskArchiveCmd, taskLinkCmd)

	taskAddCmd.Flags().Float64P("effort", "e", 1, "estimated effort in hours (0.25 to 160)")
	taskAddCmd.Flags().StringP("level", "l", string(task.CognitionMedium), "cognition level: low, medium or high")
	taskAddCmd.Flags().StringSliceP("depends-on", "d", nil, "ids of tasks this one depends on")

	taskListCmd.Flags().BoolP("archived", "a", false, "include archived tasks")

	taskLinkCmd.Flags().StringP("relationship", "r", string(task.RelPrerequisite), "prerequisite, blocks or related")
}
