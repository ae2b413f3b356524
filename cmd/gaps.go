/*
Copyright © 2025 Joseph Goksu josephgoksu@gmail.com
*/
package cmd

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/josephgoksu/Wayline/internal/app"
	"github.com/josephgoksu/Wayline/internal/ui"
)

var gapsCmd = &cobra.Command{
	Use:   "gaps [session-id]",
	Short: "Find missing steps in a plan and propose bridging tasks",
	Long: `Scan a completed session's plan for discontinuities (phase, skill or time
jumps and missing edges) and propose tasks to bridge them. Candidates that
duplicate existing tasks are dropped.

Without a session id the current session is used.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer s.Close()

		sessionID := ""
		if len(args) == 1 {
			sessionID = args[0]
		} else {
			cur, err := app.NewReasoningApp(s.ctx).Current(currentUser())
			if err != nil {
				return fmt.Errorf("no session to scan, run `wayline reason` first: %w", err)
			}
			sessionID = cur.ID
		}

		res, err := app.NewBridgeApp(s.ctx).DetectGaps(cmd.Context(), currentUser(), sessionID)
		if err != nil {
			return err
		}
		if isJSON() {
			return printJSON(res)
		}
		fmt.Print(ui.RenderGaps(*res, taskNames(s)))
		return nil
	},
}

var acceptCmd = &cobra.Command{
	Use:   "accept <analysis-id> <candidate-id>...",
	Short: "Insert chosen candidates into the task graph",
	Long: `Insert candidates from a gap analysis. Candidates for one gap are chained
between its predecessor and successor in the order given. The whole batch is
rejected, with nothing written, if it would create a cycle or a policy denies it.`,
	Example: `  wayline accept an-1a2b3c4d cand-5e6f7a8b
  wayline accept an-1a2b3c4d cand-5e6f7a8b --text cand-5e6f7a8b="Run a pilot" --effort cand-5e6f7a8b=6`,
	Args: cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		texts, _ := cmd.Flags().GetStringToString("text")
		efforts, _ := cmd.Flags().GetStringToString("effort")
		edits, err := candidateEdits(texts, efforts)
		if err != nil {
			return err
		}

		s, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer s.Close()

		res, err := app.NewBridgeApp(s.ctx).Accept(cmd.Context(), currentUser(), app.AcceptRequest{
			AnalysisID:  args[0],
			AcceptedIDs: splitIDs(args[1:]),
			Edits:       edits,
		})
		if err != nil {
			return describeError(err)
		}
		if isJSON() {
			return printJSON(res)
		}
		names := taskNames(s)
		fmt.Printf("%s inserted %d tasks\n", ui.Icon("✓", ui.StyleSuccess), len(res.InsertedIDs))
		for _, id := range res.InsertedIDs {
			fmt.Printf("  %s %s\n", ui.StylePrimary.Render(id), names[id])
		}
		for _, w := range res.Warnings {
			fmt.Println(ui.StyleWarning.Render("! " + w))
		}
		return nil
	},
}

// candidateEdits merges --text and --effort overrides keyed by candidate id.
func candidateEdits(texts, efforts map[string]string) ([]app.CandidateEdit, error) {
	byID := map[string]*app.CandidateEdit{}
	get := func(id string) *app.CandidateEdit {
		if e, ok := byID[id]; ok {
			return e
		}
		e := &app.CandidateEdit{CandidateID: id}
		byID[id] = e
		return e
	}
	for id, text := range texts {
		get(id).Text = text
	}
	for id, raw := range efforts {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, fmt.Errorf("effort for %s: %q is not a number", id, raw)
		}
		get(id).EstimatedEffort = &v
	}

	ids := make([]string, 0, len(byID))
	for id := range byID {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	out := make([]app.CandidateEdit, 0, len(ids))
	for _, id := range ids {
		out = append(out, *byID[id])
	}
	return out, nil
}

func init() {
	rootCmd.AddCommand(gapsCmd, acceptCmd)
	acceptCmd.Flags().StringToString("text", nil, "replace a candidate's text (id=text)")
	acceptCmd.Flags().StringToString("effort", nil, "replace a candidate's effort in hours (id=hours)")
}
