/*
Copyright © 2025 Joseph Goksu josephgoksu@gmail.com
*/
package cmd

import (
	"github.com/spf13/cobra"

	"github.com/josephgoksu/Wayline/internal/mcp"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start the MCP server for AI tool integration",
	Long: `Start a Model Context Protocol server over stdin/stdout so AI assistants can
order tasks, detect gaps, accept candidates and submit reflections.

Tools: start_reasoning, get_session, detect_gaps, accept_candidates,
submit_reflection, toggle_reflection, list_tasks.

The server runs until the client disconnects. Logs go to stderr.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer s.Close()

		server := mcp.NewServer(s.ctx, currentUser(), version)
		return mcp.Run(cmd.Context(), server)
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}
