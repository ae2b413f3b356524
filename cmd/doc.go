/*
Copyright © 2025 Joseph Goksu josephgoksu@gmail.com
*/
package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/josephgoksu/Wayline/internal/app"
	"github.com/josephgoksu/Wayline/internal/ui"
)

// maxDocumentBytes caps a document read from a file or stdin.
const maxDocumentBytes = 1 << 20

var docCmd = &cobra.Command{
	Use:     "doc",
	Aliases: []string{"docs"},
	Short:   "Manage reference documents used as planning context",
}

var docAddCmd = &cobra.Command{
	Use:   "add <title> [file|-]",
	Short: "Store a document",
	Long: `Store a document. The body comes from --body, from a file, or from stdin
when the file argument is "-".`,
	Example: `  wayline doc add "Launch checklist" checklist.md
  cat notes.txt | wayline doc add "Interview notes" -`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		body, _ := cmd.Flags().GetString("body")
		if len(args) == 2 {
			var err error
			if body, err = readBody(args[1], cmd.InOrStdin()); err != nil {
				return err
			}
		}

		s, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer s.Close()

		d, err := app.NewTaskApp(s.ctx).AddDocument(currentUser(), args[0], body)
		if err != nil {
			return err
		}
		if isJSON() {
			return printJSON(d)
		}
		fmt.Printf("%s stored %s %s\n", ui.Icon("✓", ui.StyleSuccess), d.ID, ui.StyleSubtle.Render(d.Title))
		return nil
	},
}

var docListCmd = &cobra.Command{
	Use:   "list",
	Short: "List documents",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer s.Close()

		docs, err := app.NewTaskApp(s.ctx).Documents(currentUser())
		if err != nil {
			return err
		}
		if isJSON() {
			return printJSON(docs)
		}
		if len(docs) == 0 {
			fmt.Println(ui.StyleSubtle.Render("No documents yet."))
			return nil
		}
		t := &ui.Table{Headers: []string{"ID", "Title", "Excerpt"}, MaxWidth: 60}
		for _, d := range docs {
			t.Rows = append(t.Rows, []string{d.ID, d.Title, ui.Truncate(d.Body, 60)})
		}
		fmt.Print(t.Render())
		return nil
	},
}

func readBody(path string, stdin io.Reader) (string, error) {
	var r io.Reader = stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return "", fmt.Errorf("open document: %w", err)
		}
		defer f.Close()
		r = f
	}
	data, err := io.ReadAll(io.LimitReader(r, maxDocumentBytes+1))
	if err != nil {
		return "", fmt.Errorf("read document: %w", err)
	}
	if len(data) > maxDocumentBytes {
		return "", fmt.Errorf("document is larger than %d bytes", maxDocumentBytes)
	}
	return string(data), nil
}

func init() {
	rootCmd.AddCommand(docCmd)
	docCmd.AddCommand(docAddCmd, docListCmd)
	docAddCmd.Flags().StringP("body", "b", "", "document text")
}
