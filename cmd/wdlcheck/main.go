package main

import (
	"fmt"
	"os"

	"github.com/ritamzico/wdlast/internal/ast"
	"github.com/ritamzico/wdlast/internal/parser"
	"github.com/spf13/cobra"
)

func main() {
	var (
		useTreewalk bool
		summary     bool
	)

	rootCmd := &cobra.Command{
		Use:           "wdlcheck <file.wdl>",
		Short:         "Parse and structurally validate a WDL document",
		Args:          cobra.ExactArgs(1),
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, args []string) error {
			backend := parser.BackendPegtree
			if useTreewalk {
				backend = parser.BackendTreewalk
			}

			doc, err := parser.ParseFile(args[0], parser.WithBackend(backend))
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "%s: version %s, %d top-level element(s), %d comment(s)\n",
				args[0], doc.Version.Element.Identifier.Element, len(doc.Body), doc.Comments.Len())

			if summary {
				printSummary(cmd, doc)
			}
			return nil
		},
	}

	rootCmd.Flags().BoolVar(&useTreewalk, "treewalk", false, "use the field-labeled treewalk backend instead of pegtree")
	rootCmd.Flags().BoolVar(&summary, "summary", false, "print a summary of the document's primary element")

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "wdlcheck: %v\n", err)
		os.Exit(1)
	}
}

func printSummary(cmd *cobra.Command, doc *ast.Document) {
	out := cmd.OutOrStdout()
	el := doc.GetPrimaryElement()
	if el == nil {
		fmt.Fprintln(out, "no primary workflow or single task found")
		return
	}
	switch {
	case el.Workflow != nil:
		wf := el.Workflow
		fmt.Fprintf(out, "primary workflow %q: %d body element(s)\n", wf.Name.Element, len(wf.Body))
	case el.Task != nil:
		task := el.Task
		fmt.Fprintf(out, "primary task %q: %d body element(s)\n", task.Name.Element, len(task.Body))
	}
}
