package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lkoehler/docintake-go/internal/classify"
	"github.com/lkoehler/docintake-go/internal/models"
)

var failuresFollow bool

var failuresCmd = &cobra.Command{
	Use:   "failures",
	Short: "List and classify failed documents",
	Long: `Failures fetches the backend's failed documents and classifies each
error into the failure taxonomy (Verschlüsselt, Zeitüberschreitung,
Formatfehler, ...) with a remediation hint and the retry history.

With --follow the command subscribes to the backend's failure feed and
prints items as they are reported.`,
	RunE: runFailures,
}

var failuresRetryCmd = &cobra.Command{
	Use:   "retry <id>",
	Short: "Ask the backend to reprocess a failed document",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ok, err := backend.RetryFailedDocument(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("backend declined retry for %s", args[0])
		}
		fmt.Println(defaultTheme.completedStyle().Render("✓ Wiederholung angestoßen"))
		return nil
	},
}

var failuresRemoveCmd = &cobra.Command{
	Use:   "remove <id>",
	Short: "Remove a failed document from the backend",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ok, err := backend.RemoveFailedDocument(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("backend declined removal of %s", args[0])
		}
		fmt.Println(defaultTheme.completedStyle().Render("✓ Dokument entfernt"))
		return nil
	},
}

func init() {
	failuresCmd.Flags().BoolVarP(&failuresFollow, "follow", "f", false, "subscribe to the failure feed")
	failuresCmd.AddCommand(failuresRetryCmd)
	failuresCmd.AddCommand(failuresRemoveCmd)
}

func runFailures(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	if failuresFollow {
		return backend.StreamFailures(ctx, func(item models.FailureItem) error {
			printFailure(&item)
			return nil
		})
	}

	items, err := backend.ListFailures(ctx)
	if err != nil {
		return err
	}
	if len(items) == 0 {
		fmt.Println(defaultTheme.completedStyle().Render("✓ Keine fehlgeschlagenen Dokumente"))
		return nil
	}

	for i := range items {
		printFailure(&items[i])
	}
	return nil
}

// printFailure renders one classified failure item.
func printFailure(item *models.FailureItem) {
	c := classify.Classify(item)

	label := defaultTheme.errorStyle().Render(c.Label)
	if c.Tone == classify.ToneWarning {
		label = defaultTheme.statusStyle().Render(c.Label)
	}

	fmt.Printf("%s  %s (%s)\n", label, item.Title, item.ID)
	if txt := item.ErrorText(); txt != "" {
		fmt.Printf("  %s\n", txt)
	}
	if engine := item.Engine(); engine != "" {
		fmt.Printf("  Engine: %s\n", engine)
	}
	fmt.Printf("  %s\n", defaultTheme.hintStyle().Render(c.Recommendation))
	fmt.Printf("  %s\n", classify.RetrySummary(item))
}
