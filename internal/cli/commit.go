package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lkoehler/docintake-go/internal/pipeline"
)

var (
	commitRecursive bool
	commitNoTUI     bool
)

var commitCmd = &cobra.Command{
	Use:   "commit <dir>",
	Short: "Stage a directory and upload its content to the backend",
	Long: `Commit stages the directory's files, then reads their content in
adaptively sized batches and streams them to the document backend. Batch
sizes shrink for large files and grow for small ones, so neither a folder
of large scans nor thousands of small notes stalls the upload.

Selections submitted while a commit is running wait in a bounded queue
and start automatically once the running commit finishes.

Examples:
  docintake commit ./akten/2026-113
  docintake commit --recursive --no-tui ./scans`,
	Args: cobra.ExactArgs(1),
	RunE: runCommit,
}

func init() {
	commitCmd.Flags().BoolVarP(&commitRecursive, "recursive", "r", false, "descend into subdirectories")
	commitCmd.Flags().BoolVar(&commitNoTUI, "no-tui", false, "plain log output instead of the progress display")
}

func runCommit(cmd *cobra.Command, args []string) error {
	handles, err := scanDir(args[0], commitRecursive)
	if err != nil {
		return err
	}
	if len(handles) == 0 {
		return fmt.Errorf("no files found in %s", args[0])
	}

	p, err := newPipeline(backend)
	if err != nil {
		return err
	}

	ctx := cmd.Context()

	if commitNoTUI {
		p.Submit(ctx, handles, true)
		printCommitSummary(p, len(handles))
		if prog := p.Progress(); prog.Phase == pipeline.PhaseError {
			return fmt.Errorf("%s", prog.Fatal)
		}
		return nil
	}

	// Submit runs synchronously; the TUI polls pipeline progress from
	// this goroutine until a terminal phase is reached.
	done := make(chan struct{})
	go func() {
		defer close(done)
		p.Submit(ctx, handles, true)
	}()

	if err := runProgressTUI(p); err != nil {
		return err
	}
	<-done

	printCommitSummary(p, len(handles))
	if prog := p.Progress(); prog.Phase == pipeline.PhaseError {
		return fmt.Errorf("%s", prog.Fatal)
	}
	return nil
}

// printCommitSummary renders the commit outcome including telemetry.
func printCommitSummary(p *pipeline.Pipeline, submitted int) {
	prog := p.Progress()
	snap := p.Telemetry()

	if prog.Phase == pipeline.PhaseError {
		fmt.Println(defaultTheme.errorStyle().Render(fmt.Sprintf("✗ Übertragung fehlgeschlagen: %s", prog.Fatal)))
	} else {
		fmt.Println(defaultTheme.completedStyle().Render(fmt.Sprintf("✓ %d Dokumente übertragen", prog.Dispatched)))
	}

	fmt.Printf("  Dateien ausgewählt: %d von %d\n", prog.Total, submitted)
	if prog.Skipped > 0 {
		fmt.Printf("  Duplikate übersprungen: %d\n", prog.Skipped)
	}
	if prog.Rejected > 0 {
		rejected, more := p.Rejections(rejectionDisplayLimit)
		fmt.Println(defaultTheme.errorStyle().Render(fmt.Sprintf("  Abgelehnt: %d", prog.Rejected)))
		for _, r := range rejected {
			fmt.Printf("    • %s: %s\n", r.FileName, r.Reason)
		}
		if more > 0 {
			fmt.Printf("    … und %d weitere\n", more)
		}
	}
	if snap.BatchCount > 0 {
		fmt.Printf("  Batches: %d, langsamster %d ms, Durchsatz %.1f Dateien/s (Spitze %.1f)\n",
			snap.BatchCount, snap.PeakBatchMs, snap.LastThroughput, snap.PeakThroughput)
	}
}
