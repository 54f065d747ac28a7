package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lkoehler/docintake-go/internal/classify"
	"github.com/lkoehler/docintake-go/internal/models"
	"github.com/lkoehler/docintake-go/internal/pipeline"
	"github.com/lkoehler/docintake-go/internal/telemetry"
)

// Number of rejection entries shown before truncating.
const rejectionDisplayLimit = 10

var stageRecursive bool

var stageCmd = &cobra.Command{
	Use:   "stage <dir>",
	Short: "Stage a directory's files without uploading",
	Long: `Stage inspects every file in the directory by metadata only and
reports what a commit would upload: staged files, duplicates, files
rejected by type or size validation, and overflow beyond the staging cap.

No file content is read and nothing is sent to the backend.

Examples:
  docintake stage ./akten/2026-113
  docintake stage --recursive ./scans`,
	Args: cobra.ExactArgs(1),
	RunE: runStage,
}

func init() {
	stageCmd.Flags().BoolVarP(&stageRecursive, "recursive", "r", false, "descend into subdirectories")
}

// newPipeline builds a pipeline from the loaded config with the given
// dispatcher.
func newPipeline(dispatcher pipeline.Dispatcher) (*pipeline.Pipeline, error) {
	rules, err := cfg.LoadRules()
	if err != nil {
		return nil, err
	}

	tracker := telemetry.NewTracker()
	alerter := telemetry.NewAlerter(cfg.AlertCooldowns(), nil, log)

	return pipeline.New(pipeline.Config{
		MaxStagedFiles:     cfg.MaxStagedFiles,
		MaxQueueDepth:      cfg.MaxQueueDepth,
		QueueWarnDepth:     cfg.QueueWarnDepth,
		SlowBatchThreshold: cfg.SlowBatchThreshold(),
		Rules:              rules,
		FolderFunc:         folderFunc,
	}, dispatcher, tracker, alerter, log), nil
}

func runStage(cmd *cobra.Command, args []string) error {
	handles, err := scanDir(args[0], stageRecursive)
	if err != nil {
		return err
	}

	p, err := newPipeline(pipeline.DispatcherFunc(func(ctx context.Context, docs []models.PreparedDocument) error {
		return nil
	}))
	if err != nil {
		return err
	}

	p.Submit(cmd.Context(), handles, false)
	printStagingSummary(p, len(handles))
	return nil
}

// printStagingSummary renders the staging outcome.
func printStagingSummary(p *pipeline.Pipeline, submitted int) {
	prog := p.Progress()
	files := p.StagedFiles()

	var total int64
	for _, f := range files {
		total += f.Size
	}

	fmt.Println(defaultTheme.completedStyle().Render(fmt.Sprintf("✓ %d von %d Dateien vorgemerkt (%s)", prog.Staged, submitted, humanBytes(total))))
	if prog.Skipped > 0 {
		fmt.Printf("  Duplikate übersprungen: %d\n", prog.Skipped)
	}
	if prog.Overflow > 0 {
		fmt.Println(defaultTheme.errorStyle().Render(fmt.Sprintf("  Limit erreicht: %d Dateien über der Obergrenze", prog.Overflow)))
	}

	rejected, more := p.Rejections(rejectionDisplayLimit)
	if len(rejected) > 0 {
		fmt.Println(defaultTheme.errorStyle().Render(fmt.Sprintf("\nAbgelehnt (%d):", prog.Rejected)))
		for _, r := range rejected {
			severity := classify.RejectionSeverity(r.Reason)
			fmt.Printf("  • [%s] %s: %s\n", severity, r.FileName, r.Reason)
			if r.Recommendation != "" {
				fmt.Printf("    %s\n", defaultTheme.hintStyle().Render(r.Recommendation))
			}
		}
		if more > 0 {
			fmt.Printf("  … und %d weitere\n", more)
		}
	}
}

// humanBytes renders a byte count for display.
func humanBytes(n int64) string {
	switch {
	case n >= 1<<30:
		return fmt.Sprintf("%.1f GB", float64(n)/(1<<30))
	case n >= 1<<20:
		return fmt.Sprintf("%.1f MB", float64(n)/(1<<20))
	case n >= 1<<10:
		return fmt.Sprintf("%.1f KB", float64(n)/(1<<10))
	default:
		return fmt.Sprintf("%d B", n)
	}
}
