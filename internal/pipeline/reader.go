package pipeline

import (
	"context"
	"fmt"
	"io"
	"iter"

	"github.com/google/uuid"

	"github.com/lkoehler/docintake-go/internal/models"
)

// Batch is one unit of progress from the streaming reader: the documents
// realized in this step, the files whose content could not be read, and
// cumulative progress for ETA computation.
type Batch struct {
	Prepared       []models.PreparedDocument
	Rejected       []models.RejectionEntry
	ProcessedSoFar int
	TotalFiles     int
}

// ReadStream realizes the content of the given staged files in batches of
// batchSize, yielding one Batch per step. The sequence is finite and
// non-restartable. ProcessedSoFar is monotonically non-decreasing and
// equals TotalFiles on the final batch.
//
// A file whose content cannot be read lands in Batch.Rejected; the
// sequence continues for the remaining files. Only cancellation of ctx
// terminates the sequence early, yielded as the error side.
func ReadStream(ctx context.Context, refs []*models.StagedFile, batchSize int) iter.Seq2[Batch, error] {
	if batchSize < 1 {
		batchSize = 1
	}

	return func(yield func(Batch, error) bool) {
		total := len(refs)
		processed := 0

		for start := 0; start < total; start += batchSize {
			if err := ctx.Err(); err != nil {
				yield(Batch{ProcessedSoFar: processed, TotalFiles: total}, err)
				return
			}

			end := min(start+batchSize, total)
			batch := Batch{TotalFiles: total}

			for _, ref := range refs[start:end] {
				doc, rej := realize(ref)
				if rej != nil {
					batch.Rejected = append(batch.Rejected, *rej)
				} else {
					batch.Prepared = append(batch.Prepared, *doc)
				}
				processed++
			}
			batch.ProcessedSoFar = processed

			if !yield(batch, nil) {
				return
			}
		}
	}
}

// realize reads one staged file's content into a PreparedDocument. Read
// failures are file-scoped and returned as a rejection, never an error.
func realize(ref *models.StagedFile) (*models.PreparedDocument, *models.RejectionEntry) {
	if ref.Handle == nil {
		return nil, &models.RejectionEntry{
			FileName:       ref.Name,
			Reason:         "Datei wurde bereits entfernt",
			Recommendation: "Datei erneut auswählen",
		}
	}

	rc, err := ref.Handle.Open()
	if err != nil {
		return nil, &models.RejectionEntry{
			FileName:       ref.Name,
			Reason:         fmt.Sprintf("Inhalt konnte nicht geöffnet werden: %v", err),
			Recommendation: "Datei prüfen und erneut hochladen",
		}
	}
	defer rc.Close()

	content, err := io.ReadAll(rc)
	if err != nil {
		return nil, &models.RejectionEntry{
			FileName:       ref.Name,
			Reason:         fmt.Sprintf("Inhalt konnte nicht gelesen werden: %v", err),
			Recommendation: "Datei prüfen und erneut hochladen",
		}
	}

	return &models.PreparedDocument{
		ID:         uuid.New().String(),
		Name:       ref.Name,
		Kind:       ref.Kind,
		MIMEType:   ref.MIMEType,
		FolderPath: ref.FolderPath,
		ModTime:    ref.ModTime,
		Content:    content,
		ByteLen:    len(content),
	}, nil
}
