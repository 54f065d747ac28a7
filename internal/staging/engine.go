package staging

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/lkoehler/docintake-go/internal/models"
)

// Result is the outcome of a staging pass. Overflow counts files beyond
// the cap, reported separately from validation rejections so the caller
// can distinguish "too many" from "invalid".
type Result struct {
	Staged   []*models.StagedFile
	Rejected []models.RejectionEntry
	Overflow int
}

// FolderFunc derives an optional folder path from a handle, e.g. the
// relative directory of a folder-picker selection. A nil FolderFunc means
// no folder path.
type FolderFunc func(models.Handle) string

// Stage converts raw handles into staged metadata records. Processing is
// O(1) per file: only name, extension and size are inspected, content is
// never read. Input beyond maxCount is counted as overflow and not
// examined further.
func Stage(handles []models.Handle, rules Rules, maxCount int, folderFn FolderFunc) Result {
	var res Result

	if maxCount < 0 {
		maxCount = 0
	}
	if len(handles) > maxCount {
		res.Overflow = len(handles) - maxCount
		handles = handles[:maxCount]
	}

	for _, h := range handles {
		staged, rej := stageOne(h, rules, folderFn)
		if rej != nil {
			res.Rejected = append(res.Rejected, *rej)
			continue
		}
		res.Staged = append(res.Staged, staged)
	}

	return res
}

// stageOne validates a single handle and builds its metadata record.
func stageOne(h models.Handle, rules Rules, folderFn FolderFunc) (*models.StagedFile, *models.RejectionEntry) {
	if h == nil || h.Name() == "" || h.Size() < 0 {
		name := "(unbekannt)"
		if h != nil {
			name = h.Name()
		}
		return nil, &models.RejectionEntry{
			FileName:       name,
			Reason:         "Datei konnte nicht gelesen werden",
			Recommendation: "Datei erneut auswählen oder aus dem Ordner neu laden",
		}
	}

	name := h.Name()
	ext := filepath.Ext(name)
	kind, ok := rules.Lookup(ext)
	if !ok {
		return nil, &models.RejectionEntry{
			FileName:       name,
			Reason:         fmt.Sprintf("Dateityp %q wird nicht unterstützt", ext),
			Recommendation: "Unterstützte Formate: " + strings.Join(rules.SupportedExtensions(), ", "),
		}
	}

	if max := rules.MaxBytes(kind); h.Size() > max {
		return nil, &models.RejectionEntry{
			FileName:       name,
			Reason:         fmt.Sprintf("Datei ist zu groß (%d MB, Limit %d MB)", h.Size()/(1024*1024), max/(1024*1024)),
			Recommendation: "Datei aufteilen oder komprimieren und erneut hochladen",
		}
	}

	folder := ""
	if folderFn != nil {
		folder = folderFn(h)
	}

	return &models.StagedFile{
		Handle:     h,
		Name:       name,
		Size:       h.Size(),
		Kind:       kind.Kind,
		MIMEType:   kind.MIMEType,
		ModTime:    h.ModTime(),
		FolderPath: folder,
	}, nil
}
