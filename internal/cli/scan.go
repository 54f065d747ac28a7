package cli

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/lkoehler/docintake-go/internal/models"
	"github.com/lkoehler/docintake-go/internal/staging"
)

// fileHandle is a filesystem-backed models.Handle. Metadata is captured
// at scan time; content is read only when the pipeline opens the handle
// during commit.
type fileHandle struct {
	path    string
	name    string
	size    int64
	modTime time.Time
	folder  string
}

func (h *fileHandle) Name() string       { return h.name }
func (h *fileHandle) Size() int64        { return h.size }
func (h *fileHandle) ModTime() time.Time { return h.modTime }

func (h *fileHandle) Open() (io.ReadCloser, error) {
	return os.Open(h.path)
}

// folderOf extracts the folder path from a scanned handle. Handles from
// other sources have no folder.
func folderOf(h models.Handle) string {
	if fh, ok := h.(*fileHandle); ok {
		return fh.folder
	}
	return ""
}

// folderFunc is the staging.FolderFunc used by all commands.
var folderFunc staging.FolderFunc = folderOf

// scanDir walks a directory and builds handles for every regular file.
// Stat calls run on a bounded worker group since network filesystems make
// them slow at scale. Order of the result follows the walk order.
func scanDir(dir string, recursive bool) ([]models.Handle, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", dir, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", dir)
	}

	var paths []string
	err = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if !recursive && path != dir {
				return filepath.SkipDir
			}
			return nil
		}
		if d.Type().IsRegular() {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", dir, err)
	}

	handles := make([]models.Handle, len(paths))

	var g errgroup.Group
	g.SetLimit(runtime.NumCPU() * 2)
	for i, path := range paths {
		g.Go(func() error {
			info, err := os.Stat(path)
			if err != nil {
				return fmt.Errorf("stat %s: %w", path, err)
			}
			rel, err := filepath.Rel(dir, filepath.Dir(path))
			if err != nil || rel == "." {
				rel = ""
			}
			handles[i] = &fileHandle{
				path:    path,
				name:    filepath.Base(path),
				size:    info.Size(),
				modTime: info.ModTime(),
				folder:  rel,
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return handles, nil
}
