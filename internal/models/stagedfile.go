// Package models defines data structures for the docintake staging pipeline.
package models

import (
	"fmt"
	"io"
	"time"
)

// Handle is an opaque reference to file content. Staging inspects metadata
// only; content must not be read until Open is called during a commit.
type Handle interface {
	// Name returns the base file name including extension.
	Name() string
	// Size returns the file size in bytes.
	Size() int64
	// ModTime returns the last-modified timestamp.
	ModTime() time.Time
	// Open returns a reader over the file content.
	Open() (io.ReadCloser, error)
}

// DedupeKey is the composite identity that prevents duplicate staging.
// Two handles with the same name, size, modification time and folder path
// are considered the same document.
type DedupeKey struct {
	Name     string
	Size     int64
	ModMilli int64
	Folder   string
}

// String renders the key in a stable form usable as a map key in logs.
func (k DedupeKey) String() string {
	return fmt.Sprintf("%s|%d|%d|%s", k.Name, k.Size, k.ModMilli, k.Folder)
}

// StagedFile is a file accepted into the working set by metadata only.
// The underlying handle is owned by the pipeline until the file is
// committed, removed, or the pipeline is cleared.
type StagedFile struct {
	Handle     Handle    `json:"-"`
	Name       string    `json:"name"`
	Size       int64     `json:"size"`
	Kind       string    `json:"kind"`
	MIMEType   string    `json:"mimeType"`
	ModTime    time.Time `json:"modTime"`
	PageCount  *int      `json:"pageCount,omitempty"`
	FolderPath string    `json:"folderPath,omitempty"`
}

// Key returns the dedupe key for this file.
func (f *StagedFile) Key() DedupeKey {
	return DedupeKey{
		Name:     f.Name,
		Size:     f.Size,
		ModMilli: f.ModTime.UnixMilli(),
		Folder:   f.FolderPath,
	}
}

// PreparedDocument is the fully materialized unit handed to the downstream
// service: staged metadata plus realized content. Ephemeral; it exists only
// inside a read batch and is never retained after dispatch.
type PreparedDocument struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Kind       string    `json:"kind"`
	MIMEType   string    `json:"mimeType"`
	FolderPath string    `json:"folderPath,omitempty"`
	ModTime    time.Time `json:"modTime"`
	Content    []byte    `json:"content"`
	ByteLen    int       `json:"byteLen"`
}

// RejectionEntry records a file that failed cap/type/size/read validation.
// Entries are append-only; display layers may truncate the list.
type RejectionEntry struct {
	FileName       string `json:"fileName"`
	Reason         string `json:"reason"`
	Recommendation string `json:"recommendation,omitempty"`
}

// PendingSelection is a selection request that arrived while the pipeline
// was busy, held in the bounded FIFO queue until the running operation
// completes.
type PendingSelection struct {
	Handles    []Handle
	AutoSubmit bool
	QueuedAt   time.Time
}

// TotalBytes sums the sizes of the queued handles.
func (p PendingSelection) TotalBytes() int64 {
	var total int64
	for _, h := range p.Handles {
		total += h.Size()
	}
	return total
}
