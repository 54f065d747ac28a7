package pipeline

import (
	"bytes"
	"fmt"
	"io"
	"time"

	"github.com/lkoehler/docintake-go/internal/models"
	"github.com/lkoehler/docintake-go/internal/staging"
)

// memHandle is an in-memory models.Handle for tests.
type memHandle struct {
	name      string
	size      int64
	mod       time.Time
	content   []byte
	failOpen  bool
	openDelay time.Duration
}

func (h *memHandle) Name() string       { return h.name }
func (h *memHandle) ModTime() time.Time { return h.mod }

func (h *memHandle) Size() int64 {
	if h.size > 0 {
		return h.size
	}
	return int64(len(h.content))
}

func (h *memHandle) Open() (io.ReadCloser, error) {
	if h.openDelay > 0 {
		time.Sleep(h.openDelay)
	}
	if h.failOpen {
		return nil, fmt.Errorf("simulated open failure")
	}
	return io.NopCloser(bytes.NewReader(h.content)), nil
}

// handle builds a small valid pdf handle with deterministic metadata.
func handle(name string, content string) *memHandle {
	return &memHandle{
		name:    name,
		mod:     time.Unix(1700000000, 0),
		content: []byte(content),
	}
}

// sizedFile builds a staged file record of the given size without content,
// for batch sizing tests.
func sizedFile(name string, size int64) *models.StagedFile {
	return &models.StagedFile{
		Name:    name,
		Size:    size,
		Kind:    "pdf",
		ModTime: time.Unix(1700000000, 0),
	}
}

// stagedFrom runs the staging engine over handles with default rules.
func stagedFrom(handles ...models.Handle) []*models.StagedFile {
	res := staging.Stage(handles, staging.DefaultRules(), 1000, nil)
	return res.Staged
}
