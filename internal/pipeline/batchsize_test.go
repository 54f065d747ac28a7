package pipeline

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/lkoehler/docintake-go/internal/models"
)

func filesWithMean(mean int64, count int) []*models.StagedFile {
	files := make([]*models.StagedFile, count)
	for i := range files {
		files[i] = sizedFile(fmt.Sprintf("f%d.pdf", i), mean)
	}
	return files
}

func TestBatchSizes_Tiers(t *testing.T) {
	tests := []struct {
		name         string
		mean         int64
		wantRead     int
		wantDispatch int
	}{
		{name: "30 MB scans", mean: 30 * mib, wantRead: 2, wantDispatch: 4},
		{name: "15 MB", mean: 15 * mib, wantRead: 3, wantDispatch: 6},
		{name: "6 MB", mean: 6 * mib, wantRead: 5, wantDispatch: 10},
		{name: "2 MB", mean: 2 * mib, wantRead: 8, wantDispatch: 16},
		{name: "500 KB notes", mean: 500 * 1024, wantRead: 12, wantDispatch: 25},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			files := filesWithMean(tt.mean, 7)
			assert.Equal(t, tt.wantRead, ReadBatchSize(files))
			assert.Equal(t, tt.wantDispatch, DispatchBatchSize(files))
		})
	}
}

func TestBatchSizes_EmptyInputFallback(t *testing.T) {
	assert.Equal(t, fallbackReadBatch, ReadBatchSize(nil))
	assert.Equal(t, fallbackDispatchBatch, DispatchBatchSize(nil))
}

func TestBatchSizes_ReadNeverExceedsDispatch(t *testing.T) {
	for mean := int64(1024); mean < 64*mib; mean *= 2 {
		files := filesWithMean(mean, 3)
		read, dispatch := ReadBatchSize(files), DispatchBatchSize(files)
		assert.LessOrEqual(t, read, dispatch, "mean %d", mean)
	}
}

func TestBatchSizes_MonotoneInMeanSize(t *testing.T) {
	prevRead := int(^uint(0) >> 1)
	for mean := int64(256 * 1024); mean < 64*mib; mean *= 2 {
		read := ReadBatchSize(filesWithMean(mean, 3))
		assert.LessOrEqual(t, read, prevRead, "mean %d: batch size must not grow with item size", mean)
		prevRead = read
	}
}

func TestBatchSizes_MixedSizesUseMean(t *testing.T) {
	// One 29 MB file and one 1 MB file: mean 15 MB lands in the 10-25
	// tier, not the smallest one.
	files := []*models.StagedFile{
		sizedFile("scan.pdf", 29*mib),
		sizedFile("note.pdf", 1*mib),
	}
	assert.Equal(t, 3, ReadBatchSize(files))
	assert.Equal(t, 6, DispatchBatchSize(files))
}
