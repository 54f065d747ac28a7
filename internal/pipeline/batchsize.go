package pipeline

import "github.com/lkoehler/docintake-go/internal/models"

const mib = int64(1024 * 1024)

// Fallback batch sizes for degenerate (empty) input.
const (
	fallbackReadBatch     = 5
	fallbackDispatchBatch = 10
)

// sizeTier maps a mean item size band to batch sizes. Content realization
// is I/O-bound and chunked more finely than dispatch, which is
// network-bound and can absorb larger groups, so read is always at most
// dispatch within a tier.
type sizeTier struct {
	meanAbove int64 // exclusive lower bound on mean bytes
	read      int
	dispatch  int
}

var sizeTiers = []sizeTier{
	{meanAbove: 25 * mib, read: 2, dispatch: 4},
	{meanAbove: 10 * mib, read: 3, dispatch: 6},
	{meanAbove: 4 * mib, read: 5, dispatch: 10},
	{meanAbove: 1 * mib, read: 8, dispatch: 16},
	{meanAbove: 0, read: 12, dispatch: 25},
}

// meanSize returns the arithmetic mean byte size of the given files.
func meanSize(files []*models.StagedFile) int64 {
	if len(files) == 0 {
		return 0
	}
	var total int64
	for _, f := range files {
		total += f.Size
	}
	return total / int64(len(files))
}

func tierFor(mean int64) sizeTier {
	for _, t := range sizeTiers {
		if mean > t.meanAbove {
			return t
		}
	}
	return sizeTiers[len(sizeTiers)-1]
}

// ReadBatchSize returns how many files to realize per read batch, sized
// from the mean byte size of the input. Larger mean sizes produce smaller
// batches so a run over big scans cannot stall a whole batch on one read.
func ReadBatchSize(files []*models.StagedFile) int {
	if len(files) == 0 {
		return fallbackReadBatch
	}
	return tierFor(meanSize(files)).read
}

// DispatchBatchSize returns how many prepared documents to hand downstream
// per dispatch call. Always at least ReadBatchSize for the same input.
func DispatchBatchSize(files []*models.StagedFile) int {
	if len(files) == 0 {
		return fallbackDispatchBatch
	}
	return tierFor(meanSize(files)).dispatch
}
