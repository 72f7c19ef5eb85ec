package syncer

import (
	"fmt"
	"time"
)

// Window 同步时间窗口，毫秒，两端闭区间，Start <= End。
// Never persisted; recomputed every run.
type Window struct {
	Start int64
	End   int64
}

func (w Window) String() string {
	return fmt.Sprintf("[%s, %s]",
		time.UnixMilli(w.Start).UTC().Format(time.RFC3339),
		time.UnixMilli(w.End).UTC().Format(time.RFC3339),
	)
}

type Chunk struct {
	Start int64
	End   int64
}

// Chunks partitions the window into contiguous, non-overlapping
// sub-intervals of at most maxSpan. Each chunk ends at
// min(start+maxSpan-1ms, window end) and the next one starts 1ms later.
func (w Window) Chunks(maxSpan time.Duration) []Chunk {
	spanMs := maxSpan.Milliseconds()
	var chunks []Chunk
	for start := w.Start; start < w.End; {
		end := start + spanMs - 1
		if end > w.End {
			end = w.End
		}
		chunks = append(chunks, Chunk{Start: start, End: end})
		start = end + 1
	}
	return chunks
}
