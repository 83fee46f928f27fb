package app

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"ratewatcher/internal/model"
)

// slowLogWriter simulates a store whose audit writes take a moment.
type slowLogWriter struct {
	written atomic.Int32
}

func (w *slowLogWriter) AppendScrapeLog(_ context.Context, _ model.ScrapeLogEntry) error {
	time.Sleep(20 * time.Millisecond)
	w.written.Add(1)
	return nil
}

func TestScrapeLogSinkDrainWaitsForWrites(t *testing.T) {
	writer := &slowLogWriter{}
	sink := newScrapeLogSink(writer, zerolog.Nop())

	const entries = 8
	for i := 0; i < entries; i++ {
		sink.Write(model.ScrapeLogEntry{
			Source:       "zillow",
			LocationCode: "FL",
			Status:       model.ScrapeSuccess,
		})
	}

	sink.Drain()
	if got := writer.written.Load(); got != entries {
		t.Fatalf("writes settled after drain = %d, want %d", got, entries)
	}
}
