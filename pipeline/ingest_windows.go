//go:build windows

package pipeline

import (
	"github.com/osfg-go/framegen/capture"
	"github.com/osfg-go/framegen/driver"
	"github.com/osfg-go/framegen/interop"
)

// CaptureIngester adapts a capture.Capturer and an *interop.Interop
// into an Ingester using interop.IngestFromCapture's staged path
// (spec.md §4.3): acquire, map, upload, release, every tick.
type CaptureIngester struct {
	Cap     capture.Capturer
	Interop *interop.Interop
}

// Ingest acquires the next frame, ingests it, and always releases the
// frame before returning, whether ingestion succeeded or not.
func (ci *CaptureIngester) Ingest(cb driver.CmdBuffer, timeoutMs int) error {
	frame, err := ci.Cap.Acquire(timeoutMs)
	if err != nil {
		return err
	}
	defer ci.Cap.Release()
	return interop.IngestFromCapture(ci.Interop, cb, ci.Cap, frame)
}

// CaptureStats reports the underlying Capturer's rolling statistics.
func (ci *CaptureIngester) CaptureStats() capture.Stats { return ci.Cap.Stats() }
