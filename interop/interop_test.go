package interop_test

import (
	"context"
	"testing"

	"github.com/osfg-go/framegen/driver"
	"github.com/osfg-go/framegen/driver/soft"
	"github.com/osfg-go/framegen/gpuctx"
	"github.com/osfg-go/framegen/interop"
)

func newSoftCtx(t *testing.T) *gpuctx.GpuContext {
	t.Helper()
	gc, err := gpuctx.New(&soft.Driver{}, 0, nil)
	if err != nil {
		t.Fatalf("gpuctx.New: %v", err)
	}
	t.Cleanup(gc.Close)
	return gc
}

func solidPixels(w, h int, r, g, b byte) []byte {
	stride := w * 4
	buf := make([]byte, stride*h)
	for i := 0; i < len(buf); i += 4 {
		buf[i], buf[i+1], buf[i+2], buf[i+3] = b, g, r, 255
	}
	return buf
}

func TestIngestWritesIntoCurrentAndRotatePreservesPrevious(t *testing.T) {
	gc := newSoftCtx(t)
	const w, h = 16, 16

	ip, err := interop.New(gc.GPU(), interop.Config{Width: w, Height: h}, nil)
	if err != nil {
		t.Fatalf("interop.New: %v", err)
	}
	defer ip.Destroy()

	frame1 := solidPixels(w, h, 10, 20, 30)
	if err := ip.Ingest(gc.CmdBuffer(), frame1, w*4); err != nil {
		t.Fatalf("Ingest frame1: %v", err)
	}
	if err := gc.SubmitAndWait(context.Background()); err != nil {
		t.Fatalf("SubmitAndWait: %v", err)
	}
	gc.ResetRecording()

	cur := ip.Current().(*soft.Image)
	if got := cur.Pixels()[0]; got != 30 {
		t.Fatalf("Current B after frame1:\nhave %v\nwant 30", got)
	}
	if ip.IngestedCount() != 1 {
		t.Fatalf("IngestedCount:\nhave %v\nwant 1", ip.IngestedCount())
	}

	ip.Rotate()
	prevAfterRotate := ip.Previous().(*soft.Image)
	if prevAfterRotate.Pixels()[0] != 30 {
		t.Fatalf("Previous after Rotate should be frame1's slot:\nhave B=%v\nwant 30", prevAfterRotate.Pixels()[0])
	}

	frame2 := solidPixels(w, h, 200, 210, 220)
	if err := ip.Ingest(gc.CmdBuffer(), frame2, w*4); err != nil {
		t.Fatalf("Ingest frame2: %v", err)
	}
	if err := gc.SubmitAndWait(context.Background()); err != nil {
		t.Fatalf("SubmitAndWait: %v", err)
	}

	newCur := ip.Current().(*soft.Image)
	newPrev := ip.Previous().(*soft.Image)
	if newCur.Pixels()[0] != 220 {
		t.Fatalf("Current B after frame2:\nhave %v\nwant 220", newCur.Pixels()[0])
	}
	if newPrev.Pixels()[0] != 30 {
		t.Fatalf("Previous B after frame2 (should still be frame1):\nhave %v\nwant 30", newPrev.Pixels()[0])
	}
	if ip.IngestedCount() != 2 {
		t.Fatalf("IngestedCount:\nhave %v\nwant 2", ip.IngestedCount())
	}
}

func TestIngestImageFastPath(t *testing.T) {
	gc := newSoftCtx(t)
	const w, h = 8, 8

	ip, err := interop.New(gc.GPU(), interop.Config{Width: w, Height: h}, nil)
	if err != nil {
		t.Fatalf("interop.New: %v", err)
	}
	defer ip.Destroy()

	src, err := gc.GPU().NewImage(driver.BGRA8un, driver.Dim2D{Width: w, Height: h}, driver.UShaderRead)
	if err != nil {
		t.Fatalf("NewImage: %v", err)
	}
	defer src.Destroy()
	si := src.(*soft.Image)
	px := si.Pixels()
	for i := 0; i < len(px); i += 4 {
		px[i], px[i+1], px[i+2], px[i+3] = 5, 6, 7, 255
	}

	if err := ip.IngestImage(gc.CmdBuffer(), src); err != nil {
		t.Fatalf("IngestImage: %v", err)
	}
	if err := gc.SubmitAndWait(context.Background()); err != nil {
		t.Fatalf("SubmitAndWait: %v", err)
	}

	cur := ip.Current().(*soft.Image)
	if cur.Pixels()[0] != 5 || cur.Pixels()[1] != 6 || cur.Pixels()[2] != 7 {
		t.Fatalf("Current BGR:\nhave (%v,%v,%v)\nwant (5,6,7)", cur.Pixels()[0], cur.Pixels()[1], cur.Pixels()[2])
	}
	if ip.IngestedCount() != 1 {
		t.Fatalf("IngestedCount:\nhave %v\nwant 1", ip.IngestedCount())
	}
}

func TestIngestRejectsUndersizedSource(t *testing.T) {
	gc := newSoftCtx(t)
	const w, h = 16, 16

	ip, err := interop.New(gc.GPU(), interop.Config{Width: w, Height: h}, nil)
	if err != nil {
		t.Fatalf("interop.New: %v", err)
	}
	defer ip.Destroy()

	tooSmall := make([]byte, 4)
	if err := ip.Ingest(gc.CmdBuffer(), tooSmall, w*4); err == nil {
		t.Fatalf("Ingest with undersized source: have nil error, want *IngestFailed")
	}
}
