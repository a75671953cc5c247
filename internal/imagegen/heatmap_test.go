package imagegen

import (
	"bytes"
	"fmt"
	"image/png"
	"sync"
	"testing"
	"time"

	"github.com/lox/gendash/internal/compliance"
	"github.com/lox/gendash/internal/report"
)

func sampleCells() []report.HeatmapCell {
	return []report.HeatmapCell{
		{Time: "00:30", Deviation: 0, Grade: compliance.GradeOK},
		{Time: "01:00", Deviation: 150, Grade: compliance.GradeWarning},
		{Time: "01:30", Deviation: -797, Grade: compliance.GradeViolation},
	}
}

func TestRenderHeatmap(t *testing.T) {
	data, err := RenderHeatmap("Deviation heatmap 2025-03-10", sampleCells())
	if err != nil {
		t.Fatalf("RenderHeatmap: %v", err)
	}

	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	w, h := Size(3)
	if img.Bounds().Dx() != w || img.Bounds().Dy() != h {
		t.Errorf("size = %v, want %dx%d", img.Bounds(), w, h)
	}

	// top-left pixel of the first cell carries its grade colour
	r, g, b, _ := img.At(margin, margin+headerH).RGBA()
	want := GradeColor(compliance.GradeOK)
	if uint8(r>>8) != want.R || uint8(g>>8) != want.G || uint8(b>>8) != want.B {
		t.Errorf("first cell colour = %d,%d,%d, want %v", r>>8, g>>8, b>>8, want)
	}
}

func TestRenderHeatmapEmpty(t *testing.T) {
	data, err := RenderHeatmap("empty", nil)
	if err != nil {
		t.Fatalf("RenderHeatmap: %v", err)
	}
	if _, err := png.Decode(bytes.NewReader(data)); err != nil {
		t.Fatalf("decode: %v", err)
	}
}

func TestSize(t *testing.T) {
	_, h1 := Size(8)
	_, h2 := Size(9)
	_, h48 := Size(48)
	if h2 <= h1 {
		t.Errorf("9 cells should need a second row: %d <= %d", h2, h1)
	}
	if want := 2*margin + headerH + 6*CellHeight + 5*cellGap; h48 != want {
		t.Errorf("Size(48) height = %d, want %d", h48, want)
	}
}

func TestHeatmapCache(t *testing.T) {
	c := NewHeatmapCache(time.Minute)
	cells := sampleCells()

	if _, ok := c.Get("2025-03-10", cells); ok {
		t.Fatal("empty cache returned a hit")
	}

	first, err := c.Render("2025-03-10", cells)
	if err != nil {
		t.Fatal(err)
	}
	if got, ok := c.Get("2025-03-10", cells); !ok || !bytes.Equal(got, first) {
		t.Error("expected cached image")
	}

	changed := sampleCells()
	changed[1].Deviation = 180
	if _, ok := c.Get("2025-03-10", changed); ok {
		t.Error("changed cells must miss the cache")
	}
	if _, ok := c.Get("2025-03-11", cells); ok {
		t.Error("other date must miss the cache")
	}

	c.Invalidate("2025-03-10")
	if _, ok := c.Get("2025-03-10", cells); ok {
		t.Error("invalidated entry still cached")
	}
}

func TestHeatmapCacheExpiry(t *testing.T) {
	c := NewHeatmapCache(-time.Second)
	c.Set("2025-03-10", nil, []byte("png"))
	if _, ok := c.Get("2025-03-10", nil); ok {
		t.Error("expired entry returned")
	}
}

func TestRenderHeatmapConcurrent(t *testing.T) {
	want, err := RenderHeatmap("Deviation heatmap 2025-03-10", sampleCells())
	if err != nil {
		t.Fatal(err)
	}

	var wg sync.WaitGroup
	errs := make(chan error, 16)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, err := RenderHeatmap("Deviation heatmap 2025-03-10", sampleCells())
			if err != nil {
				errs <- err
				return
			}
			if !bytes.Equal(got, want) {
				errs <- fmt.Errorf("concurrent render differs from serial render")
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}
}
