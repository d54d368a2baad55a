package charts

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ramonehamilton/prep-area/internal/collection"
)

func testStats() *collection.Stats {
	return &collection.Stats{
		UniqueOwned: 3,
		UniqueTotal: 10,
		Universes: []collection.UniverseStats{
			{
				Completion: collection.Completion{Name: "Marvel"},
				Sets: []collection.Completion{
					{Name: "Avengers vs X-Men", Percent: 50, FoilPercent: 10},
					{Name: "Uncanny X-Men", Percent: 25},
				},
			},
			{
				Completion: collection.Completion{Name: "D&D"},
				Sets:       []collection.Completion{{Name: "Battle for Faerun", Percent: 100, FoilPercent: 100}},
			},
		},
	}
}

func TestCompletionCategories(t *testing.T) {
	categories, series := CompletionCategories(testStats())

	if len(categories) != 3 || categories[2] != "Battle for Faerun" {
		t.Fatalf("unexpected categories: %v", categories)
	}
	if len(series) != 2 {
		t.Fatalf("expected 2 series, got %d", len(series))
	}
	if series[0].Values[1] != 25 || series[1].Values[0] != 10 {
		t.Errorf("unexpected values: %v %v", series[0].Values, series[1].Values)
	}
}

func TestRenderCompletionChart(t *testing.T) {
	var buf bytes.Buffer
	if err := RenderCompletionChart(&buf, testStats(), DefaultChartConfig()); err != nil {
		t.Fatalf("failed to render chart: %v", err)
	}

	html := buf.String()
	for _, want := range []string{"Collection Completion", "Avengers vs X-Men", "Foil %"} {
		if !strings.Contains(html, want) {
			t.Errorf("expected chart to contain %q", want)
		}
	}
}

func TestRenderBarChart_NoCategories(t *testing.T) {
	var buf bytes.Buffer
	if err := RenderBarChart(&buf, nil, nil, DefaultChartConfig()); err == nil {
		t.Error("expected error without categories")
	}
}

func TestWriteFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "charts", "completion.html")
	err := WriteFile(path, func(w io.Writer) error {
		return RenderCompletionChart(w, testStats(), DefaultChartConfig())
	})
	if err != nil {
		t.Fatalf("failed to write chart: %v", err)
	}
	info, err := os.Stat(path)
	if err != nil || info.Size() == 0 {
		t.Errorf("expected chart file to be written: %v", err)
	}
}
