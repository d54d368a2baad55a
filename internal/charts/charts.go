// Package charts renders collection statistics as interactive HTML charts.
package charts

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/ramonehamilton/prep-area/internal/collection"
)

// ChartConfig holds configuration for charts.
type ChartConfig struct {
	Title      string   // Chart title
	Subtitle   string   // Chart subtitle
	YAxisLabel string   // Y-axis label
	XAxisLabel string   // X-axis label
	Width      string   // Chart width (e.g., "900px")
	Height     string   // Chart height (e.g., "500px")
	Theme      string   // Chart theme
	ShowLegend bool     // Show legend
	Colors     []string // Series colors, in order
}

// DefaultChartConfig returns default chart configuration.
func DefaultChartConfig() ChartConfig {
	return ChartConfig{
		Width:      "1200px",
		Height:     "600px",
		Theme:      "light",
		ShowLegend: true,
		Colors:     []string{"#5470C6", "#FAC858", "#91CC75", "#EE6666", "#73C0DE"},
	}
}

// SeriesData is one named series of values, one per category.
type SeriesData struct {
	Name   string
	Values []float64
}

// RenderBarChart writes a grouped bar chart with one bar per series in each
// category.
func RenderBarChart(w io.Writer, categories []string, series []SeriesData, config ChartConfig) error {
	if len(categories) == 0 {
		return fmt.Errorf("no categories to chart")
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{
			Width:  config.Width,
			Height: config.Height,
			Theme:  config.Theme,
		}),
		charts.WithTitleOpts(opts.Title{
			Title:    config.Title,
			Subtitle: config.Subtitle,
		}),
		charts.WithTooltipOpts(opts.Tooltip{
			Show:    opts.Bool(true),
			Trigger: "axis",
		}),
		charts.WithLegendOpts(opts.Legend{
			Show: opts.Bool(config.ShowLegend),
		}),
		charts.WithXAxisOpts(opts.XAxis{Name: config.XAxisLabel}),
		charts.WithYAxisOpts(opts.YAxis{Name: config.YAxisLabel}),
	)
	if len(config.Colors) > 0 {
		bar.SetGlobalOptions(charts.WithColorsOpts(opts.Colors(config.Colors)))
	}

	bar.SetXAxis(categories)
	for _, s := range series {
		data := make([]opts.BarData, len(categories))
		for i := range categories {
			var v float64
			if i < len(s.Values) {
				v = s.Values[i]
			}
			data[i] = opts.BarData{Value: v}
		}
		bar.AddSeries(s.Name, data)
	}
	bar.SetSeriesOptions(
		charts.WithLabelOpts(opts.Label{
			Show: opts.Bool(false),
		}),
	)

	if err := bar.Render(w); err != nil {
		return fmt.Errorf("failed to render chart: %w", err)
	}
	return nil
}

// CompletionCategories flattens the per-set completion of every universe
// into chart categories and owned and foil percentages.
func CompletionCategories(stats *collection.Stats) ([]string, []SeriesData) {
	owned := SeriesData{Name: "Owned %"}
	foil := SeriesData{Name: "Foil %"}
	var categories []string
	for _, u := range stats.Universes {
		for _, set := range u.Sets {
			categories = append(categories, set.Name)
			owned.Values = append(owned.Values, set.Percent)
			foil.Values = append(foil.Values, set.FoilPercent)
		}
	}
	return categories, []SeriesData{owned, foil}
}

// RenderCompletionChart writes a bar chart of owned and foil completion per
// set.
func RenderCompletionChart(w io.Writer, stats *collection.Stats, config ChartConfig) error {
	if config.Title == "" {
		config.Title = "Collection Completion"
		config.Subtitle = fmt.Sprintf("%d of %d cards owned", stats.UniqueOwned, stats.UniqueTotal)
	}
	if config.YAxisLabel == "" {
		config.YAxisLabel = "%"
	}
	categories, series := CompletionCategories(stats)
	return RenderBarChart(w, categories, series, config)
}

// WriteFile renders a chart into a new file at outputPath.
func WriteFile(outputPath string, render func(io.Writer) error) (err error) {
	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return fmt.Errorf("failed to create chart directory: %w", err)
	}
	f, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("failed to create chart file: %w", err)
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()
	return render(f)
}

// OpenInBrowser opens the given file path in the default web browser.
func OpenInBrowser(filePath string) error {
	absPath, err := filepath.Abs(filePath)
	if err != nil {
		return fmt.Errorf("failed to get absolute path: %w", err)
	}

	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", absPath)
	case "windows":
		cmd = exec.Command("cmd", "/c", "start", absPath)
	case "linux":
		cmd = exec.Command("xdg-open", absPath)
	default:
		return fmt.Errorf("unsupported platform: %s", runtime.GOOS)
	}

	return cmd.Start()
}
