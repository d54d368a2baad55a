package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/ramonehamilton/prep-area/internal/charts"
	"github.com/ramonehamilton/prep-area/internal/collection"
	"github.com/ramonehamilton/prep-area/internal/config"
	"github.com/ramonehamilton/prep-area/internal/export"
	"github.com/ramonehamilton/prep-area/internal/vocabulary"
)

// withOutput runs write against the named file, or stdout for "" and "-".
func withOutput(path string, write func(io.Writer) error) (err error) {
	if path == "" || path == "-" {
		return write(os.Stdout)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()
	return write(f)
}

func printJSON(v any) error {
	return export.NewExporter(export.Options{Format: export.FormatJSON, PrettyJSON: true}).ExportTo(os.Stdout, v)
}

// runExportCommand writes the collection or trade CSV.
func runExportCommand(ctx context.Context, cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("export", flag.ExitOnError)
	output := fs.String("o", "", "Output file (default: stdout)")
	policyName := fs.String("policy", "", "Trade policy: both or single (trade export only)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	kind := "collection"
	if fs.NArg() > 0 {
		kind = fs.Arg(0)
	}

	services, facades, err := openServices(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeServices(services)

	switch kind {
	case "collection":
		return withOutput(*output, func(w io.Writer) error {
			return facades.Collection.Export(ctx, w)
		})
	case "trade":
		policy, err := facades.Trade.Policy(*policyName)
		if err != nil {
			return err
		}
		return withOutput(*output, func(w io.Writer) error {
			return facades.Trade.Export(ctx, w, policy)
		})
	default:
		return fmt.Errorf("unknown export kind %q (must be 'collection' or 'trade')", kind)
	}
}

// runImportCommand merges a collection CSV into the collection.
func runImportCommand(ctx context.Context, cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("import", flag.ExitOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() < 1 {
		return errors.New("import requires a CSV file path")
	}

	f, err := os.Open(fs.Arg(0))
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", fs.Arg(0), err)
	}
	defer func() { _ = f.Close() }()

	services, facades, err := openServices(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeServices(services)

	report, err := facades.Collection.Import(ctx, f)
	if err != nil {
		return err
	}
	fmt.Printf("Imported %d standard, %d foil and %d dice.\n", report.TotalStandard, report.TotalFoil, report.DiceTotal)
	if len(report.Unmatched) > 0 {
		fmt.Printf("\n%d row(s) did not match a card:\n", len(report.Unmatched))
		for _, row := range report.Unmatched {
			fmt.Printf("  %s / %s / %s\n", row.Set, row.Character, row.CardName)
		}
	}
	return nil
}

// runReconcileCommand matches a partner trade CSV against the collection.
func runReconcileCommand(ctx context.Context, cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("reconcile", flag.ExitOnError)
	policyName := fs.String("policy", "", "Trade policy: both or single")
	format := fs.String("format", "table", "Output format: 'table' or 'json'")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() < 1 {
		return errors.New("reconcile requires the partner's trade CSV")
	}

	f, err := os.Open(fs.Arg(0))
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", fs.Arg(0), err)
	}
	defer func() { _ = f.Close() }()

	services, facades, err := openServices(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeServices(services)

	policy, err := facades.Trade.Policy(*policyName)
	if err != nil {
		return err
	}
	imp, err := facades.Trade.Import(ctx, f)
	if err != nil {
		return err
	}
	result, err := facades.Trade.Reconcile(ctx, imp.ID, policy)
	if err != nil {
		return err
	}

	switch *format {
	case "json":
		return printJSON(result)
	case "table":
		fmt.Printf("Policy: %s\n\n", result.Policy)
		for _, e := range result.Entries {
			if !e.Flags.TradePlus && !e.Flags.TradeMinus {
				continue
			}
			direction := "give"
			if e.Flags.TradePlus {
				direction = "get "
			}
			fmt.Printf("  %s  %-10s %-24s %s\n", direction, e.Kind, e.Character, e.CardName)
		}
		s := result.Summary
		fmt.Printf("\n%d entries: %d to get, %d to give, %d spare, %d missing\n",
			s.Total, s.TradePlus, s.TradeMinus, s.Spares, s.Missing)
		if len(result.Unmatched) > 0 {
			fmt.Printf("%d partner row(s) did not match a card.\n", len(result.Unmatched))
		}
		return nil
	default:
		return fmt.Errorf("invalid format: %s (must be 'table' or 'json')", *format)
	}
}

// setCompletionRow is one set of the stats CSV.
type setCompletionRow struct {
	Universe    string  `csv:"Universe"`
	Set         string  `csv:"Set"`
	Owned       int     `csv:"Owned"`
	Total       int     `csv:"Total"`
	Percent     float64 `csv:"Percent"`
	FoilOwned   int     `csv:"Foils Owned"`
	FoilTotal   int     `csv:"Foil Total"`
	FoilPercent float64 `csv:"Foil Percent"`
}

func setCompletionRows(stats *collection.Stats) []setCompletionRow {
	var rows []setCompletionRow
	for _, u := range stats.Universes {
		for _, set := range u.Sets {
			rows = append(rows, setCompletionRow{
				Universe:    u.Name,
				Set:         set.Name,
				Owned:       set.Owned,
				Total:       set.Total,
				Percent:     set.Percent,
				FoilOwned:   set.FoilOwned,
				FoilTotal:   set.FoilTotal,
				FoilPercent: set.FoilPercent,
			})
		}
	}
	return rows
}

// writeStats writes the stats as JSON, or as per-set CSV rows. An output
// path naming a directory gets a generated file name.
func writeStats(stats *collection.Stats, format export.Format, output string) error {
	var data any = stats
	if format == export.FormatCSV {
		data = setCompletionRows(stats)
	}
	opts := export.Options{Format: format, PrettyJSON: true, Overwrite: true}
	if output == "" || output == "-" {
		return export.NewExporter(opts).ExportTo(os.Stdout, data)
	}
	if info, err := os.Stat(output); err == nil && info.IsDir() {
		output = filepath.Join(output, export.GenerateFilename("collection-stats", format))
	}
	opts.FilePath = output
	if err := export.NewExporter(opts).Export(data); err != nil {
		return err
	}
	fmt.Printf("Stats written to %s\n", output)
	return nil
}

// runStatsCommand prints collection statistics or renders them as a chart.
func runStatsCommand(ctx context.Context, cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("stats", flag.ExitOnError)
	output := fs.String("o", "", "Output file or directory (chart default: <data dir>/charts/collection.html)")
	format := fs.String("format", "table", "Output format: 'table', 'json' or 'csv'")
	open := fs.Bool("open", false, "Open the chart in the default browser")
	if err := fs.Parse(args); err != nil {
		return err
	}

	services, facades, err := openServices(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeServices(services)

	if fs.NArg() == 0 || fs.Arg(0) != "chart" {
		stats := facades.Collection.Stats(ctx)
		switch *format {
		case "json":
			return writeStats(stats, export.FormatJSON, *output)
		case "csv":
			return writeStats(stats, export.FormatCSV, *output)
		case "table":
		default:
			return fmt.Errorf("invalid format: %s (must be 'table', 'json' or 'csv')", *format)
		}
		fmt.Printf("Cards owned:  %d of %d\n", stats.UniqueOwned, stats.UniqueTotal)
		fmt.Printf("Foils owned:  %d of %d\n", stats.UniqueFoilOwned, stats.FoilEligibleTotal)
		fmt.Printf("Copies:       %d standard, %d foil\n", stats.TotalStandard, stats.TotalFoil)
		fmt.Printf("Dice:         %d\n", stats.TotalDice)
		for _, u := range stats.Universes {
			fmt.Printf("  %-24s %d/%d (%.1f%%)\n", u.Name, u.Owned, u.Total, u.Percent)
		}
		return nil
	}

	path := *output
	if path == "" {
		path = cfg.Resolve(filepath.Join("charts", "collection.html"))
	}
	if err := charts.WriteFile(path, func(w io.Writer) error {
		return facades.Collection.RenderStatsChart(ctx, w)
	}); err != nil {
		return err
	}
	fmt.Printf("Chart written to %s\n", path)
	if *open {
		return charts.OpenInBrowser(path)
	}
	return nil
}

// runVocabularyCommand writes the filter vocabulary of the loaded content
// database as a JSON snapshot.
func runVocabularyCommand(ctx context.Context, cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("vocabulary", flag.ExitOnError)
	output := fs.String("o", "", "Snapshot file (default: configured vocabulary_snapshot)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	services, _, err := openServices(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeServices(services)

	catalog, err := services.Reference.Current()
	if err != nil {
		return err
	}

	path := *output
	if path == "" && cfg.Reference.VocabularySnapshot != "" {
		path = cfg.Resolve(cfg.Reference.VocabularySnapshot)
	}
	if path == "" || path == "-" {
		return vocabulary.WriteSnapshot(os.Stdout, catalog.Vocabulary)
	}
	if err := vocabulary.SaveSnapshotFile(path, catalog.Vocabulary); err != nil {
		return err
	}
	fmt.Printf("Vocabulary snapshot written to %s\n", path)
	return nil
}
