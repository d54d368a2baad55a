package app

import (
	"context"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ramonehamilton/prep-area/internal/events"
	"github.com/ramonehamilton/prep-area/internal/export"
	"github.com/ramonehamilton/prep-area/internal/importer"
	"github.com/ramonehamilton/prep-area/internal/trade"
)

// TradeFacade computes trade positions and reconciles them against
// imported partner lists.
type TradeFacade struct {
	services *Services
}

// NewTradeFacade creates a new TradeFacade with the given services.
func NewTradeFacade(services *Services) *TradeFacade {
	return &TradeFacade{services: services}
}

// PartnerImport is a stored partner list.
type PartnerImport struct {
	ID         string                 `json:"id"`
	ImportedAt time.Time              `json:"importedAt"`
	Partner    *trade.PartnerSnapshot `json:"partner"`
}

// Policy parses a policy name, using the configured default when blank.
func (f *TradeFacade) Policy(name string) (trade.Policy, error) {
	if strings.TrimSpace(name) == "" {
		return f.services.Policy, nil
	}
	p, err := trade.ParsePolicy(name)
	if err != nil {
		return p, invalidf("%v", err)
	}
	return p, nil
}

// Snapshot computes the local trade position under policy.
func (f *TradeFacade) Snapshot(_ context.Context, policy trade.Policy) (*trade.Snapshot, error) {
	catalog, err := f.services.Reference.Current()
	if err != nil {
		return nil, err
	}
	return trade.BuildSnapshot(catalog.Cards, catalog.Texts, f.services.Ownership.Snapshot(), catalog.Vocabulary, policy), nil
}

// Export writes the local trade position as a trade CSV.
func (f *TradeFacade) Export(ctx context.Context, w io.Writer, policy trade.Policy) error {
	snap, err := f.Snapshot(ctx, policy)
	if err != nil {
		return err
	}
	return export.WriteTradeCSV(w, export.TradeRows(snap))
}

// Import parses a partner trade CSV and keeps it for reconciliation. The
// oldest imports are evicted once the cache is full.
func (f *TradeFacade) Import(ctx context.Context, r io.Reader) (*PartnerImport, error) {
	catalog, err := f.services.Reference.Current()
	if err != nil {
		return nil, err
	}
	im := importer.New(importer.Config{
		Lookup: catalog.Lookup(),
		Cards:  catalog,
		Logger: f.services.Logger.With("component", "importer"),
	})
	partner, err := im.ImportTrade(ctx, r)
	if err != nil {
		return nil, err
	}

	imp := &PartnerImport{
		ID:         uuid.NewString(),
		ImportedAt: time.Now().UTC(),
		Partner:    partner,
	}
	f.services.partners.Add(imp.ID, imp)

	events.Publish(f.services.Events, ctx, events.TypeTradeImported, events.TradeImportedEvent{
		ImportID:  imp.ID,
		Cards:     len(partner.Cards),
		Dice:      len(partner.Dice),
		Unmatched: len(partner.Unmatched),
	})
	return imp, nil
}

// PartnerImport returns a stored partner list.
func (f *TradeFacade) PartnerImport(_ context.Context, id string) (*PartnerImport, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrImportNotFound
	}
	v, ok := f.services.partners.Get(id)
	if !ok {
		return nil, ErrImportNotFound
	}
	return v.(*PartnerImport), nil
}

// Reconcile matches the local position under policy against a stored
// partner list.
func (f *TradeFacade) Reconcile(ctx context.Context, importID string, policy trade.Policy) (*trade.Result, error) {
	imp, err := f.PartnerImport(ctx, importID)
	if err != nil {
		return nil, err
	}
	local, err := f.Snapshot(ctx, policy)
	if err != nil {
		return nil, err
	}
	return trade.Reconcile(local, imp.Partner), nil
}
