package collection

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/ramonehamilton/prep-area/internal/storage/models"
)

func f(v float64) *float64 { return &v }
func n(v int) *int         { return &v }

func TestBuildSnapshot(t *testing.T) {
	snap := BuildSnapshot(
		[]models.CollectionRow{
			{CardPK: 1, HaveCards: f(2.4), HaveFoil: f(1)},
			{CardPK: 2, HaveCards: f(-3), HaveFoil: nil},
			{CardPK: 3, HaveCards: f(math.NaN()), HaveFoil: f(2.5)},
			{CardPK: 0, HaveCards: f(9)},
			{CardPK: -1, HaveCards: f(9)},
		},
		[]models.DiceRow{
			{Character: " Hulk ", SetGroup: "avx", Count: f(5)},
			{Character: "Thor", SetGroup: " ", Count: f(2)},
			{Character: "  ", SetGroup: "avx", Count: f(4)},
			{Character: "Loki", SetGroup: "avx", Count: nil},
		},
	)

	wantCards := map[int]Counts{
		1: {Standard: 2, Foil: 1},
		2: {Standard: 0, Foil: 0},
		3: {Standard: 0, Foil: 3},
	}
	if !reflect.DeepEqual(snap.Cards, wantCards) {
		t.Errorf("Cards = %v, want %v", snap.Cards, wantCards)
	}

	wantDice := map[string]int{
		"Hulk||avx":   5,
		"Thor||Other": 2,
		"Loki||avx":   0,
	}
	if !reflect.DeepEqual(snap.Dice, wantDice) {
		t.Errorf("Dice = %v, want %v", snap.Dice, wantDice)
	}

	if !snap.Owns(1) || snap.Owns(2) || snap.Owns(99) {
		t.Error("Owns returned wrong results")
	}
	if got := snap.DiceCount("Hulk", "avx"); got != 5 {
		t.Errorf("DiceCount = %d, want 5", got)
	}
	if got := snap.DiceCount("", "avx"); got != 0 {
		t.Errorf("DiceCount for blank character = %d, want 0", got)
	}
}

func TestBuildSnapshot_OrderIndependent(t *testing.T) {
	cards := []models.CollectionRow{
		{CardPK: 1, HaveCards: f(1)},
		{CardPK: 2, HaveCards: f(2), HaveFoil: f(1)},
		{CardPK: 3, HaveFoil: f(4)},
	}
	dice := []models.DiceRow{
		{Character: "Hulk", SetGroup: "avx", Count: f(5)},
		{Character: "Hulk ", SetGroup: "avx", Count: f(3)},
		{Character: "Thor", SetGroup: "", Count: f(1)},
	}
	want := BuildSnapshot(cards, dice)

	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 10; i++ {
		rng.Shuffle(len(cards), func(a, b int) { cards[a], cards[b] = cards[b], cards[a] })
		rng.Shuffle(len(dice), func(a, b int) { dice[a], dice[b] = dice[b], dice[a] })
		if got := BuildSnapshot(cards, dice); !reflect.DeepEqual(got, want) {
			t.Fatalf("snapshot depends on row order: %v vs %v", got, want)
		}
	}
}

type memPersister struct {
	mu    sync.Mutex
	cards map[int]models.CollectionEntry
	dice  map[string]int
	fail  error
	calls int
}

func newMemPersister() *memPersister {
	return &memPersister{cards: map[int]models.CollectionEntry{}, dice: map[string]int{}}
}

func (p *memPersister) UpsertCards(_ context.Context, entries []models.CollectionEntry) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	if p.fail != nil {
		return p.fail
	}
	for _, e := range entries {
		p.cards[e.CardPK] = e
	}
	return nil
}

func (p *memPersister) UpsertDice(_ context.Context, entries []models.DiceCount) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fail != nil {
		return p.fail
	}
	for _, e := range entries {
		p.dice[models.DiceKey(e.Character, e.SetGroup)] = e.Count
	}
	return nil
}

func (p *memPersister) ListCollection(context.Context) ([]models.CollectionRow, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	var rows []models.CollectionRow
	for _, e := range p.cards {
		rows = append(rows, models.CollectionRow{CardPK: e.CardPK, HaveCards: f(float64(e.Standard)), HaveFoil: f(float64(e.Foil))})
	}
	return rows, nil
}

func (p *memPersister) ListDice(context.Context) ([]models.DiceRow, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	var rows []models.DiceRow
	for key, count := range p.dice {
		character, group := models.SplitDiceKey(key)
		rows = append(rows, models.DiceRow{Character: character, SetGroup: group, Count: f(float64(count))})
	}
	return rows, nil
}

func newTestStore(p *memPersister) *Store {
	return NewStore(StoreConfig{Persister: p, FlushDelay: time.Hour})
}

func TestStore_ClampNeverNegative(t *testing.T) {
	s := NewStore(StoreConfig{})
	rng := rand.New(rand.NewSource(1))
	for i := 0; i < 500; i++ {
		delta := rng.Intn(7) - 4
		if got := s.IncCards(1, delta); got < 0 {
			t.Fatalf("standard count went negative: %d", got)
		}
		if got := s.IncFoil(1, delta); got < 0 {
			t.Fatalf("foil count went negative: %d", got)
		}
		if got := s.IncDice("Hulk", "avx", delta); got < 0 {
			t.Fatalf("dice count went negative: %d", got)
		}
	}
	snap := s.Snapshot()
	if snap.Cards[1].Standard < 0 || snap.Cards[1].Foil < 0 || snap.Dice["Hulk||avx"] < 0 {
		t.Errorf("negative count in snapshot: %+v", snap)
	}
}

func TestStore_VersionAndNoOps(t *testing.T) {
	var notified []uint64
	s := NewStore(StoreConfig{OnChange: func(v uint64) { notified = append(notified, v) }})

	if got := s.IncCards(1, -1); got != 0 {
		t.Errorf("IncCards below zero = %d, want 0", got)
	}
	if s.Version() != 0 {
		t.Errorf("no-op mutation bumped version to %d", s.Version())
	}

	s.IncCards(1, 2)
	s.IncFoil(1, 1)
	s.IncDice("", "avx", 3)
	if s.Version() != 2 {
		t.Errorf("Version = %d, want 2", s.Version())
	}
	if !reflect.DeepEqual(notified, []uint64{1, 2}) {
		t.Errorf("notified = %v, want [1 2]", notified)
	}

	snap := s.Snapshot()
	s.IncCards(1, 5)
	if snap.Cards[1].Standard != 2 {
		t.Error("snapshot changed after a later mutation")
	}
	if snap.Version != 2 {
		t.Errorf("snapshot version = %d, want 2", snap.Version)
	}
}

func TestStore_SetCounts(t *testing.T) {
	s := NewStore(StoreConfig{})
	s.SetCounts(5, n(3), nil)
	s.SetCounts(5, nil, n(2))
	s.SetCounts(5, n(-4), nil)

	if got := s.Snapshot().Card(5); got != (Counts{Standard: 0, Foil: 2}) {
		t.Errorf("Card(5) = %+v", got)
	}
}

func TestStore_ApplyCardDelta(t *testing.T) {
	card := &models.CardRecord{CardPK: 7, CharacterName: "Hulk", SetGroup: " avx "}

	tests := []struct {
		name      string
		delta     int
		foil      bool
		link      DiceLink
		wantCards Counts
		wantDice  int
	}{
		{"no link", 2, false, DiceLinkNone, Counts{Standard: 2}, 0},
		{"one die per card", 2, false, DiceLinkOne, Counts{Standard: 2}, 2},
		{"two dice per card", 3, true, DiceLinkTwo, Counts{Foil: 3}, 6},
		{"removal never removes dice", -1, false, DiceLinkTwo, Counts{}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewStore(StoreConfig{})
			s.ApplyCardDelta(card, tt.delta, tt.foil, tt.link)
			snap := s.Snapshot()
			if got := snap.Card(7); got != tt.wantCards {
				t.Errorf("counts = %+v, want %+v", got, tt.wantCards)
			}
			if got := snap.DiceForCard(card); got != tt.wantDice {
				t.Errorf("dice = %d, want %d", got, tt.wantDice)
			}
		})
	}
}

func TestParseDiceLink(t *testing.T) {
	tests := map[string]DiceLink{"": DiceLinkNone, "none": DiceLinkNone, "D1": DiceLinkOne, "d2": DiceLinkTwo}
	for in, want := range tests {
		got, err := ParseDiceLink(in)
		if err != nil || got != want {
			t.Errorf("ParseDiceLink(%q) = %v, %v", in, got, err)
		}
	}
	if _, err := ParseDiceLink("d3"); err == nil {
		t.Error("expected error for d3")
	}
}

func TestStore_ApplyBatch(t *testing.T) {
	var calls int
	s := NewStore(StoreConfig{OnChange: func(uint64) { calls++ }})
	changed := s.ApplyBatch(
		[]CardUpdate{{CardPK: 1, Standard: n(2)}, {CardPK: 2, Foil: n(1)}, {CardPK: 0, Standard: n(9)}},
		[]models.DiceCount{{Character: "Hulk", SetGroup: "", Count: 4}, {Character: "", SetGroup: "x", Count: 1}},
	)
	if !changed || calls != 1 || s.Version() != 1 {
		t.Fatalf("changed=%v calls=%d version=%d", changed, calls, s.Version())
	}
	snap := s.Snapshot()
	if snap.DiceCount("Hulk", "Other") != 4 || snap.Card(1).Standard != 2 || snap.Card(2).Foil != 1 {
		t.Errorf("unexpected snapshot %+v", snap)
	}

	if s.ApplyBatch([]CardUpdate{{CardPK: 1, Standard: n(2)}}, nil) {
		t.Error("identical batch reported a change")
	}
}

func TestStore_FlushAndLoad(t *testing.T) {
	p := newMemPersister()
	s := newTestStore(p)
	ctx := context.Background()

	s.IncCards(1, 3)
	s.IncFoil(1, 1)
	s.IncDice("Hulk", "avx", 2)
	if s.Pending() != 2 {
		t.Errorf("Pending = %d, want 2", s.Pending())
	}

	if err := s.Flush(ctx); err != nil {
		t.Fatalf("Flush failed: %v", err)
	}
	if s.Pending() != 0 {
		t.Errorf("Pending after flush = %d", s.Pending())
	}
	if got := p.cards[1]; got.Standard != 3 || got.Foil != 1 {
		t.Errorf("persisted card = %+v", got)
	}
	if p.dice["Hulk||avx"] != 2 {
		t.Errorf("persisted dice = %v", p.dice)
	}

	reloaded := newTestStore(p)
	if err := reloaded.Load(ctx, p); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	snap := reloaded.Snapshot()
	if snap.Card(1) != (Counts{Standard: 3, Foil: 1}) || snap.DiceCount("Hulk", "avx") != 2 {
		t.Errorf("reloaded snapshot = %+v", snap)
	}
}

func TestStore_FlushFailureKeepsDirty(t *testing.T) {
	p := newMemPersister()
	p.fail = errors.New("disk full")
	s := newTestStore(p)

	s.IncCards(1, 1)
	if err := s.Flush(context.Background()); err == nil {
		t.Fatal("expected flush error")
	}
	if s.Pending() != 1 {
		t.Errorf("Pending = %d, want 1", s.Pending())
	}

	p.fail = nil
	if err := s.Flush(context.Background()); err != nil {
		t.Fatalf("Flush failed: %v", err)
	}
	if p.cards[1].Standard != 1 {
		t.Errorf("persisted card = %+v", p.cards[1])
	}
}

func TestStore_DebouncedFlush(t *testing.T) {
	p := newMemPersister()
	s := NewStore(StoreConfig{Persister: p, FlushDelay: 10 * time.Millisecond})

	for i := 0; i < 5; i++ {
		s.IncCards(1, 1)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		p.mu.Lock()
		got := p.cards[1].Standard
		p.mu.Unlock()
		if got == 5 {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("debounced flush did not persist the final count")
}

func TestStore_ConcurrentIncrements(t *testing.T) {
	s := NewStore(StoreConfig{})
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.IncCards(1, 1)
			s.IncDice("Hulk", "avx", 1)
		}()
	}
	wg.Wait()

	snap := s.Snapshot()
	if snap.Card(1).Standard != 50 || snap.DiceCount("Hulk", "avx") != 50 {
		t.Errorf("lost updates: %+v", snap)
	}
}

type staticLabels map[string]string

func (l staticLabels) SetGroupLabel(group string) string {
	if v, ok := l[group]; ok {
		return v
	}
	return group
}

func TestComputeStats(t *testing.T) {
	cards := []models.CardRecord{
		{CardPK: 1, SetGroup: "avx", Universe: "Marvel", HasFoil: true},
		{CardPK: 2, SetGroup: "avx", Universe: "Marvel"},
		{CardPK: 3, SetLabel: "Promo", Universe: "Marvel", HasFoil: true},
		{CardPK: 4, Universe: ""},
	}
	snap := &Snapshot{
		Cards: map[int]Counts{1: {Standard: 2, Foil: 1}, 3: {Standard: 1}, 99: {Standard: 5}},
		Dice:  map[string]int{"Hulk||avx": 3, "Thor||Other": 1},
	}

	stats := ComputeStats(cards, snap, staticLabels{"avx": "AvX"})

	if stats.TotalStandard != 8 || stats.TotalFoil != 1 || stats.TotalDice != 4 {
		t.Errorf("totals = %d/%d/%d", stats.TotalStandard, stats.TotalFoil, stats.TotalDice)
	}
	if stats.UniqueOwned != 2 || stats.UniqueTotal != 4 {
		t.Errorf("unique = %d/%d, want 2/4", stats.UniqueOwned, stats.UniqueTotal)
	}
	if stats.UniqueFoilOwned != 1 || stats.FoilEligibleTotal != 2 {
		t.Errorf("foil = %d/%d, want 1/2", stats.UniqueFoilOwned, stats.FoilEligibleTotal)
	}

	if len(stats.Universes) != 2 {
		t.Fatalf("universes = %+v", stats.Universes)
	}
	marvel := stats.Universes[0]
	if marvel.Name != "Marvel" || marvel.Total != 3 || marvel.Owned != 2 {
		t.Errorf("marvel = %+v", marvel.Completion)
	}
	if len(marvel.Sets) != 2 || marvel.Sets[0].Name != "AvX" || marvel.Sets[1].Name != "Promo" {
		t.Fatalf("marvel sets = %+v", marvel.Sets)
	}
	if marvel.Sets[0].Percent != 50 || marvel.Sets[0].FoilPercent != 100 {
		t.Errorf("AvX percentages = %v/%v", marvel.Sets[0].Percent, marvel.Sets[0].FoilPercent)
	}
	if stats.Universes[1].Name != "Uncategorized" || stats.Universes[1].Sets[0].Name != "Unknown Set" {
		t.Errorf("uncategorized = %+v", stats.Universes[1])
	}
}
