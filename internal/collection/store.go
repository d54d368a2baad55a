package collection

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/bep/debounce"

	"github.com/ramonehamilton/prep-area/internal/storage/models"
)

// DefaultFlushDelay is the quiet period before dirty counts are persisted.
const DefaultFlushDelay = 400 * time.Millisecond

// DiceLink controls whether adding cards also adds dice.
type DiceLink int

const (
	DiceLinkNone DiceLink = iota
	DiceLinkOne           // one die per card added
	DiceLinkTwo           // two dice per card added
)

// ParseDiceLink parses "none", "d1" or "d2".
func ParseDiceLink(s string) (DiceLink, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "none":
		return DiceLinkNone, nil
	case "d1":
		return DiceLinkOne, nil
	case "d2":
		return DiceLinkTwo, nil
	default:
		return DiceLinkNone, fmt.Errorf("unknown dice link mode %q", s)
	}
}

// Source reads the persisted ownership rows.
type Source interface {
	ListCollection(ctx context.Context) ([]models.CollectionRow, error)
	ListDice(ctx context.Context) ([]models.DiceRow, error)
}

// Persister writes ownership rows.
type Persister interface {
	UpsertCards(ctx context.Context, entries []models.CollectionEntry) error
	UpsertDice(ctx context.Context, entries []models.DiceCount) error
}

// StoreConfig configures a Store.
type StoreConfig struct {
	Persister  Persister // optional; nil keeps counts in memory only
	FlushDelay time.Duration
	Logger     *slog.Logger
	OnChange   func(version uint64) // called after every change, outside the lock
}

// CardUpdate sets the counts of one card. Nil fields are left unchanged.
type CardUpdate struct {
	CardPK   int
	Standard *int
	Foil     *int
}

// Store is the in-memory source of truth for ownership. Every mutation is a
// read-then-write under one lock; counts never go below zero. Changed keys
// are persisted by a debounced background flush.
type Store struct {
	mu      sync.Mutex
	cards   map[int]Counts
	dice    map[string]int
	version uint64

	dirtyCards map[int]struct{}
	dirtyDice  map[string]struct{}

	flushMu   sync.Mutex
	persister Persister
	debounced func(func())
	logger    *slog.Logger
	onChange  func(uint64)
}

// NewStore creates an empty Store.
func NewStore(config StoreConfig) *Store {
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	if config.FlushDelay <= 0 {
		config.FlushDelay = DefaultFlushDelay
	}
	return &Store{
		cards:      make(map[int]Counts),
		dice:       make(map[string]int),
		dirtyCards: make(map[int]struct{}),
		dirtyDice:  make(map[string]struct{}),
		persister:  config.Persister,
		debounced:  debounce.New(config.FlushDelay),
		logger:     config.Logger,
		onChange:   config.OnChange,
	}
}

// Load replaces all counts with the rows read from src. Pending unflushed
// changes are discarded.
func (s *Store) Load(ctx context.Context, src Source) error {
	cardRows, err := src.ListCollection(ctx)
	if err != nil {
		return fmt.Errorf("failed to load collection: %w", err)
	}
	diceRows, err := src.ListDice(ctx)
	if err != nil {
		return fmt.Errorf("failed to load dice: %w", err)
	}
	snap := BuildSnapshot(cardRows, diceRows)

	s.mu.Lock()
	s.cards = snap.Cards
	s.dice = snap.Dice
	s.dirtyCards = make(map[int]struct{})
	s.dirtyDice = make(map[string]struct{})
	s.version++
	version := s.version
	s.mu.Unlock()

	s.logger.Info("Loaded collection", "cards", len(snap.Cards), "diceBuckets", len(snap.Dice))
	s.notify(version)
	return nil
}

// Version returns the current version. It increases with every change.
func (s *Store) Version() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.version
}

// Snapshot returns a copy of the current counts.
func (s *Store) Snapshot() *Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := &Snapshot{
		Version: s.version,
		Cards:   make(map[int]Counts, len(s.cards)),
		Dice:    make(map[string]int, len(s.dice)),
	}
	for pk, c := range s.cards {
		snap.Cards[pk] = c
	}
	for key, n := range s.dice {
		snap.Dice[key] = n
	}
	return snap
}

// IncCards adds delta to the standard count of a card and returns the new
// count.
func (s *Store) IncCards(cardPK, delta int) int {
	return s.mutateCard(cardPK, func(c Counts) Counts {
		c.Standard += delta
		return c
	}).Standard
}

// IncFoil adds delta to the foil count of a card and returns the new count.
func (s *Store) IncFoil(cardPK, delta int) int {
	return s.mutateCard(cardPK, func(c Counts) Counts {
		c.Foil += delta
		return c
	}).Foil
}

// SetCounts overwrites the given counts of a card.
func (s *Store) SetCounts(cardPK int, standard, foil *int) Counts {
	return s.mutateCard(cardPK, func(c Counts) Counts {
		if standard != nil {
			c.Standard = *standard
		}
		if foil != nil {
			c.Foil = *foil
		}
		return c
	})
}

// IncDice adds delta to the dice of a character in a set group and returns
// the new count. A blank character is ignored.
func (s *Store) IncDice(character, setGroup string, delta int) int {
	return s.mutateDice(character, setGroup, func(n int) int { return n + delta })
}

// SetDice overwrites the dice of a character in a set group.
func (s *Store) SetDice(character, setGroup string, count int) int {
	return s.mutateDice(character, setGroup, func(int) int { return count })
}

// ApplyCardDelta adds delta copies of a card, foil or standard. When cards
// are added and link is set, dice for the card's character are added too.
func (s *Store) ApplyCardDelta(card *models.CardRecord, delta int, foil bool, link DiceLink) {
	if delta == 0 {
		return
	}
	if foil {
		s.IncFoil(card.CardPK, delta)
	} else {
		s.IncCards(card.CardPK, delta)
	}
	if delta > 0 && link != DiceLinkNone {
		perCard := 1
		if link == DiceLinkTwo {
			perCard = 2
		}
		s.IncDice(card.CharacterName, card.GroupLabel(), delta*perCard)
	}
}

// ApplyBatch sets many counts as one change.
func (s *Store) ApplyBatch(cards []CardUpdate, dice []models.DiceCount) bool {
	s.mu.Lock()
	changed := false
	for _, u := range cards {
		if u.CardPK <= 0 {
			continue
		}
		cur := s.cards[u.CardPK]
		next := cur
		if u.Standard != nil {
			next.Standard = clamp(*u.Standard)
		}
		if u.Foil != nil {
			next.Foil = clamp(*u.Foil)
		}
		if next != cur {
			s.cards[u.CardPK] = next
			s.dirtyCards[u.CardPK] = struct{}{}
			changed = true
		}
	}
	for _, d := range dice {
		key, ok := diceKey(d.Character, d.SetGroup)
		if !ok {
			continue
		}
		next := clamp(d.Count)
		if cur, exists := s.dice[key]; !exists || cur != next {
			s.dice[key] = next
			s.dirtyDice[key] = struct{}{}
			changed = true
		}
	}
	var version uint64
	if changed {
		s.version++
		version = s.version
	}
	s.mu.Unlock()

	if changed {
		s.changed(version)
	}
	return changed
}

func (s *Store) mutateCard(cardPK int, fn func(Counts) Counts) Counts {
	s.mu.Lock()
	cur := s.cards[cardPK]
	next := fn(cur)
	next.Standard = clamp(next.Standard)
	next.Foil = clamp(next.Foil)
	if cardPK <= 0 || next == cur {
		s.mu.Unlock()
		return cur
	}
	s.cards[cardPK] = next
	s.dirtyCards[cardPK] = struct{}{}
	s.version++
	version := s.version
	s.mu.Unlock()

	s.changed(version)
	return next
}

func (s *Store) mutateDice(character, setGroup string, fn func(int) int) int {
	key, ok := diceKey(character, setGroup)
	if !ok {
		return 0
	}

	s.mu.Lock()
	cur := s.dice[key]
	next := clamp(fn(cur))
	if next == cur {
		s.mu.Unlock()
		return cur
	}
	s.dice[key] = next
	s.dirtyDice[key] = struct{}{}
	s.version++
	version := s.version
	s.mu.Unlock()

	s.changed(version)
	return next
}

func (s *Store) changed(version uint64) {
	if s.persister != nil {
		s.debounced(func() {
			if err := s.Flush(context.Background()); err != nil {
				s.logger.Error("Failed to persist collection", "error", err)
			}
		})
	}
	s.notify(version)
}

func (s *Store) notify(version uint64) {
	if s.onChange != nil {
		s.onChange(version)
	}
}

// Pending returns the number of changed keys not yet persisted.
func (s *Store) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.dirtyCards) + len(s.dirtyDice)
}

// Flush persists every changed key now. Keys that fail to persist stay
// dirty for the next flush.
func (s *Store) Flush(ctx context.Context) error {
	if s.persister == nil {
		return nil
	}

	s.flushMu.Lock()
	defer s.flushMu.Unlock()

	s.mu.Lock()
	cards := make([]models.CollectionEntry, 0, len(s.dirtyCards))
	for pk := range s.dirtyCards {
		c := s.cards[pk]
		cards = append(cards, models.CollectionEntry{CardPK: pk, Standard: c.Standard, Foil: c.Foil})
	}
	dice := make([]models.DiceCount, 0, len(s.dirtyDice))
	for key := range s.dirtyDice {
		character, group := models.SplitDiceKey(key)
		dice = append(dice, models.DiceCount{Character: character, SetGroup: group, Count: s.dice[key]})
	}
	s.dirtyCards = make(map[int]struct{})
	s.dirtyDice = make(map[string]struct{})
	s.mu.Unlock()

	if len(cards) == 0 && len(dice) == 0 {
		return nil
	}

	if err := s.persister.UpsertCards(ctx, cards); err != nil {
		s.remarkDirty(cards, dice)
		return fmt.Errorf("failed to persist card counts: %w", err)
	}
	if err := s.persister.UpsertDice(ctx, dice); err != nil {
		s.remarkDirty(nil, dice)
		return fmt.Errorf("failed to persist dice counts: %w", err)
	}

	s.logger.Debug("Persisted collection", "cards", len(cards), "diceBuckets", len(dice))
	return nil
}

func (s *Store) remarkDirty(cards []models.CollectionEntry, dice []models.DiceCount) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range cards {
		s.dirtyCards[c.CardPK] = struct{}{}
	}
	for _, d := range dice {
		s.dirtyDice[models.DiceKey(d.Character, d.SetGroup)] = struct{}{}
	}
}

// Close persists pending changes.
func (s *Store) Close(ctx context.Context) error {
	return s.Flush(ctx)
}

func diceKey(character, setGroup string) (string, bool) {
	character = strings.TrimSpace(character)
	if character == "" {
		return "", false
	}
	return models.DiceKey(character, normalizeGroup(setGroup)), true
}

func clamp(n int) int {
	if n < 0 {
		return 0
	}
	return n
}
