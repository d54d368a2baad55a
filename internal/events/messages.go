package events

// Event types published by the application.
const (
	TypeCollectionUpdated = "collection:updated"
	TypeTeamsUpdated      = "teams:updated"
	TypeReferenceReloaded = "reference:reloaded"
	TypeBackupRestored    = "backup:restored"
	TypeTradeImported     = "trade:imported"
)

// CollectionUpdatedEvent is the payload for collection:updated events.
// Sent after ownership counts change.
type CollectionUpdatedEvent struct {
	Version uint64 `json:"version"` // ownership version after the change
	Cards   int    `json:"cards"`   // number of card rows written
	Dice    int    `json:"dice"`    // number of dice buckets written
}

// TeamsUpdatedEvent is the payload for teams:updated events.
type TeamsUpdatedEvent struct {
	TeamID int    `json:"teamId,omitempty"`
	Action string `json:"action"` // created, renamed, deleted, cards
}

// ReferenceReloadedEvent is the payload for reference:reloaded events.
// Sent when the reference catalog is reloaded from disk.
type ReferenceReloadedEvent struct {
	Generation uint64 `json:"generation"`
	Cards      int    `json:"cards"`
}

// BackupRestoredEvent is the payload for backup:restored events.
type BackupRestoredEvent struct {
	Path      string `json:"path"`
	Encrypted bool   `json:"encrypted"`
}

// TradeImportedEvent is the payload for trade:imported events.
type TradeImportedEvent struct {
	ImportID  string `json:"importId"`
	Cards     int    `json:"cards"`
	Dice      int    `json:"dice"`
	Unmatched int    `json:"unmatched"`
}
