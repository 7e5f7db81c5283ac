package indexer

import (
	"time"

	"gorm.io/gorm"
)

// EventRecord is one committed protocol event.
type EventRecord struct {
	ID        uint64 `gorm:"primaryKey;autoIncrement"`
	TxSeq     uint64 `gorm:"index"`
	Op        string `gorm:"size:64;index"`
	Type      string `gorm:"size:64;index"`
	Subject   string `gorm:"size:64;index"`
	BlockTime uint64 `gorm:"index"`
	// Attributes holds the event attributes as a JSON object.
	Attributes string `gorm:"type:text"`
	CreatedAt  time.Time
}

// Cursor remembers the last committed transaction sequence.
type Cursor struct {
	Name      string `gorm:"primaryKey;size:32"`
	TxSeq     uint64
	UpdatedAt time.Time
}

// AutoMigrate performs all schema migrations for the index.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&EventRecord{},
		&Cursor{},
	)
}
