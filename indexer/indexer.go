package indexer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"primenumbers/core/types"
)

const (
	cursorName   = "events"
	defaultLimit = 100
	maxLimit     = 1000
)

// ErrDisabled is returned by Open for an empty DSN.
var ErrDisabled = errors.New("indexer: disabled")

// subjectKeys lists the attributes an event is indexed under, in priority
// order.
var subjectKeys = []string{"user", "borrower", "hunter", "from"}

// Indexer mirrors committed protocol events into SQL for querying and export.
type Indexer struct {
	db *gorm.DB
}

// Filter narrows Query results. Zero values match everything.
type Filter struct {
	Type    string
	Subject string
	Since   uint64
	Limit   int
}

// Open connects to the configured database. DSNs starting with postgres://
// or postgresql:// use Postgres, anything else is handed to SQLite.
func Open(dsn string) (*Indexer, error) {
	trimmed := strings.TrimSpace(dsn)
	if trimmed == "" {
		return nil, ErrDisabled
	}
	var dialector gorm.Dialector
	if strings.HasPrefix(trimmed, "postgres://") || strings.HasPrefix(trimmed, "postgresql://") {
		dialector = postgres.Open(trimmed)
	} else {
		dialector = sqlite.Open(trimmed)
	}
	db, err := gorm.Open(dialector, &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		return nil, fmt.Errorf("indexer: open: %w", err)
	}
	return New(db)
}

// New migrates db and wraps it.
func New(db *gorm.DB) (*Indexer, error) {
	if db == nil {
		return nil, fmt.Errorf("indexer: nil database")
	}
	if err := AutoMigrate(db); err != nil {
		return nil, fmt.Errorf("indexer: migrate: %w", err)
	}
	return &Indexer{db: db}, nil
}

// Close releases the underlying connection pool.
func (ix *Indexer) Close() error {
	if ix == nil || ix.db == nil {
		return nil
	}
	sqlDB, err := ix.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// LastSeq returns the sequence of the most recently recorded transaction.
func (ix *Indexer) LastSeq(ctx context.Context) (uint64, error) {
	var cursor Cursor
	err := ix.db.WithContext(ctx).Where("name = ?", cursorName).Limit(1).Find(&cursor).Error
	if err != nil {
		return 0, err
	}
	return cursor.TxSeq, nil
}

// Record stores the events of one committed transaction and advances the
// cursor atomically. Replaying an already recorded sequence is a no-op.
func (ix *Indexer) Record(ctx context.Context, seq uint64, op string, blockTime uint64, events []*types.Event) error {
	return ix.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var cursor Cursor
		if err := tx.Where("name = ?", cursorName).Limit(1).Find(&cursor).Error; err != nil {
			return err
		}
		if cursor.Name != "" && seq <= cursor.TxSeq {
			return nil
		}
		rows := make([]EventRecord, 0, len(events))
		for _, evt := range events {
			if evt == nil {
				continue
			}
			attrs, err := json.Marshal(evt.Attributes)
			if err != nil {
				return fmt.Errorf("indexer: encode %s: %w", evt.Type, err)
			}
			rows = append(rows, EventRecord{
				TxSeq:      seq,
				Op:         op,
				Type:       evt.Type,
				Subject:    subjectOf(evt),
				BlockTime:  blockTime,
				Attributes: string(attrs),
			})
		}
		if len(rows) > 0 {
			if err := tx.Create(&rows).Error; err != nil {
				return err
			}
		}
		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "name"}},
			DoUpdates: clause.AssignmentColumns([]string{"tx_seq", "updated_at"}),
		}).Create(&Cursor{Name: cursorName, TxSeq: seq, UpdatedAt: time.Now().UTC()}).Error
	})
}

// Query returns matching events, newest first.
func (ix *Indexer) Query(ctx context.Context, filter Filter) ([]EventRecord, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = defaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	var out []EventRecord
	err := ix.scope(ctx, filter).Order("id DESC").Limit(limit).Find(&out).Error
	return out, err
}

// Count returns the number of events matching filter, ignoring its limit.
func (ix *Indexer) Count(ctx context.Context, filter Filter) (int64, error) {
	var n int64
	err := ix.scope(ctx, filter).Model(&EventRecord{}).Count(&n).Error
	return n, err
}

func (ix *Indexer) scope(ctx context.Context, filter Filter) *gorm.DB {
	query := ix.db.WithContext(ctx)
	if t := strings.TrimSpace(filter.Type); t != "" {
		query = query.Where("type = ?", t)
	}
	if s := strings.TrimSpace(filter.Subject); s != "" {
		query = query.Where("subject = ?", strings.ToLower(s))
	}
	if filter.Since > 0 {
		query = query.Where("block_time >= ?", filter.Since)
	}
	return query
}

// Decode unpacks the stored attributes.
func (r EventRecord) Decode() (map[string]string, error) {
	attrs := map[string]string{}
	if r.Attributes == "" {
		return attrs, nil
	}
	if err := json.Unmarshal([]byte(r.Attributes), &attrs); err != nil {
		return nil, err
	}
	return attrs, nil
}

func subjectOf(evt *types.Event) string {
	for _, key := range subjectKeys {
		if v := evt.Attr(key); v != "" {
			return strings.ToLower(v)
		}
	}
	return ""
}
