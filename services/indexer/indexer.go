// Package indexer keeps a queryable history of committed offer events in a SQL
// database. The contract state only holds open offers; the index also remembers
// how each resolved offer ended.
package indexer

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"escrowsc/core/events"
)

// Open connects to the index database. postgres:// URLs select PostgreSQL;
// anything else is treated as a SQLite DSN.
func Open(dsn string) (*gorm.DB, error) {
	trimmed := strings.TrimSpace(dsn)
	if trimmed == "" {
		return nil, errors.New("indexer: empty DSN")
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
	if err := AutoMigrate(db); err != nil {
		return nil, fmt.Errorf("indexer: migrate: %w", err)
	}
	return db, nil
}

// Indexer records offer events. It implements events.Emitter so the node can
// publish committed events straight into it.
type Indexer struct {
	db     *gorm.DB
	logger *slog.Logger
	now    func() time.Time

	mu       sync.Mutex
	sequence uint64
}

func New(db *gorm.DB, log *slog.Logger) (*Indexer, error) {
	if db == nil {
		return nil, errors.New("indexer: database required")
	}
	if log == nil {
		log = slog.Default()
	}
	idx := &Indexer{db: db, logger: log, now: time.Now}
	var last OfferEvent
	err := db.Order("sequence desc").Limit(1).Find(&last).Error
	if err != nil {
		return nil, fmt.Errorf("indexer: load sequence: %w", err)
	}
	idx.sequence = last.Sequence
	return idx, nil
}

// Emit implements events.Emitter. Failures are logged; the contract state has
// already been committed when events are published.
func (i *Indexer) Emit(evt events.Event) {
	if i == nil || evt == nil {
		return
	}
	payload := evt.Event()
	if payload == nil {
		return
	}
	if err := i.Record(payload.Type, payload.Attributes); err != nil {
		i.logger.Error("index offer event", "type", payload.Type, "error", err)
	}
}

// Record stores one event. Events without an offer id are ignored.
func (i *Indexer) Record(eventType string, attrs map[string]string) error {
	rawID, ok := attrs["id"]
	if !ok {
		return nil
	}
	offerID, err := strconv.ParseUint(rawID, 10, 64)
	if err != nil {
		return fmt.Errorf("indexer: offer id %q: %w", rawID, err)
	}
	encoded, err := json.Marshal(attrs)
	if err != nil {
		return err
	}

	i.mu.Lock()
	defer i.mu.Unlock()
	row := OfferEvent{
		ID:         uuid.New(),
		Sequence:   i.sequence + 1,
		OfferID:    offerID,
		Type:       eventType,
		Creator:    attrs["creator"],
		Accepter:   attrs["accepter"],
		Attributes: string(encoded),
		CreatedAt:  i.now().UTC(),
	}
	if err := i.db.Create(&row).Error; err != nil {
		return err
	}
	i.sequence = row.Sequence
	return nil
}

// History returns the events of one offer in emission order.
func (i *Indexer) History(offerID uint64) ([]OfferEvent, error) {
	var rows []OfferEvent
	err := i.db.Where("offer_id = ?", offerID).Order("sequence asc").Find(&rows).Error
	return rows, err
}

// Decode returns the attribute map stored with an event.
func (e OfferEvent) Decode() (map[string]string, error) {
	attrs := map[string]string{}
	if e.Attributes == "" {
		return attrs, nil
	}
	err := json.Unmarshal([]byte(e.Attributes), &attrs)
	return attrs, err
}
