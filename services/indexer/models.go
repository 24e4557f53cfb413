package indexer

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// OfferEvent is one committed lifecycle event of an offer.
type OfferEvent struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey"`
	Sequence   uint64    `gorm:"uniqueIndex;not null"`
	OfferID    uint64    `gorm:"index;not null"`
	Type       string    `gorm:"index;not null"`
	Creator    string
	Accepter   string
	Attributes string `gorm:"type:text"`
	CreatedAt  time.Time
}

// AutoMigrate creates or updates the index tables.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&OfferEvent{})
}
