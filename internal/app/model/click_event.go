package model

import "time"

// ClickEvent is the message published for every recorded or deleted click.
type ClickEvent struct {
	Type      string    `json:"type"`
	ClickID   string    `json:"click_id"`
	LinkID    string    `json:"link_id"`
	ShortCode string    `json:"short_code,omitempty"`
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	Accuracy  *float64  `json:"accuracy,omitempty"`
	Country   *string   `json:"country,omitempty"`
	City      *string   `json:"city,omitempty"`
	IP        string    `json:"ip"`
	UserAgent string    `json:"user_agent"`
	Timestamp time.Time `json:"timestamp"`
}

const (
	ClickEventRecorded = "click.recorded"
	ClickEventDeleted  = "click.deleted"
)

const (
	ClickStreamName     = "CLICKS"
	ClickStreamSubject  = "clicks.events"
	ClickConsumerName   = "click-archiver"
	ClickStreamMaxBytes = 1024 * 1024 * 100 // 100MB
)

// ClickArchive is the Postgres row written by the archive consumer. It is an
// export for offline analysis and is never loaded back into the store.
type ClickArchive struct {
	ClickID        string    `gorm:"primaryKey;size:36"`
	LinkID         string    `gorm:"size:36;index;not null"`
	ShortCode      string    `gorm:"size:16;index"`
	Latitude       float64   `gorm:"not null;default:0"`
	Longitude      float64   `gorm:"not null;default:0"`
	AccuracyRadius *float64
	Country        *string   `gorm:"size:128"`
	City           *string   `gorm:"size:128"`
	IPAddress      string    `gorm:"size:64"`
	UserAgent      string    `gorm:"type:text"`
	ClickedAt      time.Time `gorm:"index;not null"`
	DeletedAt      *time.Time
	ArchivedAt     time.Time `gorm:"autoCreateTime"`
}

// TableName pins the table name independent of gorm's pluralisation.
func (ClickArchive) TableName() string {
	return "click_archive"
}
