package models

import "time"

// Account is a subscribed feed account. Posts hang off it and are removed
// together with it on unsubscribe.
type Account struct {
	ID       uint   `gorm:"primaryKey" json:"id"`
	Username string `gorm:"uniqueIndex;not null" json:"username"`

	Posts []Post `gorm:"constraint:OnDelete:CASCADE" json:"-"`
}

// Post is a single extracted feed entry. Identity for dedup purposes is the
// (AccountID, Content) pair, not the synthetic ID; the unique index enforces
// that no two rows share it.
type Post struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	AccountID uint      `gorm:"not null;index;uniqueIndex:idx_account_content" json:"-"`
	Account   Account   `json:"-"`
	Content   string    `gorm:"not null;uniqueIndex:idx_account_content" json:"content"`
	Timestamp time.Time `json:"timestamp"`
	Read      bool      `gorm:"default:false" json:"read"`
}

// FeedItem is one extracted post before ingestion: plain content plus the
// machine-readable timestamp the feed exposed for it.
type FeedItem struct {
	Content   string
	Timestamp time.Time
}
