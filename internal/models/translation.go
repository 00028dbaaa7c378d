package models

import (
	"time"
)

// Translation statuses, in pipeline order.
const (
	TranslationPending  = "pending"
	TranslationMachine  = "machine_translated"
	TranslationReviewed = "reviewed"
	TranslationApproved = "approved"
)

// Translation is a per-language rendering of an article's content.
// Unique per (article, language).
type Translation struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	ArticleID uint      `gorm:"not null;uniqueIndex:idx_translation_article_lang" json:"article_id"`
	Language  string    `gorm:"size:5;not null;uniqueIndex:idx_translation_article_lang" json:"language"`
	Title     string    `gorm:"size:500" json:"title"`
	Lead      string    `gorm:"type:text" json:"lead"`
	Body      string    `gorm:"type:text" json:"body"`
	Status    string    `gorm:"size:50;default:'pending'" json:"status"`
	CMSPostID *int      `json:"cms_post_id"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}
