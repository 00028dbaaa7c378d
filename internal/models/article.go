package models

import (
	"time"
)

// Article lifecycle statuses. Transitions are owned by service.Lifecycle;
// nothing else may write Status.
const (
	StatusGenerating  = "generating"
	StatusTranslating = "translating"
	StatusReview      = "review"
	StatusPublished   = "published"
	StatusFailed      = "failed"
	StatusTimeout     = "timeout"
	StatusPaused      = "paused"
	StatusCancelled   = "cancelled"
)

// Trigger kinds for article creation.
const (
	TriggerPrompt   = "prompt"
	TriggerURL      = "url"
	TriggerRSS      = "rss"
	TriggerCalendar = "calendar"
	TriggerImage    = "image"
)

// IsTerminal reports whether a status accepts no further automated progress.
// Timeout and failed articles can still be retried explicitly.
func IsTerminal(status string) bool {
	return status == StatusPublished || status == StatusCancelled
}

// Article is a unit of editorial work tracked through the lifecycle
// state machine. It owns at most one Content record, any number of
// per-language Translations and an append-only decision history.
type Article struct {
	ID          uint        `gorm:"primaryKey" json:"id"`
	Title       string      `gorm:"size:500;not null" json:"title"`
	TriggerKind string      `gorm:"size:50;not null" json:"trigger_kind"`
	Status      string      `gorm:"size:50;not null;default:'generating';index" json:"status"`
	Category    string      `gorm:"size:100" json:"category"`
	Languages   LanguageSet `gorm:"type:jsonb" json:"languages"`
	SourceURLs  StringList  `gorm:"type:jsonb" json:"source_urls"`

	// The original request text and image kind are kept so revise, retry
	// and the watchdog can re-issue an identical generation trigger.
	Text      string `gorm:"type:text" json:"text"`
	ImageKind string `gorm:"size:50" json:"image_kind"`

	// Duplicate detection: stable hash over (trigger kind, normalized
	// text, sorted URLs). Only articles outside {failed, cancelled}
	// block resubmission.
	Fingerprint string `gorm:"size:64;index" json:"fingerprint"`

	// Queue robustness: TimeoutAt is set iff Status == generating.
	RetryCount int        `gorm:"default:0" json:"retry_count"`
	MaxRetries int        `gorm:"default:3" json:"max_retries"`
	LastError  string     `gorm:"type:text" json:"last_error"`
	TimeoutAt  *time.Time `json:"timeout_at"`

	CreatedAt time.Time `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`

	Content      *Content             `gorm:"foreignKey:ArticleID" json:"content,omitempty"`
	Translations []Translation        `gorm:"foreignKey:ArticleID" json:"translations,omitempty"`
	Decisions    []SupervisorDecision `gorm:"foreignKey:ArticleID" json:"decisions,omitempty"`
}

// Content is the canonical source-language body and metadata of an
// article. Created lazily by the first engine callback that carries
// content; unique per article.
type Content struct {
	ID             uint       `gorm:"primaryKey" json:"id"`
	ArticleID      uint       `gorm:"uniqueIndex;not null" json:"article_id"`
	Title          string     `gorm:"size:500;not null" json:"title"`
	Lead           string     `gorm:"type:text" json:"lead"`
	Body           string     `gorm:"type:text" json:"body"`
	Sources        StringList `gorm:"type:jsonb" json:"sources"`
	SEOTitle       string     `gorm:"size:60" json:"seo_title"`
	SEODescription string     `gorm:"size:160" json:"seo_description"`
	ImageURL       string     `gorm:"type:text" json:"image_url"`
	ImagePrompt    string     `gorm:"type:text" json:"image_prompt"`
	ImageAltTexts  JSONMap    `gorm:"type:jsonb" json:"image_alt_texts"`
	Embedding      Vector     `gorm:"type:jsonb" json:"-"`
	CMSPostID      *int       `json:"cms_post_id"`
	CreatedAt      time.Time  `gorm:"autoCreateTime" json:"created_at"`
}

// SocialSnippet is a per-platform social media teaser generated from
// the canonical content.
type SocialSnippet struct {
	ID        uint       `gorm:"primaryKey" json:"id"`
	ArticleID uint       `gorm:"not null;index" json:"article_id"`
	Platform  string     `gorm:"size:50;not null" json:"platform"`
	Text      string     `gorm:"type:text;not null" json:"text"`
	Hashtags  StringList `gorm:"type:jsonb" json:"hashtags"`
	CreatedAt time.Time  `gorm:"autoCreateTime" json:"created_at"`
}
