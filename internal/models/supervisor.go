package models

import (
	"time"
)

// Supervisor recommendations and editor decisions share one vocabulary.
const (
	DecisionApprove = "approve"
	DecisionRevise  = "revise"
	DecisionReject  = "reject"
)

// SupervisorDecision is an immutable automated quality evaluation.
// Editor fields are attached later; the automated fields are never
// mutated after creation. "Latest" means most recent CreatedAt.
type SupervisorDecision struct {
	ID             uint       `gorm:"primaryKey" json:"id"`
	ArticleID      uint       `gorm:"not null;index:idx_decision_article_created" json:"article_id"`
	Recommendation string     `gorm:"size:50" json:"recommendation"`
	Justification  string     `gorm:"type:text" json:"justification"`
	Score          int        `json:"score"`
	StyleTags      StringList `gorm:"type:jsonb" json:"style_tags"`
	EditorDecision string     `gorm:"size:50" json:"editor_decision"`
	EditorFeedback string     `gorm:"type:text" json:"editor_feedback"`
	Deviation      bool       `gorm:"default:false" json:"deviation"`
	CreatedAt      time.Time  `gorm:"autoCreateTime;index:idx_decision_article_created" json:"created_at"`
}

// ToneTrait is one dimension of the learned tonality profile. Weights
// stay within [0.1, 1.0] and are mutated only by the learning engine.
type ToneTrait struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Trait     string    `gorm:"type:text;not null;uniqueIndex" json:"trait"`
	Value     string    `gorm:"type:text" json:"value"`
	Weight    float64   `gorm:"default:0.5" json:"weight"`
	Evidence  int       `gorm:"default:0" json:"evidence"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// TopicRanking tracks per-category article volume and an exponentially
// smoothed approval rate.
type TopicRanking struct {
	ID            uint       `gorm:"primaryKey" json:"id"`
	Topic         string     `gorm:"type:text;not null" json:"topic"`
	Category      string     `gorm:"size:100;uniqueIndex" json:"category"`
	ArticleCount  int        `gorm:"default:0" json:"article_count"`
	ApprovalRate  float64    `gorm:"default:0" json:"approval_rate"`
	LastArticleAt *time.Time `json:"last_article_at"`
}
