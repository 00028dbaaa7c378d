package service

import (
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/clnpth/newsroom/internal/models"
)

// Tonality learning constants.
const (
	traitReinforce   = 0.02
	traitDecay       = 0.005
	traitWeightMax   = 1.0
	traitWeightMin   = 0.1
	traitInitWeight  = 0.5
	approvalEMAKeep  = 0.8
	approvalEMALearn = 0.2
)

// Learning adjusts the tonality profile and topic statistics from
// editor decisions. It is the only writer of ToneTrait and TopicRanking.
type Learning struct {
	db     *gorm.DB
	logger *zap.Logger
}

func NewLearning(db *gorm.DB, logger *zap.Logger) *Learning {
	return &Learning{db: db, logger: logger}
}

// Apply records one editor decision: annotate the latest supervisor
// decision, reinforce or decay tone traits on approval, and fold the
// outcome into the topic ranking. A missing supervisor decision skips
// the annotation and trait steps; topic statistics update regardless.
func (l *Learning) Apply(article *models.Article, editorDecision, feedback string) error {
	decision, err := l.latestDecision(article.ID)
	if err != nil {
		return err
	}

	if decision != nil {
		decision.EditorDecision = editorDecision
		decision.EditorFeedback = feedback
		decision.Deviation = decision.Recommendation != editorDecision
		if err := l.db.Model(decision).Select("editor_decision", "editor_feedback", "deviation").
			Updates(decision).Error; err != nil {
			return fmt.Errorf("failed to annotate supervisor decision: %w", err)
		}

		if editorDecision == models.DecisionApprove && len(decision.StyleTags) > 0 {
			if err := l.reinforceTraits(decision.StyleTags); err != nil {
				return err
			}
		}
	}

	return l.updateTopicRanking(article.Category, editorDecision == models.DecisionApprove)
}

func (l *Learning) latestDecision(articleID uint) (*models.SupervisorDecision, error) {
	var decision models.SupervisorDecision
	err := l.db.
		Where("article_id = ?", articleID).
		Order("created_at DESC").
		First(&decision).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load supervisor decision: %w", err)
	}
	return &decision, nil
}

// reinforceTraits bumps every confirmed tag and slowly decays every
// other known trait, clamped to [0.1, 1.0]. Unknown tags become new
// traits at the initial weight.
func (l *Learning) reinforceTraits(tags []string) error {
	confirmed := make(map[string]bool, len(tags))
	for _, tag := range tags {
		confirmed[strings.ToLower(strings.TrimSpace(tag))] = true
	}
	delete(confirmed, "")

	var traits []models.ToneTrait
	if err := l.db.Find(&traits).Error; err != nil {
		return fmt.Errorf("failed to load tone traits: %w", err)
	}

	known := make(map[string]bool, len(traits))
	for i := range traits {
		trait := &traits[i]
		known[trait.Trait] = true

		if confirmed[trait.Trait] {
			trait.Weight = min(trait.Weight+traitReinforce, traitWeightMax)
			trait.Evidence++
		} else {
			trait.Weight = max(trait.Weight-traitDecay, traitWeightMin)
		}
		if err := l.db.Model(trait).Select("weight", "evidence").Updates(trait).Error; err != nil {
			return fmt.Errorf("failed to update tone trait %q: %w", trait.Trait, err)
		}
	}

	for tag := range confirmed {
		if known[tag] {
			continue
		}
		trait := models.ToneTrait{
			Trait:    tag,
			Weight:   traitInitWeight,
			Evidence: 1,
		}
		if err := l.db.Create(&trait).Error; err != nil {
			return fmt.Errorf("failed to create tone trait %q: %w", tag, err)
		}
	}
	return nil
}

func (l *Learning) updateTopicRanking(category string, approved bool) error {
	if category == "" {
		category = "general"
	}
	outcome := 0.0
	if approved {
		outcome = 1.0
	}
	now := time.Now()

	var ranking models.TopicRanking
	err := l.db.Where("category = ?", category).First(&ranking).Error
	switch {
	case err == gorm.ErrRecordNotFound:
		ranking = models.TopicRanking{
			Topic:         category,
			Category:      category,
			ArticleCount:  1,
			ApprovalRate:  outcome * approvalEMALearn,
			LastArticleAt: &now,
		}
		if err := l.db.Create(&ranking).Error; err != nil {
			return fmt.Errorf("failed to create topic ranking: %w", err)
		}
		return nil
	case err != nil:
		return fmt.Errorf("failed to load topic ranking: %w", err)
	}

	ranking.ArticleCount++
	ranking.ApprovalRate = ranking.ApprovalRate*approvalEMAKeep + outcome*approvalEMALearn
	ranking.LastArticleAt = &now
	if err := l.db.Model(&ranking).
		Select("article_count", "approval_rate", "last_article_at").
		Updates(&ranking).Error; err != nil {
		return fmt.Errorf("failed to update topic ranking: %w", err)
	}
	return nil
}

// ProfileContext renders the tonality profile for the scoring prompt,
// strongest traits first.
func (l *Learning) ProfileContext() (string, error) {
	traits, err := l.Traits()
	if err != nil {
		return "", err
	}
	if len(traits) == 0 {
		return "", nil
	}

	var b strings.Builder
	for _, trait := range traits {
		fmt.Fprintf(&b, "- %s", trait.Trait)
		if trait.Value != "" {
			fmt.Fprintf(&b, ": %s", trait.Value)
		}
		fmt.Fprintf(&b, " (weight %.2f)\n", trait.Weight)
	}
	return b.String(), nil
}

// Traits returns the tonality profile ordered by weight descending.
func (l *Learning) Traits() ([]models.ToneTrait, error) {
	var traits []models.ToneTrait
	if err := l.db.Order("weight DESC").Find(&traits).Error; err != nil {
		return nil, fmt.Errorf("failed to load tone traits: %w", err)
	}
	return traits, nil
}

// UpsertTrait creates or updates one trait by hand (dashboard editing).
// The weight is clamped like learned weights.
func (l *Learning) UpsertTrait(name, value string, weight float64) (*models.ToneTrait, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return nil, fmt.Errorf("trait name must not be empty")
	}
	weight = min(max(weight, traitWeightMin), traitWeightMax)

	var trait models.ToneTrait
	err := l.db.Where("trait = ?", name).First(&trait).Error
	switch {
	case err == gorm.ErrRecordNotFound:
		trait = models.ToneTrait{Trait: name, Value: value, Weight: weight}
		if err := l.db.Create(&trait).Error; err != nil {
			return nil, fmt.Errorf("failed to create tone trait: %w", err)
		}
		return &trait, nil
	case err != nil:
		return nil, fmt.Errorf("failed to load tone trait: %w", err)
	}

	trait.Value = value
	trait.Weight = weight
	if err := l.db.Model(&trait).Select("value", "weight").Updates(&trait).Error; err != nil {
		return nil, fmt.Errorf("failed to update tone trait: %w", err)
	}
	return &trait, nil
}

// DeleteTrait removes a trait from the profile.
func (l *Learning) DeleteTrait(name string) error {
	result := l.db.Where("trait = ?", strings.ToLower(strings.TrimSpace(name))).
		Delete(&models.ToneTrait{})
	if result.Error != nil {
		return fmt.Errorf("failed to delete tone trait: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// TopicRankings returns all categories ordered by approval rate.
func (l *Learning) TopicRankings() ([]models.TopicRanking, error) {
	var rankings []models.TopicRanking
	if err := l.db.Order("approval_rate DESC").Find(&rankings).Error; err != nil {
		return nil, fmt.Errorf("failed to load topic rankings: %w", err)
	}
	return rankings, nil
}

// DeviationStats reports how often the editor disagreed with the
// automated recommendation. Derived on read, never stored.
type DeviationStats struct {
	Decisions  int64   `json:"decisions"`
	Deviations int64   `json:"deviations"`
	Rate       float64 `json:"rate"`
}

func (l *Learning) Deviations() (*DeviationStats, error) {
	var stats DeviationStats
	if err := l.db.Model(&models.SupervisorDecision{}).
		Where("editor_decision <> ''").
		Count(&stats.Decisions).Error; err != nil {
		return nil, fmt.Errorf("failed to count editor decisions: %w", err)
	}
	if err := l.db.Model(&models.SupervisorDecision{}).
		Where("editor_decision <> '' AND deviation = ?", true).
		Count(&stats.Deviations).Error; err != nil {
		return nil, fmt.Errorf("failed to count deviations: %w", err)
	}
	if stats.Decisions > 0 {
		stats.Rate = float64(stats.Deviations) / float64(stats.Decisions)
	}
	return &stats, nil
}

// RecentDecisions lists the newest supervisor decisions for the
// dashboard.
func (l *Learning) RecentDecisions(limit int) ([]models.SupervisorDecision, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	var decisions []models.SupervisorDecision
	if err := l.db.Order("created_at DESC").Limit(limit).Find(&decisions).Error; err != nil {
		return nil, fmt.Errorf("failed to load decisions: %w", err)
	}
	return decisions, nil
}
