package service

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"

	"gorm.io/gorm"

	"github.com/clnpth/newsroom/internal/models"
	"github.com/clnpth/newsroom/pkg/util"
)

// Fingerprint computes the stable duplicate-detection hash for a
// creation request: trigger kind, whitespace-normalized lowercased
// text, and the sorted URL list.
func Fingerprint(triggerKind, text string, urls []string) string {
	sorted := make([]string, len(urls))
	copy(sorted, urls)
	sort.Strings(sorted)

	h := sha256.New()
	h.Write([]byte(triggerKind))
	h.Write([]byte{'\n'})
	h.Write([]byte(util.NormalizeText(text)))
	h.Write([]byte{'\n'})
	h.Write([]byte(strings.Join(sorted, "\n")))
	return hex.EncodeToString(h.Sum(nil))
}

// findActiveDuplicate returns the existing article with the same
// fingerprint, if one exists outside the terminal-failure states.
// Failed and cancelled articles do not block resubmission.
func findActiveDuplicate(db *gorm.DB, fingerprint string) (*models.Article, error) {
	var existing models.Article
	err := db.
		Where("fingerprint = ?", fingerprint).
		Where("status NOT IN ?", []string{models.StatusFailed, models.StatusCancelled}).
		Order("created_at ASC").
		First(&existing).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &existing, nil
}
