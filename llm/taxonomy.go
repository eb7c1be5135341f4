package llm

import (
	"strings"

	"github.com/deletexiumu/screen-analyzer/models"
)

// fineToCoarse maps provider-returned fine-grained labels onto the coarse
// six-class taxonomy the store is canonical on. The mapping is
// best-effort, not guaranteed — an unrecognized label falls through to
// CategoryOther and is kept verbatim as a keyword rather than dropped.
var fineToCoarse = map[string]models.ActivityCategory{
	"coding":          models.CategoryWork,
	"programming":     models.CategoryWork,
	"writing":         models.CategoryWork,
	"spreadsheet":     models.CategoryWork,
	"design":          models.CategoryWork,
	"meeting":         models.CategoryCommunication,
	"email":           models.CategoryCommunication,
	"chat":            models.CategoryCommunication,
	"messaging":       models.CategoryCommunication,
	"video-call":      models.CategoryCommunication,
	"reading":         models.CategoryLearning,
	"research":        models.CategoryLearning,
	"tutorial":        models.CategoryLearning,
	"course":          models.CategoryLearning,
	"documentation":   models.CategoryLearning,
	"social-media":    models.CategoryPersonal,
	"shopping":        models.CategoryPersonal,
	"entertainment":   models.CategoryPersonal,
	"gaming":          models.CategoryPersonal,
	"video-streaming": models.CategoryPersonal,
	"idle":            models.CategoryIdle,
	"screensaver":     models.CategoryIdle,
	"locked":          models.CategoryIdle,
}

// FineToCoarse resolves a provider's fine-grained label to the coarse
// taxonomy, keeping the original label as a keyword either way.
func FineToCoarse(fine string) (models.ActivityCategory, string) {
	key := strings.ToLower(strings.TrimSpace(fine))
	if coarse, ok := fineToCoarse[key]; ok {
		return coarse, key
	}
	return models.CategoryOther, key
}
