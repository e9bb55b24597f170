package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/taskhive/taskhive-api/internal/store"
)

// Cache key namespaces. Keys are colon-delimited strings; components appear
// in the documented order so operational tooling can reason about them.

// TaskDetailKey is the detail-tier key for a single task with its eagerly
// loaded parent and children.
func TaskDetailKey(taskID uuid.UUID) string {
	return fmt.Sprintf("task:%s:details", taskID)
}

// OwnerListKey is the list/query-tier key for one owner's filtered,
// locale-projected task page.
func OwnerListKey(ownerID uuid.UUID, filterHash string) string {
	return fmt.Sprintf("user:%s:tasks:%s", ownerID, filterHash)
}

// OwnerStatsKey is the aggregate-tier key for one owner's counts by
// status/priority/overdue.
func OwnerStatsKey(ownerID uuid.UUID) string {
	return fmt.Sprintf("user:%s:stats", ownerID)
}

// TaskTranslationKey is the translation-bundle-tier key for one
// (task, locale) resolved projection.
func TaskTranslationKey(taskID uuid.UUID, locale string) string {
	return fmt.Sprintf("task_translation:%s:%s", taskID, locale)
}

// TranslationStatusKey holds the locale→completeness map for one task.
// It is a single entry, not split per locale.
func TranslationStatusKey(taskID uuid.UUID) string {
	return fmt.Sprintf("translation_status:%s", taskID)
}

// OwnerIndexKey is the per-owner live-key index: the set of list/query and
// aggregate keys currently cached for the owner. Invalidation consults it
// directly instead of pattern-scanning the backend.
func OwnerIndexKey(ownerID uuid.UUID) string {
	return fmt.Sprintf("user:%s:cache_keys", ownerID)
}

// FilterHash computes a deterministic hash of the normalized filter, locale,
// and page parameters for the list/query key. Equivalent filters always
// produce the same hash.
func FilterHash(locale string, filter store.ListFilter) string {
	normalized := struct {
		Locale string           `json:"locale"`
		Filter store.ListFilter `json:"filter"`
	}{
		Locale: locale,
		Filter: filter.Normalize(),
	}

	// Struct field order is fixed, so json.Marshal is deterministic here.
	raw, err := json.Marshal(normalized)
	if err != nil {
		// A ListFilter is plain data and always marshals; guard anyway.
		raw = []byte(fmt.Sprintf("%+v", normalized))
	}

	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:8])
}
