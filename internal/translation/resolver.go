package translation

import (
	"math"
	"sort"

	"github.com/taskhive/taskhive-api/internal/domain"
)

// Field identifies a translatable task field.
type Field string

// Translatable task fields. Name is required in the fallback locale;
// Description is optional everywhere.
const (
	FieldName        Field = "name"
	FieldDescription Field = "description"
)

// Completeness weights: the required field dominates the score.
const (
	nameWeight        = 70
	descriptionWeight = 30
)

// Status describes how a single field resolution was satisfied.
type Status struct {
	// Text is the resolved value; empty only when no configured locale has one.
	Text string `json:"text"`

	// ExactLocale is true when the requested locale itself had a value.
	ExactLocale bool `json:"exact_locale"`

	// FallbackUsed is true when the configured fallback locale supplied the
	// value instead of the requested one.
	FallbackUsed bool `json:"fallback_used"`

	// Completeness is the per-locale completeness percentage (0-100) of the
	// entity for the requested locale, weighted name 70 / description 30.
	Completeness int `json:"completeness"`
}

// Bundle is the fully resolved per-(task, locale) projection stored in the
// translation-bundle cache tier.
type Bundle struct {
	Locale       string `json:"locale"`
	Name         string `json:"name"`
	Description  string `json:"description"`
	FallbackUsed bool   `json:"fallback_used"`
	Completeness int    `json:"completeness"`
}

// Resolver resolves translated fields with locale fallback. It never
// errors: absent data degrades to the empty string.
type Resolver struct {
	supported []string
	fallback  string
}

// NewResolver creates a Resolver for the given supported locale set and
// fallback locale. The fallback locale is assumed to be part of the
// supported set; config validation enforces that upstream.
func NewResolver(supported []string, fallback string) *Resolver {
	return &Resolver{
		supported: append([]string(nil), supported...),
		fallback:  fallback,
	}
}

// Fallback returns the configured fallback locale.
func (r *Resolver) Fallback() string {
	return r.fallback
}

// Supported returns the configured supported locale set.
func (r *Resolver) Supported() []string {
	return append([]string(nil), r.supported...)
}

// Resolve returns the text for the field in the requested locale, falling
// back to (1) the fallback locale, then (2) the first non-empty value among
// the configured locales in configuration order, then (3) the empty string.
func (r *Resolver) Resolve(task *domain.Task, field Field, locale string) string {
	text, _, _ := r.lookup(task, field, locale)
	return text
}

// ResolveWithStatus resolves the field and reports whether the exact locale
// matched, whether the fallback supplied the value, and the completeness
// percentage of the requested locale across both translatable fields.
func (r *Resolver) ResolveWithStatus(task *domain.Task, field Field, locale string) Status {
	text, exact, fallback := r.lookup(task, field, locale)
	return Status{
		Text:         text,
		ExactLocale:  exact,
		FallbackUsed: fallback,
		Completeness: r.Completeness(task, locale),
	}
}

// ResolveBundle resolves both translatable fields for one locale. This is
// the unit of storage for the translation-bundle cache tier.
func (r *Resolver) ResolveBundle(task *domain.Task, locale string) Bundle {
	name, nameExact, nameFallback := r.lookup(task, FieldName, locale)
	description, _, descFallback := r.lookup(task, FieldDescription, locale)

	return Bundle{
		Locale:       locale,
		Name:         name,
		Description:  description,
		FallbackUsed: (!nameExact && nameFallback) || descFallback,
		Completeness: r.Completeness(task, locale),
	}
}

// Completeness computes the requested locale's completeness percentage:
// a resolvable name weighs 70, a resolvable description weighs 30, integer
// result. A field counts when the fallback chain yields non-empty text for
// the locale, not only on an exact match; a task carrying just the fallback
// locale's name scores 70 for every other locale.
func (r *Resolver) Completeness(task *domain.Task, locale string) int {
	score := 0.0
	if text, _, _ := r.lookup(task, FieldName, locale); text != "" {
		score += nameWeight
	}
	if text, _, _ := r.lookup(task, FieldDescription, locale); text != "" {
		score += descriptionWeight
	}
	return int(math.Round(score))
}

// CompletenessByLocale computes completeness for every supported locale,
// the shape stored under the translation_status cache key.
func (r *Resolver) CompletenessByLocale(task *domain.Task) map[string]int {
	out := make(map[string]int, len(r.supported))
	for _, locale := range r.supported {
		out[locale] = r.Completeness(task, locale)
	}
	return out
}

// AvailableLocales returns the sorted set of locales that carry a non-empty
// value for the field, restricted to the configured supported set.
func (r *Resolver) AvailableLocales(task *domain.Task, field Field) []string {
	text := fieldText(task, field)
	available := make([]string, 0, len(r.supported))
	for _, locale := range r.supported {
		if text.Has(locale) {
			available = append(available, locale)
		}
	}
	sort.Strings(available)
	return available
}

// lookup applies the fallback chain and reports (text, exactLocale, fallbackUsed).
func (r *Resolver) lookup(task *domain.Task, field Field, locale string) (string, bool, bool) {
	text := fieldText(task, field)

	if v := text.Get(locale); v != "" {
		return v, true, false
	}

	if v := text.Get(r.fallback); v != "" {
		return v, false, true
	}

	for _, supported := range r.supported {
		if v := text.Get(supported); v != "" {
			return v, false, true
		}
	}

	return "", false, false
}

func fieldText(task *domain.Task, field Field) domain.LocaleText {
	if field == FieldDescription {
		return task.Description
	}
	return task.Name
}
