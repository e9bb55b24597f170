// Package translation resolves translated task fields against a configured
// locale set with fallback. The resolver is pure and stateless; callers
// memoize its results in the translation-bundle cache tier.
package translation
