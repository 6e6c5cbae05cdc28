// Package brand maps free-text provider names from the catalog onto
// canonical brand tags, and carries the static per-brand knowledge the
// rest of the engine needs: trusted official domains and the provider
// exclusion set.
package brand

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var nonAlnum = regexp.MustCompile(`[^A-Z0-9]+`)

// stripMarks removes combining marks after NFKD decomposition, so that
// accented characters compare equal to their ASCII base form.
var stripMarks = transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)))

// Normalize uppercases the input, strips diacritics and collapses every run
// of non-alphanumeric characters into a single space. It is the comparison
// form used everywhere a provider name or filter string is matched.
func Normalize(s string) string {
	s = strings.ToUpper(strings.TrimSpace(s))
	if out, _, err := transform.String(stripMarks, s); err == nil {
		s = out
	}
	return strings.TrimSpace(nonAlnum.ReplaceAllString(s, " "))
}

// Config holds the immutable brand tables injected into a Resolver.
// The empty canonical tag groups provider strings that are known but map to
// no manufacturer (distributors, intermediaries).
type Config struct {
	// Aliases maps canonical tag -> raw variants recognized as that brand.
	Aliases map[string][]string
	// DomainHints maps canonical tag -> trusted official domains, in
	// preference order.
	DomainHints map[string][]string
	// Excluded lists provider names that must never be enriched.
	Excluded []string
	// Priority fixes the order in which brand names are tried as
	// substrings when no alias matches exactly. The order is part of the
	// contract: it resolves ambiguity when several names could match.
	Priority []string
}

// DefaultConfig returns the production brand tables.
func DefaultConfig() Config {
	return Config{
		Aliases: map[string][]string{
			"JIMTEN":  {"JIMTEN", "JIMTEN SA", "JIMTEN, S.A.", "JIMTEN S.A", "JIMTEN S A"},
			"ESPA":    {"ESPA", "ESPA 2020", "ESPA PUMPS", "ESPA PUMPS IBERICA", "ESPA PUMPS IBÉRICA"},
			"GENEBRE": {"GENEBRE", "GENEBRE SA", "GENEBRE, S.A.", "GENEBRE S.A", "GENEBRE S A"},
			"FLUIDRA": {"FLUIDRA", "FLUIDRA SA", "FLUIDRA S.A", "ZODIAC", "ZODIAC FLUIDRA",
				"ASTRALPOOL", "CTX", "CTX PROFESSIONAL", "CEPEX"},
			"": {"LAS NAVES", "ALMACENES", "DISTRIBUIDOR", "PROVEEDOR"},
		},
		DomainHints: map[string][]string{
			"FLUIDRA": {"fluidra.com", "astralpool.com", "cepex.com",
				"ctxprofessional.com", "zodiacpoolcare.com", "zodiac.com"},
			"JIMTEN":  {"jimten.com"},
			"ESPA":    {"espa.com", "espa.es"},
			"GENEBRE": {"genebre.es", "genebre.com"},
		},
		Excluded: []string{"FAMARA"},
		Priority: []string{"JIMTEN", "ESPA", "GENEBRE", "FLUIDRA"},
	}
}

// Resolver resolves raw provider text to canonical brand tags. It is
// immutable after construction and safe for concurrent use.
type Resolver struct {
	exact    map[string]string // normalized variant -> canonical tag
	hints    map[string][]string
	excluded []string // normalized
	priority []string
}

// NewResolver builds a Resolver from the given tables.
func NewResolver(cfg Config) *Resolver {
	r := &Resolver{
		exact: make(map[string]string),
		hints: make(map[string][]string),
	}
	for canon, variants := range cfg.Aliases {
		for _, v := range variants {
			n := Normalize(v)
			if n == "" {
				continue
			}
			if _, dup := r.exact[n]; !dup {
				r.exact[n] = canon
			}
		}
	}
	for canon, domains := range cfg.DomainHints {
		ds := make([]string, len(domains))
		copy(ds, domains)
		r.hints[canon] = ds
	}
	for _, e := range cfg.Excluded {
		if n := Normalize(e); n != "" {
			r.excluded = append(r.excluded, n)
		}
	}
	r.priority = make([]string, len(cfg.Priority))
	copy(r.priority, cfg.Priority)
	return r
}

// Canonical maps raw provider text to a canonical brand tag. Exact alias
// match (after normalization) wins; otherwise the first priority-list brand
// whose name appears as a substring of the normalized text is returned.
// Unknown providers resolve to the empty tag.
func (r *Resolver) Canonical(raw string) string {
	n := Normalize(raw)
	if n == "" {
		return ""
	}
	if canon, ok := r.exact[n]; ok {
		return canon
	}
	for _, canon := range r.priority {
		if strings.Contains(n, canon) {
			return canon
		}
	}
	return ""
}

// Excluded reports whether the raw provider text names a provider on the
// exclusion set. Matching is by normalized substring, so company-form
// suffixes do not defeat the rule.
func (r *Resolver) Excluded(raw string) bool {
	n := Normalize(raw)
	if n == "" {
		return false
	}
	for _, e := range r.excluded {
		if strings.Contains(n, e) {
			return true
		}
	}
	return false
}

// Hints returns the trusted official domains for the given canonical tag,
// or nil when none are known.
func (r *Resolver) Hints(tag string) []string {
	return r.hints[strings.ToUpper(tag)]
}

// Known returns the known brand tags in priority order. Used by the
// orchestrator's fallback pass when the provider is a reseller.
func (r *Resolver) Known() []string {
	return r.priority
}
