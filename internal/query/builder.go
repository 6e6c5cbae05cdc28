// Package query generates the ordered search-query variants for a catalog
// row. Order matters: the orchestrator issues queries in emitted order and
// the first confirmed asset wins downstream.
package query

import "strings"

// RefVariants returns robust variants of a supplier reference: the code as
// given, the code with whitespace and periods removed, and the code with
// hyphens removed. Duplicates are dropped keeping first occurrence. An
// empty or blank reference yields nil.
func RefVariants(ref string) []string {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil
	}

	noDots := strings.NewReplacer(".", "", " ", "", "\t", "").Replace(ref)
	noHyphens := strings.ReplaceAll(ref, "-", "")

	return dedup([]string{ref, noDots, noHyphens})
}

// Build creates the ordered, deduplicated query list for a row. For each
// reference variant r it emits r, "r description", "brand r" and
// "brand r description" (skipping parts that are empty). When no usable
// reference exists it falls back to the description alone.
func Build(brand, ref, description string) []string {
	brand = strings.TrimSpace(brand)
	description = strings.TrimSpace(description)

	var queries []string
	for _, rv := range RefVariants(ref) {
		queries = append(queries, rv)
		if description != "" {
			queries = append(queries, rv+" "+description)
		}
		if brand != "" {
			queries = append(queries, brand+" "+rv)
		}
		if brand != "" && description != "" {
			queries = append(queries, brand+" "+rv+" "+description)
		}
	}

	if strings.TrimSpace(ref) == "" && description != "" {
		queries = append(queries, description)
		if brand != "" {
			queries = append(queries, brand+" "+description)
		}
	}

	return dedup(queries)
}

// BuildSite prefixes every query from Build with a site restriction for each
// trusted domain, domain-major order. Used for the brand-preferred pass.
func BuildSite(domains []string, brand, ref, description string) []string {
	base := Build(brand, ref, description)
	var queries []string
	for _, dom := range domains {
		dom = strings.TrimSpace(dom)
		if dom == "" {
			continue
		}
		for _, q := range base {
			queries = append(queries, "site:"+dom+" "+q)
		}
	}
	return queries
}

// dedup removes duplicates and blank strings, preserving first-seen order.
func dedup(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if strings.TrimSpace(s) == "" {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
