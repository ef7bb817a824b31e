package rankers

import "strings"

// EntityOverlap scores how well a chunk's entities cover the query's
// entities. Per query entity, an exact case-insensitive match within the
// same category counts 1.0 and a substring containment in either direction
// counts 0.5; the sum is normalized by the number of query entities. The
// matched chunk entity texts are returned alongside the score. A query
// without entities scores 0.
func EntityOverlap(query, chunk map[string][]string) (float64, []string) {
	total := 0
	for _, texts := range query {
		total += len(texts)
	}
	if total == 0 {
		return 0, nil
	}

	var sum float64
	var matched []string
	for category, texts := range query {
		candidates := chunk[category]
		if len(candidates) == 0 {
			continue
		}
		for _, q := range texts {
			ql := strings.ToLower(q)
			best := 0.0
			bestText := ""
			for _, c := range candidates {
				cl := strings.ToLower(c)
				switch {
				case cl == ql:
					best = 1.0
					bestText = c
				case best < 0.5 && (strings.Contains(cl, ql) || strings.Contains(ql, cl)):
					best = 0.5
					bestText = c
				}
				if best == 1.0 {
					break
				}
			}
			if best > 0 {
				sum += best
				matched = append(matched, bestText)
			}
		}
	}
	return sum / float64(total), matched
}
