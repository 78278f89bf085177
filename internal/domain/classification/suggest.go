package classification

import (
	"sort"

	"github.com/lithammer/fuzzysearch/fuzzy"
)

const maxSuggestions = 3

// suggestSimilar ranks already-classified rule descriptions against a
// pending description. A candidate matches when either string is a
// fuzzy subsequence of the other, so "PAGAMENTO FORNECEDOR ABC LTDA"
// still surfaces the "PAGAMENTO FORNECEDOR" rule. Suggestions are a
// review aid only; they never classify anything by themselves.
func suggestSimilar(description string, candidates []string) []string {
	type ranked struct {
		target   string
		distance int
	}

	var matches []ranked
	for _, candidate := range candidates {
		if r := fuzzy.RankMatchNormalizedFold(candidate, description); r >= 0 {
			matches = append(matches, ranked{target: candidate, distance: r})
			continue
		}
		if r := fuzzy.RankMatchNormalizedFold(description, candidate); r >= 0 {
			matches = append(matches, ranked{target: candidate, distance: r})
		}
	}
	if len(matches) == 0 {
		return nil
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].distance < matches[j].distance
	})

	if len(matches) > maxSuggestions {
		matches = matches[:maxSuggestions]
	}
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		out = append(out, m.target)
	}
	return out
}
