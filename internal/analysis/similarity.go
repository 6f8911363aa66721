package analysis

import "github.com/abhisek/stepwise/internal/diagnosis"

// Similarity is the bag-of-words Jaccard ratio between two texts after
// lower-casing and stripping punctuation. It is 0 when either side is empty.
func Similarity(a, b string) float64 {
	wa, wb := wordSet(a), wordSet(b)
	if len(wa) == 0 || len(wb) == 0 {
		return 0
	}
	common := 0
	for w := range wa {
		if _, ok := wb[w]; ok {
			common++
		}
	}
	union := len(wa) + len(wb) - common
	return float64(common) / float64(union)
}

func wordSet(s string) map[string]struct{} {
	words := diagnosis.Words(s)
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[w] = struct{}{}
	}
	return set
}
