package domain

// Similarity is the Sørensen–Dice coefficient over letter bigrams, in [0,1].
// It is symmetric and equals 1 only for identical strings. Skill matching
// and the simulated travel estimator both key off it.
func Similarity(a, b string) float64 {
	if a == b {
		return 1
	}
	ba, bb := bigrams(a), bigrams(b)
	if len(ba) == 0 || len(bb) == 0 {
		return 0
	}
	common := 0
	for bg, n := range ba {
		if m := bb[bg]; m > 0 {
			if n < m {
				common += n
			} else {
				common += m
			}
		}
	}
	total := 0
	for _, n := range ba {
		total += n
	}
	for _, n := range bb {
		total += n
	}
	return 2 * float64(common) / float64(total)
}

func bigrams(s string) map[string]int {
	r := []rune(s)
	if len(r) < 2 {
		return nil
	}
	out := make(map[string]int, len(r)-1)
	for i := 0; i+1 < len(r); i++ {
		out[string(r[i:i+2])]++
	}
	return out
}
