package domain

import "testing"

func TestSimilarity(t *testing.T) {
	if got := Similarity("python", "python"); got != 1 {
		t.Errorf("identical strings: %v, want 1", got)
	}
	if Similarity("python", "java") > 0.2 {
		t.Errorf("unrelated strings too similar: %v", Similarity("python", "java"))
	}
	if Similarity("postgresql", "postgres") < 0.85 {
		t.Errorf("close strings not similar enough: %v", Similarity("postgresql", "postgres"))
	}
	if Similarity("a", "ab") != 0 {
		t.Errorf("single-rune string must yield 0")
	}
	ab, ba := Similarity("react", "reactjs"), Similarity("reactjs", "react")
	if ab != ba {
		t.Errorf("similarity not symmetric: %v vs %v", ab, ba)
	}
}
