package scoring

import (
	"fmt"
	"sort"
	"strings"

	"github.com/matchd-io/matchd/internal/app/canon"
	"github.com/matchd-io/matchd/internal/domain"
)

// EssentialFactor is the extra weight carried by skills the posting marks
// essential when computing coverage.
const EssentialFactor = 1.5

// Skills scores the candidate's skill coverage of the posting's required
// set. No required skills scores a neutral 0.5; an empty candidate set
// scores 0.2. Coverage counts synonym near-matches, weights essential
// skills by EssentialFactor, and grants a surplus bonus of 0.05 per extra
// candidate skill, capped at +0.2.
func Skills(c *domain.Candidate, j *domain.JobPosting, syn *Synonyms) domain.DimensionScore {
	required := j.RequiredSkills
	if len(required) == 0 {
		return domain.DimensionScore{Value: 0.5, Explanation: "no required skills listed"}
	}
	if len(c.Skills) == 0 {
		return domain.DimensionScore{Value: 0.2, Explanation: "candidate lists no skills"}
	}

	essential := make(map[string]bool, len(j.EssentialSkills))
	for _, e := range j.EssentialSkills {
		essential[e] = true
	}

	var matched []string
	var gotMass, wantMass float64
	for _, req := range required {
		w := 1.0
		if essential[req] {
			w = EssentialFactor
		}
		wantMass += w
		if matchesAny(c.Skills, req, syn) {
			gotMass += w
			matched = append(matched, req)
		}
	}

	value := gotMass / wantMass
	if len(c.Skills) > len(required) {
		bonus := float64(len(c.Skills)-len(required)) * 0.05
		if bonus > 0.2 {
			bonus = 0.2
		}
		value += bonus
	}
	if value > 1 {
		value = 1
	}

	return domain.DimensionScore{
		Value:       value,
		Explanation: skillsExplanation(matched, len(required)),
	}
}

func matchesAny(skills []string, req string, syn *Synonyms) bool {
	for _, s := range skills {
		if syn.Match(s, req) {
			return true
		}
	}
	return false
}

// skillsExplanation lists matches in lexical order so the output does not
// depend on input ordering.
func skillsExplanation(matched []string, required int) string {
	if len(matched) == 0 {
		return fmt.Sprintf("no match among %d required skills", required)
	}
	shown := make([]string, len(matched))
	for i, m := range matched {
		shown[i] = canon.TitleToken(m)
	}
	sort.Strings(shown)
	return fmt.Sprintf("matched %d/%d required skills: %s", len(matched), required, strings.Join(shown, ", "))
}
