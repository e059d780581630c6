package algo

import (
	"strings"

	"github.com/matchd-io/matchd/internal/app/scoring"
	"github.com/matchd-io/matchd/internal/domain"
)

// BonusConfig drives the comprehensive variant's intelligence bonuses. All
// detectors read canonical fields only; free text never scores.
type BonusConfig struct {
	Enabled           bool
	PerSignal         float64  // points per detected signal
	Cap               float64  // combined cap
	SkillsPerYear     float64  // rapid-progression threshold
	SeniorYears       float64  // minimum required years for the leadership signal
	LeadershipMarkers []string // soft-skill tokens that read as leadership
}

// DefaultBonusConfig returns production defaults.
func DefaultBonusConfig() BonusConfig {
	return BonusConfig{
		Enabled:       true,
		PerSignal:     5,
		Cap:           15,
		SkillsPerYear: 2,
		SeniorYears:   5,
		LeadershipMarkers: []string{
			"leadership", "management", "mentoring",
			"encadrement", "gestion d'équipe", "team lead",
		},
	}
}

// Detect returns the bonus points for this pairing and one note per signal.
func (b BonusConfig) Detect(c *domain.Candidate, j *domain.JobPosting, syn *scoring.Synonyms) (float64, []string) {
	if !b.Enabled {
		return 0, nil
	}

	var points float64
	var notes []string
	award := func(note string) {
		points += b.PerSignal
		notes = append(notes, note)
	}

	if b.rapidProgression(c) {
		award("rapid career progression detected")
	}
	if b.specializationMatch(c, j, syn) {
		award("specialization matches every essential skill")
	}
	if b.leadershipMarkers(c, j) {
		award("leadership markers for a senior role")
	}

	if points > b.Cap {
		points = b.Cap
	}
	return points, notes
}

// rapidProgression fires when the candidate accumulated a broad skill set in
// few years.
func (b BonusConfig) rapidProgression(c *domain.Candidate) bool {
	if c.YearsExperience < 2 || b.SkillsPerYear <= 0 {
		return false
	}
	return float64(len(c.Skills))/c.YearsExperience >= b.SkillsPerYear
}

// specializationMatch fires when the posting marks essential skills and the
// candidate covers all of them.
func (b BonusConfig) specializationMatch(c *domain.Candidate, j *domain.JobPosting, syn *scoring.Synonyms) bool {
	if len(j.EssentialSkills) == 0 {
		return false
	}
	for _, req := range j.EssentialSkills {
		covered := false
		for _, skill := range c.Skills {
			if syn.Match(skill, req) {
				covered = true
				break
			}
		}
		if !covered {
			return false
		}
	}
	return true
}

// leadershipMarkers fires when a senior posting meets a candidate whose soft
// skills carry leadership tokens.
func (b BonusConfig) leadershipMarkers(c *domain.Candidate, j *domain.JobPosting) bool {
	if j.ExperienceMin < b.SeniorYears {
		return false
	}
	for _, soft := range c.SoftSkills {
		for _, marker := range b.LeadershipMarkers {
			if strings.Contains(soft, marker) {
				return true
			}
		}
	}
	return false
}
