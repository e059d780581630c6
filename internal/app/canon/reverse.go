package canon

import (
	"fmt"

	"github.com/matchd-io/matchd/internal/domain"
)

// ReverseCandidate renders a canonical candidate back into a raw record.
// Canonicalizing the output reproduces the input exactly, which is what
// makes canonicalization idempotent end to end.
func ReverseCandidate(c domain.Candidate) map[string]any {
	raw := map[string]any{
		"skills": append([]string(nil), c.Skills...),
	}
	putString(raw, "id", c.ID)
	putString(raw, "name", c.Name)
	putString(raw, "location", c.Location)
	putTokens(raw, "soft_skills", c.SoftSkills)
	putTokens(raw, "values", c.Values)
	putTokens(raw, "culture_preferences", c.CulturePreferences)
	if c.YearsExperience > 0 {
		raw["years_experience"] = c.YearsExperience
	}
	if c.SalaryExpectation > 0 {
		raw["salary_expectation"] = c.SalaryExpectation
	}
	if len(c.ContractTypes) > 0 {
		cts := make([]string, len(c.ContractTypes))
		for i, ct := range c.ContractTypes {
			cts[i] = string(ct)
		}
		raw["contract_types"] = cts
	}
	raw["remote_preference"] = string(c.RemotePreference)
	raw["transport_preference"] = string(c.TransportPreference)
	putString(raw, "departure_time", c.DepartureTime)
	raw["max_commute_minutes"] = c.MaxCommuteMinutes
	if len(c.Priorities) > 0 {
		prios := make(map[string]any, len(c.Priorities))
		for lever, note := range c.Priorities {
			prios[string(lever)] = note
		}
		raw["priorities"] = prios
	}
	putBool(raw, "mobile", c.Mobile)
	putBool(raw, "wants_flexible_hours", c.WantsFlexibleHours)
	putBool(raw, "wants_rtt", c.WantsRTT)
	return raw
}

// ReverseJob renders a canonical job posting back into a raw record.
func ReverseJob(j domain.JobPosting) map[string]any {
	raw := map[string]any{
		"title":           j.Title,
		"required_skills": append([]string(nil), j.RequiredSkills...),
	}
	putString(raw, "id", j.ID)
	putString(raw, "company", j.Company)
	putString(raw, "location", j.Location)
	putTokens(raw, "essential_skills", j.EssentialSkills)
	putTokens(raw, "desired_soft_skills", j.DesiredSoftSkills)
	putTokens(raw, "benefits", j.Benefits)
	putTokens(raw, "company_culture", j.CompanyCulture)
	switch {
	case j.ExperienceMin == 0 && j.ExperienceMax == 0:
	case j.ExperienceMin == j.ExperienceMax:
		raw["required_experience_years"] = j.ExperienceMin
	default:
		raw["required_experience_years"] = fmt.Sprintf("%d-%d", int(j.ExperienceMin), int(j.ExperienceMax))
	}
	putString(raw, "contract_type", string(j.ContractType))
	raw["remote_policy"] = string(j.RemotePolicy)
	if !j.SalaryBand.IsZero() {
		raw["salary_band"] = map[string]any{"min": j.SalaryBand.Min, "max": j.SalaryBand.Max}
	}
	putBool(raw, "flexible_hours", j.FlexibleHours)
	if j.RTTDays > 0 {
		raw["rtt_days"] = j.RTTDays
	}
	return raw
}

func putString(raw map[string]any, key, v string) {
	if v != "" {
		raw[key] = v
	}
}

func putTokens(raw map[string]any, key string, v []string) {
	if len(v) > 0 {
		raw[key] = append([]string(nil), v...)
	}
}

func putBool(raw map[string]any, key string, v bool) {
	if v {
		raw[key] = v
	}
}
