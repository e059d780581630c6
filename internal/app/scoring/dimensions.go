package scoring

import (
	"fmt"

	"github.com/matchd-io/matchd/internal/domain"
)

// ─── Experience ─────────────────────────────────────────────────────────────

// Experience scores candidate seniority against the posting's band. Meeting
// the band is a 1.0; overqualification tapers to a mild 0.9 floor; shortfall
// scales linearly under a 0.8 ceiling.
func Experience(c *domain.Candidate, j *domain.JobPosting) domain.DimensionScore {
	if !j.HasExperienceRequirement() {
		return domain.DimensionScore{Value: 0.8, Explanation: "no experience requirement"}
	}
	years := c.YearsExperience
	minReq, maxReq := j.ExperienceMin, j.ExperienceMax
	if maxReq < minReq {
		maxReq = minReq
	}

	if years < minReq {
		value := 0.0
		if minReq > 0 {
			value = years / minReq * 0.8
		}
		return domain.DimensionScore{
			Value:       value,
			Explanation: fmt.Sprintf("%.0f of %.0f required years", years, minReq),
		}
	}
	switch {
	case years <= maxReq:
		return domain.DimensionScore{Value: 1.0, Explanation: "experience within the requested band"}
	case maxReq > 0 && years <= 1.5*maxReq:
		value := 1.0 - (years-maxReq)/(0.5*maxReq)*0.1
		return domain.DimensionScore{Value: value, Explanation: "slightly over the requested band"}
	default:
		return domain.DimensionScore{Value: 0.9, Explanation: "overqualified for the band"}
	}
}

// ─── Salary ─────────────────────────────────────────────────────────────────

// Salary scores the candidate's expectation against the posting's band.
// Unknown on either side is a neutral 0.7.
func Salary(c *domain.Candidate, j *domain.JobPosting) domain.DimensionScore {
	if c.SalaryExpectation <= 0 || j.SalaryBand.IsZero() {
		return domain.DimensionScore{Value: 0.7, Explanation: "salary information incomplete"}
	}
	e := float64(c.SalaryExpectation)
	jmin, jmax := float64(j.SalaryBand.Min), float64(j.SalaryBand.Max)

	switch {
	case e >= jmin && e <= jmax:
		return domain.DimensionScore{Value: 1.0, Explanation: "expectation inside the offered band"}
	case e < jmin:
		value := e/jmin + 0.2
		if value > 1 {
			value = 1
		}
		return domain.DimensionScore{Value: value, Explanation: "expectation below the offered band"}
	default:
		value := jmax / e
		if value < 0.1 {
			value = 0.1
		}
		return domain.DimensionScore{Value: value, Explanation: "expectation above the offered band"}
	}
}

// ─── Contract ───────────────────────────────────────────────────────────────

// contractNear maps recognized close pairs, both directions.
var contractNear = map[domain.ContractType]domain.ContractType{
	domain.ContractCDI:            domain.ContractCDD,
	domain.ContractCDD:            domain.ContractCDI,
	domain.ContractInternship:     domain.ContractApprenticeship,
	domain.ContractApprenticeship: domain.ContractInternship,
}

// Contract scores the posting's contract against the candidate's accepted
// set: exact membership 1.0, recognized near-match 0.8, unknown on either
// side 0.7, otherwise 0.3.
func Contract(c *domain.Candidate, j *domain.JobPosting) domain.DimensionScore {
	if j.ContractType == "" || len(c.ContractTypes) == 0 {
		return domain.DimensionScore{Value: 0.7, Explanation: "contract information incomplete"}
	}
	if c.AcceptsContract(j.ContractType) {
		return domain.DimensionScore{Value: 1.0, Explanation: fmt.Sprintf("%s accepted", j.ContractType)}
	}
	if near, ok := contractNear[j.ContractType]; ok && c.AcceptsContract(near) {
		return domain.DimensionScore{Value: 0.8, Explanation: fmt.Sprintf("%s close to accepted %s", j.ContractType, near)}
	}
	return domain.DimensionScore{Value: 0.3, Explanation: fmt.Sprintf("%s not among accepted contracts", j.ContractType)}
}

// ─── Flexibility ────────────────────────────────────────────────────────────

// Flexibility sub-dimension weights.
const (
	teleworkWeight  = 0.40
	flexHoursWeight = 0.35
	rttWeight       = 0.25
)

// Flexibility blends telework fit, flexible-hours fit, and paid-leave fit.
func Flexibility(c *domain.Candidate, j *domain.JobPosting) domain.DimensionScore {
	value := teleworkWeight*teleworkFit(c.RemotePreference, j.RemotePolicy) +
		flexHoursWeight*flexHoursFit(c.WantsFlexibleHours, j.FlexibleHours) +
		rttWeight*rttFit(c.WantsRTT, j.RTTDays)
	return domain.DimensionScore{
		Value:       value,
		Explanation: fmt.Sprintf("telework %s vs %s", c.RemotePreference, j.RemotePolicy),
	}
}

func teleworkFit(pref domain.RemotePreference, policy domain.RemotePolicy) float64 {
	switch pref {
	case domain.RemoteFull:
		switch policy {
		case domain.PolicyRemote:
			return 1.0
		case domain.PolicyHybridMajority:
			return 0.80
		case domain.PolicyHybridPartial:
			return 0.75
		default:
			return 0.30
		}
	case domain.RemoteHybrid:
		switch policy {
		case domain.PolicyHybridPartial, domain.PolicyHybridMajority:
			return 1.0
		case domain.PolicyRemote:
			return 0.85
		default:
			return 0.30
		}
	case domain.RemoteOnsite:
		if policy == domain.PolicyOnsite {
			return 1.0
		}
		return 0.75
	default:
		return 0.80
	}
}

func flexHoursFit(wants, offered bool) float64 {
	switch {
	case !wants:
		return 0.80
	case offered:
		return 0.95
	default:
		return 0.45
	}
}

func rttFit(wants bool, days int) float64 {
	if !wants {
		return 0.75
	}
	switch {
	case days >= 15:
		return 0.95
	case days >= 10:
		return 0.80
	case days >= 5:
		return 0.65
	default:
		return 0.40
	}
}

// ─── Culture ────────────────────────────────────────────────────────────────

// Culture scores token overlap between the candidate's values and the
// company's, Jaccard with a 0.4 floor when both sides are stated and a
// neutral 0.6 when either is empty.
func Culture(c *domain.Candidate, j *domain.JobPosting) domain.DimensionScore {
	mine := union(c.Values, c.CulturePreferences)
	theirs := j.CompanyCulture
	if len(mine) == 0 || len(theirs) == 0 {
		return domain.DimensionScore{Value: 0.6, Explanation: "culture information incomplete"}
	}

	set := make(map[string]bool, len(mine))
	for _, v := range mine {
		set[v] = true
	}
	inter := 0
	for _, v := range theirs {
		if set[v] {
			inter++
		}
	}
	unionLen := len(mine) + len(theirs) - inter
	value := float64(inter) / float64(unionLen)
	if value < 0.4 {
		value = 0.4
	}
	return domain.DimensionScore{
		Value:       value,
		Explanation: fmt.Sprintf("%d shared values", inter),
	}
}

// SoftSkills scores overlap between the candidate's soft skills and the
// posting's desired ones, with the same floor and neutral values as Culture.
// Variants that weigh behavioral fit blend it into the culture dimension.
func SoftSkills(c *domain.Candidate, j *domain.JobPosting) domain.DimensionScore {
	if len(c.SoftSkills) == 0 || len(j.DesiredSoftSkills) == 0 {
		return domain.DimensionScore{Value: 0.6, Explanation: "soft-skill information incomplete"}
	}

	set := make(map[string]bool, len(c.SoftSkills))
	for _, s := range c.SoftSkills {
		set[s] = true
	}
	inter := 0
	for _, s := range j.DesiredSoftSkills {
		if set[s] {
			inter++
		}
	}
	unionLen := len(c.SoftSkills) + len(j.DesiredSoftSkills) - inter
	value := float64(inter) / float64(unionLen)
	if value < 0.4 {
		value = 0.4
	}
	return domain.DimensionScore{
		Value:       value,
		Explanation: fmt.Sprintf("%d shared soft skills", inter),
	}
}

func union(a, b []string) []string {
	seen := make(map[string]bool, len(a)+len(b))
	var out []string
	for _, s := range a {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	for _, s := range b {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}
