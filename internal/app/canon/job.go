package canon

import (
	"fmt"
	"strings"

	"github.com/matchd-io/matchd/internal/domain"
)

// Job normalizes a raw job posting. Title and required skills are mandatory.
func Job(raw map[string]any) (domain.JobPosting, error) {
	if raw == nil {
		return domain.JobPosting{}, domain.ErrNotAnObject
	}

	j := domain.JobPosting{
		ID:       stringField(raw, "id", "job_id", "offer_id"),
		Title:    strings.TrimSpace(stringField(raw, "title", "titre", "intitule", "intitulé")),
		Company:  strings.TrimSpace(stringField(raw, "company", "entreprise", "societe", "société")),
		Location: Locality(stringField(raw, "location", "ville", "city", "lieu")),
	}
	if j.Title == "" {
		return domain.JobPosting{}, domain.ErrMissingTitle
	}

	j.RequiredSkills = tokensField(raw, "required_skills", "skills", "competences_requises", "compétences")
	if len(j.RequiredSkills) == 0 {
		return domain.JobPosting{}, domain.ErrMissingRequiredSkills
	}

	// essential skills are a marked subset of the required set
	j.EssentialSkills = intersect(tokensField(raw, "essential_skills", "competences_essentielles"), j.RequiredSkills)
	j.DesiredSoftSkills = tokensField(raw, "desired_soft_skills", "soft_skills", "savoir_etre")
	j.Benefits = tokensField(raw, "benefits", "avantages")
	j.CompanyCulture = tokensField(raw, "company_culture", "culture", "valeurs")

	j.ExperienceMin, j.ExperienceMax = experienceBand(raw)

	if cts := contractSet(raw, "contract_type", "contrat", "type_contrat"); len(cts) > 0 {
		j.ContractType = cts[0]
	}
	j.RemotePolicy = remotePolicy(stringField(raw, "remote_policy", "remote", "teletravail", "télétravail"))

	band, err := salaryBand(raw)
	if err != nil {
		return domain.JobPosting{}, err
	}
	j.SalaryBand = band

	j.FlexibleHours = boolField(raw, "flexible_hours", "horaires_flexibles")
	if d, ok := numberField(raw, "rtt_days", "rtt", "jours_rtt"); ok && d > 0 {
		j.RTTDays = int(d)
	}

	return j, nil
}

// Jobs normalizes a batch, assigning positional ids to postings without one.
func Jobs(raws []map[string]any) ([]domain.JobPosting, error) {
	out := make([]domain.JobPosting, 0, len(raws))
	for i, raw := range raws {
		j, err := Job(raw)
		if err != nil {
			return nil, fmt.Errorf("job %d: %w", i+1, err)
		}
		if j.ID == "" {
			j.ID = fmt.Sprintf("job-%d", i+1)
		}
		out = append(out, j)
	}
	return out, nil
}

// experienceBand parses the required experience into (min, max) years.
// A single number or "3+ ans" yields min == max; "3-5" yields the pair.
func experienceBand(raw map[string]any) (float64, float64) {
	v, ok := firstKey(raw, "required_experience_years", "required_experience", "experience_requise", "experience")
	if !ok {
		return 0, 0
	}
	switch t := v.(type) {
	case string:
		lo, hi, found := intPair(t)
		if !found {
			return 0, 0
		}
		return float64(lo), float64(hi)
	default:
		n, numeric := asNumber(v)
		if !numeric || n <= 0 {
			return 0, 0
		}
		return n, n
	}
}

// salaryBand accepts {min,max} objects, "min-max[K]" strings, or a single
// value expanded to ±10%.
func salaryBand(raw map[string]any) (domain.SalaryBand, error) {
	v, ok := firstKey(raw, "salary_band", "salary_range", "salary", "salaire", "fourchette_salaire")
	if !ok {
		return domain.SalaryBand{}, nil
	}
	var band domain.SalaryBand
	switch t := v.(type) {
	case map[string]any:
		if n, numeric := numberField(t, "min"); numeric {
			band.Min = int(n)
		}
		if n, numeric := numberField(t, "max"); numeric {
			band.Max = int(n)
		}
	case string:
		lo, hi, found := intPair(t)
		if !found {
			return domain.SalaryBand{}, nil
		}
		if strings.ContainsAny(t, "kK") {
			lo *= 1000
			hi *= 1000
		}
		if lo == hi {
			return spreadBand(lo), nil
		}
		band.Min, band.Max = lo, hi
	default:
		if n, numeric := asNumber(v); numeric && n > 0 {
			return spreadBand(int(n)), nil
		}
	}
	if band.IsZero() {
		return band, nil
	}
	if band.Min > band.Max {
		return domain.SalaryBand{}, fmt.Errorf("band %d-%d: %w", band.Min, band.Max, domain.ErrInvalidSalaryBand)
	}
	return band, nil
}

// spreadBand expands a single figure to ±10%.
func spreadBand(v int) domain.SalaryBand {
	return domain.SalaryBand{Min: v - v/10, Max: v + v/10}
}

// intPair extracts the first one or two integers from s, ordered ascending.
// One integer found is returned as both ends.
func intPair(s string) (int, int, bool) {
	first, ok := leadingInt(s)
	if !ok {
		return 0, 0, false
	}
	rest := s
	if i := strings.IndexFunc(s, isDigit); i >= 0 {
		j := i
		for j < len(s) && isDigit(rune(s[j])) {
			j++
		}
		rest = s[j:]
	}
	second, ok2 := leadingInt(rest)
	if !ok2 {
		return first, first, true
	}
	if second < first {
		first, second = second, first
	}
	return first, second, true
}

func isDigit(r rune) bool { return r >= '0' && r <= '9' }

// remotePolicy maps the job side of the remote axis. Unknown terms read as
// onsite, the conservative default.
func remotePolicy(s string) domain.RemotePolicy {
	v := strings.ToLower(strings.TrimSpace(s))
	switch {
	case v == string(domain.PolicyHybridPartial):
		return domain.PolicyHybridPartial
	case v == string(domain.PolicyHybridMajority):
		return domain.PolicyHybridMajority
	case containsAny(v, "full", "total", "100%", "complet"):
		return domain.PolicyRemote
	case containsAny(v, "majorit", "3 jours", "4 jours", "3 days", "4 days"):
		return domain.PolicyHybridMajority
	case containsAny(v, "hybrid", "hybride", "partiel", "partial", "1 jour", "2 jours", "mixte"):
		return domain.PolicyHybridPartial
	case containsAny(v, "remote", "télétravail", "teletravail", "distance"):
		return domain.PolicyRemote
	default:
		return domain.PolicyOnsite
	}
}

func intersect(subset, set []string) []string {
	if len(subset) == 0 {
		return nil
	}
	in := make(map[string]struct{}, len(set))
	for _, s := range set {
		in[s] = struct{}{}
	}
	var out []string
	for _, s := range subset {
		if _, ok := in[s]; ok {
			out = append(out, s)
		}
	}
	return out
}
