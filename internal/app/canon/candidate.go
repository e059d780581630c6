package canon

import (
	"fmt"
	"strings"

	"github.com/matchd-io/matchd/internal/domain"
)

// defaultMaxCommute applies when the candidate states no commute bound.
const defaultMaxCommute = 60

// Candidate normalizes a raw candidate record. The only required field is a
// non-empty skill set; everything else degrades to zero values.
func Candidate(raw map[string]any) (domain.Candidate, error) {
	if raw == nil {
		return domain.Candidate{}, domain.ErrNotAnObject
	}

	c := domain.Candidate{
		ID:       stringField(raw, "id", "candidate_id"),
		Name:     stringField(raw, "name", "nom"),
		Skills:   tokensField(raw, "skills", "competences", "compétences"),
		Location: Locality(stringField(raw, "location", "ville", "city", "localisation")),
	}
	if len(c.Skills) == 0 {
		return domain.Candidate{}, domain.ErrMissingSkills
	}

	c.SoftSkills = tokensField(raw, "soft_skills", "soft_skills_detected", "savoir_etre")
	c.Values = tokensField(raw, "values", "valeurs")
	c.CulturePreferences = tokensField(raw, "culture_preferences", "culture", "preferences_culture")

	if years, ok := numberField(raw, "years_experience", "experience", "annees_experience"); ok {
		if years > 0 {
			c.YearsExperience = years
		}
	}
	c.SalaryExpectation = salaryAmount(raw, "salary_expectation", "expected_salary", "salaire", "salaire_souhaite")

	c.ContractTypes = contractSet(raw, "contract_types", "contracts", "contrat", "contrats")
	c.RemotePreference = remotePreference(stringField(raw, "remote_preference", "remote", "teletravail", "télétravail"))
	c.TransportPreference = transportMode(stringField(raw, "transport_preference", "transport", "transport_mode"))
	c.DepartureTime = stringField(raw, "departure_time", "heure_depart")

	c.MaxCommuteMinutes = defaultMaxCommute
	if m, ok := numberField(raw, "max_commute_minutes", "max_commute", "temps_trajet_max"); ok && m > 0 {
		c.MaxCommuteMinutes = int(m)
	}

	c.Mobile = boolField(raw, "mobile", "mobilite", "mobilité")
	c.WantsFlexibleHours = boolField(raw, "wants_flexible_hours", "flexible_hours", "horaires_flexibles")
	c.WantsRTT = boolField(raw, "wants_rtt", "rtt")

	prios, err := priorities(raw)
	if err != nil {
		return domain.Candidate{}, err
	}
	c.Priorities = prios

	return c, nil
}

// priorities reads the candidate priority map. Unknown levers are ignored;
// non-numeric notes are invalid input. Out-of-range notes are kept as-is,
// the weight resolver clamps.
func priorities(raw map[string]any) (map[domain.PriorityLever]int, error) {
	v, ok := firstKey(raw, "priorities", "priorites", "priorités")
	if !ok {
		return nil, nil
	}
	m, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("priorities: %w", domain.ErrNotAnObject)
	}
	out := make(map[domain.PriorityLever]int)
	for _, lever := range domain.Levers() {
		nv, present := m[string(lever)]
		if !present {
			continue
		}
		n, numeric := asNumber(nv)
		if !numeric {
			return nil, fmt.Errorf("priority %s: %w", lever, domain.ErrInvalidPriorityNote)
		}
		out[lever] = int(n)
	}
	if len(out) == 0 {
		return nil, nil
	}
	return out, nil
}

// salaryAmount parses an annual amount. String literals containing "k" or
// "K" are thousands ("45k€" → 45000).
func salaryAmount(raw map[string]any, keys ...string) int {
	v, ok := firstKey(raw, keys...)
	if !ok {
		return 0
	}
	switch t := v.(type) {
	case string:
		n, found := leadingInt(t)
		if !found {
			return 0
		}
		if strings.ContainsAny(t, "kK") {
			n *= 1000
		}
		return n
	default:
		if n, numeric := asNumber(v); numeric && n > 0 {
			return int(n)
		}
	}
	return 0
}

// ─── Enum Lexicons ──────────────────────────────────────────────────────────

var contractLexicon = map[string]domain.ContractType{
	"cdi":            domain.ContractCDI,
	"permanent":      domain.ContractCDI,
	"cdd":            domain.ContractCDD,
	"fixed-term":     domain.ContractCDD,
	"fixed term":     domain.ContractCDD,
	"interim":        domain.ContractCDD,
	"intérim":        domain.ContractCDD,
	"freelance":      domain.ContractFreelance,
	"consultant":     domain.ContractFreelance,
	"independant":    domain.ContractFreelance,
	"indépendant":    domain.ContractFreelance,
	"portage":        domain.ContractFreelance,
	"stage":          domain.ContractInternship,
	"internship":     domain.ContractInternship,
	"intern":         domain.ContractInternship,
	"alternance":     domain.ContractApprenticeship,
	"apprentissage":  domain.ContractApprenticeship,
	"apprenticeship": domain.ContractApprenticeship,
	"contrat pro":    domain.ContractApprenticeship,
}

// contractSet maps raw contract terms onto the canonical enum, dropping
// unrecognized terms and deduplicating.
func contractSet(raw map[string]any, keys ...string) []domain.ContractType {
	v, ok := firstKey(raw, keys...)
	if !ok {
		return nil
	}
	var out []domain.ContractType
	seen := make(map[domain.ContractType]struct{})
	for _, tok := range normalizeTokens(v) {
		ct, known := contractTerm(tok)
		if !known {
			continue
		}
		if _, dup := seen[ct]; dup {
			continue
		}
		seen[ct] = struct{}{}
		out = append(out, ct)
	}
	return out
}

func contractTerm(tok string) (domain.ContractType, bool) {
	if ct, ok := contractLexicon[tok]; ok {
		return ct, true
	}
	// canonical forms pass through so canonicalization is idempotent
	switch strings.ToUpper(tok) {
	case string(domain.ContractCDI):
		return domain.ContractCDI, true
	case string(domain.ContractCDD):
		return domain.ContractCDD, true
	case string(domain.ContractFreelance):
		return domain.ContractFreelance, true
	case string(domain.ContractInternship):
		return domain.ContractInternship, true
	case string(domain.ContractApprenticeship):
		return domain.ContractApprenticeship, true
	}
	return "", false
}

// remotePreference substring-matches against a bilingual lexicon.
func remotePreference(s string) domain.RemotePreference {
	v := strings.ToLower(strings.TrimSpace(s))
	switch {
	case v == "":
		return domain.RemoteUnspecified
	case containsAny(v, "full", "total", "100%", "complet"):
		return domain.RemoteFull
	case containsAny(v, "hybrid", "hybride", "partiel", "partial", "mixte"):
		return domain.RemoteHybrid
	case containsAny(v, "onsite", "on-site", "sur site", "présentiel", "presentiel", "bureau", "office"):
		return domain.RemoteOnsite
	case containsAny(v, "remote", "télétravail", "teletravail", "distance"):
		return domain.RemoteFull
	default:
		return domain.RemoteUnspecified
	}
}

// transportMode maps a raw transport term to the routing API's mode enum.
func transportMode(s string) domain.TransportMode {
	v := strings.ToLower(strings.TrimSpace(s))
	switch {
	case containsAny(v, "transit", "transport", "métro", "metro", "bus", "train", "tram"):
		return domain.ModeTransit
	case containsAny(v, "walk", "marche", "pied"):
		return domain.ModeWalking
	case containsAny(v, "bicycl", "cycling", "bike", "vélo", "velo"):
		return domain.ModeBicycling
	default:
		return domain.ModeDriving
	}
}
