// Package domain — canonical matching entities.
// Canonical records are produced per request by the canonicalizer, are
// immutable from then on, and are never persisted.
package domain

// ContractType is the canonical employment contract form.
type ContractType string

const (
	ContractCDI            ContractType = "CDI"
	ContractCDD            ContractType = "CDD"
	ContractFreelance      ContractType = "FREELANCE"
	ContractInternship     ContractType = "INTERNSHIP"
	ContractApprenticeship ContractType = "APPRENTICESHIP"
)

// RemotePreference is the candidate side of the remote-work axis.
type RemotePreference string

const (
	RemoteOnsite      RemotePreference = "onsite"
	RemoteHybrid      RemotePreference = "hybrid"
	RemoteFull        RemotePreference = "remote"
	RemoteUnspecified RemotePreference = "unspecified"
)

// RemotePolicy is the job side of the remote-work axis.
type RemotePolicy string

const (
	PolicyOnsite         RemotePolicy = "onsite"
	PolicyHybridPartial  RemotePolicy = "hybrid_partial"
	PolicyHybridMajority RemotePolicy = "hybrid_majority"
	PolicyRemote         RemotePolicy = "remote"
)

// PriorityLever is a coarse-grained candidate priority axis. Levers map onto
// scoring dimensions in the weight resolver, not one-to-one.
type PriorityLever string

const (
	LeverEvolution    PriorityLever = "evolution"
	LeverCompensation PriorityLever = "compensation"
	LeverProximity    PriorityLever = "proximity"
	LeverFlexibility  PriorityLever = "flexibility"
)

// Levers lists the recognized priority levers.
func Levers() []PriorityLever {
	return []PriorityLever{LeverEvolution, LeverCompensation, LeverProximity, LeverFlexibility}
}

// Candidate is the canonical candidate profile.
type Candidate struct {
	ID                  string                `json:"id"`
	Name                string                `json:"name,omitempty"`
	Skills              []string              `json:"skills"`
	SoftSkills          []string              `json:"soft_skills,omitempty"`
	YearsExperience     float64               `json:"years_experience"`
	Location            string                `json:"location,omitempty"`
	SalaryExpectation   int                   `json:"salary_expectation,omitempty"`
	ContractTypes       []ContractType        `json:"contract_types,omitempty"`
	RemotePreference    RemotePreference      `json:"remote_preference"`
	TransportPreference TransportMode         `json:"transport_preference"`
	DepartureTime       string                `json:"departure_time,omitempty"` // HH:MM, transit only
	MaxCommuteMinutes   int                   `json:"max_commute_minutes"`
	Priorities          map[PriorityLever]int `json:"priorities,omitempty"` // notes on 1..10
	Values              []string              `json:"values,omitempty"`
	CulturePreferences  []string              `json:"culture_preferences,omitempty"`
	Mobile              bool                  `json:"mobile,omitempty"`
	WantsFlexibleHours  bool                  `json:"wants_flexible_hours,omitempty"`
	WantsRTT            bool                  `json:"wants_rtt,omitempty"`
}

// HasPriorities reports whether the candidate expressed any priority note.
func (c *Candidate) HasPriorities() bool {
	return len(c.Priorities) > 0
}

// AcceptsContract reports whether the candidate accepts the given contract.
// An empty accepted set means no stated constraint.
func (c *Candidate) AcceptsContract(ct ContractType) bool {
	for _, accepted := range c.ContractTypes {
		if accepted == ct {
			return true
		}
	}
	return false
}

// SalaryBand is an annual salary range in a single currency, Min <= Max.
type SalaryBand struct {
	Min int `json:"min"`
	Max int `json:"max"`
}

// IsZero reports whether the band is absent.
func (b SalaryBand) IsZero() bool { return b.Min == 0 && b.Max == 0 }

// JobPosting is the canonical job posting.
type JobPosting struct {
	ID                string       `json:"id"`
	Title             string       `json:"title"`
	Company           string       `json:"company,omitempty"`
	RequiredSkills    []string     `json:"required_skills"`
	EssentialSkills   []string     `json:"essential_skills,omitempty"` // subset of RequiredSkills
	DesiredSoftSkills []string     `json:"desired_soft_skills,omitempty"`
	ExperienceMin     float64      `json:"experience_min,omitempty"`
	ExperienceMax     float64      `json:"experience_max,omitempty"`
	ContractType      ContractType `json:"contract_type,omitempty"`
	Location          string       `json:"location,omitempty"`
	RemotePolicy      RemotePolicy `json:"remote_policy"`
	SalaryBand        SalaryBand   `json:"salary_band"`
	Benefits          []string     `json:"benefits,omitempty"`
	CompanyCulture    []string     `json:"company_culture,omitempty"`
	FlexibleHours     bool         `json:"flexible_hours,omitempty"`
	RTTDays           int          `json:"rtt_days,omitempty"`
}

// HasExperienceRequirement reports whether the posting states a band.
// A zero band reads as "no requirement"; requiring zero years is the same thing.
func (j *JobPosting) HasExperienceRequirement() bool {
	return j.ExperienceMin > 0 || j.ExperienceMax > 0
}

// IsRemote reports whether the posting is fully remote.
func (j *JobPosting) IsRemote() bool { return j.RemotePolicy == PolicyRemote }
