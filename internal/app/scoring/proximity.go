package scoring

import (
	"context"
	"fmt"
	"strings"

	"github.com/matchd-io/matchd/internal/domain"
)

// RemoteProximityScore applies when the posting is fully remote and the
// candidate accepts remote work; the commute stops mattering.
const RemoteProximityScore = 0.98

// Proximity scores the commute between candidate and posting. It consults
// the travel provider when both localities are known, degrades to a
// string-similarity estimate when the provider cannot answer, and returns
// the travel result it used so callers can surface it.
func Proximity(ctx context.Context, c *domain.Candidate, j *domain.JobPosting, tp domain.TravelProvider) (domain.DimensionScore, *domain.TravelResult) {
	if j.IsRemote() && (c.RemotePreference == domain.RemoteFull || c.RemotePreference == domain.RemoteHybrid) {
		return domain.DimensionScore{Value: RemoteProximityScore, Explanation: "fully remote position"}, nil
	}

	origin, dest := c.Location, j.Location
	if origin == "" || dest == "" {
		return domain.DimensionScore{Value: 0.40, Explanation: "location information incomplete"}, nil
	}

	if tp != nil {
		res, err := tp.Route(ctx, travelQuery(c, dest))
		if err == nil {
			return durationScore(res.DurationMinutes, res.Mode, c.MaxCommuteMinutes), &res
		}
	}

	return estimateScore(origin, dest), nil
}

func travelQuery(c *domain.Candidate, dest string) domain.TravelQuery {
	mode := c.TransportPreference
	if mode == "" {
		mode = domain.ModeDriving
	}
	q := domain.TravelQuery{Origin: c.Location, Destination: dest, Mode: mode}
	if mode == domain.ModeTransit {
		q.DepartureTime = c.DepartureTime
	}
	return q
}

// durationScore maps a commute duration onto the proximity bands.
func durationScore(minutes float64, mode domain.TransportMode, maxCommute int) domain.DimensionScore {
	value := DurationBand(minutes)
	explanation := fmt.Sprintf("about %.0f min by %s", minutes, mode)
	if maxCommute > 0 && minutes > float64(maxCommute) {
		explanation += fmt.Sprintf(", over the stated %d min limit", maxCommute)
	}
	return domain.DimensionScore{Value: value, Explanation: explanation}
}

// DurationBand is the commute-minutes to score table.
func DurationBand(minutes float64) float64 {
	switch {
	case minutes <= 20:
		return 0.95
	case minutes <= 30:
		return 0.85
	case minutes <= 45:
		return 0.75
	case minutes <= 60:
		return 0.60
	case minutes <= 90:
		return 0.40
	default:
		return 0.20
	}
}

// estimateScore approximates proximity without a provider answer. Same
// locality reads 0.85; otherwise locality-name similarity stands in for
// distance, mapped through the usual duration bands.
func estimateScore(origin, dest string) domain.DimensionScore {
	o, d := strings.ToLower(origin), strings.ToLower(dest)
	if strings.Contains(o, d) || strings.Contains(d, o) {
		return domain.DimensionScore{Value: 0.85, Explanation: "same locality"}
	}
	estimated := (1 - domain.Similarity(o, d)) * 120
	return domain.DimensionScore{
		Value:       DurationBand(estimated),
		Explanation: fmt.Sprintf("estimated %.0f min from locality names", estimated),
	}
}
