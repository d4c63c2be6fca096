package domain

// AttributionMethod is the closed set of ways a reply can be matched to a
// campaign.
type AttributionMethod string

const (
	AttributionSubjectMatch    AttributionMethod = "subject_match"
	AttributionThreadReference AttributionMethod = "thread_reference"
	AttributionKeywordMatch    AttributionMethod = "keyword_match"
	AttributionMostRecent      AttributionMethod = "most_recent_campaign"
)

// CampaignAttribution is the best-guess originating campaign for a classified
// reply. It annotates a ScoreDelta; it is not persisted on its own.
type CampaignAttribution struct {
	CampaignID   string
	CampaignName string
	Confidence   float64 // [0,1]
	Method       AttributionMethod
}

// Multiplier is one named engagement multiplier applied during scoring.
type Multiplier struct {
	Name  string
	Value float64
}

// Penalty is one named negative-signal deduction applied during scoring.
type Penalty struct {
	Name  string
	Value int
}

// ScoreDelta is the immutable, auditable result of one scoring pass.
// FinalDelta == round(BaseScore * product(Multipliers)) - sum(Penalties)
// + CampaignAdjustment, reproducible byte-for-byte from the same inputs.
type ScoreDelta struct {
	BaseScore          int
	Multipliers        []Multiplier
	Penalties          []Penalty
	CampaignAdjustment int
	FinalDelta         int
	Attribution        *CampaignAttribution
}

// TotalMultiplier returns the product of all applied multipliers.
func (d ScoreDelta) TotalMultiplier() float64 {
	total := 1.0
	for _, m := range d.Multipliers {
		total *= m.Value
	}
	return total
}

// TotalPenalty returns the sum of all applied penalties.
func (d ScoreDelta) TotalPenalty() int {
	total := 0
	for _, p := range d.Penalties {
		total += p.Value
	}
	return total
}
