// Package scoring matches classified replies to originating campaigns and
// converts classification plus engagement signals into auditable lead-score
// deltas.
package scoring

import (
	"regexp"
	"sort"
	"strings"
	"time"

	"replyflow_backend/internal/engagement/domain"
	"replyflow_backend/internal/engagement/threads"
)

const (
	// attributionFloor is the minimum match score for a confident attribution.
	attributionFloor = 0.3
	// fallbackConfidence is assigned when only the most-recent-campaign
	// fallback applies.
	fallbackConfidence = 0.2

	subjectMatchWeight   = 0.4
	bodyKeywordWeight    = 0.1
	referenceMatchWeight = 0.3
)

var wordRe = regexp.MustCompile(`\b\w+\b`)

// campaignStopWords are dropped when extracting match keywords from a
// campaign name.
var campaignStopWords = map[string]struct{}{
	"campaign":  {},
	"email":     {},
	"marketing": {},
	"outreach":  {},
	"sequence":  {},
}

// Attribute returns the best-guess originating campaign for the message's
// thread, or nil when the contact has no campaign memberships. Candidates
// score on four bounded signals summing to at most 1.0; below the confidence
// floor the most recently created campaign is returned as a low-confidence
// fallback.
func Attribute(thread threads.ConversationThread, msg domain.InboundMessage, memberships []domain.CampaignMembership, now time.Time) *domain.CampaignAttribution {
	if len(memberships) == 0 {
		return nil
	}

	var best *domain.CampaignMembership
	bestScore := 0.0
	for i := range memberships {
		score := matchScore(msg, memberships[i].Campaign, now)
		if score > bestScore {
			bestScore = score
			best = &memberships[i]
		}
	}

	if best != nil && bestScore > attributionFloor {
		return &domain.CampaignAttribution{
			CampaignID:   best.Campaign.ID,
			CampaignName: best.Campaign.Name,
			Confidence:   bestScore,
			Method:       attributionMethod(msg, best.Campaign),
		}
	}

	mostRecent := memberships[0]
	for _, m := range memberships[1:] {
		if m.Campaign.CreatedAt.After(mostRecent.Campaign.CreatedAt) {
			mostRecent = m
		}
	}
	return &domain.CampaignAttribution{
		CampaignID:   mostRecent.Campaign.ID,
		CampaignName: mostRecent.Campaign.Name,
		Confidence:   fallbackConfidence,
		Method:       domain.AttributionMostRecent,
	}
}

// matchScore computes how well a message matches one campaign. Each signal is
// independently bounded; the sum caps at 1.0.
func matchScore(msg domain.InboundMessage, campaign domain.Campaign, now time.Time) float64 {
	score := 0.0

	subject := strings.ToLower(msg.Subject)
	body := strings.ToLower(msg.Body)
	name := strings.ToLower(campaign.Name)

	for _, word := range strings.Fields(name) {
		if strings.Contains(subject, word) {
			score += subjectMatchWeight
			break
		}
	}

	for _, keyword := range CampaignKeywords(campaign.Name) {
		if strings.Contains(body, keyword) {
			score += bodyKeywordWeight
		}
	}

	if msg.HasReferences() {
		score += referenceMatchWeight
	}

	if !campaign.CreatedAt.IsZero() {
		age := now.Sub(campaign.CreatedAt)
		switch {
		case age <= 7*24*time.Hour:
			score += 0.2
		case age <= 30*24*time.Hour:
			score += 0.1
		}
	}

	if score > 1.0 {
		score = 1.0
	}
	return score
}

// CampaignKeywords extracts match keywords from a campaign name after
// stop-word removal. Words of two characters or fewer are dropped. The
// result is sorted for deterministic scoring order.
func CampaignKeywords(campaignName string) []string {
	words := wordRe.FindAllString(strings.ToLower(campaignName), -1)
	var keywords []string
	for _, w := range words {
		if _, stop := campaignStopWords[w]; stop {
			continue
		}
		if len(w) <= 2 {
			continue
		}
		keywords = append(keywords, w)
	}
	sort.Strings(keywords)
	return keywords
}

func attributionMethod(msg domain.InboundMessage, campaign domain.Campaign) domain.AttributionMethod {
	subject := strings.ToLower(msg.Subject)
	for _, word := range strings.Fields(strings.ToLower(campaign.Name)) {
		if strings.Contains(subject, word) {
			return domain.AttributionSubjectMatch
		}
	}
	if msg.HasReferences() {
		return domain.AttributionThreadReference
	}
	return domain.AttributionKeywordMatch
}
