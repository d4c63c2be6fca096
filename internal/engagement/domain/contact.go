package domain

import "time"

// Contact is a CRM contact or lead record as resolved by the external store.
type Contact struct {
	ID         string
	Email      string
	FirstName  string
	LastName   string
	Company    string
	LeadScore  int
	LeadSource string
	RecordType string // "contact" or "lead"
}

// FullName returns the contact's display name, falling back to the email
// address when no name is on record.
func (c Contact) FullName() string {
	name := c.FirstName
	if c.LastName != "" {
		if name != "" {
			name += " "
		}
		name += c.LastName
	}
	if name == "" {
		return c.Email
	}
	return name
}

// Campaign is an outbound marketing campaign known to the CRM.
type Campaign struct {
	ID        string
	Name      string
	CreatedAt time.Time
}

// CampaignMembership links a contact to a campaign they were targeted by.
type CampaignMembership struct {
	Campaign Campaign
	Status   string
	AddedAt  time.Time
}

// OpportunityDecision is the outcome of the opportunity-open check.
type OpportunityDecision struct {
	ShouldCreate     bool
	Reasons          []string
	ExistingOpen     bool
	RecommendedStage string
	EstimatedValue   int
}
