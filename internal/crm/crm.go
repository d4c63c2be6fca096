// Package crm abstracts the CRM system holding contacts, campaign
// memberships, lead scores, and opportunities. The in-memory implementation
// stands in for Salesforce in development and tests.
package crm

import (
	"context"
	"time"

	"replyflow_backend/internal/engagement/domain"
)

// Opportunity is a pipeline record opened for a contact.
type Opportunity struct {
	ID             string
	ContactID      string
	Name           string
	Stage          string
	EstimatedValue float64
	Open           bool
	CreatedAt      time.Time
}

// Activity is a logged touch on a contact's timeline.
type Activity struct {
	ID        string
	ContactID string
	Subject   string
	Body      string
	CreatedAt time.Time
}

// Store is the CRM surface the engagement pipeline depends on.
type Store interface {
	// FindContactByEmail resolves a contact by address. Returns
	// apperr.NotFound when the sender is unknown to the CRM.
	FindContactByEmail(ctx context.Context, email string) (domain.Contact, error)
	ContactByID(ctx context.Context, contactID string) (domain.Contact, error)

	// CampaignMemberships lists the campaigns the contact belongs to,
	// most recently added first.
	CampaignMemberships(ctx context.Context, contactID string) ([]domain.CampaignMembership, error)

	// ApplyScoreDelta adjusts the contact's lead score and returns the new
	// value. Scores never go below zero.
	ApplyScoreDelta(ctx context.Context, contactID string, delta int) (int, error)

	// UpdateMembershipStatus records the reply classification on the
	// contact's campaign memberships.
	UpdateMembershipStatus(ctx context.Context, contactID string, classification domain.Classification) error

	HasOpenOpportunity(ctx context.Context, contactID string) (bool, error)
	CreateOpportunity(ctx context.Context, opp Opportunity) (Opportunity, error)

	// LogActivity records an inbound reply or outbound step on the
	// contact's timeline.
	LogActivity(ctx context.Context, activity Activity) (Activity, error)
}
