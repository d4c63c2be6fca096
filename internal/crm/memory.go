package crm

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"replyflow_backend/internal/engagement/domain"
	"replyflow_backend/platform/apperr"
)

// MemoryStore is a process-local CRM. Safe for concurrent use.
type MemoryStore struct {
	mu            sync.RWMutex
	contacts      map[string]domain.Contact
	byEmail       map[string]string // lowercased email -> contact ID
	memberships   map[string][]domain.CampaignMembership
	opportunities map[string][]Opportunity
	activities    map[string][]Activity
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		contacts:      make(map[string]domain.Contact),
		byEmail:       make(map[string]string),
		memberships:   make(map[string][]domain.CampaignMembership),
		opportunities: make(map[string][]Opportunity),
		activities:    make(map[string][]Activity),
	}
}

// SeedContact inserts or replaces a contact, assigning an ID when absent.
func (s *MemoryStore) SeedContact(contact domain.Contact) domain.Contact {
	s.mu.Lock()
	defer s.mu.Unlock()

	if contact.ID == "" {
		contact.ID = uuid.NewString()
	}
	s.contacts[contact.ID] = contact
	s.byEmail[strings.ToLower(contact.Email)] = contact.ID
	return contact
}

// SeedMembership attaches a campaign membership to a contact.
func (s *MemoryStore) SeedMembership(contactID string, m domain.CampaignMembership) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.memberships[contactID] = append(s.memberships[contactID], m)
}

func (s *MemoryStore) FindContactByEmail(_ context.Context, email string) (domain.Contact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byEmail[strings.ToLower(strings.TrimSpace(email))]
	if !ok {
		return domain.Contact{}, apperr.NotFound("contact not found").WithOp("crm.FindContactByEmail")
	}
	return s.contacts[id], nil
}

func (s *MemoryStore) ContactByID(_ context.Context, contactID string) (domain.Contact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	contact, ok := s.contacts[contactID]
	if !ok {
		return domain.Contact{}, apperr.NotFound("contact not found").WithOp("crm.ContactByID")
	}
	return contact, nil
}

func (s *MemoryStore) CampaignMemberships(_ context.Context, contactID string) ([]domain.CampaignMembership, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := append([]domain.CampaignMembership(nil), s.memberships[contactID]...)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].AddedAt.After(out[j].AddedAt)
	})
	return out, nil
}

func (s *MemoryStore) ApplyScoreDelta(_ context.Context, contactID string, delta int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	contact, ok := s.contacts[contactID]
	if !ok {
		return 0, apperr.NotFound("contact not found").WithOp("crm.ApplyScoreDelta")
	}

	contact.LeadScore += delta
	if contact.LeadScore < 0 {
		contact.LeadScore = 0
	}
	s.contacts[contactID] = contact
	return contact.LeadScore, nil
}

func (s *MemoryStore) UpdateMembershipStatus(_ context.Context, contactID string, classification domain.Classification) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.contacts[contactID]; !ok {
		return apperr.NotFound("contact not found").WithOp("crm.UpdateMembershipStatus")
	}

	status := "Responded - " + classification.String()
	for i := range s.memberships[contactID] {
		s.memberships[contactID][i].Status = status
	}
	return nil
}

func (s *MemoryStore) HasOpenOpportunity(_ context.Context, contactID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, opp := range s.opportunities[contactID] {
		if opp.Open {
			return true, nil
		}
	}
	return false, nil
}

func (s *MemoryStore) CreateOpportunity(_ context.Context, opp Opportunity) (Opportunity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.contacts[opp.ContactID]; !ok {
		return Opportunity{}, apperr.NotFound("contact not found").WithOp("crm.CreateOpportunity")
	}

	if opp.ID == "" {
		opp.ID = uuid.NewString()
	}
	if opp.CreatedAt.IsZero() {
		opp.CreatedAt = time.Now()
	}
	opp.Open = true
	s.opportunities[opp.ContactID] = append(s.opportunities[opp.ContactID], opp)
	return opp, nil
}

func (s *MemoryStore) LogActivity(_ context.Context, activity Activity) (Activity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.contacts[activity.ContactID]; !ok {
		return Activity{}, apperr.NotFound("contact not found").WithOp("crm.LogActivity")
	}

	if activity.ID == "" {
		activity.ID = uuid.NewString()
	}
	if activity.CreatedAt.IsZero() {
		activity.CreatedAt = time.Now()
	}
	s.activities[activity.ContactID] = append(s.activities[activity.ContactID], activity)
	return activity, nil
}

// Activities returns the logged timeline for a contact, oldest first.
func (s *MemoryStore) Activities(contactID string) []Activity {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Activity(nil), s.activities[contactID]...)
}
