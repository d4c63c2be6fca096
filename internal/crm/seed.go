package crm

import (
	"time"

	"replyflow_backend/internal/engagement/domain"
)

// SeedDemoData loads a couple of contacts with campaign memberships so the
// pipeline has something to match in local development.
func SeedDemoData(store *MemoryStore, now time.Time) {
	q3 := domain.Campaign{ID: "701-demo-q3", Name: "Q3 Enterprise Outreach", CreatedAt: now.AddDate(0, 0, -5)}
	spring := domain.Campaign{ID: "701-demo-spring", Name: "Spring Product Launch", CreatedAt: now.AddDate(0, 0, -40)}

	alice := store.SeedContact(domain.Contact{
		Email:      "test1@example.com",
		FirstName:  "Test",
		LastName:   "User1",
		Company:    "Test Company",
		LeadScore:  20,
		LeadSource: "Web",
	})
	store.SeedMembership(alice.ID, domain.CampaignMembership{Campaign: q3, Status: "Sent", AddedAt: now.AddDate(0, 0, -4)})
	store.SeedMembership(alice.ID, domain.CampaignMembership{Campaign: spring, Status: "Sent", AddedAt: now.AddDate(0, 0, -35)})

	bob := store.SeedContact(domain.Contact{
		Email:      "test2@example.com",
		FirstName:  "Test",
		LastName:   "User2",
		Company:    "Another Company",
		LeadScore:  45,
		LeadSource: "Event",
	})
	store.SeedMembership(bob.ID, domain.CampaignMembership{Campaign: q3, Status: "Sent", AddedAt: now.AddDate(0, 0, -3)})
}
