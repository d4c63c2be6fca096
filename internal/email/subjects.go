package email

const (
	subjectInterestedLeadFmt = "Interested lead: %s (%s priority)"
	subjectPendingReviewFmt  = "Review needed: follow-up step for %s"
	subjectDailySummaryFmt   = "Daily reply engagement summary - %s"
)
