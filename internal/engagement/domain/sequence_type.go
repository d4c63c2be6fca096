package domain

// SequenceType is the closed set of follow-up sequence variants.
type SequenceType string

const (
	SequenceNotInterestedNurture   SequenceType = "not_interested_nurture"
	SequenceMaybeInterestedNurture SequenceType = "maybe_interested_nurture"
	SequenceInterestedAcceleration SequenceType = "interested_acceleration"
	SequenceDemoFollowUp           SequenceType = "demo_follow_up"
	SequencePricingFollowUp        SequenceType = "pricing_follow_up"
	SequenceMeetingFollowUp        SequenceType = "meeting_follow_up"
)

// sequencePriority is the fixed total order used for enrollment preemption.
// Lower rank outranks higher rank.
var sequencePriority = map[SequenceType]int{
	SequenceMeetingFollowUp:        1,
	SequenceDemoFollowUp:           2,
	SequencePricingFollowUp:        3,
	SequenceInterestedAcceleration: 4,
	SequenceMaybeInterestedNurture: 5,
	SequenceNotInterestedNurture:   6,
}

// IsValid reports whether t is a known sequence type.
func (t SequenceType) IsValid() bool {
	_, ok := sequencePriority[t]
	return ok
}

func (t SequenceType) String() string {
	return string(t)
}

// Outranks reports whether t takes precedence over other when both compete
// for a contact's single active sequence slot.
func (t SequenceType) Outranks(other SequenceType) bool {
	tr, ok := sequencePriority[t]
	if !ok {
		tr = 10
	}
	or, ok := sequencePriority[other]
	if !ok {
		or = 10
	}
	return tr < or
}

// SequenceTypes lists every known sequence type in priority order.
func SequenceTypes() []SequenceType {
	return []SequenceType{
		SequenceMeetingFollowUp,
		SequenceDemoFollowUp,
		SequencePricingFollowUp,
		SequenceInterestedAcceleration,
		SequenceMaybeInterestedNurture,
		SequenceNotInterestedNurture,
	}
}
