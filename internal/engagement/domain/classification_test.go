package domain

import "testing"

func TestParseClassification(t *testing.T) {
	cases := []struct {
		in   string
		want Classification
	}{
		{"not_interested", NotInterested},
		{"Not Interested", NotInterested},
		{"NOT-INTERESTED", NotInterested},
		{"interested", Interested},
		{"Interested", Interested},
		{"maybe_interested", MaybeInterested},
		{"Maybe", MaybeInterested},
		{"maybe interested", MaybeInterested},
		// Unknown labels degrade to the cautious middle category.
		{"highly engaged", MaybeInterested},
		{"", MaybeInterested},
	}

	for _, tc := range cases {
		if got := ParseClassification(tc.in); got != tc.want {
			t.Fatalf("ParseClassification(%q) = %s, want %s", tc.in, got, tc.want)
		}
	}
}

func TestClassificationIsValid(t *testing.T) {
	for _, c := range []Classification{NotInterested, MaybeInterested, Interested} {
		if !c.IsValid() {
			t.Fatalf("%s should be valid", c)
		}
	}
	if Classification("enthusiastic").IsValid() {
		t.Fatal("unknown classification should be invalid")
	}
}

func TestSequenceTypePriority(t *testing.T) {
	if !SequenceMeetingFollowUp.Outranks(SequenceDemoFollowUp) {
		t.Fatal("meeting follow-up must outrank demo follow-up")
	}
	if !SequenceDemoFollowUp.Outranks(SequencePricingFollowUp) {
		t.Fatal("demo follow-up must outrank pricing follow-up")
	}
	if SequencePricingFollowUp.Outranks(SequenceDemoFollowUp) {
		t.Fatal("pricing follow-up must not outrank demo follow-up")
	}
	if SequenceNotInterestedNurture.Outranks(SequenceNotInterestedNurture) {
		t.Fatal("a type never outranks itself")
	}

	types := SequenceTypes()
	for i := 1; i < len(types); i++ {
		if !types[i-1].Outranks(types[i]) {
			t.Fatalf("SequenceTypes not in priority order at %d: %s vs %s", i, types[i-1], types[i])
		}
	}
}
