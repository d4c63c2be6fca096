package sequences

import (
	"regexp"
	"strings"

	"replyflow_backend/internal/engagement/domain"
)

var templateVarRe = regexp.MustCompile(`\{([a-z_]+)\}`)

// RenderTemplate substitutes {variable} placeholders from vars. Unknown
// placeholders render as empty strings so a missing personalization field
// never leaks braces into an outbound email.
func RenderTemplate(template string, vars map[string]string) string {
	return templateVarRe.ReplaceAllStringFunc(template, func(match string) string {
		name := match[1 : len(match)-1]
		return vars[name]
	})
}

// PersonalizationVars builds the substitution set for a contact.
func PersonalizationVars(contact domain.Contact) map[string]string {
	firstName := contact.FirstName
	if firstName == "" {
		firstName = "there"
	}
	company := contact.Company
	if company == "" {
		company = "your team"
	}
	return map[string]string{
		"first_name":   firstName,
		"company_name": company,
		"full_name":    contact.FullName(),
	}
}

// bodyTemplates maps template keys to step body content. Keys without an
// entry fall back to a generic follow-up body.
var bodyTemplates = map[string]string{
	"not_interested_nurture_1": `Hi {first_name},

I hope you're doing well. I know you mentioned you weren't interested in our solution right now, and I completely respect that.

I wanted to share a quick industry insight that might be relevant to {company_name}. We've been seeing some interesting trends that could impact your business.

No need to respond - just thought you might find it useful.

Best regards`,

	"not_interested_nurture_2": `Hi {first_name},

We recently shipped a feature that several teams like {company_name} asked for, and I thought of you.

If the timing is ever better, I'd be happy to walk you through it.

Best regards`,

	"not_interested_nurture_3": `Hi {first_name},

Just a quarterly check-in - no agenda. If priorities at {company_name} have shifted, I'm here.

Best regards`,

	"maybe_interested_follow_1": `Hi {first_name},

Thanks for your response! I wanted to follow up on the questions you raised about our solution and make sure you have what you need.

Best regards`,

	"maybe_interested_follow_2": `Hi {first_name},

Thought you might find this helpful as you evaluate options for {company_name}. Happy to answer anything that comes up.

Best regards`,

	"maybe_interested_follow_3": `Hi {first_name},

Quick check-in about your needs - has anything changed on your side since we last spoke?

Best regards`,

	"maybe_interested_follow_4": `Hi {first_name},

Is now a better time? If not, no worries - I'll leave it with you.

Best regards`,

	"interested_immediate_follow": `Hi {first_name},

Thank you for expressing interest in our solution! I'm excited to help {company_name} move forward.

Based on your response, I think the next step would be to schedule a brief call to discuss your specific needs.

Which of the next few days works better for you?

Best regards`,

	"interested_follow_2": `Hi {first_name},

Following up so we can get our conversation scheduled - I have several slots open this week.

Best regards`,

	"interested_follow_3": `Hi {first_name},

I don't want {company_name} to lose momentum on this. Can we lock in a time this week?

Best regards`,

	"demo_immediate_follow": `Hi {first_name},

Great to hear you're interested in seeing a demo! I'd love to show you exactly how our solution can benefit {company_name}.

I can prepare a customized demo focused on your use case. It typically takes about 30 minutes.

When would be a good time for you?

Best regards`,

	"demo_follow_2": `Hi {first_name},

Sharing a few demo options and availability for this week - happy to work around your schedule.

Best regards`,

	"demo_follow_3": `Hi {first_name},

If a live demo is hard to schedule, I can send a short recorded walkthrough instead. Would that help?

Best regards`,

	"pricing_immediate_follow": `Hi {first_name},

Thank you for your interest in our pricing! I'd be happy to provide detailed pricing tailored to {company_name}'s needs.

To give you the most accurate quote, it would help to know your team size and the features that matter most.

Best regards`,

	"pricing_follow_2": `Hi {first_name},

I've put together a custom pricing proposal for {company_name}. Want me to send it over, or walk through it on a call?

Best regards`,

	"pricing_follow_3": `Hi {first_name},

Any questions about our pricing? Happy to clarify anything.

Best regards`,

	"meeting_confirmation": `Hi {first_name},

Confirming our meeting - looking forward to it. Let me know if anything changes.

Best regards`,

	"meeting_day_reminder": `Hi {first_name},

Looking forward to our call today!

Best regards`,

	"meeting_follow_up": `Hi {first_name},

Thank you for your time yesterday. I'll follow up with the materials we discussed.

Best regards`,
}

const defaultBodyTemplate = `Hi {first_name},

Just following up on our conversation. Let me know if there's anything I can help with.

Best regards`

// BodyTemplate returns the body content for a template key.
func BodyTemplate(key string) string {
	if body, ok := bodyTemplates[key]; ok {
		return body
	}
	return defaultBodyTemplate
}

// RenderStep renders the subject and body of one step for a contact.
func RenderStep(step Step, contact domain.Contact) (subject, body string) {
	vars := PersonalizationVars(contact)
	subject = strings.TrimSpace(RenderTemplate(step.SubjectTemplate, vars))
	body = strings.TrimSpace(RenderTemplate(BodyTemplate(step.TemplateKey), vars)) + "\n"
	return subject, body
}
