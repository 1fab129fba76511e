// internal/workers/application/send-notification/templates.go
package sendnotification

import (
	"fmt"
	"strings"

	"loan-origination/internal/models"
)

// templates are keyed by the status the application moved to. Only final
// decisions carry an SMS body.
var templates = map[models.ApplicationStatus]models.NotificationTemplate{
	models.StatusSubmitted: {
		Type:    "application_submitted",
		Subject: "We received your loan application",
		Body:    "Hi {{firstName}}, thank you! Your application {{applicationId}} has been submitted and will be reviewed shortly.",
	},
	models.StatusUnderReview: {
		Type:    "application_under_review",
		Subject: "Your loan application is under review",
		Body:    "Hi {{firstName}}, a loan officer has started reviewing application {{applicationId}}. We may contact you for more details.",
	},
	models.StatusApproved: {
		Type:     "application_approved",
		Subject:  "Your loan application was approved",
		Body:     "Hi {{firstName}}, good news! Application {{applicationId}} has been approved. {{notes}}",
		HTMLBody: "<p>Hi {{firstName}},</p><p>Good news! Application <b>{{applicationId}}</b> has been approved.</p><p>{{notes}}</p>",
		SMSBody:  "Your loan application {{applicationId}} was approved. Check your email for next steps.",
	},
	models.StatusRejected: {
		Type:     "application_rejected",
		Subject:  "An update on your loan application",
		Body:     "Hi {{firstName}}, after careful review we are unable to approve application {{applicationId}} at this time. {{notes}}",
		HTMLBody: "<p>Hi {{firstName}},</p><p>After careful review we are unable to approve application <b>{{applicationId}}</b> at this time.</p><p>{{notes}}</p>",
		SMSBody:  "There is an update on loan application {{applicationId}}. Check your email for details.",
	},
	models.StatusCompleted: {
		Type:    "application_completed",
		Subject: "Your loan is complete",
		Body:    "Hi {{firstName}}, application {{applicationId}} is complete. Thank you for choosing us.",
	},
}

// renderTemplate substitutes {{key}} placeholders and drops unknown ones.
func renderTemplate(tmpl string, data map[string]interface{}) string {
	result := tmpl

	for k, v := range data {
		placeholder := "{{" + k + "}}"
		value := ""
		if s, ok := v.(string); ok {
			value = s
		} else if v != nil {
			value = fmt.Sprintf("%v", v)
		}
		result = strings.ReplaceAll(result, placeholder, value)
	}

	for {
		start := strings.Index(result, "{{")
		if start == -1 {
			break
		}
		end := strings.Index(result[start:], "}}")
		if end == -1 {
			break
		}
		end += start + 2
		result = result[:start] + result[end:]
	}

	return strings.TrimSpace(result)
}

// toE164 normalizes a US phone number for SNS. It returns "" when the number
// cannot be normalized.
func toE164(phone string) string {
	var digits strings.Builder
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
		}
	}
	d := digits.String()

	switch {
	case len(d) == 10:
		return "+1" + d
	case len(d) == 11 && d[0] == '1':
		return "+" + d
	default:
		return ""
	}
}
