package validate

import (
	"context"
	"net"
	"strings"
	"time"
)

// MXResolver matches contacts.MXLookup so handlers can reuse the same resolver.
type MXResolver func(ctx context.Context, domain string) ([]*net.MX, error)

// EmailReport is the scored breakdown returned by ScoreEmail. Score is 0-100;
// the weights mirror how much each check actually predicts deliverability.
type EmailReport struct {
	Valid  bool            `json:"valid"`
	Score  int             `json:"score"`
	Checks map[string]bool `json:"checks"`
	Reason string          `json:"reason,omitempty"`
}

// Domains that hand out throwaway inboxes. Mail sent there is never read.
var disposableDomains = map[string]struct{}{
	"mailinator.com":    {},
	"guerrillamail.com": {},
	"10minutemail.com":  {},
	"tempmail.com":      {},
	"temp-mail.org":     {},
	"yopmail.com":       {},
	"sharklasers.com":   {},
	"trashmail.com":     {},
}

// Role accounts rather than people. Deliverable, but low response rates.
var genericLocalParts = map[string]struct{}{
	"info":    {},
	"contact": {},
	"admin":   {},
	"office":  {},
	"sales":   {},
	"support": {},
	"hello":   {},
	"mail":    {},
	"team":    {},
}

// ScoreEmail grades an address: format 40, MX records 30, not disposable 20,
// not a role account 10. The MX check is advisory and never runs longer than
// two seconds; a resolver failure leaves that check false without failing the
// whole report.
func ScoreEmail(ctx context.Context, email string, lookup MXResolver) EmailReport {
	report := EmailReport{Checks: map[string]bool{
		"format":        false,
		"mxRecords":     false,
		"notDisposable": false,
		"notGeneric":    false,
	}}

	email = strings.ToLower(strings.TrimSpace(email))
	if err := Email(email); err != nil {
		report.Reason = err.Error()
		return report
	}
	report.Checks["format"] = true
	report.Score += 40

	at := strings.LastIndex(email, "@")
	local, domain := email[:at], email[at+1:]

	if _, disposable := disposableDomains[domain]; !disposable {
		report.Checks["notDisposable"] = true
		report.Score += 20
	} else {
		report.Reason = "disposable email domain"
	}

	if _, generic := genericLocalParts[local]; !generic {
		report.Checks["notGeneric"] = true
		report.Score += 10
	}

	if lookup != nil {
		mxCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		if mx, err := lookup(mxCtx, domain); err == nil && len(mx) > 0 {
			report.Checks["mxRecords"] = true
			report.Score += 30
		} else if report.Reason == "" {
			report.Reason = "no MX records found"
		}
	}

	report.Valid = report.Checks["format"] && report.Checks["notDisposable"]
	return report
}
