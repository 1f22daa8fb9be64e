// Package intent classifies free-text messages before they reach the
// extraction service. Classification order matters: status beats
// delete beats modify, since "Buchung löschen" also mentions a
// booking.
package intent

import (
	"regexp"
	"strings"
)

var statusPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)vergangen.{0,15}fahrt`),
	regexp.MustCompile(`(?i)meine.{0,20}(fahrt|buchung|termin|reservierung)`),
	regexp.MustCompile(`(?i)welche.{0,10}(fahrt|buchung)`),
	regexp.MustCompile(`(?i)(fahrt|buchung|termin).{0,20}eingetragen`),
	regexp.MustCompile(`(?i)schon.{0,15}(gebucht|bestellt|eingetragen|buchung)`),
	regexp.MustCompile(`(?i)bereits.{0,15}(gebucht|bestellt|buchung|fahrt)`),
	regexp.MustCompile(`(?i)wann.{0,15}(fahrt|buchung|termin)`),
	regexp.MustCompile(`(?i)zu wann`),
	regexp.MustCompile(`(?i)(fahrt|buchung).{0,15}(status|stornieren|löschen|absagen)`),
	regexp.MustCompile(`(?i)hab.{0,10}(schon|bereits).{0,10}(fahrt|buchung|bestellt)`),
	regexp.MustCompile(`(?i)zeig.{0,10}(mir.{0,10})?(meine.{0,10})?(fahrt|buchung)`),
	regexp.MustCompile(`(?i)liste.{0,10}(fahrt|buchung)`),
}

var deletePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)^(löschen|stornieren|storno|cancel|absagen|lösch|storniere|abmelden|kündigen)$`),
	regexp.MustCompile(`(?i)(buchung|fahrt|termin).{0,20}(löschen|stornieren|absagen|entfernen|cancel|weg|streichen)`),
	regexp.MustCompile(`(?i)(löschen|stornieren|absagen|storno).{0,20}(buchung|fahrt|termin)`),
}

var modifyPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)^(ändern|umbuchen|änderung|verschieben|verlegen|umändern)$`),
	regexp.MustCompile(`(?i)(buchung|fahrt|termin|uhrzeit|abholung|zeit).{0,25}(ändern|änder|verschieben|verlegen|umbuchen|abändern)`),
	regexp.MustCompile(`(?i)(ändern|umbuchen|verschieben|verlegen|neue uhrzeit|andere uhrzeit).{0,25}(buchung|fahrt|termin)`),
}

var bookingKeywords = regexp.MustCompile(`(?i)\b(taxi|cab|fahrt|abholen|mitnehmen|fahrzeug|fahren|bringen)\b`)

func matchAny(patterns []*regexp.Regexp, text string) bool {
	for _, p := range patterns {
		if p.MatchString(text) {
			return true
		}
	}
	return false
}

// IsStatusQuery reports whether the message asks about existing rides
func IsStatusQuery(text string) bool {
	return matchAny(statusPatterns, strings.ToLower(text))
}

// IsDeleteQuery reports whether the message wants to cancel a ride
func IsDeleteQuery(text string) bool {
	return matchAny(deletePatterns, strings.TrimSpace(strings.ToLower(text)))
}

// IsModifyQuery reports whether the message wants to change a ride
func IsModifyQuery(text string) bool {
	return matchAny(modifyPatterns, strings.TrimSpace(strings.ToLower(text)))
}

// IsObviousBooking reports whether the message clearly asks for a ride
func IsObviousBooking(text string) bool {
	return bookingKeywords.MatchString(text)
}
