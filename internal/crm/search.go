// Package crm implements name and phone matching against the customer
// directory. The matching itself is pure so the handlers can be tested
// without a database.
package crm

import (
	"strings"

	"funktaxi/internal/domain"
)

// MaxMatches caps directory search results; more than five matches is
// not useful on a phone keyboard.
const MaxMatches = 5

// SearchByName finds directory entries for a name in three passes:
// exact match, substring match in either direction, then last-name
// match. Each customer appears at most once, pass order decides rank.
func SearchByName(customers []domain.Customer, searchName string) []domain.Customer {
	searchName = strings.ToLower(strings.TrimSpace(searchName))
	if searchName == "" {
		return nil
	}

	seen := make(map[string]bool)
	var results []domain.Customer

	add := func(c domain.Customer) {
		if !seen[c.ID] {
			seen[c.ID] = true
			results = append(results, c)
		}
	}

	// Exact
	for _, c := range customers {
		if len(results) >= MaxMatches {
			break
		}
		if strings.ToLower(c.Name) == searchName {
			add(c)
		}
	}

	// Partial, either direction
	for _, c := range customers {
		if len(results) >= MaxMatches {
			break
		}
		name := strings.ToLower(c.Name)
		if name == "" {
			continue
		}
		if strings.Contains(name, searchName) || strings.Contains(searchName, name) {
			add(c)
		}
	}

	// Last name
	searchLast := lastToken(searchName)
	for _, c := range customers {
		if len(results) >= MaxMatches {
			break
		}
		lastName := lastToken(strings.ToLower(c.Name))
		if len(lastName) <= 2 {
			continue
		}
		if lastName == searchLast || strings.Contains(lastName, searchLast) || strings.Contains(searchLast, lastName) {
			add(c)
		}
	}

	return results
}

func lastToken(s string) string {
	parts := strings.Fields(s)
	if len(parts) == 0 {
		return ""
	}
	return parts[len(parts)-1]
}

// FindByPhone returns the first customer whose phone or mobile ends in
// the last nine digits of the given number. Numbers shorter than six
// digits never match.
func FindByPhone(customers []domain.Customer, phone string) (domain.Customer, bool) {
	digits := digitsOnly(phone)
	if len(digits) <= 5 {
		return domain.Customer{}, false
	}
	suffix := digits
	if len(suffix) > 9 {
		suffix = suffix[len(suffix)-9:]
	}

	for _, c := range customers {
		cDigits := digitsOnly(c.BestPhone())
		if cDigits != "" && strings.HasSuffix(cDigits, suffix) {
			return c, true
		}
	}
	return domain.Customer{}, false
}
