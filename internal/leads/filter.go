package leads

import (
	"math"
	"strings"
)

// Filter returns the leads matching term. Text fields match case-insensitively,
// phone and CNPJ match the raw term. An empty term returns leads unchanged.
func Filter(leads []Lead, term string) []Lead {
	if term == "" {
		return leads
	}
	lower := strings.ToLower(term)
	out := make([]Lead, 0, len(leads))
	for _, lead := range leads {
		if Matches(lead, term, lower) {
			out = append(out, lead)
		}
	}
	return out
}

// Matches reports whether lead satisfies the search term. lower must be
// strings.ToLower(term).
func Matches(lead Lead, term, lower string) bool {
	switch {
	case strings.Contains(strings.ToLower(lead.Name), lower),
		strings.Contains(strings.ToLower(lead.Email), lower),
		strings.Contains(strings.ToLower(lead.Segment), lower),
		strings.Contains(strings.ToLower(lead.TaxRegime), lower):
		return true
	case lead.Phone != nil && strings.Contains(*lead.Phone, term):
		return true
	case lead.TaxID != nil && strings.Contains(*lead.TaxID, term):
		return true
	}
	return false
}

// Summary aggregates the active/inactive split of a lead view.
type Summary struct {
	Total           int `json:"total"`
	Active          int `json:"active"`
	Inactive        int `json:"inactive"`
	ActivePercent   int `json:"activePercent"`
	InactivePercent int `json:"inactivePercent"`
}

// Stats computes the Summary of leads.
func Stats(leads []Lead) Summary {
	s := Summary{Total: len(leads)}
	for _, lead := range leads {
		if lead.Active {
			s.Active++
		} else {
			s.Inactive++
		}
	}
	if s.Total > 0 {
		s.ActivePercent = int(math.Round(float64(s.Active) / float64(s.Total) * 100))
		s.InactivePercent = int(math.Round(float64(s.Inactive) / float64(s.Total) * 100))
	}
	return s
}
