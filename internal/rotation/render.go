package rotation

import (
	"regexp"
	"strings"

	"cadence/internal/tenant"
)

var tokenRe = regexp.MustCompile(`(?i)\{(location|city|state|neighborhood)\}`)

// Render substitutes location tokens into a template body. Matching is
// case-insensitive; unknown tokens and tokens whose location field is empty
// pass through unchanged.
func Render(body string, loc tenant.Location) string {
	return tokenRe.ReplaceAllStringFunc(body, func(m string) string {
		var v string
		switch strings.ToLower(m[1 : len(m)-1]) {
		case "location":
			v = loc.Name
		case "city":
			v = loc.City
		case "state":
			v = loc.State
		case "neighborhood":
			v = loc.Neighborhood
		}
		if v == "" {
			return m
		}
		return v
	})
}
