package core

import (
	"strings"
	"time"

	"cloud.google.com/go/civil"
)

// CleanString trims all leading and trailing whitespace in `s` and optionally lowers it.
func CleanString(s string, lower ...bool) string {
	s = strings.TrimSpace(s)
	if len(lower) > 0 && lower[0] {
		return strings.ToLower(s)
	}
	return s
}

var NowFunc = time.Now // mockable

// Today returns the current calendar date in loc.
func Today(loc *time.Location) civil.Date {
	return civil.DateOf(NowFunc().In(loc))
}
