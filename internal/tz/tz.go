// Package tz converts vendor timestamps into the exchange-local zone.
package tz

import (
	"strings"
	"time"
	_ "time/tzdata"

	"mdingest/pkg/exception"

	"github.com/yanun0323/errors"
)

// ExchangeZone is the zone every event time is expressed in.
const ExchangeZone = "America/New_York"

var exchangeLoc = mustLoad(ExchangeZone)

// naive layouts carry no offset, so time.Parse yields UTC.
var naiveLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

func mustLoad(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		panic(err)
	}
	return loc
}

// Exchange returns the exchange-local location.
func Exchange() *time.Location {
	return exchangeLoc
}

// Load resolves a zone name, falling back to the exchange zone when name is empty.
func Load(name string) (*time.Location, error) {
	if strings.TrimSpace(name) == "" {
		return exchangeLoc, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, errors.Wrapf(exception.ErrInvalidConfig, "load location %q, err: %+v", name, err)
	}
	return loc, nil
}

// Normalize expresses t in loc (the exchange zone when loc is nil).
func Normalize(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = exchangeLoc
	}
	return t.In(loc)
}

// ParseISO parses an ISO-8601 timestamp with any fractional precision.
// A timestamp without an offset is treated as UTC.
func ParseISO(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, errors.Wrap(exception.ErrInvalidArgument, "empty timestamp")
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, nil
	}
	for _, layout := range naiveLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, errors.Wrapf(exception.ErrInvalidArgument, "unparseable timestamp %q", s)
}
