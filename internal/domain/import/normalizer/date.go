package normalizer

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Statement date layouts.
const (
	LayoutDaySlash    = "02/01/2006"
	LayoutDayDash     = "02-01-2006"
	LayoutISODate     = "2006-01-02"
	LayoutISODateTime = "2006-01-02 15:04:05"
)

// ErrInvalidDate is returned when no layout matches.
var ErrInvalidDate = errors.New("invalid date")

// ParseDate tries layouts in order and returns the first successful parse,
// interpreted in loc. A nil loc means UTC.
func ParseDate(raw string, loc *time.Location, layouts ...string) (time.Time, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return time.Time{}, fmt.Errorf("%w: empty", ErrInvalidDate)
	}
	if loc == nil {
		loc = time.UTC
	}
	for _, layout := range layouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, raw)
}
