package reminder

import (
	"fmt"
	"time"
)

// dateFormats are the accepted due-time layouts, tried in order.
var dateFormats = []string{
	"2006-01-02 15:04",
	"2006-01-02 15:04:05",
	"2006/01/02 15:04",
	"02-01-2006 15:04",
	"01/02/2006 15:04",
}

// parseDateTime parses a due time in any of the accepted layouts, in the
// local timezone.
func parseDateTime(s string) (time.Time, error) {
	for _, layout := range dateFormats {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unable to parse datetime %q, use format: YYYY-MM-DD HH:MM", s)
}
