package schedule

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/dukerupert/huddle/internal/model"
)

var (
	clock12Regexp = regexp.MustCompile(`^(\d{1,2}):([0-5]\d)\s*([AaPp][Mm])$`)
	clock24Regexp = regexp.MustCompile(`^([01]?\d|2[0-3]):([0-5]\d)$`)
)

// ParseClock converts a "H:MM AM/PM" or "HH:MM" string into minutes after midnight.
func ParseClock(s string) (int, bool) {
	s = strings.TrimSpace(s)
	if m := clock12Regexp.FindStringSubmatch(s); m != nil {
		hour, _ := strconv.Atoi(m[1])
		minute, _ := strconv.Atoi(m[2])
		if hour < 1 || hour > 12 {
			return 0, false
		}
		hour %= 12
		if strings.EqualFold(m[3], "PM") {
			hour += 12
		}
		return hour*60 + minute, true
	}
	if m := clock24Regexp.FindStringSubmatch(s); m != nil {
		hour, _ := strconv.Atoi(m[1])
		minute, _ := strconv.Atoi(m[2])
		return hour*60 + minute, true
	}
	return 0, false
}

// FormatClock renders minutes after midnight in the requested format.
func FormatClock(minutes int, format model.TimeFormat) string {
	minutes = ((minutes % (24 * 60)) + 24*60) % (24 * 60)
	hour, minute := minutes/60, minutes%60
	if format == model.TimeFormat24h {
		return fmt.Sprintf("%02d:%02d", hour, minute)
	}
	suffix := "AM"
	if hour >= 12 {
		suffix = "PM"
	}
	h12 := hour % 12
	if h12 == 0 {
		h12 = 12
	}
	return fmt.Sprintf("%d:%02d %s", h12, minute, suffix)
}

// ConvertClock re-renders s in the requested format. Unparseable input is
// returned unchanged.
func ConvertClock(s string, format model.TimeFormat) string {
	minutes, ok := ParseClock(s)
	if !ok {
		return s
	}
	return FormatClock(minutes, format)
}
