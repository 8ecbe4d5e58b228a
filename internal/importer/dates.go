package importer

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// months maps English and Spanish month names and 3-letter abbreviations to
// the month number. Abbreviations that coincide across the two languages
// appear once.
var months = map[string]time.Month{
	"jan": time.January, "january": time.January,
	"feb": time.February, "february": time.February,
	"mar": time.March, "march": time.March, "marzo": time.March,
	"apr": time.April, "april": time.April,
	"may": time.May, "mayo": time.May,
	"jun": time.June, "june": time.June, "junio": time.June,
	"jul": time.July, "july": time.July, "julio": time.July,
	"aug": time.August, "august": time.August,
	"sep": time.September, "september": time.September, "septiembre": time.September,
	"oct": time.October, "october": time.October, "octubre": time.October,
	"nov": time.November, "november": time.November, "noviembre": time.November,
	"dec": time.December, "december": time.December,

	// Spanish forms that differ from English
	"ene": time.January, "enero": time.January,
	"febrero": time.February,
	"abr":     time.April, "abril": time.April,
	"ago": time.August, "agosto": time.August,
	"dic": time.December, "diciembre": time.December,
}

var dateSeparators = regexp.MustCompile(`[\s\-/.,]+`)

// ParseConnectedOn parses LinkedIn's "Connected On" column: day, month name
// (English or Spanish, full or 3-letter), year, in that order, separated by
// any mix of space, "-", "/", "." or ",". Returns the ISO date (YYYY-MM-DD).
// February 29 is accepted only on leap years.
func ParseConnectedOn(raw string) (string, error) {
	s := strings.ToLower(strings.TrimSpace(raw))
	if s == "" {
		return "", fmt.Errorf("empty date")
	}

	parts := dateSeparators.Split(s, -1)
	fields := parts[:0]
	for _, p := range parts {
		if p != "" {
			fields = append(fields, p)
		}
	}
	if len(fields) != 3 {
		return "", fmt.Errorf("expected day month year, got %q", raw)
	}

	day, err := strconv.Atoi(fields[0])
	if err != nil || day < 1 || day > 31 {
		return "", fmt.Errorf("invalid day %q", fields[0])
	}

	month, ok := months[fields[1]]
	if !ok {
		return "", fmt.Errorf("unknown month %q", fields[1])
	}

	year, err := strconv.Atoi(fields[2])
	if err != nil || year < 1900 || year > 2100 {
		return "", fmt.Errorf("invalid year %q", fields[2])
	}

	if day > daysIn(month, year) {
		return "", fmt.Errorf("day %d out of range for %s %d", day, fields[1], year)
	}

	return fmt.Sprintf("%04d-%02d-%02d", year, int(month), day), nil
}

func daysIn(m time.Month, year int) int {
	switch m {
	case time.April, time.June, time.September, time.November:
		return 30
	case time.February:
		if isLeap(year) {
			return 29
		}
		return 28
	default:
		return 31
	}
}

func isLeap(year int) bool {
	return year%4 == 0 && (year%100 != 0 || year%400 == 0)
}
