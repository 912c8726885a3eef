package dataprocessing

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"barrace/pkg/contracts/domain"
)

// dateLayouts maps each supported format to the Go layout used to parse it.
// Single-digit layout tokens accept both "1" and "01".
var dateLayouts = map[domain.DateFormat]string{
	domain.DateFormatISO:       "2006-1-2",
	domain.DateFormatYearMonth: "2006-1",
	domain.DateFormatYear:      "2006",
	domain.DateFormatUS:        "1/2/2006",
	domain.DateFormatEU:        "2/1/2006",
	domain.DateFormatMonthYear: "1/2006",
}

type datePattern struct {
	format domain.DateFormat
	re     *regexp.Regexp
}

// datePatterns is checked in order; the first match decides the format.
// DD/MM/YYYY has the same shape as MM/DD/YYYY and is only chosen by
// refineDayMonthOrder.
var datePatterns = []datePattern{
	{domain.DateFormatISO, regexp.MustCompile(`^\d{4}-\d{1,2}-\d{1,2}$`)},
	{domain.DateFormatYearMonth, regexp.MustCompile(`^\d{4}-\d{1,2}$`)},
	{domain.DateFormatUS, regexp.MustCompile(`^\d{1,2}/\d{1,2}/\d{4}$`)},
	{domain.DateFormatMonthYear, regexp.MustCompile(`^\d{1,2}/\d{4}$`)},
	{domain.DateFormatYear, regexp.MustCompile(`^\d{4}$`)},
}

// MatchDateFormat returns the format whose pattern matches value.
func MatchDateFormat(value string) (domain.DateFormat, bool) {
	v := strings.TrimSpace(value)
	for _, p := range datePatterns {
		if p.re.MatchString(v) {
			return p.format, true
		}
	}
	return "", false
}

// EstimateDateFormat matches the first non-empty sample, then checks every
// sample for day-first dates. DefaultDateFormat when nothing matches.
func EstimateDateFormat(samples []string) domain.DateFormat {
	for _, s := range samples {
		if strings.TrimSpace(s) == "" {
			continue
		}
		if f, ok := MatchDateFormat(s); ok {
			return refineDayMonthOrder(f, samples)
		}
		break
	}
	return domain.DefaultDateFormat
}

// ParseDate parses value with exactly the layout of format, in UTC.
func ParseDate(value string, format domain.DateFormat) (time.Time, error) {
	layout, ok := dateLayouts[format]
	if !ok {
		return time.Time{}, fmt.Errorf("unsupported date format %q", format)
	}
	v := strings.TrimSpace(value)
	if v == "" {
		return time.Time{}, fmt.Errorf("empty date")
	}
	t, err := time.ParseInLocation(layout, v, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("date %q does not match %s", v, format)
	}
	return t, nil
}

// refineDayMonthOrder switches MM/DD/YYYY to DD/MM/YYYY when a sampled value
// has a first component that cannot be a month.
func refineDayMonthOrder(format domain.DateFormat, samples []string) domain.DateFormat {
	if format != domain.DateFormatUS {
		return format
	}
	for _, s := range samples {
		parts := strings.Split(strings.TrimSpace(s), "/")
		if len(parts) != 3 {
			continue
		}
		first, err := strconv.Atoi(parts[0])
		if err != nil {
			continue
		}
		if first > 12 {
			return domain.DateFormatEU
		}
	}
	return format
}
