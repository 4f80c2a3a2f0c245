package normalize

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cast"
	"golang.org/x/text/width"
)

// MinPlausibleYear is the earliest year accepted as-is. Older years are
// data-entry faults and are moved to the processing year.
const MinPlausibleYear = 2010

var (
	slashDate     = regexp.MustCompile(`^(\d{4})/(\d{1,2})/(\d{1,2})$`)
	slashDateTime = regexp.MustCompile(`^(\d{4})/(\d{1,2})/(\d{1,2})\s+(\d{1,2}):(\d{1,2})(?::(\d{1,2}))?$`)
)

// Parser parses cells in a fixed location and counts recovered faults.
type Parser struct {
	loc    *time.Location
	now    func() time.Time
	faults int
}

// NewParser returns a Parser. A nil loc means UTC; a nil now means time.Now.
func NewParser(loc *time.Location, now func() time.Time) *Parser {
	if loc == nil {
		loc = time.UTC
	}
	if now == nil {
		now = time.Now
	}
	return &Parser{loc: loc, now: now}
}

// LoadLocation resolves a timezone name, falling back to UTC.
func LoadLocation(name string) *time.Location {
	if name == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Faults returns the number of non-empty cells that failed to parse.
func (p *Parser) Faults() int { return p.faults }

// Number parses a numeric cell, counting a fault when non-empty input fails.
func (p *Parser) Number(raw string) float64 {
	f, ok := parseNumber(raw)
	if !ok {
		p.faults++
	}
	return f
}

// OptionalNumber is Number but returns nil for a blank cell.
func (p *Parser) OptionalNumber(raw string) *float64 {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	f := p.Number(raw)
	return &f
}

// Date parses a date cell. Recognized shapes, in order: YYYY/M/D,
// YYYY/M/D H:mm[:ss], then any layout the generic parser accepts. The
// result has implausible years repaired by FixOutlierYear.
func (p *Parser) Date(raw string) *time.Time {
	s := strings.TrimSpace(width.Fold.String(raw))
	if s == "" {
		return nil
	}

	t, ok := p.parseSlash(s)
	if !ok {
		parsed, err := cast.ToTimeInDefaultLocationE(s, p.loc)
		if err != nil || parsed.IsZero() {
			p.faults++
			return nil
		}
		t = parsed.In(p.loc)
	}

	fixed := FixOutlierYear(t, p.now().In(p.loc))
	return &fixed
}

func (p *Parser) parseSlash(s string) (time.Time, bool) {
	var parts []string
	if m := slashDate.FindStringSubmatch(s); m != nil {
		parts = m[1:4]
	} else if m := slashDateTime.FindStringSubmatch(s); m != nil {
		parts = m[1:]
	} else {
		return time.Time{}, false
	}

	nums := make([]int, 6)
	for i, part := range parts {
		if part == "" {
			continue
		}
		n, err := strconv.Atoi(part)
		if err != nil {
			return time.Time{}, false
		}
		nums[i] = n
	}
	year, month, day, hour, minute, sec := nums[0], nums[1], nums[2], nums[3], nums[4], nums[5]
	if month < 1 || month > 12 || hour > 23 || minute > 59 || sec > 59 {
		return time.Time{}, false
	}

	t := time.Date(year, time.Month(month), day, hour, minute, sec, 0, p.loc)
	// Reject days that time.Date would roll into the next month.
	if t.Day() != day {
		return time.Time{}, false
	}
	return t, true
}

// FixOutlierYear moves t into now's year when t.Year() < MinPlausibleYear,
// keeping month, day and time of day. Feb 29 becomes Feb 28 when the target
// year is not a leap year.
func FixOutlierYear(t, now time.Time) time.Time {
	if t.Year() >= MinPlausibleYear {
		return t
	}
	year := now.Year()
	day := t.Day()
	if t.Month() == time.February && day == 29 && !isLeap(year) {
		day = 28
	}
	return time.Date(year, t.Month(), day, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}

func isLeap(year int) bool {
	return year%4 == 0 && (year%100 != 0 || year%400 == 0)
}
