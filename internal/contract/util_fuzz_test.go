package contract

import (
	"regexp"
	"testing"
	"time"
)

var safeName = regexp.MustCompile(`^[a-zA-Z0-9._-]*$`)

// FuzzSanitizeName fuzzes SanitizeName with arbitrary repository names.
func FuzzSanitizeName(f *testing.F) {
	seeds := []string{
		"spring-projects/spring-boot",
		"apache/commons-lang",
		"weird name/with spaces",
		"ünïcödé/repo",
		"",
		"../../etc/passwd",
	}
	for _, seed := range seeds {
		f.Add(seed)
	}

	f.Fuzz(func(t *testing.T, name string) {
		out := SanitizeName(name)
		if !safeName.MatchString(out) {
			t.Errorf("SanitizeName(%q) = %q contains unsafe characters", name, out)
		}
		if SanitizeName(out) != out {
			t.Errorf("SanitizeName is not idempotent for %q", name)
		}
	})
}

// FuzzYearsBetween fuzzes YearsBetween with arbitrary unix timestamps.
func FuzzYearsBetween(f *testing.F) {
	f.Add(int64(0), int64(86400*365*3))
	f.Add(int64(1700000000), int64(1600000000))
	f.Add(int64(951782400), int64(1709164800)) // leap days

	f.Fuzz(func(t *testing.T, start, end int64) {
		s := time.Unix(start%(1<<40), 0).UTC()
		e := time.Unix(end%(1<<40), 0).UTC()
		years := YearsBetween(s, e)
		if years < 0 {
			t.Errorf("YearsBetween(%v, %v) = %d, want >= 0", s, e, years)
		}
		if years > 0 && s.AddDate(years, 0, 0).After(e) {
			t.Errorf("YearsBetween(%v, %v) = %d overshoots", s, e, years)
		}
	})
}
