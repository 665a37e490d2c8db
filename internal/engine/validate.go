package engine

import (
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"
)

const dateLayout = "02/01/2006"

var (
	phonePattern      = regexp.MustCompile(`^\+\d{1,3}\d{9}$`)
	identifierPattern = regexp.MustCompile(`^[A-Z0-9][A-Z0-9/-]{2,31}$`)
	phoneSeparators   = strings.NewReplacer(" ", "", "-", "", "(", "", ")", "")
)

// parseDate accepts DD/MM/YYYY with or without leading zeros.
func parseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range []string{dateLayout, "2/1/2006"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// ageOn returns completed years between birth and now's calendar date.
func ageOn(birth, now time.Time) int {
	age := now.Year() - birth.Year()
	if now.Month() < birth.Month() || (now.Month() == birth.Month() && now.Day() < birth.Day()) {
		age--
	}
	return age
}

// parseDOB validates a date of birth and returns it normalized with the age.
func parseDOB(s string, now time.Time) (string, int, bool) {
	t, ok := parseDate(s)
	if !ok {
		return "", 0, false
	}
	age := ageOn(t, now)
	if age < 0 || age > 120 {
		return "", 0, false
	}
	return t.Format(dateLayout), age, true
}

// parsePhone accepts international numbers such as +263771234567,
// ignoring spaces, dashes and brackets.
func parsePhone(s string) (string, bool) {
	p := phoneSeparators.Replace(strings.TrimSpace(s))
	if !phonePattern.MatchString(p) {
		return "", false
	}
	return p, true
}

// parseIdentifier normalizes an ID or passport number to upper case
// without inner spaces.
func parseIdentifier(s string) (string, bool) {
	id := strings.ToUpper(strings.Join(strings.Fields(s), ""))
	if !identifierPattern.MatchString(id) {
		return "", false
	}
	return id, true
}

// parseName accepts a name of up to 50 characters containing a letter.
func parseName(s string) (string, bool) {
	name := strings.Join(strings.Fields(s), " ")
	if name == "" || len([]rune(name)) > 50 {
		return "", false
	}
	for _, r := range name {
		if unicode.IsLetter(r) {
			return name, true
		}
	}
	return "", false
}

// parseFullName splits "First Last..." into first name and the rest.
func parseFullName(s string) (string, string, bool) {
	name, ok := parseName(s)
	if !ok {
		return "", "", false
	}
	first, last, found := strings.Cut(name, " ")
	if !found || strings.TrimSpace(last) == "" {
		return "", "", false
	}
	return first, last, true
}

// parseCount accepts a small non-negative whole number.
func parseCount(s string, limit int) (string, bool) {
	s = strings.TrimSpace(s)
	if !isDigits(s) {
		return "", false
	}
	n, err := strconv.Atoi(s)
	if err != nil || n > limit {
		return "", false
	}
	return strconv.Itoa(n), true
}

// parseYesNo maps yes/no answers, typed or tapped, to "Yes" or "No".
func parseYesNo(command string) (string, bool) {
	switch command {
	case "yes", "y", "yebo", "hongu":
		return "Yes", true
	case "no", "n", "kwete", "aiwa":
		return "No", true
	}
	return "", false
}

// isDigits reports whether s is a non-empty run of ASCII digits.
func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
