package util

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

const isoDate = "2006-01-02"

var (
	reYearFirst = regexp.MustCompile(`^([12]\d{3})([/-])(1[0-2]|0?[1-9])([/-])(3[01]|[12]\d|0?[1-9])(?:\D|$)`)
	reDayFirst  = regexp.MustCompile(`^(3[01]|[12]\d|0?[1-9])([/-])(1[0-2]|0?[1-9])([/-])([12]\d{3})(?:\D|$)`)
)

// CleanDate recognizes "YYYY-M-D" and "D-M-YYYY" (with "-" or "/", the same
// separator on both sides) at the start of s and returns it as YYYY-MM-DD.
func CleanDate(s string) (string, bool) {
	value := strings.TrimSpace(s)

	if m := reYearFirst.FindStringSubmatch(value); m != nil && m[2] == m[4] {
		return formatISO(m[1], m[3], m[5]), true
	}
	if m := reDayFirst.FindStringSubmatch(value); m != nil && m[2] == m[4] {
		return formatISO(m[5], m[3], m[1]), true
	}
	return "", false
}

func formatISO(year, month, day string) string {
	m, _ := strconv.Atoi(month)
	d, _ := strconv.Atoi(day)
	return fmt.Sprintf("%s-%02d-%02d", year, m, d)
}

// ParseISODate parses a CleanDate result. Calendar-invalid dates such as
// 2024-02-31 are rejected.
func ParseISODate(s string) (*time.Time, bool) {
	t, err := time.Parse(isoDate, s)
	if err != nil {
		return nil, false
	}
	return &t, true
}

// CalculateAge returns whole years between birth and now.
func CalculateAge(birth, now time.Time) int {
	age := now.Year() - birth.Year()
	if now.Month() < birth.Month() || (now.Month() == birth.Month() && now.Day() < birth.Day()) {
		age--
	}
	return age
}
