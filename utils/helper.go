package utils

import (
	"strings"
	"time"
)

func NewTrue() *bool {
	b := true
	return &b
}

func NewFalse() *bool {
	b := false
	return &b
}

func UniqueSlice[T comparable](slice []T) []T {
	seen := make(map[T]struct{}, len(slice))
	result := make([]T, 0, len(slice))
	for _, v := range slice {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		result = append(result, v)
	}
	return result
}

func DereferencePtr[T any](ptr *T, defaults ...T) T {
	if ptr != nil {
		return *ptr
	}
	var zero T
	if len(defaults) > 0 {
		return defaults[0]
	}
	return zero
}

func NilIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// NormalizeCode trims and upper-cases a master code.
func NormalizeCode(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

// DateOf drops the clock part of t as seen in loc and returns UTC midnight of that calendar day.
func DateOf(t time.Time, loc *time.Location) time.Time {
	if loc != nil {
		t = t.In(loc)
	}
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// Today is the current calendar date in loc.
func Today(loc *time.Location) time.Time {
	return DateOf(time.Now(), loc)
}

// EscapeLike escapes LIKE metacharacters with '!' (used as the ESCAPE character).
func EscapeLike(s string) string {
	r := strings.NewReplacer("!", "!!", "%", "!%", "_", "!_")
	return r.Replace(s)
}
