package util

import (
	"errors"
	"regexp"
)

// ErrSlurs is returned when a field that cannot be redacted contains filtered terms.
var ErrSlurs = errors.New("contains filtered terms")

const removedMarker = "*removed*"

func CheckSlurs(text string, filter *regexp.Regexp) error {
	if filter != nil && filter.MatchString(text) {
		return ErrSlurs
	}
	return nil
}

// CheckSlursAll checks every field and returns the first failure.
func CheckSlursAll(filter *regexp.Regexp, texts ...string) error {
	for _, t := range texts {
		if err := CheckSlurs(t, filter); err != nil {
			return err
		}
	}
	return nil
}

// RemoveSlurs redacts filtered terms in free-form content.
func RemoveSlurs(text string, filter *regexp.Regexp) string {
	if filter == nil {
		return text
	}
	return filter.ReplaceAllString(text, removedMarker)
}
