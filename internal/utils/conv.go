package utils

import (
	"strconv"
)

// StringToInt converts string to int, returns 0 if error
func StringToInt(s string) int {
	i, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return i
}

// ParsePage converts a page query parameter to a 1-based page number.
// Empty, malformed or non-positive input means page 1.
func ParsePage(s string) int {
	p := StringToInt(s)
	if p < 1 {
		return 1
	}
	return p
}
