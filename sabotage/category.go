// Package sabotage turns a chaos-meter trigger into a single request to a text generator
// that injects a realistic bug into the player's Python code, and recovers the generator's
// structured reply.
package sabotage

import (
	"fmt"
	"strconv"
	"strings"
)

// Category is the bug severity tier requested from the generator.
type Category string

// Categories in ascending difficulty band.
const (
	CategorySyntax   Category = "syntax"
	CategoryLogic    Category = "logic"
	CategorySemantic Category = "semantic"
)

// Difficulty thresholds. A score strictly above a threshold moves up a band.
const (
	logicThreshold    = 33
	semanticThreshold = 66
)

// AllCategories lists every category in ascending difficulty order.
func AllCategories() []Category {
	return []Category{CategorySyntax, CategoryLogic, CategorySemantic}
}

// Classify maps a difficulty score to a category. It accepts any value, including negative
// scores and scores above 100.
func Classify(score float64) Category {
	switch {
	case score > semanticThreshold:
		return CategorySemantic
	case score > logicThreshold:
		return CategoryLogic
	default:
		return CategorySyntax
	}
}

// Valid reports whether c is one of the known categories.
func (c Category) Valid() bool {
	switch c {
	case CategorySyntax, CategoryLogic, CategorySemantic:
		return true
	}
	return false
}

// Upper returns the category name in upper case, as it appears in prompts.
func (c Category) Upper() string {
	return strings.ToUpper(string(c))
}

// ParseCategory accepts a category name ("logic") or a numeric difficulty ("50").
func ParseCategory(s string) (Category, error) {
	s = strings.TrimSpace(s)
	if c := Category(strings.ToLower(s)); c.Valid() {
		return c, nil
	}
	if score, err := strconv.ParseFloat(s, 64); err == nil {
		return Classify(score), nil
	}
	return "", fmt.Errorf("unknown difficulty %q", s)
}
