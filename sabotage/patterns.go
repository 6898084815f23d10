package sabotage

import (
	"math/rand/v2"
)

// ChaosPattern is a named bug-injection tactic handed to the generator as guidance.
type ChaosPattern struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Registry groups chaos patterns by category. It is read-only after construction and safe
// for concurrent use.
type Registry struct {
	patterns map[Category][]ChaosPattern
}

var defaultPatterns = map[Category][]ChaosPattern{
	CategorySyntax: {
		{Name: "Missing Colon", Description: "Drop the colon at the end of a def, if, for, while or class header"},
		{Name: "Unbalanced Bracket", Description: "Remove or add a single closing parenthesis, bracket or brace"},
		{Name: "Indentation Drift", Description: "Shift one line of a block by a few spaces so it no longer aligns"},
		{Name: "Keyword Typo", Description: "Misspell a keyword or builtin, e.g. 'retrun', 'esle', 'pirnt'"},
		{Name: "Broken String", Description: "Leave a string literal unterminated or mix quote styles"},
	},
	CategoryLogic: {
		{Name: "Off By One", Description: "Shift a range bound or slice index by one"},
		{Name: "Inverted Condition", Description: "Negate a comparison or swap < for <= in a guard"},
		{Name: "Wrong Operator", Description: "Swap an arithmetic or boolean operator for a plausible neighbour (+/-, and/or)"},
		{Name: "Early Return", Description: "Return or break one iteration too soon inside a loop"},
		{Name: "Shadowed Variable", Description: "Reuse a variable name so an outer value is silently overwritten"},
	},
	CategorySemantic: {
		{Name: "Mutable Default", Description: "Introduce a shared mutable default argument or class attribute"},
		{Name: "Aliasing Copy", Description: "Replace a copy with a reference so later mutation leaks back"},
		{Name: "Division Semantics", Description: "Swap // for / or change rounding so results drift on some inputs"},
		{Name: "Wrong Join Key", Description: "Merge or join on a subtly wrong key or with the wrong 'how'"},
		{Name: "Silent Type Coercion", Description: "Compare or sort values as strings instead of numbers"},
	},
}

// DefaultRegistry returns the built-in tactic table.
func DefaultRegistry() *Registry {
	return NewRegistry(defaultPatterns)
}

// NewRegistry builds a registry from a category table. Categories with no patterns are
// dropped so every lookup that succeeds yields a non-empty list.
func NewRegistry(table map[Category][]ChaosPattern) *Registry {
	r := &Registry{patterns: make(map[Category][]ChaosPattern, len(table))}
	for cat, list := range table {
		if len(list) == 0 {
			continue
		}
		r.patterns[cat] = append([]ChaosPattern(nil), list...)
	}
	return r
}

// Categories lists the categories that have patterns, in ascending difficulty.
func (r *Registry) Categories() []Category {
	var out []Category
	for _, c := range AllCategories() {
		if _, ok := r.patterns[c]; ok {
			out = append(out, c)
		}
	}
	return out
}

// Patterns returns a copy of the patterns for a category.
func (r *Registry) Patterns(cat Category) []ChaosPattern {
	return append([]ChaosPattern(nil), r.patterns[cat]...)
}

// All returns a copy of the full table, keyed by category.
func (r *Registry) All() map[Category][]ChaosPattern {
	out := make(map[Category][]ChaosPattern, len(r.patterns))
	for cat, list := range r.patterns {
		out[cat] = append([]ChaosPattern(nil), list...)
	}
	return out
}

// Pick draws a pattern uniformly at random for the category.
// Unknown categories fall back to the syntax list.
func (r *Registry) Pick(cat Category) ChaosPattern {
	list := r.list(cat)
	return list[rand.IntN(len(list))]
}

// PickWith is Pick with an explicit random source.
func (r *Registry) PickWith(cat Category, rng *rand.Rand) ChaosPattern {
	list := r.list(cat)
	return list[rng.IntN(len(list))]
}

func (r *Registry) list(cat Category) []ChaosPattern {
	if list, ok := r.patterns[cat]; ok {
		return list
	}
	if list, ok := r.patterns[CategorySyntax]; ok {
		return list
	}
	// A registry built from an empty table still has to return something.
	return defaultPatterns[CategorySyntax]
}
