package docs

import "strings"

// DefaultFallbackQuery is retried against the live tier when the first query finds nothing.
const DefaultFallbackQuery = "common errors"

// queryRule selects a canned query when any marker occurs in the lower-cased code.
type queryRule struct {
	markers []string
	query   string
}

// queryRules are evaluated in order; the first match wins. The list is a heuristic over
// common library vocabulary, not a parser.
var queryRules = []queryRule{
	{markers: []string{"pandas", "dataframe"}, query: "DataFrame common errors"},
	{markers: []string{"merge", "join"}, query: "merge join"},
	{markers: []string{"groupby"}, query: "groupby"},
}

// QueryFromCode derives a short documentation query from the player's code.
func QueryFromCode(code, skill string) string {
	if NormalizeSkill(skill) == SkillPandas {
		return queryRules[0].query
	}
	lower := strings.ToLower(code)
	for _, rule := range queryRules {
		for _, marker := range rule.markers {
			if strings.Contains(lower, marker) {
				return rule.query
			}
		}
	}
	return DefaultFallbackQuery
}
