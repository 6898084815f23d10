// Package docs resolves the documentation context used to ground sabotage prompts: a live
// library documentation tier with a fallback query, then a static per-skill store.
package docs

import "strings"

// Skill is a canonical skill key.
type Skill string

// Known skills.
const (
	SkillPandas       Skill = "pandas"
	SkillOOPS         Skill = "oops"
	SkillCP           Skill = "cp"
	SkillCryptography Skill = "cryptography"
)

// skillAliases maps lower-cased display names and aliases to canonical keys.
var skillAliases = map[string]Skill{
	"pandas":                  SkillPandas,
	"pd":                      SkillPandas,
	"oops":                    SkillOOPS,
	"oop":                     SkillOOPS,
	"object oriented":         SkillOOPS,
	"cp":                      SkillCP,
	"competitive programming": SkillCP,
	"cryptography":            SkillCryptography,
	"cryptograph":             SkillCryptography,
	"crypto":                  SkillCryptography,
}

// librarySkills maps skills backed by an external documentation site to the library id the
// fetcher understands.
var librarySkills = map[Skill]string{
	SkillPandas: "pandas",
}

// NormalizeSkill maps a user-facing skill name to its canonical key. Matching is
// case-insensitive; unknown names become their trimmed lower-cased form.
func NormalizeSkill(name string) Skill {
	key := strings.ToLower(strings.TrimSpace(name))
	if s, ok := skillAliases[key]; ok {
		return s
	}
	return Skill(key)
}

// Library returns the documentation library id for a skill, if it has one.
func (s Skill) Library() (string, bool) {
	lib, ok := librarySkills[s]
	return lib, ok
}
