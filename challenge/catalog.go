// Package challenge holds the starter programs offered to players, indexed by skill and
// difficulty band.
package challenge

import (
	"embed"
	"fmt"
	"io/fs"
	"math/rand/v2"
	"path"
	"sort"

	"github.com/c360studio/coderonin/docs"
	"github.com/c360studio/coderonin/sabotage"
	"gopkg.in/yaml.v3"
)

//go:embed catalog.yaml templates/*.py
var embedded embed.FS

// Template is one starter program.
type Template struct {
	ID       string            `json:"id"`
	Skill    docs.Skill        `json:"skill"`
	Category sabotage.Category `json:"category"`
	DocQuery string            `json:"docQuery,omitempty"`
	Code     string            `json:"code"`
}

type catalogFile struct {
	Challenges []struct {
		ID       string `yaml:"id"`
		Skill    string `yaml:"skill"`
		Category string `yaml:"category"`
		DocQuery string `yaml:"doc_query"`
	} `yaml:"challenges"`
}

type key struct {
	skill    docs.Skill
	category sabotage.Category
}

// Catalog is an immutable set of templates.
type Catalog struct {
	byKey map[key][]Template
	byID  map[string]Template
	ids   []string
}

// Default loads the built-in catalog.
func Default() (*Catalog, error) {
	return Load(embedded)
}

// Load reads catalog.yaml from fsys and the code for each entry from templates/<id>.py.
func Load(fsys fs.FS) (*Catalog, error) {
	raw, err := fs.ReadFile(fsys, "catalog.yaml")
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}

	var file catalogFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}

	c := &Catalog{
		byKey: make(map[key][]Template),
		byID:  make(map[string]Template),
	}
	for _, entry := range file.Challenges {
		if entry.ID == "" {
			return nil, fmt.Errorf("catalog entry without id")
		}
		if _, dup := c.byID[entry.ID]; dup {
			return nil, fmt.Errorf("duplicate challenge id %q", entry.ID)
		}
		cat := sabotage.Category(entry.Category)
		if !cat.Valid() {
			return nil, fmt.Errorf("challenge %s: unknown category %q", entry.ID, entry.Category)
		}
		code, err := fs.ReadFile(fsys, path.Join("templates", entry.ID+".py"))
		if err != nil {
			return nil, fmt.Errorf("challenge %s: %w", entry.ID, err)
		}

		t := Template{
			ID:       entry.ID,
			Skill:    docs.NormalizeSkill(entry.Skill),
			Category: cat,
			DocQuery: entry.DocQuery,
			Code:     string(code),
		}
		k := key{skill: t.Skill, category: t.Category}
		c.byKey[k] = append(c.byKey[k], t)
		c.byID[t.ID] = t
		c.ids = append(c.ids, t.ID)
	}
	sort.Strings(c.ids)
	return c, nil
}

// Pick returns a random template for the skill and category.
func (c *Catalog) Pick(skill string, category sabotage.Category) (Template, bool) {
	list := c.byKey[key{skill: docs.NormalizeSkill(skill), category: category}]
	if len(list) == 0 {
		return Template{}, false
	}
	return list[rand.IntN(len(list))], true
}

// Get returns the template with the given id.
func (c *Catalog) Get(id string) (Template, bool) {
	t, ok := c.byID[id]
	return t, ok
}

// IDs lists every template id in sorted order.
func (c *Catalog) IDs() []string {
	return append([]string(nil), c.ids...)
}

// Len returns the number of templates.
func (c *Catalog) Len() int {
	return len(c.ids)
}
