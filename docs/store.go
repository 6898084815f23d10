package docs

import (
	"fmt"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/bmatcuk/doublestar/v4"
)

// docFilePattern selects static doc files inside a docs directory.
const docFilePattern = "**/*.{md,txt}"

// builtinDocs ship with the binary so every known skill has context without configuration.
var builtinDocs = map[Skill]string{
	SkillPandas: `Pandas is a fast, powerful, flexible and easy to use open source data analysis and manipulation tool.

Key Concepts:
- DataFrame: 2-dimensional labeled data structure.
- Series: 1-dimensional labeled array.

Common Errors:
- SettingWithCopyWarning: Modifying a slice of a DataFrame.
- MergeError: Joining DataFrames with incompatible keys.`,

	SkillOOPS: `Python object-oriented programming.

Key Concepts:
- Classes define attributes in __init__ via self; methods take self as first parameter.
- Inheritance: subclasses call super().__init__(...) to initialise the parent.
- Method resolution order decides which override runs.

Common Errors:
- Forgetting self in a method signature or attribute access.
- Mutable default arguments (def f(self, items=[])) shared between calls and instances.
- Class attributes that are mutated through an instance are shared by every instance.
- Overriding a method but not calling the parent implementation.`,

	SkillCP: `Competitive programming in Python.

Key Concepts:
- Read input with sys.stdin.read().split() or splitlines() for speed.
- range(n) is 0..n-1; slices a[i:j] exclude j.
- // is floor division, % follows the sign of the divisor.

Common Errors:
- Off-by-one errors in loop bounds and slice ends.
- Using / where integer division is required.
- Recursion depth limits on deep recursion.
- Comparing numbers read as strings.`,

	SkillCryptography: `Cryptography with the Python standard library.

Key Concepts:
- hashlib.sha256(data).hexdigest() hashes bytes; encode strings first.
- secrets.token_hex / token_bytes produce unpredictable tokens; random does not.
- hmac.compare_digest compares secrets in constant time.

Common Errors:
- Hashing str instead of bytes, or mixing encodings.
- Comparing digests with == instead of hmac.compare_digest.
- Using random for tokens or salts.
- Reusing a salt or nonce across values.`,
}

// Store is the static per-skill documentation collaborator: key -> text, exact key lookup.
// Files loaded from a directory override the built-in entries. Safe for concurrent use.
type Store struct {
	mu     sync.RWMutex
	docs   map[Skill]string
	logger *slog.Logger
}

// NewStore creates a store holding the built-in docs.
func NewStore(logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		docs:   copyDocs(builtinDocs),
		logger: logger,
	}
}

// Get returns the doc stored under an exact canonical key.
func (s *Store) Get(key Skill) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	text, ok := s.docs[key]
	return text, ok
}

// ForSkill normalizes a skill name and looks it up.
func (s *Store) ForSkill(name string) (string, bool) {
	return s.Get(NormalizeSkill(name))
}

// Keys returns the stored keys in sorted order.
func (s *Store) Keys() []Skill {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := make([]Skill, 0, len(s.docs))
	for k := range s.docs {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

// LoadDir replaces the file-backed entries with the .md and .txt files under dir. Each file
// is keyed by its lower-cased base name without extension. Built-in entries not overridden
// by a file are kept. It returns the number of files loaded.
func (s *Store) LoadDir(dir string) (int, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return 0, fmt.Errorf("stat docs dir: %w", err)
	}
	if !info.IsDir() {
		return 0, fmt.Errorf("docs path is not a directory: %s", dir)
	}

	matches, err := doublestar.Glob(os.DirFS(dir), docFilePattern)
	if err != nil {
		return 0, fmt.Errorf("glob docs dir %s: %w", dir, err)
	}

	next := copyDocs(builtinDocs)
	loaded := 0
	for _, match := range matches {
		data, err := os.ReadFile(filepath.Join(dir, filepath.FromSlash(match)))
		if err != nil {
			s.logger.Warn("Failed to read doc file", "path", match, "error", err)
			continue
		}
		text := strings.TrimSpace(string(data))
		if text == "" {
			continue
		}
		base := path.Base(match)
		key := Skill(strings.ToLower(strings.TrimSuffix(base, path.Ext(base))))
		next[key] = text
		loaded++
	}

	s.mu.Lock()
	s.docs = next
	s.mu.Unlock()

	s.logger.Debug("Loaded docs directory", "dir", dir, "files", loaded)
	return loaded, nil
}

func copyDocs(src map[Skill]string) map[Skill]string {
	out := make(map[Skill]string, len(src))
	for k, v := range src {
		out[k] = v
	}
	return out
}
