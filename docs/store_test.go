package docs

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeSkill(t *testing.T) {
	tests := []struct {
		in   string
		want Skill
	}{
		{"Pandas", SkillPandas},
		{"pandas", SkillPandas},
		{"PANDAS", SkillPandas},
		{"OOPS", SkillOOPS},
		{"oops", SkillOOPS},
		{"CP", SkillCP},
		{"Cryptography", SkillCryptography},
		{"Cryptograph", SkillCryptography},
		{"  crypto ", SkillCryptography},
		{"Rust", Skill("rust")},
		{"", Skill("")},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeSkill(tt.in))
		})
	}
}

func TestSkillLibrary(t *testing.T) {
	lib, ok := SkillPandas.Library()
	assert.True(t, ok)
	assert.Equal(t, "pandas", lib)

	_, ok = SkillOOPS.Library()
	assert.False(t, ok)
}

func TestQueryFromCode(t *testing.T) {
	tests := []struct {
		name  string
		code  string
		skill string
		want  string
	}{
		{"pandas skill wins", "print(1)", "Pandas", "DataFrame common errors"},
		{"pandas import", "import pandas as pd", "", "DataFrame common errors"},
		{"dataframe marker", "df = DataFrame(rows)", "CP", "DataFrame common errors"},
		{"merge", "a.merge(b)", "", "merge join"},
		{"join", "', '.join(parts)", "", "merge join"},
		{"groupby", "g.groupby('k')", "", "groupby"},
		{"no marker", "print(sum(range(3)))", "CP", "common errors"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, QueryFromCode(tt.code, tt.skill))
		})
	}
}

func TestStore_Builtins(t *testing.T) {
	s := NewStore(nil)

	for _, key := range []Skill{SkillPandas, SkillOOPS, SkillCP, SkillCryptography} {
		text, ok := s.Get(key)
		assert.True(t, ok, "missing builtin %s", key)
		assert.NotEmpty(t, text)
	}

	text, ok := s.ForSkill("Cryptography")
	assert.True(t, ok)
	assert.Contains(t, text, "compare_digest")

	_, ok = s.Get("Pandas")
	assert.False(t, ok, "lookup is by exact canonical key")
}

func TestStore_LoadDir(t *testing.T) {
	dir := t.TempDir()
	writeDoc(t, dir, "pandas.md", "Custom pandas notes")
	writeDoc(t, dir, filepath.Join("extra", "Numpy.TXT"), "numpy notes")
	writeDoc(t, dir, filepath.Join("extra", "ignored.json"), `{"x":1}`)
	writeDoc(t, dir, "empty.md", "   ")

	s := NewStore(nil)
	n, err := s.LoadDir(dir)
	require.NoError(t, err)
	assert.Equal(t, 1, n, "only lower-case extensions match the glob")

	text, _ := s.Get(SkillPandas)
	assert.Equal(t, "Custom pandas notes", text)

	_, ok := s.Get(SkillOOPS)
	assert.True(t, ok, "builtins survive a directory load")

	_, ok = s.Get("ignored")
	assert.False(t, ok)
	_, ok = s.Get("empty")
	assert.False(t, ok)
}

func TestStore_LoadDirMissing(t *testing.T) {
	s := NewStore(nil)
	_, err := s.LoadDir(filepath.Join(t.TempDir(), "nope"))
	assert.Error(t, err)
}

func TestStore_Keys(t *testing.T) {
	keys := NewStore(nil).Keys()
	assert.Equal(t, []Skill{SkillCP, SkillCryptography, SkillOOPS, SkillPandas}, keys)
}

func TestWatcher_ReloadsOnChange(t *testing.T) {
	dir := t.TempDir()
	store := NewStore(nil)

	w, err := NewWatcher(store, dir, 20*time.Millisecond, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	// Give the watcher time to install its watches.
	time.Sleep(100 * time.Millisecond)
	writeDoc(t, dir, "cp.tmp", "fresh cp notes")
	require.NoError(t, os.Rename(filepath.Join(dir, "cp.tmp"), filepath.Join(dir, "cp.md")))

	select {
	case <-w.reloaded:
	case <-time.After(5 * time.Second):
		t.Fatal("watcher did not reload")
	}

	text, _ := store.Get(SkillCP)
	assert.Equal(t, "fresh cp notes", text)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("watcher did not stop")
	}
}

func writeDoc(t *testing.T, dir, name, content string) {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}
