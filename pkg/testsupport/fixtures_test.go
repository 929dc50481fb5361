package testsupport

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoadFixture(t *testing.T) {
	path := TempFile(t, []byte("entries: 2"))

	if got := string(LoadFixture(t, path)); got != "entries: 2" {
		t.Errorf("expected fixture content, got %q", got)
	}
}

func TestLoadFixtureJSON(t *testing.T) {
	path := TempFile(t, []byte(`{"entries":["alice","bob"],"scores":{"Kills":{"alice":3}}}`))

	var doc struct {
		Entries []string                  `json:"entries"`
		Scores  map[string]map[string]int `json:"scores"`
	}
	LoadFixtureJSON(t, path, &doc)

	if len(doc.Entries) != 2 || doc.Entries[1] != "bob" {
		t.Errorf("unexpected entries %v", doc.Entries)
	}
	if doc.Scores["Kills"]["alice"] != 3 {
		t.Errorf("unexpected scores %v", doc.Scores)
	}
}

func TestCompareWithGolden_CreatesMissingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "golden", "out.txt")

	CompareWithGolden(t, path, []byte("first run"))

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("expected golden file to be created: %v", err)
	}
	if string(data) != "first run" {
		t.Errorf("expected golden content %q, got %q", "first run", data)
	}

	// trailing whitespace is not significant
	CompareWithGolden(t, path, []byte("first run\n"))
}

func TestCompareWithGolden_Update(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.txt")
	WriteGolden(t, path, []byte("old"))

	t.Setenv(UpdateGoldenEnv, "1")
	CompareWithGolden(t, path, []byte("new"))

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read golden: %v", err)
	}
	if string(data) != "new" {
		t.Errorf("expected golden file to be rewritten, got %q", data)
	}
}

func TestCompareJSONWithGolden(t *testing.T) {
	path := filepath.Join(t.TempDir(), "doc.json")

	CompareJSONWithGolden(t, path, map[string]int{"b": 2, "a": 1})

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read golden: %v", err)
	}
	want := "{\n  \"a\": 1,\n  \"b\": 2\n}\n"
	if string(data) != want {
		t.Errorf("expected %q, got %q", want, data)
	}
}

func TestSQLiteDSN(t *testing.T) {
	tests := []struct {
		name string
	}{
		{name: "plain"},
		{name: "with space"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dsn := SQLiteDSN(t)
			if !strings.HasPrefix(dsn, "file:TestSQLiteDSN_") {
				t.Errorf("expected dsn to be named after the test, got %q", dsn)
			}
			if name := strings.TrimPrefix(strings.Split(dsn, "?")[0], "file:"); strings.ContainsAny(name, " /#") {
				t.Errorf("expected sanitized database name, got %q", name)
			}
			if !strings.HasSuffix(dsn, "?mode=memory&cache=shared") {
				t.Errorf("expected shared in-memory dsn, got %q", dsn)
			}
		})
	}
}

func TestPaths(t *testing.T) {
	if got := FixturePath("state.json"); got != filepath.Join("testdata", "state.json") {
		t.Errorf("unexpected fixture path %q", got)
	}
	if got := GoldenPath("stats.json"); got != filepath.Join("testdata", "golden", "stats.json") {
		t.Errorf("unexpected golden path %q", got)
	}
}
