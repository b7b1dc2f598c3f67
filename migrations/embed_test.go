package migrations

import (
	"io/fs"
	"strings"
	"testing"
)

func TestFiles_Embedded(t *testing.T) {
	names, err := fs.Glob(Files, "*.sql")
	if err != nil {
		t.Fatalf("glob: %v", err)
	}
	if len(names) == 0 {
		t.Fatal("expected embedded migrations")
	}
}

// Free text is stored as given, so only closed-set columns may carry a
// length limit.
func TestFiles_FreeTextColumnsAreUnbounded(t *testing.T) {
	bounded := map[string]bool{"role": true}

	names, _ := fs.Glob(Files, "*.sql")
	for _, name := range names {
		content, err := fs.ReadFile(Files, name)
		if err != nil {
			t.Fatalf("read %s: %v", name, err)
		}
		for i, line := range strings.Split(string(content), "\n") {
			if !strings.Contains(strings.ToUpper(line), "VARCHAR") {
				continue
			}
			fields := strings.Fields(line)
			if len(fields) == 0 || !bounded[fields[0]] {
				t.Errorf("%s:%d: unexpected length-limited column: %s", name, i+1, strings.TrimSpace(line))
			}
		}
	}
}
