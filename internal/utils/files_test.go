package utils_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/KaramelBytes/dataprof/internal/utils"
)

func TestOrderedObjectKeepsKeyOrder(t *testing.T) {
	vals := map[string]int{"zeta": 1, "alpha": 2}
	b, err := utils.OrderedObject([]string{"zeta", "alpha"}, func(k string) any { return vals[k] })
	if err != nil {
		t.Fatalf("OrderedObject: %v", err)
	}
	if string(b) != `{"zeta":1,"alpha":2}` {
		t.Fatalf("unexpected json: %s", b)
	}
	empty, _ := utils.OrderedObject(nil, nil)
	if string(empty) != "{}" {
		t.Fatalf("unexpected empty object: %s", empty)
	}
}

func TestSafeWriteFileCreatesParents(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a", "b", "profile.json")
	if err := utils.SafeWriteFile(path, []byte("{}")); err != nil {
		t.Fatalf("SafeWriteFile: %v", err)
	}
	b, err := os.ReadFile(path)
	if err != nil || string(b) != "{}" {
		t.Fatalf("unexpected content %q (%v)", b, err)
	}
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Fatalf("temp file left behind")
	}
}
