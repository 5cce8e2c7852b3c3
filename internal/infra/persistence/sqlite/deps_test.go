// Package sqlite provides dependency boundary tests for the sqlite backend.
package sqlite

import (
	"go/build"
	"strings"
	"testing"
)

var allowedInternalImports = map[string]struct{}{
	"modelcore/pkg/domain":                         {},
	"modelcore/internal/infra/persistence/memory":  {},
	"modelcore/internal/infra/persistence/buckets": {},
}

func TestImportsStayInsidePersistence(t *testing.T) {
	pkg, err := build.Default.ImportDir(".", 0)
	if err != nil {
		t.Fatalf("import dir: %v", err)
	}
	for _, imp := range pkg.Imports {
		if !strings.HasPrefix(imp, "modelcore/") {
			continue
		}
		if _, ok := allowedInternalImports[imp]; ok {
			continue
		}
		t.Fatalf("unexpected dependency: %s", imp)
	}
}
