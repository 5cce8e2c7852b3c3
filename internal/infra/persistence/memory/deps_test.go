package memory

import (
	"testing"

	"modelcore/testutil"
)

// The store sits directly above the domain: no other module package may be
// imported, or the durable backends embedding it would inherit a cycle.
func TestStoreDependsOnDomainOnly(t *testing.T) {
	sibling := testutil.ImportsUnder("internal", "cmd", "testutil")
	testutil.AssertNoDirectImports(t, ".", sibling, "memory store depends on pkg/domain only")
}
