package domain

import (
	"testing"

	"modelcore/testutil"
)

// The domain package is shared by every layer, so it may depend on the
// standard library only.
func TestDomainDependsOnStandardLibraryOnly(t *testing.T) {
	testutil.AssertNoDirectImports(t, ".", testutil.InternalImportForbidden, "domain must not import internal packages")
	testutil.AssertNoDirectImports(t, ".", testutil.ThirdPartyImportForbidden, "domain must stay dependency free")
}
