package blob

import (
	"modelcore/internal/infra/blob/fs"
)

// NewFilesystem constructs a filesystem-backed Store rooted at root. An empty
// root selects ./blobdata.
func NewFilesystem(root string) (Store, error) {
	return fs.New(root)
}
