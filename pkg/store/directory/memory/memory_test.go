package memory

import (
	"testing"

	"github.com/marmos91/vaultfs/pkg/store/directory"
	directorytesting "github.com/marmos91/vaultfs/pkg/store/directory/testing"
)

// TestMemoryBackend runs the Backend conformance suite against the
// in-memory implementation.
func TestMemoryBackend(t *testing.T) {
	suite := &directorytesting.BackendTestSuite{
		NewBackend: func(t *testing.T) directory.Backend {
			return NewBackend()
		},
	}
	suite.Run(t)
}
