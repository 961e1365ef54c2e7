package storage

import (
	"errors"
	"fmt"

	"github.com/tokkyo-ai/tokkyo/internal/model"
)

// ErrNotFound is returned when a requested entity does not exist or is not
// visible to the caller's tenant.
var ErrNotFound = errors.New("storage: not found")

// MissingApprovalError is returned by GetAuthoritative when no version of
// the kind has been approved yet. Downstream stages surface this as
// "the attorney must review and approve X before Y".
type MissingApprovalError struct {
	Kind model.ArtifactKind
}

func (e *MissingApprovalError) Error() string {
	return fmt.Sprintf("storage: no approved %s version exists", e.Kind)
}
