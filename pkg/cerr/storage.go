package cerr

import (
	"errors"
	"fmt"

	"github.com/kazz187/workguild/pkg/storage"
)

// StorageOp names the persistence step that failed.
type StorageOp string

const (
	OpRead   StorageOp = "read"
	OpWrite  StorageOp = "write"
	OpDelete StorageOp = "delete"
	OpEncode StorageOp = "encode"
	OpDecode StorageOp = "decode"
)

// WrapStorage turns a persistence failure on the named record kind into an
// Error. Missing records surface as NotFound to the caller; every other
// failure is reported as a generic server error with the cause kept for logs.
func WrapStorage(op StorageOp, kind string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, storage.ErrNotFound) && (op == OpRead || op == OpDelete) {
		return NewError(NotFound, kind+" not found", err)
	}
	code := Internal
	if op == OpDecode {
		code = DataLoss
	}
	return NewError(code, "server error", fmt.Errorf("%s %s: %w", op, kind, err))
}
