package syscalls

import (
	"encoding/json"

	"github.com/synthkernel/kerneld/domain"
	"github.com/synthkernel/kerneld/internal/kerrors"
)

// jsonSuccess marshals v into a Success result's Data field. Every operation
// that returns structured data (as opposed to raw bytes) goes through this,
// so wire consumers can treat every syscall's Data as JSON rather than
// special-casing a handful of binary formats.
func jsonSuccess(v interface{}) domain.Result {
	b, err := json.Marshal(v)
	if err != nil {
		return domain.ErrorResult("encode result: %v", err)
	}
	return domain.Success(b)
}

// resultFromError folds a sub-manager's typed error into the wire-level
// three-variant result: permission-shaped errors (missing capability, path
// ACL violation, resource-limit exceeded, non-owner destroy, signal
// blocked/uncatchable) become PermissionDenied; everything else becomes
// Error. This is the one place that distinction is made, so every
// Dispatch method folds its sub-manager's error through here rather than
// flattening straight to Error.
func resultFromError(err error) domain.Result {
	switch err.(type) {
	case *kerrors.PermissionError, *kerrors.SignalBlockedError:
		return domain.Denied("%s", err.Error())
	default:
		return domain.ErrorResult("%v", err)
	}
}
