package api

import (
	"errors"

	"github.com/agentic-research/pathstore/internal/engine"
	"github.com/agentic-research/pathstore/internal/pathcodec"
)

// ErrPermissions is returned by a session when the boundary permission
// predicate denies an operation.
var ErrPermissions = errors.New("permissions")

// ErrorKind maps an internal error to the human-readable kind string
// sent to the client as Error(kind). Unrecognized errors fall back to
// "StorageError" — from the client's perspective every lower-layer
// failure not otherwise classified looks the same.
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, engine.ErrUnknownField):
		return "UnknownField"
	case errors.Is(err, engine.ErrIllegalRefOnScalar):
		return "IllegalRefOnScalar"
	case errors.Is(err, engine.ErrKeyNotFound):
		return "KeyNotFound"
	case errors.Is(err, engine.ErrExtraKeyFound):
		return "ExtraKeyFound"
	case errors.Is(err, engine.ErrSchemaMismatch):
		return "SchemaMismatch"
	case errors.Is(err, engine.ErrNonDocumentInsert):
		return "NonDocumentInsert"
	case errors.Is(err, engine.ErrCorruptKey), errors.Is(err, pathcodec.ErrCorruptKey):
		return "CorruptKey"
	case errors.Is(err, ErrPermissions):
		return "Permissions"
	case errors.Is(err, engine.ErrStorageError):
		return "StorageError"
	default:
		return "StorageError"
	}
}
