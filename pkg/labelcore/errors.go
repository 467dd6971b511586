package labelcore

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// Error types
var (
	// ErrProjectNotFound indicates a project is absent or not owned by the
	// caller. The two cases are deliberately not distinguished.
	ErrProjectNotFound = errors.New("project not found")

	// ErrLabelNotFound indicates a label is absent or not owned by the caller.
	ErrLabelNotFound = errors.New("label not found")

	// ErrNameTaken indicates a label name already exists within the project.
	ErrNameTaken = errors.New("label name already in use")

	// ErrVersionConflict indicates a stale expected version on update.
	ErrVersionConflict = errors.New("label version conflict")

	// ErrObjectNotFound indicates a blob store key holds no object.
	ErrObjectNotFound = errors.New("object not found")

	// ErrCacheMiss indicates a cache key is absent or expired.
	ErrCacheMiss = errors.New("cache miss")

	// ErrStorageUnavailable indicates the blob store is not configured or
	// unreachable. It never escapes the asset coordinator boundary.
	ErrStorageUnavailable = errors.New("blob storage unavailable")
)

// ValidationError reports a malformed field on an incoming request.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// VersionConflictError is returned when an update carries a stale expected
// version. Current is the stored version, reported so the caller can
// re-fetch and retry.
type VersionConflictError struct {
	LabelID  uuid.UUID
	Expected int
	Current  int
}

func (e *VersionConflictError) Error() string {
	return fmt.Sprintf("version conflict on label %s: expected %d, current %d",
		e.LabelID, e.Expected, e.Current)
}

func (e *VersionConflictError) Is(target error) bool {
	return target == ErrVersionConflict
}

// LabelError wraps an unexpected failure in a label operation.
type LabelError struct {
	LabelID uuid.UUID
	Op      string
	Err     error
}

func (e *LabelError) Error() string {
	return fmt.Sprintf("label operation %s failed for label %s: %v", e.Op, e.LabelID, e.Err)
}

func (e *LabelError) Unwrap() error {
	return e.Err
}

// StorageError wraps a blob storage failure.
type StorageError struct {
	Key string
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage operation %s failed for key %s: %v", e.Op, e.Key, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}
