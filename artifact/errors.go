package artifact

import "errors"

// ErrNotFound indicates the requested artifact does not exist.
var ErrNotFound = errors.New("artifact not found")

// ErrConflict indicates an artifact for the same run/type/version already
// exists with different content. Identical content is a silent no-op.
var ErrConflict = errors.New("artifact already exists with different content")

// ErrUnknownSchema indicates the gate has no schema for the declared
// type/version pair.
var ErrUnknownSchema = errors.New("unknown artifact schema")
