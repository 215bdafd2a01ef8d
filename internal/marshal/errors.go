// Package marshal implements the bidirectional value marshaller between
// native Go values and runtime objects. ToRuntime produces owned handles;
// ToNative consumes borrowed handles. Conversion failures never leave a
// partially built container visible to the runtime.
package marshal

import "errors"

// Conversion failure taxonomy. Adapters translate these into runtime
// exceptions at the nearest boundary; see the bind package.
var (
	// ErrType: the runtime object is the wrong kind for the target type.
	ErrType = errors.New("type mismatch")

	// ErrConversion: right kind, value not representable.
	ErrConversion = errors.New("value not representable")

	// ErrWrongArgumentCount: sequence/tuple length does not match.
	ErrWrongArgumentCount = errors.New("wrong argument count")

	// ErrMissingArgument: a required named argument was not supplied.
	ErrMissingArgument = errors.New("missing required argument")

	// ErrInvalidArgument: an argument slot could not be retrieved at all.
	ErrInvalidArgument = errors.New("invalid argument")
)
