package supers

import "errors"

var (
	// ErrDuplicateType is returned when a name or a second root is redefined.
	ErrDuplicateType = errors.New("type already defined")

	// ErrUnknownType is returned when a definition references an undefined name.
	ErrUnknownType = errors.New("unknown type")

	// ErrNotAClass is returned when an interface is used as a superclass.
	ErrNotAClass = errors.New("not a class")

	// ErrNotAnInterface is returned when a class is used as a superinterface.
	ErrNotAnInterface = errors.New("not an interface")

	// ErrDependencyCycle is returned when a DefineAll batch cannot be ordered.
	ErrDependencyCycle = errors.New("dependency cycle")

	// ErrIDCollision is returned in verify mode when the ID source repeats.
	// Outside verify mode collisions go undetected; their probability over a
	// realistic type population is negligible.
	ErrIDCollision = errors.New("type ID collision")

	// ErrTableDefect is returned in verify mode when a built table disagrees
	// with the secondary-supertype set it was built from. It signals a
	// builder bug, never a caller mistake.
	ErrTableDefect = errors.New("secondary supertype table defect")

	// ErrBadSnapshot is returned by Restore when a snapshot's records are
	// internally inconsistent.
	ErrBadSnapshot = errors.New("malformed snapshot")
)
