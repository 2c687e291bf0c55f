package sim

import "errors"

var (
	// ErrInvalidConfiguration is returned for unusable node or generator setup,
	// e.g. a producer without produced types or a weights list of the wrong length.
	ErrInvalidConfiguration = errors.New("invalid configuration")

	// ErrDuplicateNode is returned when the same node instance is registered twice.
	ErrDuplicateNode = errors.New("duplicate node")

	// ErrUnknownNode is returned when an operation names a node that is not part of the network.
	ErrUnknownNode = errors.New("unknown node")

	// ErrRootRemoval is returned when removing the root producer is attempted.
	ErrRootRemoval = errors.New("root node cannot be removed")

	// ErrNotRegistered is returned when a node operation needs a network the node was never added to.
	ErrNotRegistered = errors.New("node is not registered with a network")

	// ErrInvalidProcessingTime is returned when a ProcessingTimeFunc yields a negative delay.
	ErrInvalidProcessingTime = errors.New("invalid processing time")
)
