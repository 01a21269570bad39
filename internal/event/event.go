// Package event provides structured eventing for the key management domain.
// Events are published through a hashicorp/eventlogger broker to one or more
// configured sinks (stderr or rotating files), formatted as hclog text or
// hclog JSON entries.
package event

import (
	"errors"
	"time"
)

// Op represents an operation (package.function or package.(type).function)
type Op string

// Id represents an event's unique id
type Id string

// Type represents the event's type
type Type string

const (
	ErrorType       Type = "error"       // ErrorType is an error event
	SystemType      Type = "system"      // SystemType is a system event
	ObservationType Type = "observation" // ObservationType is an observation event
	EveryType       Type = "*"           // EveryType is used to express all event types
)

const (
	OpField      = "op"      // OpField in an event
	IdField      = "id"      // IdField in an event
	VersionField = "version" // VersionField in an event
	DetailsField = "details" // DetailsField in an event
	HeaderField  = "header"  // HeaderField in an event

	msgField = "msg"
)

// errors which cannot be Err (the errors package depends on this one)
var (
	// ErrInvalidParameter defines a value for invalid parameter errors
	ErrInvalidParameter = errors.New("invalid parameter")

	// ErrIo defines a value for errors which occurred during io operations
	ErrIo = errors.New("error during io operation")
)

// cancelledSendTimeout limits how long we keep trying to deliver an event
// once the originating context has already been cancelled.
const cancelledSendTimeout = 3 * time.Second
