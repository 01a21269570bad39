// Package errors provides an Err type for the key management domain which
// carries a Code (with a Kind and default message), the Op (operation) that
// raised it, an optional wrapped error and an optional override message.
//
// Errors are created via New(...) and Wrap(...) which both emit an error
// event (see internal/event) unless the WithoutEvent option is given.
// Callers match errors with Match and a Template built by T, or with the
// Is* predicates for the common cases.
package errors
