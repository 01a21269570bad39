package errors

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"

	"github.com/hashicorp/tde/internal/event"
)

// Op represents an operation (package.function or package.(type).function)
type Op string

// Err provides the ability to specify a Msg, Op, Code and Wrapped error.
// Errs must be created via New or Wrap, which both emit an error event for
// the new Err unless the WithoutEvent option is given.
type Err struct {
	// Code is the error's code, which can be used to get the error's
	// errorCodeInfo, which contains the error's Kind and Message
	Code Code

	// Msg for the error
	Msg string

	// Op represents the operation raising/propagating an error and is optional
	Op Op

	// Wrapped is the error which this Err wraps and will be nil if there's no
	// error to wrap.
	Wrapped error
}

// E creates a new Err with provided code and supports the options of:
//
// * WithOp() - allows you to specify an optional Op (operation)
//
// * WithMsg() - allows you to specify an optional error msg, if the default
// msg for the error Code is not sufficient
//
// * WithWrap() - allows you to specify an error to wrap
//
// * WithoutEvent - allows you to specify that no error event should be
// emitted
func E(ctx context.Context, opt ...Option) error {
	opts := getOpts(opt...)
	err := &Err{
		Code:    opts.withCode,
		Op:      opts.withOp,
		Wrapped: opts.withWrapped,
		Msg:     opts.withMsg,
	}
	if !opts.withoutEvent {
		event.WriteError(ctx, event.Op(opts.withOp), err)
	}
	return err
}

// New creates a new Err with provided code, op and msg.  It supports the
// options of WithWrap() and WithoutEvent.
func New(ctx context.Context, c Code, op Op, msg string, opt ...Option) error {
	opt = append(opt, WithOp(op), WithCode(c), WithMsg(msg))
	return E(ctx, opt...)
}

// Wrap creates a new Err from the provided err and op, preserving the code
// of a wrapped Err (unless overridden via WithCode).  It supports the options
// of WithMsg, WithCode and WithoutEvent.
func Wrap(ctx context.Context, e error, op Op, opt ...Option) error {
	opt = append(opt, WithOp(op), WithWrap(e))
	opts := getOpts(opt...)
	if opts.withCode == Unknown {
		var wrapped *Err
		if As(e, &wrapped) {
			opt = append(opt, WithCode(wrapped.Code))
		}
	}
	return E(ctx, opt...)
}

// Info about the Err
func (e *Err) Info() Info {
	if e == nil {
		return errorCodeInfo[Unknown]
	}
	return e.Code.Info()
}

// Error satisfies the error interface and returns a string representation of
// the Err
func (e *Err) Error() string {
	if e == nil {
		return ""
	}
	var s strings.Builder
	if e.Op != "" {
		join(&s, ": ", string(e.Op))
	}
	if e.Msg != "" {
		join(&s, ": ", e.Msg)
	}
	if info, ok := errorCodeInfo[e.Code]; ok {
		if e.Msg == "" {
			join(&s, ": ", info.Message) // provide a default.
			join(&s, ", ", info.Kind.String())
		}
		join(&s, ": ", fmt.Sprintf("error #%d", e.Code))
	}
	if e.Wrapped != nil {
		join(&s, ": ", e.Wrapped.Error())
	}
	return s.String()
}

func join(str *strings.Builder, delim string, s string) {
	if str.Len() == 0 {
		_, _ = str.WriteString(s)
		return
	}
	_, _ = str.WriteString(delim + s)
}

// Unwrap implements the errors.Unwrap interface and allows callers to use
// the errors.Is() and errors.As() functions with an Err.
func (e *Err) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Wrapped
}

// Is is the equivalent of the std errors.Is, and allows callers to avoid
// importing both packages.
func Is(err, target error) bool {
	return stderrors.Is(err, target)
}

// As is the equivalent of the std errors.As, and allows callers to avoid
// importing both packages.
func As(err error, target any) bool {
	return stderrors.As(err, target)
}
