package errors

// getOpts - iterate the inbound Options and return a struct
func getOpts(opt ...Option) options {
	opts := getDefaultOptions()
	for _, o := range opt {
		if o != nil {
			o(&opts)
		}
	}
	return opts
}

// Option - how Options are passed as arguments
type Option func(*options)

// options = how options are represented
type options struct {
	withMsg      string
	withWrapped  error
	withOp       Op
	withCode     Code
	withoutEvent bool
}

func getDefaultOptions() options {
	return options{}
}

// WithMsg provides an optional message for the error
func WithMsg(msg string) Option {
	return func(o *options) {
		o.withMsg = msg
	}
}

// WithWrap provides an error to wrap
func WithWrap(e error) Option {
	return func(o *options) {
		o.withWrapped = e
	}
}

// WithOp provides an optional operation for the error
func WithOp(op Op) Option {
	return func(o *options) {
		o.withOp = op
	}
}

// WithCode provides an optional code for the error
func WithCode(code Code) Option {
	return func(o *options) {
		o.withCode = code
	}
}

// WithoutEvent prevents the error from being emitted as an error event. This
// is used where the caller is the event subsystem itself or where the error
// is expected flow control (for example probing for a free key version).
func WithoutEvent() Option {
	return func(o *options) {
		o.withoutEvent = true
	}
}
