package event

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
	withId            string
	withDetails       map[string]any
	withHeader        map[string]any
	withInfo          map[string]any
	withInfoMsg       string
	withEventer       *Eventer
	withEventerConfig *EventerConfig
}

func getDefaultOptions() options {
	return options{}
}

// WithId allows an optional Id
func WithId(id string) Option {
	return func(o *options) {
		o.withId = id
	}
}

// WithDetails allows an optional set of key/value pairs about an observation
// event at the detail level
func WithDetails(args ...any) Option {
	return func(o *options) {
		o.withDetails = ConvertArgs(args...)
	}
}

// WithHeader allows an optional set of key/value pairs about an observation
// event at the header level
func WithHeader(args ...any) Option {
	return func(o *options) {
		o.withHeader = ConvertArgs(args...)
	}
}

// WithInfo allows an optional set of key/value pairs about an error event
func WithInfo(args ...any) Option {
	return func(o *options) {
		o.withInfo = ConvertArgs(args...)
	}
}

// WithInfoMsg allows an optional msg and set of key/value pairs about an
// error event
func WithInfoMsg(msg string, args ...any) Option {
	return func(o *options) {
		o.withInfoMsg = msg
		o.withInfo = ConvertArgs(args...)
	}
}

// WithEventer allows an optional eventer when initializing the system
// eventer
func WithEventer(e *Eventer) Option {
	return func(o *options) {
		o.withEventer = e
	}
}

// WithEventerConfig allows an optional eventer config when initializing the
// system eventer
func WithEventerConfig(c *EventerConfig) Option {
	return func(o *options) {
		o.withEventerConfig = c
	}
}
