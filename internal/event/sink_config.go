package event

import (
	"fmt"
)

const (
	StderrSink SinkType = "stderr" // StderrSink is written to stderr
	FileSink   SinkType = "file"   // FileSink is written to a file
)

// SinkType defines the type of sink in a config stanza (file, stderr)
type SinkType string

func (t SinkType) Validate() error {
	const op = "event.(SinkType).Validate"
	switch t {
	case StderrSink, FileSink:
		return nil
	default:
		return fmt.Errorf("%s: '%s' is not a valid sink type: %w", op, t, ErrInvalidParameter)
	}
}

const (
	TextHclogSinkFormat SinkFormat = "hclog-text" // TextHclogSinkFormat means the event is formatted as an hclog text entry
	JSONHclogSinkFormat SinkFormat = "hclog-json" // JSONHclogSinkFormat means the event is formatted as an hclog json entry
)

// SinkFormat defines the formatting for a sink in a config stanza
type SinkFormat string

func (f SinkFormat) Validate() error {
	const op = "event.(SinkFormat).Validate"
	switch f {
	case TextHclogSinkFormat, JSONHclogSinkFormat:
		return nil
	default:
		return fmt.Errorf("%s: '%s' is not a valid sink format: %w", op, f, ErrInvalidParameter)
	}
}

// FileSinkTypeConfig defines the configuration for a FileSink
type FileSinkTypeConfig struct {
	Path           string `hcl:"path"`
	FileName       string `hcl:"file_name"`
	RotateBytes    int    `hcl:"rotate_bytes"`
	RotateMaxFiles int    `hcl:"rotate_max_files"`
}

// SinkConfig defines the configuration for a sink
type SinkConfig struct {
	// Name defines a name for the sink
	Name string `hcl:"name"`

	// EventTypes defines a list of event types that will be sent to the sink.
	// See the docs for Types for a list of accepted types.
	EventTypes []Type `hcl:"event_types"`

	// Format defines the format for the sink (hclog-text, hclog-json)
	Format SinkFormat `hcl:"format"`

	// Type defines the type of sink (stderr, file)
	Type SinkType `hcl:"type"`

	// FileConfig is required when Type is FileSink
	FileConfig *FileSinkTypeConfig `hcl:"file"`
}

func (sc *SinkConfig) Validate() error {
	const op = "event.(SinkConfig).Validate"
	if sc == nil {
		return fmt.Errorf("%s: missing sink config: %w", op, ErrInvalidParameter)
	}
	if sc.Name == "" {
		return fmt.Errorf("%s: missing sink name: %w", op, ErrInvalidParameter)
	}
	if err := sc.Type.Validate(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := sc.Format.Validate(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if sc.Type == FileSink && (sc.FileConfig == nil || sc.FileConfig.FileName == "") {
		return fmt.Errorf("%s: missing sink file name: %w", op, ErrInvalidParameter)
	}
	if len(sc.EventTypes) == 0 {
		return fmt.Errorf("%s: missing event types: %w", op, ErrInvalidParameter)
	}
	for _, et := range sc.EventTypes {
		switch et {
		case ErrorType, SystemType, ObservationType, EveryType:
		default:
			return fmt.Errorf("%s: '%s' is not a valid event type: %w", op, et, ErrInvalidParameter)
		}
	}
	return nil
}
