package event

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/hashicorp/eventlogger"
	"github.com/hashicorp/eventlogger/sinks/writer"
	"github.com/hashicorp/go-hclog"
	"github.com/hashicorp/go-multierror"
)

// EventerConfig supplies all the configuration needed to create/config an
// Eventer.
type EventerConfig struct {
	// ObservationsEnabled specifies if observation events should be processed
	ObservationsEnabled bool `hcl:"observations_enabled"`

	// SysEventsEnabled specifies if sysevents should be processed
	SysEventsEnabled bool `hcl:"sysevents_enabled"`

	// Sinks are all the configured sinks
	Sinks []*SinkConfig `hcl:"sink"`
}

// Validate will check the config and return an error if it's invalid
func (c *EventerConfig) Validate() error {
	const op = "event.(EventerConfig).Validate"
	if c == nil {
		return fmt.Errorf("%s: missing config: %w", op, ErrInvalidParameter)
	}
	for i, sc := range c.Sinks {
		if err := sc.Validate(); err != nil {
			return fmt.Errorf("%s: sink %d is invalid: %w", op, i, err)
		}
	}
	return nil
}

// DefaultEventerConfig will return a default config, which writes errors and
// sysevents to stderr as hclog text entries.
func DefaultEventerConfig() *EventerConfig {
	return &EventerConfig{
		ObservationsEnabled: true,
		SysEventsEnabled:    true,
		Sinks:               []*SinkConfig{DefaultSink()},
	}
}

// DefaultSink is a stderr sink for every event type
func DefaultSink() *SinkConfig {
	return &SinkConfig{
		Name:       "default",
		EventTypes: []Type{EveryType},
		Format:     TextHclogSinkFormat,
		Type:       StderrSink,
	}
}

// Eventer provides a method to send events to pipelines of sinks
type Eventer struct {
	broker *eventlogger.Broker
	conf   EventerConfig
	logger hclog.Logger

	// these fields protect the eventer's sink files from concurrent rotation
	// and reopen
	reopenLock sync.Mutex
}

var (
	sysEventer     *Eventer
	sysEventerLock sync.RWMutex
)

// InitSysEventer provides a mechanism to initialize a "system wide" eventer
// singleton for the Eventer.  Support the options of: WithEventer and
// WithEventerConfig.  If neither option is provided a DefaultEventerConfig
// will be used.
func InitSysEventer(log hclog.Logger, serializationLock *sync.Mutex, serverName string, opt ...Option) error {
	const op = "event.InitSysEventer"
	if log == nil {
		return fmt.Errorf("%s: missing hclog: %w", op, ErrInvalidParameter)
	}
	if serializationLock == nil {
		return fmt.Errorf("%s: missing serialization lock: %w", op, ErrInvalidParameter)
	}
	if serverName == "" {
		return fmt.Errorf("%s: missing server name: %w", op, ErrInvalidParameter)
	}

	// the order of operations is important here.  we want to determine if
	// there's an error before setting the singleton sysEventer
	var eventer *Eventer
	opts := getOpts(opt...)
	switch {
	case opts.withEventer == nil && opts.withEventerConfig == nil:
		var err error
		if eventer, err = NewEventer(log, serializationLock, serverName, *DefaultEventerConfig()); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
	case opts.withEventer != nil:
		eventer = opts.withEventer
	default:
		var err error
		if eventer, err = NewEventer(log, serializationLock, serverName, *opts.withEventerConfig); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
	}

	sysEventerLock.Lock()
	defer sysEventerLock.Unlock()
	sysEventer = eventer
	return nil
}

// SysEventer returns the "system wide" eventer if one was initialized via
// InitSysEventer
func SysEventer() *Eventer {
	sysEventerLock.RLock()
	defer sysEventerLock.RUnlock()
	return sysEventer
}

// NewEventer creates a new Eventer for the config, registering a pipeline
// per sink and event type.  The serializationLock is shared by every sink
// writing to stderr so concurrent events don't interleave bytes.
func NewEventer(log hclog.Logger, serializationLock *sync.Mutex, serverName string, c EventerConfig, opt ...Option) (*Eventer, error) {
	const op = "event.NewEventer"
	if log == nil {
		return nil, fmt.Errorf("%s: missing logger: %w", op, ErrInvalidParameter)
	}
	if serializationLock == nil {
		return nil, fmt.Errorf("%s: missing serialization lock: %w", op, ErrInvalidParameter)
	}
	if serverName == "" {
		return nil, fmt.Errorf("%s: missing server name: %w", op, ErrInvalidParameter)
	}
	if len(c.Sinks) == 0 {
		c.Sinks = []*SinkConfig{DefaultSink()}
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	broker, err := eventlogger.NewBroker()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	e := &Eventer{
		broker: broker,
		conf:   c,
		logger: log,
	}

	// we need to know which event types have at least one sink, so we can set
	// the broker's success thresholds
	typesWithSink := map[Type]bool{}

	for _, sc := range c.Sinks {
		fmtId, err := NewId("fmt")
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		fmtNode, err := newHclogFormatterFilter(sc.Format == JSONHclogSinkFormat)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		if err := broker.RegisterNode(eventlogger.NodeID(fmtId), fmtNode); err != nil {
			return nil, fmt.Errorf("%s: failed to register format node: %w", op, err)
		}

		var sinkNode eventlogger.Node
		switch sc.Type {
		case StderrSink:
			sinkNode = &writer.Sink{
				Format: string(sc.Format),
				Writer: &serializedWriter{w: os.Stderr, l: serializationLock},
			}
		case FileSink:
			sinkNode = &eventlogger.FileSink{
				Format:   string(sc.Format),
				Path:     sc.FileConfig.Path,
				FileName: sc.FileConfig.FileName,
				MaxBytes: sc.FileConfig.RotateBytes,
				MaxFiles: sc.FileConfig.RotateMaxFiles,
			}
		}
		sinkId, err := NewId("sink")
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		if err := broker.RegisterNode(eventlogger.NodeID(sinkId), sinkNode); err != nil {
			return nil, fmt.Errorf("%s: failed to register sink node %s: %w", op, sc.Name, err)
		}

		for _, et := range sc.EventTypes {
			types := []Type{et}
			if et == EveryType {
				types = []Type{ErrorType, SystemType, ObservationType}
			}
			for _, t := range types {
				pipeId, err := NewId("pipeline")
				if err != nil {
					return nil, fmt.Errorf("%s: %w", op, err)
				}
				err = broker.RegisterPipeline(eventlogger.Pipeline{
					EventType:  eventlogger.EventType(t),
					PipelineID: eventlogger.PipelineID(pipeId),
					NodeIDs:    []eventlogger.NodeID{eventlogger.NodeID(fmtId), eventlogger.NodeID(sinkId)},
				})
				if err != nil {
					return nil, fmt.Errorf("%s: failed to register pipeline for sink %s: %w", op, sc.Name, err)
				}
				typesWithSink[t] = true
			}
		}
	}

	for t := range typesWithSink {
		if err := broker.SetSuccessThreshold(eventlogger.EventType(t), 1); err != nil {
			return nil, fmt.Errorf("%s: failed to set success threshold for %s events: %w", op, t, err)
		}
	}
	return e, nil
}

// writeObservation writes/sends an Observation event
func (e *Eventer) writeObservation(ctx context.Context, observation *observation) error {
	const op = "event.(Eventer).writeObservation"
	if !e.conf.ObservationsEnabled {
		return nil
	}
	if err := observation.validate(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := e.send(ctx, ObservationType, observation); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// writeError writes/sends an Err event
func (e *Eventer) writeError(ctx context.Context, errEvent *err) error {
	const op = "event.(Eventer).writeError"
	if err := errEvent.validate(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := e.send(ctx, ErrorType, errEvent); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// writeSysEvent writes/sends a sysEvent
func (e *Eventer) writeSysEvent(ctx context.Context, sysEvent *sysEvent) error {
	const op = "event.(Eventer).writeSysEvent"
	if !e.conf.SysEventsEnabled {
		return nil
	}
	if err := sysEvent.validate(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := e.send(ctx, SystemType, sysEvent); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (e *Eventer) send(ctx context.Context, t Type, payload any) error {
	const op = "event.(Eventer).send"
	status, err := e.broker.Send(ctx, eventlogger.EventType(t), payload)
	if err != nil {
		e.logger.Error("encountered an error sending an event", "error:", err.Error())
		return fmt.Errorf("%s: %w", op, err)
	}
	if len(status.Warnings) > 0 {
		var w error
		for _, warning := range status.Warnings {
			w = multierror.Append(w, warning)
		}
		e.logger.Warn("encountered warnings sending an event", "warnings:", w.Error())
	}
	return nil
}

// Reopen can used during a SIGHUP to reopen all the underlying sink files
func (e *Eventer) Reopen() error {
	if e.broker != nil {
		e.reopenLock.Lock()
		defer e.reopenLock.Unlock()
		return e.broker.Reopen(context.Background())
	}
	return nil
}
