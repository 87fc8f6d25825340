package controller

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/nerrad567/flowbench-core/internal/infrastructure/mqtt"
	"github.com/nerrad567/flowbench-core/internal/sequence"
	"github.com/nerrad567/flowbench-core/internal/valve"
)

const defaultAckTimeout = 5 * time.Second

// Broker is the subset of *mqtt.Client the sink needs.
type Broker interface {
	PublishJSON(topic string, v any) error
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
	Unsubscribe(topic string) error
}

// Logger is the logging interface used by the controller sinks.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}

// MQTTConfig configures an MQTTSink.
type MQTTConfig struct {
	BenchID    string
	AckTimeout time.Duration
	Valves     []ValveSpec
}

// MQTTSink sends sequencer commands to the bench controller over MQTT.
type MQTTSink struct {
	broker     Broker
	cmdTopic   string
	ackTopic   string
	ackTimeout time.Duration
	profiles   map[string]servoProfiles

	pending   map[string]chan Ack
	pendingMu sync.Mutex
	closed    bool

	logger Logger
}

var _ sequence.CommandSink = (*MQTTSink)(nil)

// NewMQTTSink builds a sink and precomputes servo motion profiles. Call
// Start before sending.
func NewMQTTSink(broker Broker, cfg MQTTConfig) (*MQTTSink, error) {
	if broker == nil {
		return nil, fmt.Errorf("%w: broker is required", ErrInvalidConfig)
	}
	if cfg.BenchID == "" {
		return nil, fmt.Errorf("%w: bench id is required", ErrInvalidConfig)
	}
	profiles, err := buildProfiles(cfg.Valves)
	if err != nil {
		return nil, err
	}
	timeout := cfg.AckTimeout
	if timeout <= 0 {
		timeout = defaultAckTimeout
	}
	topics := mqtt.Topics{}
	return &MQTTSink{
		broker:     broker,
		cmdTopic:   topics.BenchCommand(cfg.BenchID),
		ackTopic:   topics.BenchAck(cfg.BenchID),
		ackTimeout: timeout,
		profiles:   profiles,
		pending:    make(map[string]chan Ack),
		logger:     noopLogger{},
	}, nil
}

// SetLogger sets the logger.
func (s *MQTTSink) SetLogger(logger Logger) {
	if logger == nil {
		logger = noopLogger{}
	}
	s.logger = logger
}

// Start subscribes to the acknowledgement topic.
func (s *MQTTSink) Start() error {
	if err := s.broker.Subscribe(s.ackTopic, 1, s.handleAck); err != nil {
		return fmt.Errorf("subscribing to %s: %w", s.ackTopic, err)
	}
	return nil
}

// Close unsubscribes and fails every outstanding acknowledgement.
func (s *MQTTSink) Close() error {
	s.pendingMu.Lock()
	if s.closed {
		s.pendingMu.Unlock()
		return nil
	}
	s.closed = true
	for id, ch := range s.pending {
		close(ch)
		delete(s.pending, id)
	}
	s.pendingMu.Unlock()

	return s.broker.Unsubscribe(s.ackTopic)
}

// SendValveCommand publishes SET_VALVE. Servo valves carry their motion
// profile; closing mirrors the opening table.
func (s *MQTTSink) SendValveCommand(_ context.Context, name string, action valve.Action) error {
	cmd := newCommand(CmdSetValve)
	cmd.Valve = name
	cmd.Action = action
	if p, ok := s.profiles[name]; ok {
		mp := p.close
		if action.Opens() {
			mp = p.open
		}
		cmd.Profile = &mp
	}
	return s.publish(cmd)
}

// SendPanic publishes PANIC without waiting for an acknowledgement.
func (s *MQTTSink) SendPanic(context.Context) error {
	return s.publish(newCommand(CmdPanic))
}

// SendSequence publishes LOAD_SEQUENCE and waits for the controller to
// accept the plan.
func (s *MQTTSink) SendSequence(ctx context.Context, payload sequence.Payload) error {
	cmd := newCommand(CmdLoadSequence)
	cmd.Sequence = &payload
	return s.request(ctx, cmd)
}

// RunSequence publishes RUN_SEQUENCE and waits for the acknowledgement.
func (s *MQTTSink) RunSequence(ctx context.Context) error {
	return s.request(ctx, newCommand(CmdRunSequence))
}

func (s *MQTTSink) publish(cmd Command) error {
	s.pendingMu.Lock()
	closed := s.closed
	s.pendingMu.Unlock()
	if closed {
		return ErrClosed
	}

	if err := s.broker.PublishJSON(s.cmdTopic, cmd); err != nil {
		return fmt.Errorf("publishing %s: %w", cmd.Cmd, err)
	}
	s.logger.Debug("controller command published", "cmd", cmd.Cmd, "id", cmd.ID, "valve", cmd.Valve)
	return nil
}

// request publishes cmd and blocks until its ack, the ack timeout or ctx.
func (s *MQTTSink) request(ctx context.Context, cmd Command) error {
	ch := make(chan Ack, 1)

	s.pendingMu.Lock()
	if s.closed {
		s.pendingMu.Unlock()
		return ErrClosed
	}
	s.pending[cmd.ID] = ch
	s.pendingMu.Unlock()

	defer func() {
		s.pendingMu.Lock()
		delete(s.pending, cmd.ID)
		s.pendingMu.Unlock()
	}()

	if err := s.broker.PublishJSON(s.cmdTopic, cmd); err != nil {
		return fmt.Errorf("publishing %s: %w", cmd.Cmd, err)
	}

	timer := time.NewTimer(s.ackTimeout)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return fmt.Errorf("%w: %s after %v", ErrAckTimeout, cmd.Cmd, s.ackTimeout)
	case ack, ok := <-ch:
		if !ok {
			return ErrClosed
		}
		if ack.Status != AckOK {
			return fmt.Errorf("%w: %s: %s", ErrNacked, cmd.Cmd, ack.Error)
		}
		s.logger.Debug("controller command acknowledged", "cmd", cmd.Cmd, "id", cmd.ID)
		return nil
	}
}

// handleAck routes an acknowledgement to its waiting request. Acks for
// commands nobody waits on are dropped.
func (s *MQTTSink) handleAck(_ string, payload []byte) error {
	var ack Ack
	if err := json.Unmarshal(payload, &ack); err != nil {
		return fmt.Errorf("decoding ack: %w", err)
	}

	// Delivery happens under pendingMu so Close cannot close ch in between.
	s.pendingMu.Lock()
	ch, ok := s.pending[ack.ID]
	if ok {
		select {
		case ch <- ack:
		default:
		}
	}
	s.pendingMu.Unlock()

	if !ok {
		s.logger.Debug("ack for unknown command", "id", ack.ID, "status", ack.Status)
	}
	return nil
}
