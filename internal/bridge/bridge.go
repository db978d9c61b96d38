package bridge

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/flklr-dev/eva-link/internal/events"
	"github.com/flklr-dev/eva-link/internal/infrastructure/mqtt"
	"github.com/flklr-dev/eva-link/internal/link"
	"github.com/flklr-dev/eva-link/internal/protocol"
)

// Bridge operation constants.
const (
	// commandTimeout bounds one inbound command's link operation.
	commandTimeout = 10 * time.Second
)

// Inbound command names, the last segment of {prefix}/command/{name}.
const (
	// CmdFind toggles the find-my-device buzzer on the wearable.
	CmdFind = "find"

	// CmdSos toggles the SOS alarm on the wearable.
	CmdSos = "sos"

	// CmdDisconnectAlarm toggles the out-of-range alarm.
	CmdDisconnectAlarm = "disconnect_alarm"

	// CmdStatus requests the current alarm status from the wearable.
	CmdStatus = "status"

	// CmdInfo requests a fresh device-info/battery reading.
	CmdInfo = "info"

	// CmdDisconnect drops the link and forgets the stored device.
	CmdDisconnect = "disconnect"
)

// MQTTClient is the interface for MQTT operations.
// This allows mocking in tests and flexibility in implementation.
type MQTTClient interface {
	// Publish sends a message to a topic.
	Publish(topic string, payload []byte, qos byte, retained bool) error

	// Subscribe registers a handler for a topic pattern.
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error

	// IsConnected returns true if connected to the broker.
	IsConnected() bool
}

// LinkController is the slice of the link manager the bridge drives.
type LinkController interface {
	// State returns the current link state.
	State() link.State

	// Device returns the connected candidate, nil when not connected.
	Device() *link.Candidate

	// Stats returns a snapshot of the link counters.
	Stats() link.Stats

	// SendCommand encodes and writes a command frame to the wearable.
	SendCommand(ctx context.Context, cmd protocol.Command, payload []byte) error

	// Disconnect drops the link and clears the stored device ref.
	Disconnect(ctx context.Context) error
}

var _ LinkController = (*link.Manager)(nil)

// Bridge translates between the event dispatcher and the MQTT broker.
// It handles:
//   - Publishing link events (status, battery, alarm, error) to the broker
//   - Receiving commands from the broker and driving the link manager
//
// Thread Safety: All methods are safe for concurrent use.
type Bridge struct {
	mqtt       MQTTClient
	link       LinkController
	dispatcher *events.Dispatcher
	topics     mqtt.Topics
	qos        byte
	logger     *slog.Logger

	// unsubs releases the dispatcher registrations on Stop.
	unsubs []func()

	// Shutdown coordination
	stopOnce  sync.Once
	ctx       context.Context
	ctxCancel context.CancelFunc
}

// Options holds configuration for creating a bridge.
type Options struct {
	// MQTT is the broker client.
	MQTT MQTTClient

	// Link is the link manager.
	Link LinkController

	// Dispatcher is the event hub the link manager emits through.
	Dispatcher *events.Dispatcher

	// TopicPrefix roots every topic. Empty uses the package default.
	TopicPrefix string

	// QoS is the publish/subscribe quality of service (0, 1 or 2).
	QoS byte

	// Logger is an optional structured logger.
	Logger *slog.Logger
}

// New creates a new bridge instance.
// Call Start() to begin operation.
func New(opts Options) (*Bridge, error) {
	if opts.MQTT == nil {
		return nil, fmt.Errorf("bridge: MQTT client is required")
	}
	if opts.Link == nil {
		return nil, fmt.Errorf("bridge: link controller is required")
	}
	if opts.Dispatcher == nil {
		return nil, fmt.Errorf("bridge: dispatcher is required")
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Bridge{
		mqtt:       opts.MQTT,
		link:       opts.Link,
		dispatcher: opts.Dispatcher,
		topics:     mqtt.Topics{Prefix: opts.TopicPrefix},
		qos:        opts.QoS,
		logger:     logger,
		ctx:        ctx,
		ctxCancel:  cancel,
	}, nil
}

// Start begins bridge operation.
// It subscribes to the command topics, registers event listeners on the
// dispatcher, and publishes the current link state so new broker
// subscribers see it immediately.
func (b *Bridge) Start() error {
	commandTopic := b.topics.AllCommands()
	if err := b.mqtt.Subscribe(commandTopic, b.qos, b.handleCommand); err != nil {
		return fmt.Errorf("bridge: subscribe to commands: %w", err)
	}
	b.logger.Info("subscribed to commands", "topic", commandTopic)

	b.unsubs = []func(){
		b.dispatcher.OnStatus(b.publishStatus),
		b.dispatcher.OnBattery(b.publishBattery),
		b.dispatcher.OnAlarm(b.publishAlarm),
		b.dispatcher.OnError(b.publishError),
	}

	// Seed the retained status topic with the current state.
	b.publishStatus(b.link.State(), b.link.Device())

	b.logger.Info("bridge started", "prefix", b.topics.Prefix)
	return nil
}

// Stop detaches the bridge from the dispatcher and aborts in-flight
// command handling. The MQTT client itself is owned by the caller and is
// not closed here.
func (b *Bridge) Stop() {
	b.stopOnce.Do(func() {
		for _, unsub := range b.unsubs {
			unsub()
		}
		b.unsubs = nil
		b.ctxCancel()
		b.logger.Info("bridge stopped")
	})
}

// =============================================================================
// Outbound: dispatcher events → broker
// =============================================================================

// publishStatus publishes a retained link-state message.
func (b *Bridge) publishStatus(state link.State, device *link.Candidate) {
	if device == nil {
		device = b.link.Device()
	}
	msg := NewStatusMessage(state, device, b.link.Stats())
	b.publish(b.topics.EventStatus(), msg, true)
}

// publishBattery publishes a retained battery/device-info message.
func (b *Bridge) publishBattery(info protocol.DeviceInfo) {
	msg := NewBatteryMessage(b.deviceID(), info)
	b.publish(b.topics.EventBattery(), msg, true)
}

// publishAlarm publishes an alarm message. Not retained.
func (b *Bridge) publishAlarm(cmd protocol.Command) {
	msg := NewAlarmMessage(b.deviceID(), cmd)
	b.publish(b.topics.EventAlarm(), msg, false)
}

// publishError publishes an error message. Not retained.
func (b *Bridge) publishError(err error) {
	msg := NewErrorMessage(err)
	b.publish(b.topics.EventError(), msg, false)
}

// publish marshals and publishes one message, logging failures instead of
// propagating them: a broker hiccup must never stall the link.
func (b *Bridge) publish(topic string, msg any, retained bool) {
	payload, err := json.Marshal(msg)
	if err != nil {
		b.logger.Error("failed to marshal event", "topic", topic, "error", err)
		return
	}

	if err := b.mqtt.Publish(topic, payload, b.qos, retained); err != nil {
		b.logger.Warn("failed to publish event", "topic", topic, "error", err)
	}
}

// deviceID returns the connected wearable's address, empty when none.
func (b *Bridge) deviceID() string {
	if device := b.link.Device(); device != nil {
		return device.ID
	}
	return ""
}

// =============================================================================
// Inbound: broker commands → link manager
// =============================================================================

// handleCommand routes an inbound command message to the link manager.
// The command name is the last topic segment; the payload is an optional
// CommandMessage JSON body.
func (b *Bridge) handleCommand(topic string, payload []byte) error {
	name := commandName(topic)

	var msg CommandMessage
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &msg); err != nil {
			b.logger.Warn("malformed command payload", "topic", topic, "error", err)
			return fmt.Errorf("bridge: parse command: %w", err)
		}
	}

	b.logger.Info("received command", "command", name, "id", msg.ID, "source", msg.Source)

	ctx, cancel := context.WithTimeout(b.ctx, commandTimeout)
	defer cancel()

	var err error
	switch name {
	case CmdFind:
		err = b.link.SendCommand(ctx, protocol.FindAlarm, flagPayload(msg.Enabled()))
	case CmdSos:
		err = b.link.SendCommand(ctx, protocol.SosAlarm, flagPayload(msg.Enabled()))
	case CmdDisconnectAlarm:
		err = b.link.SendCommand(ctx, protocol.DisconnectAlarm, flagPayload(msg.Enabled()))
	case CmdStatus:
		err = b.link.SendCommand(ctx, protocol.AlarmStatusQuery, nil)
	case CmdInfo:
		err = b.link.SendCommand(ctx, protocol.DeviceInfoQuery, nil)
	case CmdDisconnect:
		err = b.link.Disconnect(ctx)
	default:
		b.logger.Warn("unknown command ignored", "command", name)
		return nil
	}

	if err != nil {
		b.publishError(fmt.Errorf("command %s: %w", name, err))
		return fmt.Errorf("bridge: command %s: %w", name, err)
	}

	return nil
}

// commandName extracts the command from the last topic segment.
func commandName(topic string) string {
	idx := strings.LastIndexByte(topic, '/')
	if idx < 0 {
		return topic
	}
	return topic[idx+1:]
}

// flagPayload encodes a boolean toggle as the single-byte command payload.
func flagPayload(enabled bool) []byte {
	if enabled {
		return []byte{0x01}
	}
	return []byte{0x00}
}
