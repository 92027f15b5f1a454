package remote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// #region mqtt-types
// MQTTCommand is a control message received on the control topic.
type MQTTCommand struct {
	Command string `json:"command"` // assign | show | go | names
	Name    string `json:"name,omitempty"`
	Line    string `json:"line,omitempty"`
	// ReplyTo is the topic the response goes to; empty means the response topic.
	ReplyTo string `json:"reply_to,omitempty"`
}

// MQTTResponse answers one MQTTCommand.
type MQTTResponse struct {
	CommandAck string         `json:"command_ack"`
	Status     string         `json:"status"`
	Data       map[string]any `json:"data,omitempty"`
	Error      string         `json:"error,omitempty"`
	Timestamp  string         `json:"timestamp"`
}

// MQTTOptions configures the MQTT control handler.
type MQTTOptions struct {
	ControlTopic  string
	ResponseTopic string
	QoS           byte
	QueueSize     int
}

// #endregion mqtt-types

// #region mqtt-connect
// ConnectMQTT connects to broker ("host:port") with automatic reconnection.
func ConnectMQTT(broker, clientID string, timeout time.Duration) (mqtt.Client, error) {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(fmt.Sprintf("tcp://%s", broker))
	opts.SetClientID(clientID)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(2 * time.Second)
	opts.SetMaxReconnectInterval(30 * time.Second)
	opts.OnConnect = func(mqtt.Client) {
		slog.Info("mqtt connection established", "broker", broker, "client_id", clientID)
	}
	opts.OnConnectionLost = func(_ mqtt.Client, err error) {
		slog.Warn("mqtt connection lost, will auto-reconnect", "broker", broker, "error", err)
	}

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(timeout) {
		return nil, fmt.Errorf("mqtt connect %s: timeout", broker)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("mqtt connect %s: %w", broker, err)
	}
	return client, nil
}

// #endregion mqtt-connect

// #region mqtt-handler
// ErrPublishQueueFull is returned by Publish when the outgoing queue has no room.
var ErrPublishQueueFull = errors.New("mqtt publish queue full")

// MQTTHandler serves the control protocol over MQTT. Messages are queued and
// handled on a single goroutine; when the queue is full new commands are dropped.
// Outgoing messages from Publish have their own queue and goroutine.
type MQTTHandler struct {
	client   mqtt.Client
	registry *Registry
	trigger  *Trigger
	opts     MQTTOptions
	commands chan MQTTCommand
	outbox   chan outgoing
}

type outgoing struct {
	topic   string
	payload []byte
}

// NewMQTTHandler creates a handler. trigger may be nil.
func NewMQTTHandler(client mqtt.Client, registry *Registry, trigger *Trigger, opts MQTTOptions) *MQTTHandler {
	if opts.QueueSize <= 0 {
		opts.QueueSize = 10
	}
	return &MQTTHandler{
		client:   client,
		registry: registry,
		trigger:  trigger,
		opts:     opts,
		commands: make(chan MQTTCommand, opts.QueueSize),
		outbox:   make(chan outgoing, opts.QueueSize),
	}
}

// Start subscribes to the control topic and processes commands and queued
// publishes until ctx is done.
func (h *MQTTHandler) Start(ctx context.Context) error {
	slog.Info("subscribing to control topic", "topic", h.opts.ControlTopic, "qos", h.opts.QoS)
	token := h.client.Subscribe(h.opts.ControlTopic, h.opts.QoS, h.messageHandler)
	if !token.WaitTimeout(5 * time.Second) {
		return fmt.Errorf("control subscription timeout")
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("control subscription failed: %w", err)
	}
	go h.processCommands(ctx)
	go h.processOutbox(ctx)
	return nil
}

// Stop unsubscribes. Commands already queued are abandoned.
func (h *MQTTHandler) Stop() error {
	if h.client != nil && h.client.IsConnected() {
		token := h.client.Unsubscribe(h.opts.ControlTopic)
		if !token.WaitTimeout(2 * time.Second) {
			return fmt.Errorf("control unsubscribe timeout")
		}
		return token.Error()
	}
	return nil
}

func (h *MQTTHandler) messageHandler(_ mqtt.Client, msg mqtt.Message) {
	var cmd MQTTCommand
	if err := json.Unmarshal(msg.Payload(), &cmd); err != nil {
		slog.Error("failed to parse control command", "error", err)
		h.sendResponse("", MQTTResponse{CommandAck: "unknown", Status: "error", Error: "invalid JSON"})
		return
	}
	select {
	case h.commands <- cmd:
	default:
		slog.Warn("command queue full, dropping command", "command", cmd.Command)
	}
}

func (h *MQTTHandler) processCommands(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case cmd := <-h.commands:
			h.sendResponse(cmd.ReplyTo, h.handleCommand(cmd))
		}
	}
}

func (h *MQTTHandler) handleCommand(cmd MQTTCommand) MQTTResponse {
	resp := MQTTResponse{CommandAck: cmd.Command, Status: "success"}
	switch cmd.Command {
	case "assign":
		origin := "mqtt"
		if cmd.ReplyTo != "" {
			origin = "mqtt:" + cmd.ReplyTo
		}
		if err := h.registry.Submit(cmd.Name, cmd.Line, origin); err != nil {
			resp.Status = "error"
			var perr *ProtocolError
			switch {
			case errors.As(err, &perr):
				resp.Error = perr.Error()
			default:
				resp.Error = "Error with line: " + cmd.Name + "=" + cmd.Line
			}
			return resp
		}
		resp.Data = map[string]any{"name": cmd.Name, "queued": true}
	case "show":
		p, ok := h.registry.Lookup(cmd.Name)
		if !ok {
			resp.Status = "error"
			resp.Error = "Error with line: " + cmd.Name
			return resp
		}
		resp.Data = map[string]any{"name": cmd.Name, "controller": p.Describe()}
	case "go":
		if h.trigger == nil {
			resp.Status = "error"
			resp.Error = "go not available"
			return resp
		}
		h.trigger.Fire()
	case "names":
		resp.Data = map[string]any{"names": h.registry.Names()}
	default:
		resp.Status = "error"
		resp.Error = fmt.Sprintf("unknown command: %s", cmd.Command)
	}
	return resp
}

func (h *MQTTHandler) sendResponse(replyTo string, resp MQTTResponse) {
	resp.Timestamp = time.Now().UTC().Format(time.RFC3339Nano)
	topic := replyTo
	if topic == "" {
		topic = h.opts.ResponseTopic
	}
	if err := h.PublishJSON(topic, resp); err != nil {
		slog.Error("failed to publish response", "topic", topic, "error", err)
	}
}

// Publish marshals v and queues it for topic without waiting on the broker.
// When the queue is full the message is dropped and ErrPublishQueueFull returned.
func (h *MQTTHandler) Publish(topic string, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}
	select {
	case h.outbox <- outgoing{topic: topic, payload: payload}:
		return nil
	default:
		return fmt.Errorf("publish %s: %w", topic, ErrPublishQueueFull)
	}
}

func (h *MQTTHandler) processOutbox(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-h.outbox:
			if err := h.publish(msg.topic, msg.payload); err != nil {
				slog.Warn("failed to publish", "topic", msg.topic, "error", err)
			}
		}
	}
}

// PublishJSON marshals v and publishes it on topic, waiting for the broker.
func (h *MQTTHandler) PublishJSON(topic string, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}
	return h.publish(topic, payload)
}

func (h *MQTTHandler) publish(topic string, payload []byte) error {
	token := h.client.Publish(topic, h.opts.QoS, false, payload)
	if !token.WaitTimeout(2 * time.Second) {
		return fmt.Errorf("publish %s: timeout", topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish %s: %w", topic, err)
	}
	return nil
}

// #endregion mqtt-handler
