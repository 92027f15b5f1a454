package remote

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/visionegg/visionegg-sub000/internal/param"
)

// #region fakes
type fakeToken struct{ err error }

func (t *fakeToken) Wait() bool { return true }
func (t *fakeToken) WaitTimeout(time.Duration) bool { return true }
func (t *fakeToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}
func (t *fakeToken) Error() error { return t.err }

// stallToken completes only once its channel is closed.
type stallToken struct {
	fakeToken
	ch chan struct{}
}

func (t *stallToken) Wait() bool {
	<-t.ch
	return true
}

func (t *stallToken) WaitTimeout(d time.Duration) bool {
	select {
	case <-t.ch:
		return true
	case <-time.After(d):
		return false
	}
}
func (t *stallToken) Done() <-chan struct{} { return t.ch }

type published struct {
	topic   string
	payload []byte
}

type fakeClient struct {
	mqtt.Client

	mu        sync.Mutex
	handler   mqtt.MessageHandler
	published []published
	stall     chan struct{} // when set, publishes wait for it to close
}

func (c *fakeClient) Subscribe(_ string, _ byte, cb mqtt.MessageHandler) mqtt.Token {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handler = cb
	return &fakeToken{}
}

func (c *fakeClient) Unsubscribe(...string) mqtt.Token { return &fakeToken{} }
func (c *fakeClient) IsConnected() bool { return true }

func (c *fakeClient) Publish(topic string, _ byte, _ bool, payload interface{}) mqtt.Token {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.published = append(c.published, published{topic: topic, payload: payload.([]byte)})
	if c.stall != nil {
		return &stallToken{ch: c.stall}
	}
	return &fakeToken{}
}

func (c *fakeClient) deliver(payload string) {
	c.mu.Lock()
	h := c.handler
	c.mu.Unlock()
	h(c, &fakeMessage{payload: []byte(payload)})
}

func (c *fakeClient) waitPublished(t *testing.T, n int) []published {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		c.mu.Lock()
		if len(c.published) >= n {
			out := append([]published(nil), c.published...)
			c.mu.Unlock()
			return out
		}
		c.mu.Unlock()
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %d publishes", n)
	return nil
}

type fakeMessage struct {
	mqtt.Message
	payload []byte
}

func (m *fakeMessage) Payload() []byte { return m.payload }

// #endregion fakes

func startMQTT(t *testing.T) (*fakeClient, *Proxy, *Trigger) {
	t.Helper()
	reg := NewRegistry()
	proxy, err := reg.Register("angle", nil, param.KindFloat)
	if err != nil {
		t.Fatal(err)
	}
	trig := NewTrigger()
	client := &fakeClient{}
	h := NewMQTTHandler(client, reg, trig, MQTTOptions{ControlTopic: "stim/control", ResponseTopic: "stim/responses"})
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	if err := h.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(func() { _ = h.Stop() })
	return client, proxy, trig
}

func decode(t *testing.T, p published) MQTTResponse {
	t.Helper()
	var resp MQTTResponse
	if err := json.Unmarshal(p.payload, &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	return resp
}

func TestMQTTAssign(t *testing.T) {
	client, proxy, _ := startMQTT(t)
	client.deliver(`{"command":"assign","name":"angle","line":"const(45.0, 0.0, float, TIME_SEC_SINCE_GO, EVERY_FRAME)","reply_to":"stim/responses/op1"}`)
	pubs := client.waitPublished(t, 1)
	if pubs[0].topic != "stim/responses/op1" {
		t.Fatalf("topic = %s", pubs[0].topic)
	}
	if resp := decode(t, pubs[0]); resp.Status != "success" || resp.CommandAck != "assign" {
		t.Fatalf("resp = %+v", resp)
	}
	proxy.Poll()
	if proxy.Swaps() != 1 {
		t.Fatalf("swaps = %d", proxy.Swaps())
	}
}

func TestMQTTAssignMalformed(t *testing.T) {
	client, proxy, _ := startMQTT(t)
	client.deliver(`{"command":"assign","name":"angle","line":"const(1,2)"}`)
	pubs := client.waitPublished(t, 1)
	if pubs[0].topic != "stim/responses" {
		t.Fatalf("topic = %s", pubs[0].topic)
	}
	resp := decode(t, pubs[0])
	if resp.Status != "error" || resp.Error != "Error parsing command for angle: const(1,2)" {
		t.Fatalf("resp = %+v", resp)
	}
	proxy.Poll()
	if proxy.Swaps() != 0 {
		t.Fatal("malformed assign must not swap")
	}
}

func TestMQTTGoNamesAndErrors(t *testing.T) {
	client, _, trig := startMQTT(t)
	client.deliver(`{"command":"go"}`)
	client.deliver(`{"command":"names"}`)
	client.deliver(`{"command":"dance"}`)
	client.deliver(`not json`)
	pubs := client.waitPublished(t, 4)
	if trig.Fired() != 1 {
		t.Fatalf("fired = %d", trig.Fired())
	}
	statuses := map[string]string{}
	for _, p := range pubs {
		r := decode(t, p)
		statuses[r.CommandAck] = r.Status
	}
	if statuses["go"] != "success" || statuses["names"] != "success" {
		t.Fatalf("statuses = %v", statuses)
	}
	if statuses["dance"] != "error" || statuses["unknown"] != "error" {
		t.Fatalf("statuses = %v", statuses)
	}
}

func TestMQTTPublishDoesNotWaitForBroker(t *testing.T) {
	client := &fakeClient{stall: make(chan struct{})}
	h := NewMQTTHandler(client, NewRegistry(), nil, MQTTOptions{ControlTopic: "stim/control", ResponseTopic: "stim/responses", QueueSize: 2})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := h.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}

	start := time.Now()
	accepted := 0
	for i := 0; i < 10; i++ {
		err := h.Publish("stim/trials", map[string]int{"trial": i})
		switch {
		case err == nil:
			accepted++
		case !errors.Is(err, ErrPublishQueueFull):
			t.Fatalf("Publish: %v", err)
		}
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Fatalf("Publish blocked for %v", elapsed)
	}
	// two queued, plus at most one taken by the stalled publisher
	if accepted < 2 || accepted > 3 {
		t.Fatalf("accepted = %d", accepted)
	}

	close(client.stall)
	got := client.waitPublished(t, accepted)
	if got[0].topic != "stim/trials" {
		t.Fatalf("topic = %s", got[0].topic)
	}
}
