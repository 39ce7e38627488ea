package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/camden-git/facebench/recognition"
	"github.com/camden-git/facebench/session"
)

func TestHubBroadcastsEvents(t *testing.T) {
	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)
	defer cancel()

	srv := httptest.NewServer(http.HandlerFunc(hub.ServeWS))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, time.Second, 5*time.Millisecond)

	hub.PublishEvent(recognition.DetectionEvent{
		SessionID:  "s1",
		Model:      recognition.ArcFace,
		Kind:       recognition.Match,
		Identity:   "alice",
		Confidence: 0.8,
	})

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.Equal(t, TypeDetection, raw["type"])
	event := raw["event"].(map[string]any)
	assert.Equal(t, "match", event["kind"])
	assert.Equal(t, "alice", event["identity"])
	assert.Equal(t, "ArcFace", event["model"])
}

func TestHubShutdownDisconnectsClients(t *testing.T) {
	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(stopped)
	}()

	srv := httptest.NewServer(http.HandlerFunc(hub.ServeWS))
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	defer conn.Close()
	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, time.Second, 5*time.Millisecond)

	cancel()
	<-stopped
	assert.Equal(t, 0, hub.ClientCount())

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err = conn.ReadMessage()
	assert.Error(t, err)
}

func TestDetectionMessageCarriesError(t *testing.T) {
	msg := detectionMessage(recognition.DetectionEvent{Kind: recognition.Error, Err: errors.New("boom")})
	assert.Equal(t, "boom", msg.Error)
	assert.Equal(t, TypeDetection, msg.Type)
}

type recordingSink struct {
	events   int
	sessions int
}

func (r *recordingSink) PublishEvent(recognition.DetectionEvent) { r.events++ }
func (r *recordingSink) PublishSession(SessionSummary)           { r.sessions++ }

func TestFanoutSkipsNil(t *testing.T) {
	a, b := &recordingSink{}, &recordingSink{}
	f := Fanout{a, nil, b}
	f.PublishEvent(recognition.DetectionEvent{})
	f.PublishSession(SessionSummary{})

	assert.Equal(t, 1, a.events)
	assert.Equal(t, 1, b.sessions)
}

type fakeToken struct {
	err error
}

func (t *fakeToken) Wait() bool                     { return true }
func (t *fakeToken) WaitTimeout(time.Duration) bool { return true }
func (t *fakeToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}
func (t *fakeToken) Error() error { return t.err }

type published struct {
	topic   string
	payload []byte
}

// fakeClient implements the parts of mqtt.Client the publisher uses.
type fakeClient struct {
	mqtt.Client

	mu           sync.Mutex
	connected    bool
	messages     []published
	disconnected bool
}

func (c *fakeClient) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

func (c *fakeClient) Publish(topic string, _ byte, _ bool, payload interface{}) mqtt.Token {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.messages = append(c.messages, published{topic: topic, payload: payload.([]byte)})
	return &fakeToken{}
}

func (c *fakeClient) Disconnect(uint) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.connected = false
	c.disconnected = true
}

func TestPublisherTopics(t *testing.T) {
	client := &fakeClient{connected: true}
	p := NewPublisher(client, "facebench/")

	p.PublishEvent(recognition.DetectionEvent{Model: recognition.Dlib, Kind: recognition.Unknown})
	p.PublishSession(SessionSummary{Outcome: "success", Person: "alice", Stats: session.Stats{Model: recognition.Dlib}})
	p.Close()

	require.Len(t, client.messages, 2)
	assert.Equal(t, "facebench/events", client.messages[0].topic)
	assert.Equal(t, "facebench/sessions", client.messages[1].topic)

	var msg Message
	require.NoError(t, json.Unmarshal(client.messages[1].payload, &msg))
	require.NotNil(t, msg.Session)
	assert.Equal(t, "alice", msg.Session.Person)

	sent, dropped, failed := p.Counts()
	assert.Equal(t, 2, sent)
	assert.Zero(t, dropped)
	assert.Zero(t, failed)
	assert.True(t, client.disconnected)
}

func TestPublisherNotConnected(t *testing.T) {
	client := &fakeClient{}
	p := NewPublisher(client, "facebench")
	p.PublishEvent(recognition.DetectionEvent{})
	p.Close()

	sent, _, failed := p.Counts()
	assert.Zero(t, sent)
	assert.Equal(t, 1, failed)
	assert.Empty(t, client.messages)

	// closed publishers ignore further messages
	p.PublishEvent(recognition.DetectionEvent{})
	p.Close()
}
