package realtime

import (
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/camden-git/facebench/recognition"
)

const (
	mqttQueueSize      = 128
	mqttPublishTimeout = 2 * time.Second
)

// ConnectMQTT connects to broker ("host:port" or a full URL) with automatic
// reconnection.
func ConnectMQTT(broker, clientID string) (mqtt.Client, error) {
	if !strings.Contains(broker, "://") {
		broker = "tcp://" + broker
	}
	opts := mqtt.NewClientOptions()
	opts.AddBroker(broker)
	opts.SetClientID(clientID)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(2 * time.Second)
	opts.SetMaxReconnectInterval(30 * time.Second)
	opts.OnConnect = func(mqtt.Client) {
		log.Printf("mqtt: connected to %s", broker)
	}
	opts.OnConnectionLost = func(_ mqtt.Client, err error) {
		log.Printf("mqtt: connection to %s lost, reconnecting: %v", broker, err)
	}

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(5 * time.Second) {
		return nil, fmt.Errorf("mqtt connection to %s timed out", broker)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("mqtt connection to %s failed: %w", broker, err)
	}
	return client, nil
}

type mqttMessage struct {
	topic   string
	payload []byte
}

// Publisher sends detection events to <topic>/events and session summaries to
// <topic>/sessions from a background goroutine. When the queue is full new
// messages are dropped.
type Publisher struct {
	client mqtt.Client
	topic  string
	queue  chan mqttMessage
	wg     sync.WaitGroup

	mu        sync.Mutex
	published int
	dropped   int
	failed    int
	closed    bool
}

func NewPublisher(client mqtt.Client, topic string) *Publisher {
	p := &Publisher{
		client: client,
		topic:  strings.TrimSuffix(topic, "/"),
		queue:  make(chan mqttMessage, mqttQueueSize),
	}
	p.wg.Add(1)
	go p.loop()
	return p
}

func (p *Publisher) loop() {
	defer p.wg.Done()
	for msg := range p.queue {
		err := p.send(msg)
		p.mu.Lock()
		if err != nil {
			p.failed++
		} else {
			p.published++
		}
		p.mu.Unlock()
		if err != nil {
			log.Printf("mqtt: publish to %s failed: %v", msg.topic, err)
		}
	}
}

func (p *Publisher) send(msg mqttMessage) error {
	if !p.client.IsConnected() {
		return fmt.Errorf("mqtt not connected")
	}
	token := p.client.Publish(msg.topic, 0, false, msg.payload)
	if !token.WaitTimeout(mqttPublishTimeout) {
		return fmt.Errorf("publish timeout")
	}
	return token.Error()
}

func (p *Publisher) enqueue(suffix string, msg Message) {
	payload, err := json.Marshal(msg)
	if err != nil {
		log.Printf("mqtt: failed to marshal %s message: %v", msg.Type, err)
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	select {
	case p.queue <- mqttMessage{topic: p.topic + "/" + suffix, payload: payload}:
	default:
		p.dropped++
	}
}

func (p *Publisher) PublishEvent(ev recognition.DetectionEvent) {
	p.enqueue("events", detectionMessage(ev))
}

func (p *Publisher) PublishSession(s SessionSummary) {
	p.enqueue("sessions", sessionMessage(s))
}

// Counts returns published, dropped and failed message totals.
func (p *Publisher) Counts() (published, dropped, failed int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.published, p.dropped, p.failed
}

// Close flushes queued messages and disconnects the client.
func (p *Publisher) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.queue)
	p.mu.Unlock()

	p.wg.Wait()
	if p.client.IsConnected() {
		p.client.Disconnect(250)
	}
}
