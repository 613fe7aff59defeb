// Package mqtt adapts a paho client to core.Session. Every broker callback is
// turned into a core.Command and handed to the agent loop; nothing here
// touches device state.
package mqtt

import (
	"context"
	"crypto/tls"
	"fmt"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"golang.org/x/time/rate"

	"ampsupply-controller/internal/config"
	"ampsupply-controller/internal/core"
	"ampsupply-controller/internal/logging"
)

const (
	outboxSize      = 32
	publishTimeout  = 5 * time.Second
	disconnectQuiet = 250 // ms
)

// client is the part of paho.Client the session uses.
type client interface {
	Connect() paho.Token
	Disconnect(quiesce uint)
	IsConnected() bool
	Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token
	SubscribeMultiple(filters map[string]byte, callback paho.MessageHandler) paho.Token
}

type outbound struct {
	topic    string
	payload  string
	retained bool
}

// Session implements core.Session on top of paho.
type Session struct {
	client   client
	topics   core.Topics
	qos      byte
	commands core.CommandChannel
	log      *logging.Logger

	outbox  chan outbound
	limiter *rate.Limiter

	// gen counts Connect calls. A Disconnect is dropped when a newer
	// Connect was issued before it reached the client.
	mu  sync.Mutex
	gen uint64

	done      chan struct{}
	closeOnce sync.Once
}

// NewSession configures the paho client. The broker is not contacted until
// Connect is called.
func NewSession(cfg config.MQTTConfig, topics core.Topics, commands core.CommandChannel, log *logging.Logger) *Session {
	s := newSession(cfg, topics, commands, log)
	opts := clientOptions(cfg, topics)
	opts.SetOnConnectHandler(func(paho.Client) { s.onConnect() })
	opts.SetConnectionLostHandler(func(_ paho.Client, err error) { s.onConnectionLost(err) })
	opts.SetReconnectingHandler(func(paho.Client, *paho.ClientOptions) {
		s.log.Info("reconnecting to broker")
	})
	s.client = paho.NewClient(opts)
	return s
}

func newSession(cfg config.MQTTConfig, topics core.Topics, commands core.CommandChannel, log *logging.Logger) *Session {
	return &Session{
		topics:   topics,
		qos:      byte(cfg.QoS),
		commands: commands,
		log:      log.With("component", "mqtt"),
		outbox:   make(chan outbound, outboxSize),
		limiter:  rate.NewLimiter(rate.Limit(cfg.PublishRate), cfg.PublishBurst),
		done:     make(chan struct{}),
	}
}

func clientOptions(cfg config.MQTTConfig, topics core.Topics) *paho.ClientOptions {
	opts := paho.NewClientOptions()
	opts.AddBroker(cfg.BrokerURL())
	opts.SetClientID(cfg.ClientID)
	opts.SetUsername(cfg.Username)
	opts.SetPassword(cfg.Password)
	if cfg.TLS {
		opts.SetTLSConfig(&tls.Config{MinVersion: tls.VersionTLS12})
	}

	opts.SetKeepAlive(cfg.KeepAlive)
	opts.SetPingTimeout(cfg.KeepAlive / 2)
	opts.SetAutoReconnect(true)
	opts.SetMaxReconnectInterval(cfg.MaxReconnect)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(cfg.RetryDelay)
	opts.SetOrderMatters(false)

	opts.SetWill(topics.Availability(), "offline", byte(cfg.QoS), true)
	return opts
}

// Run drains the outbox at the configured rate until ctx is cancelled.
func (s *Session) Run(ctx context.Context) {
	s.log.Debug("publish writer started")
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-s.outbox:
			if err := s.limiter.Wait(ctx); err != nil {
				return
			}
			if err := s.send(msg); err != nil {
				s.log.Warn("publish failed", "topic", msg.topic, "error", err)
			}
		}
	}
}

// Close stops callbacks from reaching the command channel.
func (s *Session) Close() {
	s.closeOnce.Do(func() { close(s.done) })
}

// Stop is the shutdown path: it announces offline and disconnects
// synchronously, without reporting back to the agent.
func (s *Session) Stop() {
	s.Close()
	if s.client.IsConnected() {
		token := s.client.Publish(s.topics.Availability(), s.qos, true, "offline")
		if !token.WaitTimeout(2 * time.Second) {
			s.log.Warn("timed out publishing offline status")
		}
	}
	s.client.Disconnect(disconnectQuiet)
	s.log.Info("session stopped")
}

// Connect starts connecting in the background. paho keeps retrying until it
// succeeds or Disconnect is called.
func (s *Session) Connect() {
	s.mu.Lock()
	s.gen++
	token := s.client.Connect()
	s.mu.Unlock()

	s.log.Info("connecting to broker")
	go func() {
		if token.Wait() && token.Error() != nil {
			s.log.Error("connect failed", "error", token.Error())
		}
	}()
}

// Disconnect announces offline, closes the connection and reports back.
// It is abandoned, without a report, when Connect is called again before the
// client is closed.
func (s *Session) Disconnect() {
	gen := s.generation()
	go func() {
		if s.generation() == gen && s.client.IsConnected() {
			token := s.client.Publish(s.topics.Availability(), s.qos, true, "offline")
			if !token.WaitTimeout(2 * time.Second) {
				s.log.Warn("timed out publishing offline status")
			}
		}

		s.mu.Lock()
		if s.gen != gen {
			s.mu.Unlock()
			s.log.Debug("disconnect superseded by a newer connect")
			return
		}
		s.client.Disconnect(disconnectQuiet)
		s.mu.Unlock()

		s.log.Info("disconnected from broker")
		s.submit(core.Command{Type: core.CmdSessionDisconnected})
	}()
}

func (s *Session) generation() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gen
}

// Reset drops everything still queued for the previous connection.
func (s *Session) Reset() {
	dropped := 0
	for {
		select {
		case <-s.outbox:
			dropped++
		default:
			if dropped > 0 {
				s.log.Debug("outbox cleared", "dropped", dropped)
			}
			return
		}
	}
}

// Subscribe registers for the given topics. Deliveries become CmdMessage.
func (s *Session) Subscribe(topics ...string) {
	filters := make(map[string]byte, len(topics))
	for _, t := range topics {
		filters[t] = s.qos
	}
	token := s.client.SubscribeMultiple(filters, s.onMessage)
	go func() {
		if token.Wait() && token.Error() != nil {
			s.log.Error("subscribe failed", "topics", topics, "error", token.Error())
			return
		}
		s.log.Info("subscribed", "topics", topics)
	}()
}

// Publish queues a message. It never blocks; a full outbox drops the message.
func (s *Session) Publish(topic, payload string) {
	s.enqueue(outbound{topic: topic, payload: payload})
}

func (s *Session) enqueue(msg outbound) {
	select {
	case s.outbox <- msg:
	default:
		s.log.Warn("dropping message", "topic", msg.topic, "error", ErrOutboxFull)
	}
}

func (s *Session) send(msg outbound) error {
	if !s.client.IsConnected() {
		return ErrNotConnected
	}
	token := s.client.Publish(msg.topic, s.qos, msg.retained, msg.payload)
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("publish to %s: timeout", msg.topic)
	}
	return token.Error()
}

func (s *Session) onConnect() {
	s.log.Info("connected to broker")
	s.enqueue(outbound{topic: s.topics.Availability(), payload: "online", retained: true})
	s.submit(core.Command{Type: core.CmdSessionConnected})
}

func (s *Session) onConnectionLost(err error) {
	s.log.Warn("connection lost", "error", err)
	s.submit(core.Command{Type: core.CmdSessionError, Err: err})
}

func (s *Session) onMessage(_ paho.Client, msg paho.Message) {
	payload := make([]byte, len(msg.Payload()))
	copy(payload, msg.Payload())
	s.submit(core.Command{Type: core.CmdMessage, Topic: msg.Topic(), Payload: payload})
}

func (s *Session) submit(cmd core.Command) {
	select {
	case s.commands <- cmd:
	case <-s.done:
	}
}
