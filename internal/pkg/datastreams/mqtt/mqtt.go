package mqtt

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"github.com/ohowland/cgc_reserve/internal/pkg/datastreams/natshandler"
	"github.com/ohowland/cgc_reserve/internal/pkg/msg"
	"github.com/rs/zerolog/log"
)

const (
	DefaultTopic = "reserve/runs"
	timeout      = 5 * time.Second
)

// Handler publishes run summaries to an MQTT broker.
type Handler struct {
	mux    *sync.Mutex
	inbox  <-chan msg.Msg
	pid    uuid.UUID
	config Config
	dial   func(cfg Config, clientID string) (client, error)
	stop   chan bool
	done   chan struct{}
}

type Config struct {
	Broker string `yaml:"broker" env:"RESERVE_MQTT_BROKER"`
	Topic  string `yaml:"topic" env:"RESERVE_MQTT_TOPIC" env-default:"reserve/runs"`
	QoS    byte   `yaml:"qos" env:"RESERVE_MQTT_QOS" env-default:"1"`
}

type client interface {
	Publish(topic string, qos byte, payload []byte) error
	Close()
}

type pahoClient struct {
	c paho.Client
}

func (p pahoClient) Publish(topic string, qos byte, payload []byte) error {
	token := p.c.Publish(topic, qos, false, payload)
	if !token.WaitTimeout(timeout) {
		return fmt.Errorf("mqtt: publish to %s timed out", topic)
	}
	return token.Error()
}

func (p pahoClient) Close() {
	p.c.Disconnect(250)
}

func dialBroker(cfg Config, clientID string) (client, error) {
	opts := paho.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectionLostHandler(func(_ paho.Client, err error) {
			log.Warn().Err(err).Msg("[MQTT client] connection lost")
		})
	c := paho.NewClient(opts)
	token := c.Connect()
	if !token.WaitTimeout(timeout) {
		return nil, fmt.Errorf("mqtt: connect to %s timed out", cfg.Broker)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("mqtt: %w", err)
	}
	return pahoClient{c: c}, nil
}

func (h Handler) PID() uuid.UUID {
	return h.pid
}

func redirectMsg(chIn <-chan msg.Msg, chOut chan<- msg.Msg) {
	for m := range chIn {
		chOut <- m
	}
}

// New subscribes a forwarder to the run events of system.
func New(cfg Config, system msg.Publisher) (Handler, error) {
	if cfg.Broker == "" {
		cfg.Broker = "tcp://127.0.0.1:1883"
	}
	if cfg.Topic == "" {
		cfg.Topic = DefaultTopic
	}
	if cfg.QoS > 2 {
		return Handler{}, fmt.Errorf("mqtt: invalid qos %d", cfg.QoS)
	}

	pid, err := uuid.NewUUID()
	if err != nil {
		return Handler{}, err
	}

	inbox := make(chan msg.Msg, 50)
	for _, topic := range []msg.Topic{msg.RunCompleted, msg.RunFailed} {
		ch, err := system.Subscribe(pid, topic)
		if err != nil {
			return Handler{}, err
		}
		go redirectMsg(ch, inbox)
	}

	return Handler{
		mux:    &sync.Mutex{},
		inbox:  inbox,
		pid:    pid,
		config: cfg,
		dial:   dialBroker,
		stop:   make(chan bool),
		done:   make(chan struct{}),
	}, nil
}

// Stop ends Process and waits for it to return.
func (h *Handler) Stop() {
	h.stop <- true
	<-h.done
}

// Process forwards run summaries until Stop is called.
func (h Handler) Process() error {
	defer close(h.done)
	c, err := h.dial(h.config, "reservedash-"+h.pid.String())
	if err != nil {
		log.Error().Err(err).Str("broker", h.config.Broker).Msg("[MQTT client] connect failed")
		<-h.stop
		return err
	}
	defer c.Close()
	log.Info().Str("broker", h.config.Broker).Str("topic", h.config.Topic).Msg("[MQTT client] Process Started")

loop:
	for {
		select {
		case m := <-h.inbox:
			s, ok := natshandler.Summarize(m)
			if !ok {
				continue
			}
			payload, err := json.Marshal(s)
			if err != nil {
				continue
			}
			h.mux.Lock()
			err = c.Publish(h.config.Topic+"/"+s.Status, h.config.QoS, payload)
			h.mux.Unlock()
			if err != nil {
				log.Warn().Err(err).Msg("[MQTT client] unable to publish")
			}
		case <-h.stop:
			break loop
		}
	}
	log.Info().Msg("[MQTT client] Process Shutdown")
	return nil
}
