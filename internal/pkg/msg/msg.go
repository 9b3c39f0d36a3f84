package msg

import (
	"errors"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Topic identifies a class of messages.
type Topic int

const (
	// RunCompleted carries a finished pipeline run.
	RunCompleted Topic = iota
	// RunFailed carries a RunError.
	RunFailed
)

func (t Topic) String() string {
	switch t {
	case RunCompleted:
		return "run.completed"
	case RunFailed:
		return "run.failed"
	}
	return "unknown"
}

var ErrSubscribed = errors.New("msg: already subscribed")

// Publisher is an interface for objects that allow subscribtion to their events
type Publisher interface {
	Subscribe(uuid.UUID, Topic) (<-chan Msg, error)
	Unsubscribe(uuid.UUID)
}

// Msg is the unit of delivery between components.
type Msg struct {
	sender  uuid.UUID
	topic   Topic
	payload interface{}
}

// New is the Msg factor function
func New(sender uuid.UUID, topic Topic, payload interface{}) Msg {
	return Msg{sender, topic, payload}
}

// PID returns the sender's PID
func (v Msg) PID() uuid.UUID {
	return v.sender
}

func (v Msg) Topic() Topic {
	return v.topic
}

// Payload returns the message data
func (v Msg) Payload() interface{} {
	return v.payload
}

const bufferSize = 50

// PubSub fans messages out to subscribers by topic. Slow subscribers drop
// messages rather than block the publisher.
type PubSub struct {
	mux         *sync.RWMutex
	pid         uuid.UUID
	subscribers map[Topic]map[uuid.UUID]chan Msg
}

// NewPublisher returns a PubSub that stamps messages with pid.
func NewPublisher(pid uuid.UUID) *PubSub {
	return &PubSub{
		mux:         &sync.RWMutex{},
		pid:         pid,
		subscribers: make(map[Topic]map[uuid.UUID]chan Msg),
	}
}

func (p *PubSub) PID() uuid.UUID { return p.pid }

// Subscribe returns a buffered channel receiving messages on topic.
func (p *PubSub) Subscribe(pid uuid.UUID, topic Topic) (<-chan Msg, error) {
	p.mux.Lock()
	defer p.mux.Unlock()
	subs, ok := p.subscribers[topic]
	if !ok {
		subs = make(map[uuid.UUID]chan Msg)
		p.subscribers[topic] = subs
	}
	if _, ok := subs[pid]; ok {
		return nil, ErrSubscribed
	}
	ch := make(chan Msg, bufferSize)
	subs[pid] = ch
	return ch, nil
}

// Unsubscribe closes every channel held by pid.
func (p *PubSub) Unsubscribe(pid uuid.UUID) {
	p.mux.Lock()
	defer p.mux.Unlock()
	for _, subs := range p.subscribers {
		if ch, ok := subs[pid]; ok {
			close(ch)
			delete(subs, pid)
		}
	}
}

// Publish delivers payload on topic and returns the number of subscribers
// that received it.
func (p *PubSub) Publish(topic Topic, payload interface{}) int {
	return p.Forward(New(p.pid, topic, payload))
}

// Forward delivers m unchanged, keeping its original sender.
func (p *PubSub) Forward(m Msg) int {
	p.mux.RLock()
	defer p.mux.RUnlock()
	n := 0
	for pid, ch := range p.subscribers[m.topic] {
		select {
		case ch <- m:
			n++
		default:
			log.Warn().
				Str("topic", m.topic.String()).
				Str("subscriber", pid.String()).
				Msg("[PubSub] subscriber buffer full, message dropped")
		}
	}
	return n
}
