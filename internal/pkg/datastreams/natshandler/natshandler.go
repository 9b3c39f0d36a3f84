package natshandler

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/ohowland/cgc_reserve/internal/pkg/msg"
	"github.com/ohowland/cgc_reserve/internal/pkg/root"
	"github.com/rs/zerolog/log"

	nats "github.com/nats-io/nats.go"
)

// DefaultSubject carries run summaries.
const DefaultSubject = "reserve.runs"

type Handler struct {
	mux    *sync.Mutex
	inbox  <-chan msg.Msg
	pid    uuid.UUID
	config Config
	dial   func(url string) (conn, error)
	stop   chan bool
	done   chan struct{}
}

type Config struct {
	URL     string `yaml:"url" env:"RESERVE_NATS_URL"`
	Subject string `yaml:"subject" env:"RESERVE_NATS_SUBJECT" env-default:"reserve.runs"`
}

type conn interface {
	Publish(subject string, data []byte) error
	Close()
}

// Summary is the message published for every run.
type Summary struct {
	ID        uuid.UUID `json:"id"`
	Status    string    `json:"status"`
	Reserve   float64   `json:"reserve"`
	LoadMax   float64   `json:"load_max"`
	Objective float64   `json:"objective,omitempty"`
	Method    string    `json:"method,omitempty"`
	Elapsed   float64   `json:"elapsed_ms,omitempty"`
	Created   time.Time `json:"created,omitempty"`
	Error     string    `json:"error,omitempty"`
}

func (h Handler) PID() uuid.UUID {
	return h.pid
}

func redirectMsg(chIn <-chan msg.Msg, chOut chan<- msg.Msg) {
	for m := range chIn {
		chOut <- m
	}
}

func dialNATS(url string) (conn, error) {
	nc, err := nats.Connect(url, nats.Name("reservedash"))
	if err != nil {
		return nil, err
	}
	return nc, nil
}

// New subscribes a forwarder to the run events of system.
func New(cfg Config, system msg.Publisher) (Handler, error) {
	if cfg.URL == "" {
		cfg.URL = nats.DefaultURL
	}
	if cfg.Subject == "" {
		cfg.Subject = DefaultSubject
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
		dial:   dialNATS,
		stop:   make(chan bool),
		done:   make(chan struct{}),
	}, nil
}

// Stop ends Process and waits for it to return.
func (h *Handler) Stop() {
	h.stop <- true
	<-h.done
}

// Summarize builds the published summary of a run event.
func Summarize(m msg.Msg) (Summary, bool) {
	switch p := m.Payload().(type) {
	case root.Run:
		return Summary{
			ID:        p.ID,
			Status:    "completed",
			Reserve:   p.Settings.Reserve,
			LoadMax:   p.Settings.LoadMax,
			Objective: p.Report.Objective,
			Method:    p.Method,
			Elapsed:   float64(p.Elapsed) / float64(time.Millisecond),
			Created:   p.Created,
		}, true
	case root.RunError:
		return Summary{
			ID:      p.ID,
			Status:  "failed",
			Reserve: p.Settings.Reserve,
			LoadMax: p.Settings.LoadMax,
			Error:   p.Err,
		}, true
	}
	return Summary{}, false
}

// Process forwards run events to NATS until Stop is called.
func (h Handler) Process() error {
	defer close(h.done)
	nc, err := h.dial(h.config.URL)
	if err != nil {
		log.Error().Err(err).Str("url", h.config.URL).Msg("[NATS client] connect failed")
		<-h.stop
		return err
	}
	defer nc.Close()
	log.Info().Str("url", h.config.URL).Str("subject", h.config.Subject).Msg("[NATS client] Process Started")

loop:
	for {
		select {
		case m := <-h.inbox:
			s, ok := Summarize(m)
			if !ok {
				continue
			}
			data, err := json.Marshal(s)
			if err != nil {
				continue
			}
			h.mux.Lock()
			err = nc.Publish(h.config.Subject, data)
			h.mux.Unlock()
			if err != nil {
				log.Warn().Err(err).Msg("[NATS client] unable to publish to nats server")
			}
		case <-h.stop:
			break loop
		}
	}
	log.Info().Msg("[NATS client] Process Shutdown")
	return nil
}
