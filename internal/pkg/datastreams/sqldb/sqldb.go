package sqldb

import (
	"sync"

	"github.com/google/uuid"
	"github.com/ohowland/cgc_reserve/internal/pkg/msg"
	"github.com/ohowland/cgc_reserve/internal/pkg/root"
	"github.com/rs/zerolog/log"
)

// Handler archives the run events of a system.
type Handler struct {
	mux     *sync.Mutex
	inbox   <-chan msg.Msg
	pid     uuid.UUID
	archive *Archive
	stop    chan bool
	done    chan struct{}
}

type Config struct {
	Driver string `yaml:"driver" env:"RESERVE_ARCHIVE_DRIVER" env-default:"sqlite"`
	Path   string `yaml:"path" env:"RESERVE_ARCHIVE_PATH" env-default:"runs.sqlite"`
	DSN    string `yaml:"dsn" env:"RESERVE_ARCHIVE_DSN"`
}

func (h Handler) PID() uuid.UUID {
	return h.pid
}

func (h Handler) Archive() *Archive {
	return h.archive
}

func redirectMsg(chIn <-chan msg.Msg, chOut chan<- msg.Msg) {
	for m := range chIn {
		chOut <- m
	}
}

// New opens the archive and subscribes to run events.
func New(cfg Config, system msg.Publisher) (Handler, error) {
	archive, err := OpenConfig(cfg)
	if err != nil {
		return Handler{}, err
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
		mux:     &sync.Mutex{},
		inbox:   inbox,
		pid:     pid,
		archive: archive,
		stop:    make(chan bool),
		done:    make(chan struct{}),
	}, nil
}

// Stop ends Process and waits for it to return.
func (h *Handler) Stop() {
	h.stop <- true
	<-h.done
}

func (h Handler) store(m msg.Msg) error {
	h.mux.Lock()
	defer h.mux.Unlock()
	switch p := m.Payload().(type) {
	case root.Run:
		return h.archive.Save(p)
	case root.RunError:
		return h.archive.SaveFailure(p)
	}
	return nil
}

func (h Handler) Process() {
	defer close(h.done)
	log.Info().Msg("[SQL] Process Started")
loop:
	for {
		select {
		case m := <-h.inbox:
			if err := h.store(m); err != nil {
				log.Error().Err(err).Str("topic", m.Topic().String()).Msg("[SQL] archive failed")
			}
		case <-h.stop:
			break loop
		}
	}
	log.Info().Msg("[SQL] Process Shutdown")
}
