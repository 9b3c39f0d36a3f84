package webservice

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/ohowland/cgc_reserve/internal/pkg/root"
	"github.com/ohowland/cgc_reserve/internal/pkg/settings"
	"github.com/rs/zerolog/log"
)

const (
	writeWait      = 10 * time.Second
	maxMessageSize = 1 << 16
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Reply is sent for every settings message received on the socket.
type Reply struct {
	Type     string    `json:"type"`
	Run      *root.Run `json:"run,omitempty"`
	Error    string    `json:"error,omitempty"`
	Problems []string  `json:"problems,omitempty"`
}

// SocketHandler answers each settings message with a Reply.
func (app *App) SocketHandler(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Msg("[Webservice] websocket upgrade")
		return
	}
	defer conn.Close()
	conn.SetReadLimit(maxMessageSize)

	log.Debug().Str("remote", r.RemoteAddr).Msg("[Webservice] websocket opened")
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Warn().Err(err).Msg("[Webservice] websocket read")
			}
			return
		}

		reply := app.answer(r, data)
		conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteJSON(reply); err != nil {
			log.Warn().Err(err).Msg("[Webservice] websocket write")
			return
		}
	}
}

func (app *App) answer(r *http.Request, data []byte) Reply {
	var s settings.Settings
	if err := json.Unmarshal(data, &s); err != nil {
		return errorReply(settings.ValidationError{Problems: []string{"malformed JSON: " + err.Error()}})
	}
	if err := s.Validate(); err != nil {
		return errorReply(err)
	}
	run, err := app.solve(r.Context(), s)
	if err != nil {
		return errorReply(err)
	}
	return Reply{Type: "run", Run: &run}
}

func errorReply(err error) Reply {
	resp := toErrorResponse(err)
	return Reply{Type: "error", Error: resp.Error, Problems: resp.Problems}
}
