package chat

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/lnmarket/marketd/internal/api"
	"github.com/lnmarket/marketd/internal/rate"
	log "github.com/sirupsen/logrus"
	xrate "golang.org/x/time/rate"
)

// Service serves the order-chat websocket endpoint and the room history API.
type Service struct {
	notifier *Notifier
	store    *Store
	limiter  *rate.Limiter
	upgrader websocket.Upgrader
}

func NewService(notifier *Notifier, store *Store) *Service {
	return &Service{
		notifier: notifier,
		store:    store,
		// chat rooms are low traffic; 10 frames/s per room is generous
		limiter: rate.NewLimiter(xrate.Limit(10), 20),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// the room id in the path is the only admission control here,
			// same as the marketplace frontends expect
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

func (s *Service) Notifier() *Notifier {
	return s.notifier
}

// Handle runs one connection's receive loop. Every frame is parsed, tagged
// with its room and fanned out to the room members. If the connection finds
// itself dropped from the room (a concurrent remove can race a send), it
// rejoins instead of losing the message.
func (s *Service) Handle(w http.ResponseWriter, r *http.Request) {
	roomName := mux.Vars(r)["room_name"]
	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Errorf("[Chat] upgrade: %v", err)
		return
	}
	c := NewConnection(ws)
	s.notifier.Connect(c, roomName)
	defer func() {
		s.notifier.Remove(c, roomName)
		c.Close()
	}()

	for {
		data, err := c.Receive()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Debugf("[Chat] %s left room %s: %v", c.RemoteAddr(), roomName, err)
			}
			return
		}
		if err = s.limiter.GetLimiter(roomName).Wait(r.Context()); err != nil {
			return
		}

		message := map[string]interface{}{}
		if err = json.Unmarshal(data, &message); err != nil {
			log.Warnf("[Chat] bad frame in room %s: %v", roomName, err)
			continue
		}
		message["room_name"] = roomName

		if !s.notifier.Contains(c, roomName) {
			log.Debugf("[Chat] sender not in room %s, rejoining", roomName)
			s.notifier.Connect(c, roomName)
		}

		if s.store != nil {
			if _, err = s.store.AddMessage(roomName, message); err != nil {
				log.Errorf("[Chat] persist message in room %s: %v", roomName, err)
			}
		}
		s.notifier.Notify(message, roomName)
	}
}

// GetMessages returns the stored history of a room.
func (s *Service) GetMessages(w http.ResponseWriter, r *http.Request) {
	roomName := mux.Vars(r)["room_name"]
	if s.store == nil {
		api.NotFoundHandler(w, nil)
		return
	}
	messages, err := s.store.Messages(roomName)
	if err != nil {
		api.NotFoundHandler(w, err)
		return
	}
	api.WriteResponse(w, messages)
}
