package ws

import (
	"fmt"
	"net/http"

	socketio "github.com/googollee/go-socket.io"
	"github.com/googollee/go-socket.io/engineio"
	"github.com/googollee/go-socket.io/engineio/transport"
	"github.com/googollee/go-socket.io/engineio/transport/polling"
	"github.com/googollee/go-socket.io/engineio/transport/websocket"
	"github.com/sirupsen/logrus"
)

// Event names pushed to dashboard clients
const (
	EventConnected    = "connected"
	EventNotification = "linking:notification"
	EventIntents      = "linking:intents"
	EventStatus       = "linking:status"
	EventError        = "error"
)

// Server is the Socket.IO endpoint of the dashboard
type Server struct {
	io     *socketio.Server
	logger *logrus.Entry
}

// UserRoom returns the room every connection of uid joins
func UserRoom(uid int) string {
	return fmt.Sprintf("user:%d", uid)
}

// NewServer creates the Socket.IO server. Connections are authenticated
// with a JWT and placed in their user's room.
func NewServer(logger *logrus.Entry) *Server {
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}
	s := &Server{
		logger: logger.WithField("component", "ws"),
	}

	allowAll := func(r *http.Request) bool {
		return true
	}
	s.io = socketio.NewServer(&engineio.Options{
		Transports: []transport.Transport{
			&polling.Transport{CheckOrigin: allowAll},
			&websocket.Transport{CheckOrigin: allowAll},
		},
	})

	s.io.OnConnect("/", s.onConnect)

	s.io.OnDisconnect("/", func(conn socketio.Conn, reason string) {
		s.logger.Debugf("Client disconnected: %s, reason: %s", conn.ID(), reason)
	})

	s.io.OnError("/", func(conn socketio.Conn, e error) {
		if conn == nil {
			s.logger.Warnf("Socket error: %v", e)
			return
		}
		s.logger.Warnf("Error for client %s: %v", conn.ID(), e)
	})

	return s
}

func (s *Server) onConnect(conn socketio.Conn) error {
	u := conn.URL()
	uid, err := authenticate(u.Query().Get("token"), conn.RemoteHeader().Get("Authorization"))
	if err != nil {
		s.logger.Infof("Connection %s rejected: %v", conn.ID(), err)
		return err
	}

	conn.SetContext(uid)
	conn.Join(UserRoom(uid))
	s.logger.WithField("user_id", uid).Debugf("Client connected: %s", conn.ID())

	conn.Emit(EventConnected, map[string]interface{}{
		"ok": true,
	})
	return nil
}

// Start serves the Socket.IO engine in the background
func (s *Server) Start() {
	go func() {
		if err := s.io.Serve(); err != nil {
			s.logger.Errorf("Socket.IO server stopped: %v", err)
		}
	}()
	s.logger.Info("Socket.IO server started")
}

// Close stops the Socket.IO engine
func (s *Server) Close() error {
	return s.io.Close()
}

// Handler returns the HTTP handler for /socket.io/ with handshake authentication
func (s *Server) Handler() http.Handler {
	return WrapWithAuth(s.io, s.logger)
}

// BroadcastToUser sends an event to every connection of uid
func (s *Server) BroadcastToUser(uid int, event string, data interface{}) {
	s.io.BroadcastToRoom("/", UserRoom(uid), event, data)
}
