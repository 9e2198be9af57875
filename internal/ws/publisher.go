package ws

import (
	"context"

	"go_domainlink/internal/notify"
)

// SocketMessenger pushes notifications to the user's dashboard connections
type SocketMessenger struct {
	server *Server
}

// NewSocketMessenger creates a SocketMessenger broadcasting through server
func NewSocketMessenger(server *Server) *SocketMessenger {
	return &SocketMessenger{server: server}
}

// Send implements notify.Messenger
func (m *SocketMessenger) Send(_ context.Context, msg notify.Message) bool {
	if m.server == nil || msg.UserID <= 0 {
		return false
	}
	m.server.BroadcastToUser(msg.UserID, EventNotification, msg)
	return true
}
