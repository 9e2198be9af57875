package ws

import (
	"context"
	"time"

	"go_domainlink/internal/linking"

	socketio "github.com/googollee/go-socket.io"
)

const requestTimeout = 10 * time.Second

// StatusSource answers the dashboard's status requests
type StatusSource interface {
	ListActiveIntents(ctx context.Context, userID int) ([]linking.IntentSummary, error)
	GetUserWorkflowStatus(ctx context.Context, userID int, intentID string) (*linking.WorkflowStatus, error)
}

// RegisterStatusHandlers wires the request:intents and request:status events to source.
// It must be called before Start.
func (s *Server) RegisterStatusHandlers(source StatusSource) {
	s.io.OnEvent("/", "request:intents", func(conn socketio.Conn, _ interface{}) {
		uid, ok := connUser(conn)
		if !ok {
			conn.Emit(EventError, errorPayload("not authenticated"))
			return
		}
		event, payload := intentsPayload(source, uid)
		conn.Emit(event, payload)
	})

	s.io.OnEvent("/", "request:status", func(conn socketio.Conn, data interface{}) {
		uid, ok := connUser(conn)
		if !ok {
			conn.Emit(EventError, errorPayload("not authenticated"))
			return
		}
		event, payload := statusPayload(source, uid, requestedIntentID(data))
		conn.Emit(event, payload)
	})

	s.logger.Debug("Status event handlers registered")
}

func intentsPayload(source StatusSource, uid int) (string, interface{}) {
	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()

	items, err := source.ListActiveIntents(ctx, uid)
	if err != nil {
		return EventError, errorPayload("failed to list linking workflows")
	}
	if items == nil {
		items = []linking.IntentSummary{}
	}
	return EventIntents, map[string]interface{}{
		"items": items,
		"total": len(items),
	}
}

func statusPayload(source StatusSource, uid int, intentID string) (string, interface{}) {
	if intentID == "" {
		return EventError, errorPayload("intent_id is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()

	status, err := source.GetUserWorkflowStatus(ctx, uid, intentID)
	if err != nil {
		return EventError, errorPayload(linking.ErrIntentNotFound.Error())
	}
	return EventStatus, status
}

// requestedIntentID accepts {"intent_id": "..."} or a bare string
func requestedIntentID(data interface{}) string {
	switch v := data.(type) {
	case string:
		return v
	case map[string]interface{}:
		if id, ok := v["intent_id"].(string); ok {
			return id
		}
	}
	return ""
}

func errorPayload(message string) map[string]interface{} {
	return map[string]interface{}{"message": message}
}
