package ws

import (
	"fmt"
	"net/http"
	"strings"

	"go_domainlink/internal/auth"

	socketio "github.com/googollee/go-socket.io"
	"github.com/sirupsen/logrus"
)

// extractToken extracts the JWT from a handshake request.
// Priority: 1. token query parameter, 2. Authorization header
func extractToken(r *http.Request) string {
	// Socket.IO client: io("url", { query: { token: "xxx" } })
	if token := r.URL.Query().Get("token"); token != "" {
		return token
	}
	token, err := auth.BearerToken(r.Header.Get("Authorization"))
	if err != nil {
		return ""
	}
	return token
}

// authenticate resolves the user of a connection from a query token or an Authorization header
func authenticate(queryToken, authHeader string) (int, error) {
	token := queryToken
	if token == "" {
		var err error
		if token, err = auth.BearerToken(authHeader); err != nil {
			return 0, err
		}
	}
	claims, err := auth.ParseToken(token)
	if err != nil {
		return 0, fmt.Errorf("invalid token: %w", err)
	}
	return claims.UID, nil
}

// WrapWithAuth rejects Socket.IO handshakes without a valid JWT
func WrapWithAuth(server *socketio.Server, logger *logrus.Entry) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Only the handshake (GET without sid) needs the check
		if r.Method == http.MethodGet && strings.Contains(r.URL.Path, "/socket.io/") && r.URL.Query().Get("sid") == "" {
			token := extractToken(r)
			if token == "" {
				logger.Debugf("Handshake rejected: no token from %s", r.RemoteAddr)
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			claims, err := auth.ParseToken(token)
			if err != nil {
				logger.Debugf("Handshake rejected: invalid token from %s: %v", r.RemoteAddr, err)
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			logger.WithField("user_id", claims.UID).Debug("Handshake accepted")
		}

		server.ServeHTTP(w, r)
	})
}

// connUser returns the user id stored on the connection at connect time
func connUser(conn socketio.Conn) (int, bool) {
	uid, ok := conn.Context().(int)
	return uid, ok && uid > 0
}
