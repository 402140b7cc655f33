/*
Copyright © 2025 Benny Powers <web@bennypowers.com>

This program is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

This program is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with this program. If not, see <http://www.gnu.org/licenses/>.
*/

package serve

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/gorilla/websocket"
)

const (
	// FigwheelWebSocketPath is the persistent bidirectional channel
	// endpoint.
	FigwheelWebSocketPath = "/figwheel-ws"

	// maxWebSocketReadSize caps inbound frame size. Clients mostly only
	// send small callback/file-open events, but limit defensively.
	maxWebSocketReadSize = 64 * 1024
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 64 * 1024,
	CheckOrigin:     isLocalOrigin,
}

// isLocalOrigin allows same-origin, localhost, and 127.0.0.0/8 connections,
// covering reverse proxies and tunnels that preserve Host but not Origin.
func isLocalOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}

	originURL, err := url.Parse(origin)
	if err != nil {
		return false
	}
	originHost := originURL.Hostname()

	requestHost := r.Host
	if colonIndex := strings.IndexByte(requestHost, ':'); colonIndex != -1 {
		requestHost = requestHost[:colonIndex]
	}
	if originHost == requestHost {
		return true
	}

	if originHost == "localhost" || originHost == "127.0.0.1" || originHost == "::1" || originHost == "[::1]" {
		return true
	}
	if strings.HasSuffix(originHost, ".localhost") {
		return true
	}
	if parts := strings.Split(originHost, "."); len(parts) == 4 && parts[0] == "127" {
		return true
	}

	return false
}

// gorillaTransport adapts *websocket.Conn to the Session.Transport interface.
type gorillaTransport struct {
	conn *websocket.Conn
}

func (t gorillaTransport) WriteMessage(data []byte) error {
	return t.conn.WriteMessage(websocket.TextMessage, data)
}

func (t gorillaTransport) ReadMessage() ([]byte, error) {
	_, data, err := t.conn.ReadMessage()
	return data, err
}

func (t gorillaTransport) Close() error {
	return t.conn.Close()
}

// HandleWebSocket upgrades r to a WebSocket connection and runs a Session
// over it until the connection closes.
func (srv *Server) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		if srv.Logger != nil {
			srv.Logger.Error("failed to upgrade websocket: %v", err)
		}
		return
	}
	conn.SetReadLimit(maxWebSocketReadSize)

	session := NewSession(
		gorillaTransport{conn: conn},
		srv.Bus,
		srv.Callbacks,
		srv.Config.OpenFileCommand,
		srv.Logger,
		&srv.connectionCount,
		srv.ProjectID,
		srv.BuildID,
	)
	session.Serve()
}

// ConnectionCount returns the number of currently OPEN Sessions.
func (srv *Server) ConnectionCount() int64 {
	return srv.connectionCount.Load()
}
