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

package requestlogger

import (
	"net/http"

	"emberloop.dev/emberloop/serve/logger"
	"emberloop.dev/emberloop/serve/middleware"
)

// New creates a logging middleware that logs all HTTP requests. The
// websocket upgrade endpoint is not logged, since its traffic is a
// long-lived connection rather than a request.
func New(log logger.Logger) middleware.Stage {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != FigwheelWebSocketPath {
				log.Info("%s %s", r.Method, r.URL.Path)
			}
			next.ServeHTTP(w, r)
		})
	}
}

// FigwheelWebSocketPath mirrors serve.FigwheelWebSocketPath; duplicated
// here to avoid an import cycle (serve depends on this middleware package
// for its HTTP handler chain).
const FigwheelWebSocketPath = "/figwheel-ws"
