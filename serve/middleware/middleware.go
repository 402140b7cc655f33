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

// Package middleware wraps the dev server's single HTTP mux — the
// static file server and the figwheel-ws upgrade endpoint — with a
// small stack of request-scoped stages (CORS headers, request
// logging) ahead of the Bus/Session machinery that those two routes
// ultimately serve.
package middleware

import "net/http"

// Stage wraps an http.Handler with behavior that runs before (and,
// if it calls next, after) the wrapped handler. A stage that never
// calls next short-circuits the request.
type Stage func(http.Handler) http.Handler

// Pipeline assembles stages around handler so that the first stage
// given is the outermost: it sees the request first and the response
// last. This matters for this server specifically because the
// websocket upgrade request for /figwheel-ws still passes through the
// request-logging stage (which does not log that path) and every
// other stage before the connection is handed off to a Session.
//
// Example:
//
//	handler := middleware.Pipeline(
//	    mux,
//	    requestLogging,  // outermost: sees the request first
//	    cors,            // innermost: closest to mux
//	)
func Pipeline(handler http.Handler, stages ...Stage) http.Handler {
	for i := len(stages) - 1; i >= 0; i-- {
		handler = stages[i](handler)
	}
	return handler
}
