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

import "sync"

// CallbackHandler handles a "callback" inbound event's content.
type CallbackHandler func(content any)

// CallbackRegistry is the process-wide browser-callback registry.
// Invocation happens on the Session's inbound-processing task, never
// under the Digest Store lock.
type CallbackRegistry struct {
	mu        sync.RWMutex
	callbacks map[string]CallbackHandler
}

// NewCallbackRegistry creates an empty registry.
func NewCallbackRegistry() *CallbackRegistry {
	return &CallbackRegistry{callbacks: make(map[string]CallbackHandler)}
}

// Register associates name with a handler, replacing any prior one.
func (r *CallbackRegistry) Register(name string, handler CallbackHandler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.callbacks[name] = handler
}

// Unregister removes name from the registry.
func (r *CallbackRegistry) Unregister(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.callbacks, name)
}

// Invoke calls the handler registered for name, if any. Unknown names
// are silently dropped.
func (r *CallbackRegistry) Invoke(name string, content any) {
	r.mu.RLock()
	handler, ok := r.callbacks[name]
	r.mu.RUnlock()
	if ok {
		handler(content)
	}
}
