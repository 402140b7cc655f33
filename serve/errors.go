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
	"encoding/json"
	"fmt"
	"regexp"
)

// ErrorSurface converts compiler exceptions and warnings into messages on
// the Bus. Publishing is best-effort, with no retries.
type ErrorSurface struct {
	bus       *Bus
	projectID string
}

// NewErrorSurface constructs an ErrorSurface over bus.
func NewErrorSurface(bus *Bus, projectID string) *ErrorSurface {
	return &ErrorSurface{bus: bus, projectID: projectID}
}

// stackFrameRe matches lines of the form "at ns.fn (file:line:col)",
// the common shape across browser-target compiler stack traces. Frames
// that don't match this shape are preserved as opaque text rather than
// dropped.
var stackFrameRe = regexp.MustCompile(`^\s*at\s+(\S+)\s+\(([^:]+):(\d+)(?::(\d+))?\)\s*$`)

// StackFrame is one parsed line of a compile exception's stack trace.
type StackFrame struct {
	Function string `json:"function"`
	File     string `json:"file"`
	Line     int    `json:"line"`
}

// ExceptionData is the structured record built from a raw exception:
// stack frames (best effort), the top-level message, and the cause
// chain.
type ExceptionData struct {
	Message    string       `json:"message"`
	StackTrace []StackFrame `json:"stack-trace,omitempty"`
	Causes     []string     `json:"causes,omitempty"`
}

// ReportCompileError parses exc into a structured record and a
// human-readable rendering, then publishes compile-failed carrying both.
// No error is surfaced back to the caller; a malformed trace degrades to
// an empty frame list, not a failure.
func (e *ErrorSurface) ReportCompileError(exc error) {
	data := ParseException(exc)
	formatted := FormatException(data)

	encoded, err := json.Marshal(data)
	if err != nil {
		encoded = []byte(`{}`)
	}

	e.bus.Publish(NewCompileFailedMessage(e.projectID, string(encoded), formatted))
}

// ReportCompileWarning publishes a compile-warning message.
func (e *ErrorSurface) ReportCompileWarning(msg string) {
	e.bus.Publish(NewCompileWarningMessage(e.projectID, msg))
}

// ParseException extracts a best-effort ExceptionData from a Go error,
// parsing any embedded stack-trace text line by line.
func ParseException(exc error) ExceptionData {
	if exc == nil {
		return ExceptionData{}
	}

	data := ExceptionData{Message: exc.Error()}

	type causer interface{ Unwrap() error }
	for cause, ok := exc.(causer); ok; cause, ok = exc.(causer) {
		next := cause.Unwrap()
		if next == nil {
			break
		}
		data.Causes = append(data.Causes, next.Error())
		exc = next
	}

	for _, line := range splitLines(data.Message) {
		m := stackFrameRe.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		var lineNo int
		_, _ = fmt.Sscanf(m[3], "%d", &lineNo)
		data.StackTrace = append(data.StackTrace, StackFrame{
			Function: m[1],
			File:     m[2],
			Line:     lineNo,
		})
	}

	return data
}

// FormatException renders data as a human-readable string. Per
// spec.md §4.H, this is always the original exception text
// (data.Message, i.e. the source error's Error()) byte-for-byte,
// regardless of whether stack-frame parsing into data.StackTrace
// succeeded, partially matched, or found nothing at all — the
// structured fields are an additional view, not a replacement source
// for what's shown to the user.
func FormatException(data ExceptionData) string {
	return data.Message
}

func splitLines(s string) []string {
	var lines []string
	start := 0
	for i, r := range s {
		if r == '\n' {
			lines = append(lines, s[start:i])
			start = i + 1
		}
	}
	lines = append(lines, s[start:])
	return lines
}
