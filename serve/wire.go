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

import "encoding/json"

// Message is the envelope every outbound frame carries.
type Message struct {
	MsgName   string `json:"msg-name"`
	ProjectID string `json:"project-id"`
	BuildID   string `json:"build-id,omitempty"`

	Payload any `json:"-"`

	// Flattened payload fields, populated by the constructors below and
	// consumed directly by json.Marshal/Unmarshal through their struct tags.
	Files          []FileRecord `json:"files,omitempty"`
	ExceptionData  string       `json:"exception-data,omitempty"`
	FormattedError string       `json:"formatted-exception,omitempty"`
	WarningMessage string       `json:"message,omitempty"`
}

const (
	MsgFilesChanged    = "files-changed"
	MsgCSSFilesChanged = "css-files-changed"
	MsgCompileFailed   = "compile-failed"
	MsgCompileWarning  = "compile-warning"
	MsgPing            = "ping"
)

// FileRecord is one element of a files-changed or css-files-changed
// payload sequence.
type FileRecord struct {
	File            string         `json:"file"`
	Type            string         `json:"type"` // "namespace" | "css" | "dependency-update"
	Namespace       string         `json:"namespace,omitempty"`
	Meta            map[string]any `json:"meta,omitempty"`
	EvalBody        string         `json:"eval-body,omitempty"`
	DependencyFile  bool           `json:"dependency-file,omitempty"`
}

// NewFilesChangedMessage builds a files-changed message. depUpdates must
// precede nsRecords in the returned Files slice: dependency-update
// records always precede namespace records.
func NewFilesChangedMessage(projectID, buildID string, depUpdates, nsRecords []FileRecord) Message {
	files := make([]FileRecord, 0, len(depUpdates)+len(nsRecords))
	files = append(files, depUpdates...)
	files = append(files, nsRecords...)
	return Message{
		MsgName:   MsgFilesChanged,
		ProjectID: projectID,
		BuildID:   buildID,
		Files:     files,
	}
}

// NewCSSFilesChangedMessage builds a css-files-changed message.
func NewCSSFilesChangedMessage(projectID string, paths []string) Message {
	files := make([]FileRecord, 0, len(paths))
	for _, p := range paths {
		files = append(files, FileRecord{File: p, Type: "css"})
	}
	return Message{MsgName: MsgCSSFilesChanged, ProjectID: projectID, Files: files}
}

// NewCompileFailedMessage builds a compile-failed message.
func NewCompileFailedMessage(projectID, exceptionData, formatted string) Message {
	return Message{
		MsgName:        MsgCompileFailed,
		ProjectID:      projectID,
		ExceptionData:  exceptionData,
		FormattedError: formatted,
	}
}

// NewCompileWarningMessage builds a compile-warning message.
func NewCompileWarningMessage(projectID, msg string) Message {
	return Message{MsgName: MsgCompileWarning, ProjectID: projectID, WarningMessage: msg}
}

// NewPingMessage builds an empty-payload heartbeat message.
func NewPingMessage(projectID string) Message {
	return Message{MsgName: MsgPing, ProjectID: projectID}
}

// Encode serializes a Message to its wire form.
func Encode(m Message) ([]byte, error) {
	return json.Marshal(m)
}

// Decode parses a wire frame back into a Message.
func Decode(data []byte) (Message, error) {
	var m Message
	err := json.Unmarshal(data, &m)
	return m, err
}

// InboundEvent is a client->server frame. Frames
// missing figwheel-event are dropped by the caller before this is used.
type InboundEvent struct {
	FigwheelEvent string `json:"figwheel-event"`
	CallbackName  string `json:"callback-name,omitempty"`
	Content       any    `json:"content,omitempty"`
	FileName      string `json:"file-name,omitempty"`
	FileLine      int    `json:"file-line,omitempty"`
}

// DecodeInbound parses a client frame. It returns ok=false (not an
// error) for frames lacking figwheel-event, which callers must drop
// silently
func DecodeInbound(data []byte) (ev InboundEvent, ok bool) {
	if err := json.Unmarshal(data, &ev); err != nil {
		return InboundEvent{}, false
	}
	if ev.FigwheelEvent == "" {
		return InboundEvent{}, false
	}
	return ev, true
}
