package model

// DetailType tags the tool-specific variant extracted from an event.
type DetailType string

const (
	DetailCommand    DetailType = "command"
	DetailFile       DetailType = "file"
	DetailSearch     DetailType = "search"
	DetailSession    DetailType = "session"
	DetailPermission DetailType = "permission"
	DetailUnknown    DetailType = "unknown"
)

// EventDetails is the tool-specific view of an event. One flat struct
// with a type tag keeps audit marshaling deterministic; only the
// fields of the tagged variant are populated. Permission events wrap
// the underlying tool's details one level deep through Wrapped.
type EventDetails struct {
	Type DetailType `json:"type"`

	// command
	Command string `json:"command,omitempty"`

	// file and search
	Path string `json:"path,omitempty"`

	// search
	Pattern string `json:"pattern,omitempty"`

	// session
	Source         string `json:"source,omitempty"`
	Reason         string `json:"reason,omitempty"`
	TranscriptPath string `json:"transcript_path,omitempty"`
	Cwd            string `json:"cwd,omitempty"`

	// permission
	PermissionMode string        `json:"permission_mode,omitempty"`
	Wrapped        *EventDetails `json:"wrapped,omitempty"`

	// unknown
	ToolName string `json:"tool_name,omitempty"`
}

// ExtractDetails derives the tool-specific variant from an event. It
// is total: anything unrecognized degrades to the unknown variant,
// never an error.
func ExtractDetails(ev *Event) EventDetails {
	switch ev.EventType {
	case EventSessionStart:
		return sessionDetails(ev)
	case EventPermissionRequest:
		wrapped := toolDetails(ev)
		return EventDetails{
			Type:           DetailPermission,
			PermissionMode: ev.PermissionMode,
			Wrapped:        &wrapped,
		}
	default:
		return toolDetails(ev)
	}
}

// Unwrap returns the innermost non-permission variant.
func (d EventDetails) Unwrap() EventDetails {
	if d.Type == DetailPermission && d.Wrapped != nil {
		return d.Wrapped.Unwrap()
	}
	return d
}

// CommandText returns the shell command carried by this event, looking
// through one permission wrapper, or "" when the event has none.
func (d EventDetails) CommandText() string {
	return d.Unwrap().Command
}

// FilePath returns the file path carried by this event, looking
// through one permission wrapper, or "" when the event has none.
func (d EventDetails) FilePath() string {
	return d.Unwrap().Path
}

func toolDetails(ev *Event) EventDetails {
	switch ev.ToolName {
	case "Bash":
		cmd, _ := ev.InputString("command")
		return EventDetails{Type: DetailCommand, Command: cmd}
	case "Write", "Edit", "Read":
		return EventDetails{Type: DetailFile, Path: filePathInput(ev)}
	case "Glob", "Grep":
		pattern, _ := ev.InputString("pattern")
		path, _ := ev.InputString("path")
		return EventDetails{Type: DetailSearch, Pattern: pattern, Path: path}
	default:
		return EventDetails{Type: DetailUnknown, ToolName: ev.ToolName}
	}
}

func sessionDetails(ev *Event) EventDetails {
	source, _ := ev.InputString("source")
	reason, _ := ev.InputString("reason")
	return EventDetails{
		Type:           DetailSession,
		Source:         source,
		Reason:         reason,
		TranscriptPath: ev.TranscriptPath,
		Cwd:            ev.Cwd,
	}
}

// filePathInput reads the tool_input path under either key the hosts
// emit.
func filePathInput(ev *Event) string {
	if p, ok := ev.InputString("file_path"); ok {
		return p
	}
	p, _ := ev.InputString("filePath")
	return p
}
