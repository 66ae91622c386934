package export

import (
	"encoding/json"
	"excalisave/core"
	"fmt"
)

// File is the .excalidraw interchange shape. The stored element and app-state
// blobs are re-embedded as raw JSON; this is the only place they get parsed.
type File struct {
	Type     string          `json:"type"`
	Version  int             `json:"version"`
	Source   string          `json:"source"`
	Elements json.RawMessage `json:"elements"`
	AppState json.RawMessage `json:"appState"`
	Files    map[string]any  `json:"files"`
}

// AsExcalidraw renders a drawing's content as an indented .excalidraw file.
func AsExcalidraw(data core.DrawingData) ([]byte, error) {
	if !json.Valid([]byte(data.Elements)) {
		return nil, fmt.Errorf("elements payload is not valid JSON")
	}
	if !json.Valid([]byte(data.AppState)) {
		return nil, fmt.Errorf("appState payload is not valid JSON")
	}

	file := File{
		Type:     "excalidraw",
		Version:  2,
		Source:   "excalisave",
		Elements: json.RawMessage(data.Elements),
		AppState: json.RawMessage(data.AppState),
		Files:    map[string]any{},
	}
	return json.MarshalIndent(file, "", "  ")
}
