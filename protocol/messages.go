package protocol

import (
	"encoding/json"
	"excalisave/core"
	"fmt"
)

// Type tags a wire message. The set is closed; dispatching is done over the
// typed Request variants below, not over these strings.
type Type string

const (
	TypeGetAllDrawings Type = "GET_ALL_DRAWINGS"
	TypeGetDrawing     Type = "GET_DRAWING"
	TypeSaveNew        Type = "SAVE_NEW"
	TypeUpdateDrawing  Type = "UPDATE_DRAWING"
	TypeLoadDrawing    Type = "LOAD_DRAWING"
	TypeDeleteDrawing  Type = "DELETE_DRAWING"
	TypeGetCurrentID   Type = "GET_CURRENT_ID"
	TypeNewDrawing     Type = "NEW_DRAWING"
	TypeGetBackups     Type = "GET_BACKUPS"
	TypeRestoreBackup  Type = "RESTORE_BACKUP"
)

// Extraction port frame types. EXTRACT_DATA is the only request/response pair;
// the rest are fire-and-forget pushes into the live surface.
const (
	TypeExtractData      Type = "EXTRACT_DATA"
	TypeLoadData         Type = "LOAD_DATA"
	TypeSetCurrentID     Type = "SET_CURRENT_ID"
	TypeAutoSaveComplete Type = "AUTO_SAVE_COMPLETE"
)

type (
	// Request is the closed union of front-end commands. Each variant has
	// exactly one handler in the coordinator.
	Request interface {
		Type() Type
	}

	GetAllDrawingsRequest struct{}

	GetDrawingRequest struct {
		ID string `json:"id"`
	}

	SaveNewRequest struct {
		Name string `json:"name"`
	}

	UpdateDrawingRequest struct {
		ID string `json:"id"`
	}

	LoadDrawingRequest struct {
		ID string `json:"id"`
	}

	DeleteDrawingRequest struct {
		ID string `json:"id"`
	}

	GetCurrentIDRequest struct{}

	NewDrawingRequest struct{}

	GetBackupsRequest struct {
		DrawingID string `json:"drawingId"`
	}

	RestoreBackupRequest struct {
		BackupID string `json:"backupId"`
	}

	// Response is the uniform envelope every command resolves to. Failure is
	// always a structured {success:false, error}; nothing crosses the message
	// boundary as a raw fault.
	Response struct {
		Success  bool           `json:"success"`
		Error    string         `json:"error,omitempty"`
		Drawing  *core.Drawing  `json:"drawing,omitempty"`
		Drawings []core.Drawing `json:"drawings,omitempty"`
		Backups  []core.Backup  `json:"backups,omitempty"`
		ID       string         `json:"id,omitempty"`
	}

	// Envelope is the wire shape of a front-end message.
	Envelope struct {
		Type    Type            `json:"type"`
		Payload json.RawMessage `json:"payload,omitempty"`
	}
)

func (GetAllDrawingsRequest) Type() Type { return TypeGetAllDrawings }
func (GetDrawingRequest) Type() Type     { return TypeGetDrawing }
func (SaveNewRequest) Type() Type        { return TypeSaveNew }
func (UpdateDrawingRequest) Type() Type  { return TypeUpdateDrawing }
func (LoadDrawingRequest) Type() Type    { return TypeLoadDrawing }
func (DeleteDrawingRequest) Type() Type  { return TypeDeleteDrawing }
func (GetCurrentIDRequest) Type() Type   { return TypeGetCurrentID }
func (NewDrawingRequest) Type() Type     { return TypeNewDrawing }
func (GetBackupsRequest) Type() Type     { return TypeGetBackups }
func (RestoreBackupRequest) Type() Type  { return TypeRestoreBackup }

// Failure builds a failed response envelope.
func Failure(err string) Response {
	return Response{Success: false, Error: err}
}

// ParseRequest decodes a wire envelope into its typed Request variant. An
// unknown type is an error; there is no fallthrough handling.
func ParseRequest(env Envelope) (Request, error) {
	decode := func(into Request) (Request, error) {
		if len(env.Payload) == 0 {
			return into, nil
		}
		if err := json.Unmarshal(env.Payload, into); err != nil {
			return nil, fmt.Errorf("decode %s payload: %w", env.Type, err)
		}
		return into, nil
	}

	switch env.Type {
	case TypeGetAllDrawings:
		return &GetAllDrawingsRequest{}, nil
	case TypeGetDrawing:
		return decode(&GetDrawingRequest{})
	case TypeSaveNew:
		return decode(&SaveNewRequest{})
	case TypeUpdateDrawing:
		return decode(&UpdateDrawingRequest{})
	case TypeLoadDrawing:
		return decode(&LoadDrawingRequest{})
	case TypeDeleteDrawing:
		return decode(&DeleteDrawingRequest{})
	case TypeGetCurrentID:
		return &GetCurrentIDRequest{}, nil
	case TypeNewDrawing:
		return &NewDrawingRequest{}, nil
	case TypeGetBackups:
		return decode(&GetBackupsRequest{})
	case TypeRestoreBackup:
		return decode(&RestoreBackupRequest{})
	default:
		return nil, fmt.Errorf("unknown message type %q", env.Type)
	}
}
