package drawings

import (
	"encoding/json"
	"excalisave/coordinator"
	"excalisave/export"
	"excalisave/protocol"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/sirupsen/logrus"
)

// respond renders a coordinator response with an HTTP status matching its
// outcome. Not-found style failures still come back as a structured envelope.
func respond(w http.ResponseWriter, r *http.Request, resp protocol.Response) {
	if !resp.Success {
		switch resp.Error {
		case "drawing not found", "backup not found":
			render.Status(r, http.StatusNotFound)
		case "no active surface", "no data to save":
			render.Status(r, http.StatusServiceUnavailable)
		default:
			render.Status(r, http.StatusInternalServerError)
		}
	}
	render.JSON(w, r, resp)
}

// HandleList lists all drawings.
func HandleList(c *coordinator.Coordinator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		respond(w, r, c.Dispatch(r.Context(), &protocol.GetAllDrawingsRequest{}))
	}
}

// HandleGet returns one drawing; an unknown id is a success with an absent
// drawing.
func HandleGet(c *coordinator.Coordinator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		respond(w, r, c.Dispatch(r.Context(), &protocol.GetDrawingRequest{ID: id}))
	}
}

// HandleSaveNew extracts the live content and persists it under a new id. The
// name comes from the caller; the daemon never invents one.
func HandleSaveNew(c *coordinator.Coordinator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req protocol.SaveNewRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			logrus.WithError(err).Error("Failed to decode save-new request")
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, protocol.Failure("invalid request body"))
			return
		}
		if req.Name == "" {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, protocol.Failure("name is required"))
			return
		}
		respond(w, r, c.Dispatch(r.Context(), &req))
	}
}

// HandleUpdate extracts the live content and saves it over an existing id.
func HandleUpdate(c *coordinator.Coordinator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		respond(w, r, c.Dispatch(r.Context(), &protocol.UpdateDrawingRequest{ID: id}))
	}
}

// HandleLoad pushes a stored drawing into the live surface and makes it
// current.
func HandleLoad(c *coordinator.Coordinator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		respond(w, r, c.Dispatch(r.Context(), &protocol.LoadDrawingRequest{ID: id}))
	}
}

// HandleDelete removes a drawing. Deleting an unknown id still succeeds.
func HandleDelete(c *coordinator.Coordinator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		respond(w, r, c.Dispatch(r.Context(), &protocol.DeleteDrawingRequest{ID: id}))
	}
}

// HandleGetCurrent returns the current-drawing pointer; absent is "".
func HandleGetCurrent(c *coordinator.Coordinator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		respond(w, r, c.Dispatch(r.Context(), &protocol.GetCurrentIDRequest{}))
	}
}

// HandleNew clears the live surface and the current pointer.
func HandleNew(c *coordinator.Coordinator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		respond(w, r, c.Dispatch(r.Context(), &protocol.NewDrawingRequest{}))
	}
}

// HandleSave is the keyboard-save path: update the current drawing in place,
// or tell the caller a name is needed first.
func HandleSave(c *coordinator.Coordinator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		outcome, err := c.SaveCurrent(r.Context())
		if err != nil {
			logrus.WithError(err).Error("Save failed")
			render.Status(r, http.StatusBadGateway)
			render.JSON(w, r, protocol.Failure("save failed"))
			return
		}
		render.JSON(w, r, map[string]any{
			"success":   true,
			"saved":     outcome.Saved,
			"needsName": outcome.NeedsName,
		})
	}
}

// HandleExport serves a drawing's content as a downloadable .excalidraw file.
func HandleExport(c *coordinator.Coordinator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		resp := c.Dispatch(r.Context(), &protocol.GetDrawingRequest{ID: id})
		if !resp.Success || resp.Drawing == nil {
			render.Status(r, http.StatusNotFound)
			render.JSON(w, r, protocol.Failure("drawing not found"))
			return
		}

		content, err := export.AsExcalidraw(resp.Drawing.Data)
		if err != nil {
			logrus.WithError(err).WithField("drawing_id", id).Error("Failed to export drawing")
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, protocol.Failure("failed to export drawing"))
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", resp.Drawing.Name+".excalidraw"))
		w.Write(content)
	}
}
