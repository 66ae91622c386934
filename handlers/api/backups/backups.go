package backups

import (
	"excalisave/coordinator"
	"excalisave/protocol"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
)

// HandleList lists the retained backups for one drawing, oldest first.
func HandleList(c *coordinator.Coordinator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		drawingID := chi.URLParam(r, "id")
		resp := c.Dispatch(r.Context(), &protocol.GetBackupsRequest{DrawingID: drawingID})
		if !resp.Success {
			render.Status(r, http.StatusInternalServerError)
		}
		render.JSON(w, r, resp)
	}
}

// HandleRestore rewrites the owning drawing from a snapshot. The restored
// state itself gets backed up; history never rewinds.
func HandleRestore(c *coordinator.Coordinator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		backupID := chi.URLParam(r, "backupId")
		resp := c.Dispatch(r.Context(), &protocol.RestoreBackupRequest{BackupID: backupID})
		if !resp.Success {
			if resp.Error == "backup not found" {
				render.Status(r, http.StatusNotFound)
			} else {
				render.Status(r, http.StatusInternalServerError)
			}
		}
		render.JSON(w, r, resp)
	}
}
