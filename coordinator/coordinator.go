package coordinator

import (
	"context"
	"excalisave/core"
	"excalisave/protocol"
	"excalisave/repository"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// AutoSaveInterval is the fixed period of the auto-save loop.
const AutoSaveInterval = 20 * time.Second

type (
	// Extraction is what the live surface returned for an extract request.
	// A nil Data means the surface had nothing to save.
	Extraction struct {
		Data    *core.DrawingData
		Preview string
	}

	// ExtractionPort is the capability for pulling live content out of, and
	// pushing content into, whatever surface currently holds the editable
	// drawing. The coordinator resolves reachability per command and treats
	// an unreachable port as "nothing to do", never as a retryable fault.
	ExtractionPort interface {
		// Reachable reports whether a live target is currently attached.
		Reachable() bool
		// Extract asks the live surface for its current content.
		Extract(ctx context.Context) (*Extraction, error)
		// PushDrawing loads content into the live surface.
		PushDrawing(ctx context.Context, id string, data core.DrawingData) error
		// PushCurrentID tells the live surface which id it now is.
		PushCurrentID(ctx context.Context, id string) error
		// PushNewDrawing tells the live surface to clear itself.
		PushNewDrawing(ctx context.Context) error
		// NotifyAutoSaved announces a completed auto-save. Fire-and-forget:
		// never awaited, failures are the port's problem.
		NotifyAutoSaved()
	}

	// Coordinator bridges the repository to the front-end surface and the
	// extraction port, and drives the auto-save loop. All of its dependencies
	// arrive through the constructor; it holds no process-wide state.
	Coordinator struct {
		repo *repository.Repository
		port ExtractionPort

		stopOnce sync.Once
		stop     chan struct{}
		done     chan struct{}
	}

	// SaveOutcome reports what a keyboard-triggered save did. When the
	// current pointer is empty the coordinator defers to the front end to
	// collect a name; it never invents one.
	SaveOutcome struct {
		Saved     bool
		NeedsName bool
		Drawing   *core.Drawing
	}
)

func New(repo *repository.Repository, port ExtractionPort) *Coordinator {
	return &Coordinator{
		repo: repo,
		port: port,
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}
}

// Start launches the auto-save loop. Stop cancels it.
func (c *Coordinator) Start() {
	go func() {
		defer close(c.done)
		ticker := time.NewTicker(AutoSaveInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				c.AutoSave(context.Background())
			case <-c.stop:
				return
			}
		}
	}()
	logrus.WithField("interval", AutoSaveInterval).Info("Auto-save started")
}

// Stop shuts the auto-save loop down and waits for it to exit.
func (c *Coordinator) Stop() {
	c.stopOnce.Do(func() { close(c.stop) })
	<-c.done
	logrus.Info("Auto-save stopped")
}

// AutoSave runs one auto-save tick. With no reachable surface or no current
// drawing it skips silently; there is nothing to save yet and no user waiting.
// Every failure on this path is swallowed and logged.
func (c *Coordinator) AutoSave(ctx context.Context) {
	if !c.port.Reachable() {
		return
	}

	currentID, err := c.repo.CurrentID(ctx)
	if err != nil {
		logrus.WithError(err).Error("Auto-save: failed to read current id")
		return
	}
	if currentID == "" {
		return
	}

	ext, err := c.port.Extract(ctx)
	if err != nil {
		logrus.WithError(err).Warn("Auto-save: extraction failed")
		return
	}
	if ext == nil || ext.Data == nil || ext.Data.Empty() {
		return
	}

	updated, err := c.repo.UpdateDrawing(ctx, currentID, *ext.Data, ext.Preview)
	if err != nil {
		logrus.WithError(err).WithField("drawing_id", currentID).Error("Auto-save failed")
		return
	}
	if updated == nil {
		// Dangling pointer: the current drawing was deleted out from under us.
		logrus.WithField("drawing_id", currentID).Warn("Auto-save: current drawing no longer exists")
		return
	}

	c.port.NotifyAutoSaved()
	logrus.WithField("drawing_id", currentID).Debug("Auto-saved")
}

// SaveCurrent is the keyboard-triggered save path. It follows the same steps
// as an update-current command; with no current pointer it reports NeedsName
// so the front end can collect one and issue save-new instead.
func (c *Coordinator) SaveCurrent(ctx context.Context) (SaveOutcome, error) {
	currentID, err := c.repo.CurrentID(ctx)
	if err != nil {
		return SaveOutcome{}, err
	}
	if currentID == "" {
		return SaveOutcome{NeedsName: true}, nil
	}

	resp := c.updateDrawing(ctx, currentID)
	if !resp.Success {
		// Unreachable port or empty content degrade to "nothing to do".
		logrus.WithField("reason", resp.Error).Debug("Save skipped")
		return SaveOutcome{}, nil
	}
	return SaveOutcome{Saved: true, Drawing: resp.Drawing}, nil
}

// Dispatch routes a front-end command to its handler. There is exactly one
// handler per request variant, and every outcome — including unexpected
// faults — comes back as a structured response envelope.
func (c *Coordinator) Dispatch(ctx context.Context, req protocol.Request) protocol.Response {
	switch r := req.(type) {
	case *protocol.GetAllDrawingsRequest:
		return c.getAllDrawings(ctx)
	case *protocol.GetDrawingRequest:
		return c.getDrawing(ctx, r.ID)
	case *protocol.SaveNewRequest:
		return c.saveNew(ctx, r.Name)
	case *protocol.UpdateDrawingRequest:
		return c.updateDrawing(ctx, r.ID)
	case *protocol.LoadDrawingRequest:
		return c.loadDrawing(ctx, r.ID)
	case *protocol.DeleteDrawingRequest:
		return c.deleteDrawing(ctx, r.ID)
	case *protocol.GetCurrentIDRequest:
		return c.getCurrentID(ctx)
	case *protocol.NewDrawingRequest:
		return c.newDrawing(ctx)
	case *protocol.GetBackupsRequest:
		return c.getBackups(ctx, r.DrawingID)
	case *protocol.RestoreBackupRequest:
		return c.restoreBackup(ctx, r.BackupID)
	default:
		return protocol.Failure(fmt.Sprintf("unknown request %T", req))
	}
}

func (c *Coordinator) getAllDrawings(ctx context.Context) protocol.Response {
	drawings, err := c.repo.ListDrawings(ctx)
	if err != nil {
		logrus.WithError(err).Error("Failed to list drawings")
		return protocol.Failure("failed to list drawings")
	}
	return protocol.Response{Success: true, Drawings: drawings}
}

func (c *Coordinator) getDrawing(ctx context.Context, id string) protocol.Response {
	drawing, err := c.repo.GetDrawing(ctx, id)
	if err != nil {
		logrus.WithError(err).WithField("drawing_id", id).Error("Failed to get drawing")
		return protocol.Failure("failed to get drawing")
	}
	// An unknown id is a success with an absent drawing, not a failure.
	return protocol.Response{Success: true, Drawing: drawing}
}

func (c *Coordinator) saveNew(ctx context.Context, name string) protocol.Response {
	if !c.port.Reachable() {
		return protocol.Failure("no active surface")
	}

	ext, err := c.port.Extract(ctx)
	if err != nil {
		logrus.WithError(err).Warn("Save-new: extraction failed")
		return protocol.Failure("no data to save")
	}
	if ext == nil || ext.Data == nil || ext.Data.Empty() {
		return protocol.Failure("no data to save")
	}

	drawing, err := c.repo.CreateDrawing(ctx, name, *ext.Data, ext.Preview)
	if err != nil {
		logrus.WithError(err).Error("Failed to create drawing")
		return protocol.Failure("failed to create drawing")
	}

	// Tell the live surface its own id so later saves update in place.
	if err := c.port.PushCurrentID(ctx, drawing.ID); err != nil {
		logrus.WithError(err).WithField("drawing_id", drawing.ID).Warn("Failed to push new id to surface")
	}
	return protocol.Response{Success: true, Drawing: drawing}
}

func (c *Coordinator) updateDrawing(ctx context.Context, id string) protocol.Response {
	if !c.port.Reachable() {
		return protocol.Failure("no active surface")
	}

	ext, err := c.port.Extract(ctx)
	if err != nil {
		logrus.WithError(err).Warn("Update: extraction failed")
		return protocol.Failure("no data to save")
	}
	if ext == nil || ext.Data == nil || ext.Data.Empty() {
		return protocol.Failure("no data to save")
	}

	drawing, err := c.repo.UpdateDrawing(ctx, id, *ext.Data, ext.Preview)
	if err != nil {
		logrus.WithError(err).WithField("drawing_id", id).Error("Failed to update drawing")
		return protocol.Failure("failed to update drawing")
	}
	if drawing == nil {
		return protocol.Failure("drawing not found")
	}
	return protocol.Response{Success: true, Drawing: drawing}
}

func (c *Coordinator) loadDrawing(ctx context.Context, id string) protocol.Response {
	drawing, err := c.repo.GetDrawing(ctx, id)
	if err != nil {
		logrus.WithError(err).WithField("drawing_id", id).Error("Failed to load drawing")
		return protocol.Failure("failed to load drawing")
	}
	if drawing == nil {
		return protocol.Failure("drawing not found")
	}
	if !c.port.Reachable() {
		return protocol.Failure("no active surface")
	}

	if err := c.port.PushDrawing(ctx, drawing.ID, drawing.Data); err != nil {
		logrus.WithError(err).WithField("drawing_id", id).Warn("Failed to push drawing to surface")
		return protocol.Failure("no active surface")
	}
	if err := c.repo.SetCurrentID(ctx, drawing.ID); err != nil {
		logrus.WithError(err).Error("Failed to set current id")
		return protocol.Failure("failed to set current drawing")
	}
	return protocol.Response{Success: true}
}

func (c *Coordinator) deleteDrawing(ctx context.Context, id string) protocol.Response {
	if err := c.repo.DeleteDrawing(ctx, id); err != nil {
		logrus.WithError(err).WithField("drawing_id", id).Error("Failed to delete drawing")
		return protocol.Failure("failed to delete drawing")
	}
	return protocol.Response{Success: true}
}

func (c *Coordinator) getCurrentID(ctx context.Context) protocol.Response {
	id, err := c.repo.CurrentID(ctx)
	if err != nil {
		logrus.WithError(err).Error("Failed to get current id")
		return protocol.Failure("failed to get current id")
	}
	return protocol.Response{Success: true, ID: id}
}

func (c *Coordinator) newDrawing(ctx context.Context) protocol.Response {
	if c.port.Reachable() {
		if err := c.port.PushNewDrawing(ctx); err != nil {
			logrus.WithError(err).Warn("Failed to clear live surface")
		}
	}
	if err := c.repo.SetCurrentID(ctx, ""); err != nil {
		logrus.WithError(err).Error("Failed to clear current id")
		return protocol.Failure("failed to clear current drawing")
	}
	return protocol.Response{Success: true}
}

func (c *Coordinator) getBackups(ctx context.Context, drawingID string) protocol.Response {
	backups, err := c.repo.ListBackups(ctx, drawingID)
	if err != nil {
		logrus.WithError(err).WithField("drawing_id", drawingID).Error("Failed to list backups")
		return protocol.Failure("failed to list backups")
	}
	return protocol.Response{Success: true, Backups: backups}
}

func (c *Coordinator) restoreBackup(ctx context.Context, backupID string) protocol.Response {
	drawing, err := c.repo.RestoreFromBackup(ctx, backupID)
	if err != nil {
		logrus.WithError(err).WithField("backup_id", backupID).Error("Failed to restore backup")
		return protocol.Failure("failed to restore backup")
	}
	if drawing == nil {
		return protocol.Failure("backup not found")
	}
	return protocol.Response{Success: true, Drawing: drawing}
}
