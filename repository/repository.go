package repository

import (
	"context"
	"encoding/json"
	"excalisave/core"
	"fmt"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/sirupsen/logrus"
)

// Repository owns all persisted state: the drawings collection, the single
// current-drawing pointer, and the per-drawing backup ring. Every operation is
// atomic from the caller's perspective; a mutex serializes the underlying
// read-modify-write cycles so there is no concurrent-writer race inside one
// process.
type Repository struct {
	mu    sync.Mutex
	store core.StateStore
	now   func() time.Time
}

func New(store core.StateStore) *Repository {
	return &Repository{
		store: store,
		now:   time.Now,
	}
}

// ListDrawings returns all persisted drawings. The order is storage order and
// carries no meaning. An empty store yields an empty slice, never an error.
func (r *Repository) ListDrawings(ctx context.Context) ([]core.Drawing, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.loadDrawings(ctx)
}

// GetDrawing looks up a drawing by id. An unknown id returns (nil, nil);
// "not found" is a normal outcome, not a failure.
func (r *Repository) GetDrawing(ctx context.Context, id string) (*core.Drawing, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	drawings, err := r.loadDrawings(ctx)
	if err != nil {
		return nil, err
	}
	for i := range drawings {
		if drawings[i].ID == id {
			d := drawings[i]
			return &d, nil
		}
	}
	return nil, nil
}

// CreateDrawing allocates a new drawing, makes it current, and records the
// first backup of its content.
func (r *Repository) CreateDrawing(ctx context.Context, name string, data core.DrawingData, preview string) (*core.Drawing, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	drawings, err := r.loadDrawings(ctx)
	if err != nil {
		return nil, err
	}

	now := r.now()
	drawing := core.Drawing{
		ID:        ulid.Make().String(),
		Name:      name,
		CreatedAt: now,
		UpdatedAt: now,
		Preview:   preview,
		Data:      data,
	}

	drawings = append(drawings, drawing)
	if err := r.saveDrawings(ctx, drawings); err != nil {
		return nil, err
	}
	if err := r.setCurrentID(ctx, drawing.ID); err != nil {
		return nil, err
	}
	if err := r.createBackup(ctx, drawing.ID, data); err != nil {
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"drawing_id": drawing.ID,
		"name":       name,
	}).Info("Drawing created")
	return &drawing, nil
}

// UpdateDrawing replaces a drawing's content, refreshes updatedAt, and records
// a backup. The preview is replaced only when a new one is supplied; a headless
// update must not blank an existing thumbnail. An unknown id returns (nil, nil)
// with no side effects. The current pointer is left untouched.
func (r *Repository) UpdateDrawing(ctx context.Context, id string, data core.DrawingData, preview string) (*core.Drawing, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.updateDrawing(ctx, id, data, preview)
}

func (r *Repository) updateDrawing(ctx context.Context, id string, data core.DrawingData, preview string) (*core.Drawing, error) {
	drawings, err := r.loadDrawings(ctx)
	if err != nil {
		return nil, err
	}

	idx := -1
	for i := range drawings {
		if drawings[i].ID == id {
			idx = i
			break
		}
	}
	if idx == -1 {
		logrus.WithField("drawing_id", id).Warn("Update for unknown drawing")
		return nil, nil
	}

	drawings[idx].UpdatedAt = r.now()
	drawings[idx].Data = data
	if preview != "" {
		drawings[idx].Preview = preview
	}

	if err := r.saveDrawings(ctx, drawings); err != nil {
		return nil, err
	}
	if err := r.createBackup(ctx, id, data); err != nil {
		return nil, err
	}

	updated := drawings[idx]
	logrus.WithField("drawing_id", id).Debug("Drawing updated")
	return &updated, nil
}

// DeleteDrawing removes a drawing, clears the current pointer if it referenced
// it, and purges all of its backups. Deleting an unknown id is a no-op.
func (r *Repository) DeleteDrawing(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	drawings, err := r.loadDrawings(ctx)
	if err != nil {
		return err
	}

	filtered := drawings[:0:0]
	for _, d := range drawings {
		if d.ID != id {
			filtered = append(filtered, d)
		}
	}
	if err := r.saveDrawings(ctx, filtered); err != nil {
		return err
	}

	current, err := r.currentID(ctx)
	if err != nil {
		return err
	}
	if current == id {
		if err := r.setCurrentID(ctx, ""); err != nil {
			return err
		}
	}

	backups, err := r.loadBackups(ctx)
	if err != nil {
		return err
	}
	kept := backups[:0:0]
	for _, b := range backups {
		if b.DrawingID != id {
			kept = append(kept, b)
		}
	}
	if err := r.saveBackups(ctx, kept); err != nil {
		return err
	}

	logrus.WithField("drawing_id", id).Info("Drawing deleted")
	return nil
}

// CurrentID returns the current-drawing pointer; "" means no drawing is
// current. The pointer is weak: it may name a drawing that no longer exists,
// and callers resolve that as a plain "not found".
func (r *Repository) CurrentID(ctx context.Context) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.currentID(ctx)
}

// SetCurrentID points the current pointer at a drawing; "" clears it.
func (r *Repository) SetCurrentID(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.setCurrentID(ctx, id)
}

// ListBackups returns the retained backups for one drawing, oldest first.
func (r *Repository) ListBackups(ctx context.Context, drawingID string) ([]core.Backup, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	backups, err := r.loadBackups(ctx)
	if err != nil {
		return nil, err
	}
	own := []core.Backup{}
	for _, b := range backups {
		if b.DrawingID == drawingID {
			own = append(own, b)
		}
	}
	return own, nil
}

// RestoreFromBackup rewrites the owning drawing's content from the snapshot.
// The restore itself is an update, so it records a fresh backup of the
// restored state; history only ever grows. No preview is carried over from the
// backup. An unknown backup id returns (nil, nil).
func (r *Repository) RestoreFromBackup(ctx context.Context, backupID string) (*core.Drawing, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	backups, err := r.loadBackups(ctx)
	if err != nil {
		return nil, err
	}
	for _, b := range backups {
		if b.ID == backupID {
			logrus.WithFields(logrus.Fields{
				"backup_id":  backupID,
				"drawing_id": b.DrawingID,
			}).Info("Restoring drawing from backup")
			return r.updateDrawing(ctx, b.DrawingID, b.Data, "")
		}
	}
	logrus.WithField("backup_id", backupID).Warn("Restore for unknown backup")
	return nil, nil
}

// Close releases the underlying store.
func (r *Repository) Close() error {
	return r.store.Close()
}

// createBackup appends a snapshot to the owning drawing's partition of the
// backup set and truncates that partition to the last MaxBackups entries.
// Other drawings' partitions pass through untouched; the whole set is
// persisted as one write.
func (r *Repository) createBackup(ctx context.Context, drawingID string, data core.DrawingData) error {
	backups, err := r.loadBackups(ctx)
	if err != nil {
		return err
	}

	var own, others []core.Backup
	for _, b := range backups {
		if b.DrawingID == drawingID {
			own = append(own, b)
		} else {
			others = append(others, b)
		}
	}

	own = append(own, core.Backup{
		ID:        ulid.Make().String(),
		DrawingID: drawingID,
		Timestamp: r.now(),
		Data:      data,
	})
	if len(own) > core.MaxBackups {
		own = own[len(own)-core.MaxBackups:]
	}

	return r.saveBackups(ctx, append(others, own...))
}

func (r *Repository) loadDrawings(ctx context.Context) ([]core.Drawing, error) {
	raw, err := r.store.Load(ctx, core.DrawingsKey)
	if err != nil {
		return nil, fmt.Errorf("load drawings: %w", err)
	}
	if raw == nil {
		return []core.Drawing{}, nil
	}
	var drawings []core.Drawing
	if err := json.Unmarshal(raw, &drawings); err != nil {
		return nil, fmt.Errorf("decode drawings: %w", err)
	}
	return drawings, nil
}

func (r *Repository) saveDrawings(ctx context.Context, drawings []core.Drawing) error {
	raw, err := json.Marshal(drawings)
	if err != nil {
		return fmt.Errorf("encode drawings: %w", err)
	}
	if err := r.store.Store(ctx, core.DrawingsKey, raw); err != nil {
		return fmt.Errorf("store drawings: %w", err)
	}
	return nil
}

func (r *Repository) loadBackups(ctx context.Context) ([]core.Backup, error) {
	raw, err := r.store.Load(ctx, core.BackupsKey)
	if err != nil {
		return nil, fmt.Errorf("load backups: %w", err)
	}
	if raw == nil {
		return []core.Backup{}, nil
	}
	var backups []core.Backup
	if err := json.Unmarshal(raw, &backups); err != nil {
		return nil, fmt.Errorf("decode backups: %w", err)
	}
	return backups, nil
}

func (r *Repository) saveBackups(ctx context.Context, backups []core.Backup) error {
	raw, err := json.Marshal(backups)
	if err != nil {
		return fmt.Errorf("encode backups: %w", err)
	}
	if err := r.store.Store(ctx, core.BackupsKey, raw); err != nil {
		return fmt.Errorf("store backups: %w", err)
	}
	return nil
}

func (r *Repository) currentID(ctx context.Context) (string, error) {
	raw, err := r.store.Load(ctx, core.CurrentKey)
	if err != nil {
		return "", fmt.Errorf("load current id: %w", err)
	}
	return string(raw), nil
}

func (r *Repository) setCurrentID(ctx context.Context, id string) error {
	if id == "" {
		if err := r.store.Delete(ctx, core.CurrentKey); err != nil {
			return fmt.Errorf("clear current id: %w", err)
		}
		return nil
	}
	if err := r.store.Store(ctx, core.CurrentKey, []byte(id)); err != nil {
		return fmt.Errorf("store current id: %w", err)
	}
	return nil
}
