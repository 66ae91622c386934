package coordinator

import (
	"context"
	"excalisave/core"
	"excalisave/protocol"
	"excalisave/repository"
	"excalisave/stores/memory"
	"fmt"
	"sync/atomic"
	"testing"
)

// countingStore wraps a StateStore and counts writes, so tests can assert
// that a skipped auto-save really touched nothing.
type countingStore struct {
	core.StateStore
	writes atomic.Int64
}

func (s *countingStore) Store(ctx context.Context, key string, value []byte) error {
	s.writes.Add(1)
	return s.StateStore.Store(ctx, key, value)
}

func (s *countingStore) Delete(ctx context.Context, key string) error {
	s.writes.Add(1)
	return s.StateStore.Delete(ctx, key)
}

// fakePort is a scriptable extraction port.
type fakePort struct {
	reachable  bool
	data       *core.DrawingData
	preview    string
	extractErr error

	extracts      int
	pushedID      string
	pushedDrawing string
	cleared       int
	notified      int
}

func (p *fakePort) Reachable() bool { return p.reachable }

func (p *fakePort) Extract(ctx context.Context) (*Extraction, error) {
	p.extracts++
	if p.extractErr != nil {
		return nil, p.extractErr
	}
	return &Extraction{Data: p.data, Preview: p.preview}, nil
}

func (p *fakePort) PushDrawing(ctx context.Context, id string, data core.DrawingData) error {
	p.pushedDrawing = id
	return nil
}

func (p *fakePort) PushCurrentID(ctx context.Context, id string) error {
	p.pushedID = id
	return nil
}

func (p *fakePort) PushNewDrawing(ctx context.Context) error {
	p.cleared++
	return nil
}

func (p *fakePort) NotifyAutoSaved() { p.notified++ }

func liveData(v int) *core.DrawingData {
	return &core.DrawingData{
		Elements: fmt.Sprintf(`[{"version":%d}]`, v),
		AppState: `{}`,
	}
}

func setup(t *testing.T) (*Coordinator, *repository.Repository, *countingStore, *fakePort) {
	t.Helper()
	store := &countingStore{StateStore: memory.NewStore()}
	repo := repository.New(store)
	port := &fakePort{}
	return New(repo, port), repo, store, port
}

func TestAutoSave_SkipsWhenUnreachable(t *testing.T) {
	coord, _, store, port := setup(t)
	port.reachable = false

	coord.AutoSave(context.Background())

	if port.extracts != 0 {
		t.Error("Auto-save extracted from an unreachable port")
	}
	if n := store.writes.Load(); n != 0 {
		t.Errorf("Auto-save wrote %d times with no reachable port", n)
	}
}

func TestAutoSave_SkipsWithoutCurrentDrawing(t *testing.T) {
	coord, _, store, port := setup(t)
	port.reachable = true
	port.data = liveData(1)

	coord.AutoSave(context.Background())

	if port.extracts != 0 {
		t.Error("Auto-save extracted with no current drawing")
	}
	if n := store.writes.Load(); n != 0 {
		t.Errorf("Auto-save wrote %d times with no current drawing", n)
	}
}

func TestAutoSave_SavesCurrentDrawing(t *testing.T) {
	coord, repo, _, port := setup(t)
	ctx := context.Background()

	created, err := repo.CreateDrawing(ctx, "sketch", *liveData(1), "")
	if err != nil {
		t.Fatalf("CreateDrawing() failed: %v", err)
	}

	port.reachable = true
	port.data = liveData(2)
	coord.AutoSave(ctx)

	got, err := repo.GetDrawing(ctx, created.ID)
	if err != nil {
		t.Fatalf("GetDrawing() failed: %v", err)
	}
	if got.Data != *liveData(2) {
		t.Errorf("Auto-save did not persist live content: %q", got.Data.Elements)
	}
	if port.notified != 1 {
		t.Errorf("Auto-save completion notifications: got %d, want 1", port.notified)
	}
}

func TestAutoSave_SkipsOnEmptyExtraction(t *testing.T) {
	coord, repo, _, port := setup(t)
	ctx := context.Background()

	created, err := repo.CreateDrawing(ctx, "sketch", *liveData(1), "")
	if err != nil {
		t.Fatalf("CreateDrawing() failed: %v", err)
	}

	port.reachable = true
	port.data = nil
	coord.AutoSave(ctx)

	got, err := repo.GetDrawing(ctx, created.ID)
	if err != nil {
		t.Fatalf("GetDrawing() failed: %v", err)
	}
	if got.Data != *liveData(1) {
		t.Error("Empty extraction overwrote stored content")
	}
	if port.notified != 0 {
		t.Error("Skipped auto-save still sent a completion notification")
	}
}

func TestAutoSave_ToleratesDanglingPointer(t *testing.T) {
	coord, repo, _, port := setup(t)
	ctx := context.Background()

	if err := repo.SetCurrentID(ctx, "deleted-long-ago"); err != nil {
		t.Fatalf("SetCurrentID() failed: %v", err)
	}
	port.reachable = true
	port.data = liveData(1)

	// Must not panic or create anything.
	coord.AutoSave(ctx)

	drawings, err := repo.ListDrawings(ctx)
	if err != nil {
		t.Fatalf("ListDrawings() failed: %v", err)
	}
	if len(drawings) != 0 {
		t.Errorf("Dangling-pointer auto-save created %d drawings", len(drawings))
	}
}

func TestSaveCurrent_NeedsNameWithoutCurrent(t *testing.T) {
	coord, _, _, port := setup(t)
	port.reachable = true
	port.data = liveData(1)

	outcome, err := coord.SaveCurrent(context.Background())
	if err != nil {
		t.Fatalf("SaveCurrent() failed: %v", err)
	}
	if !outcome.NeedsName {
		t.Error("SaveCurrent() with no current drawing should ask for a name")
	}
	if outcome.Saved {
		t.Error("SaveCurrent() claims to have saved with no current drawing")
	}
}

func TestSaveCurrent_UpdatesInPlace(t *testing.T) {
	coord, repo, _, port := setup(t)
	ctx := context.Background()

	created, err := repo.CreateDrawing(ctx, "sketch", *liveData(1), "")
	if err != nil {
		t.Fatalf("CreateDrawing() failed: %v", err)
	}
	port.reachable = true
	port.data = liveData(2)

	outcome, err := coord.SaveCurrent(ctx)
	if err != nil {
		t.Fatalf("SaveCurrent() failed: %v", err)
	}
	if !outcome.Saved || outcome.Drawing == nil || outcome.Drawing.ID != created.ID {
		t.Errorf("SaveCurrent() outcome: %+v", outcome)
	}
}

func TestSaveCurrent_DegradesWhenUnreachable(t *testing.T) {
	coord, repo, _, port := setup(t)
	ctx := context.Background()

	if _, err := repo.CreateDrawing(ctx, "sketch", *liveData(1), ""); err != nil {
		t.Fatalf("CreateDrawing() failed: %v", err)
	}
	port.reachable = false

	outcome, err := coord.SaveCurrent(ctx)
	if err != nil {
		t.Fatalf("Unreachable port should degrade to a no-op, got: %v", err)
	}
	if outcome.Saved || outcome.NeedsName {
		t.Errorf("SaveCurrent() outcome on unreachable port: %+v", outcome)
	}
}

func TestDispatch_SaveNew(t *testing.T) {
	coord, repo, _, port := setup(t)
	ctx := context.Background()
	port.reachable = true
	port.data = liveData(1)
	port.preview = "thumb"

	resp := coord.Dispatch(ctx, &protocol.SaveNewRequest{Name: "first"})
	if !resp.Success {
		t.Fatalf("SaveNew failed: %s", resp.Error)
	}
	if resp.Drawing == nil || resp.Drawing.Name != "first" {
		t.Fatalf("SaveNew response drawing: %+v", resp.Drawing)
	}
	if port.pushedID != resp.Drawing.ID {
		t.Errorf("New id not pushed to surface: got %q, want %q", port.pushedID, resp.Drawing.ID)
	}

	current, err := repo.CurrentID(ctx)
	if err != nil {
		t.Fatalf("CurrentID() failed: %v", err)
	}
	if current != resp.Drawing.ID {
		t.Errorf("SaveNew did not set the current pointer: %q", current)
	}
}

func TestDispatch_SaveNew_NoContent(t *testing.T) {
	coord, _, _, port := setup(t)
	port.reachable = true
	port.data = nil

	resp := coord.Dispatch(context.Background(), &protocol.SaveNewRequest{Name: "first"})
	if resp.Success {
		t.Fatal("SaveNew succeeded with no content to save")
	}
	if resp.Error == "" {
		t.Error("Declined SaveNew carries no error description")
	}
}

func TestDispatch_Load(t *testing.T) {
	coord, repo, _, port := setup(t)
	ctx := context.Background()

	created, err := repo.CreateDrawing(ctx, "sketch", *liveData(1), "")
	if err != nil {
		t.Fatalf("CreateDrawing() failed: %v", err)
	}
	if err := repo.SetCurrentID(ctx, ""); err != nil {
		t.Fatalf("SetCurrentID() failed: %v", err)
	}
	port.reachable = true

	resp := coord.Dispatch(ctx, &protocol.LoadDrawingRequest{ID: created.ID})
	if !resp.Success {
		t.Fatalf("Load failed: %s", resp.Error)
	}
	if port.pushedDrawing != created.ID {
		t.Errorf("Load did not push content: pushed %q", port.pushedDrawing)
	}
	current, err := repo.CurrentID(ctx)
	if err != nil {
		t.Fatalf("CurrentID() failed: %v", err)
	}
	if current != created.ID {
		t.Errorf("Load did not set the current pointer: %q", current)
	}
}

func TestDispatch_Load_Unknown(t *testing.T) {
	coord, _, _, port := setup(t)
	port.reachable = true

	resp := coord.Dispatch(context.Background(), &protocol.LoadDrawingRequest{ID: "nope"})
	if resp.Success {
		t.Fatal("Load succeeded for an unknown drawing")
	}
	if resp.Error != "drawing not found" {
		t.Errorf("Load error: got %q", resp.Error)
	}
}

func TestDispatch_NewDrawing(t *testing.T) {
	coord, repo, _, port := setup(t)
	ctx := context.Background()

	if _, err := repo.CreateDrawing(ctx, "sketch", *liveData(1), ""); err != nil {
		t.Fatalf("CreateDrawing() failed: %v", err)
	}
	port.reachable = true

	resp := coord.Dispatch(ctx, &protocol.NewDrawingRequest{})
	if !resp.Success {
		t.Fatalf("NewDrawing failed: %s", resp.Error)
	}
	if port.cleared != 1 {
		t.Errorf("Live surface cleared %d times, want 1", port.cleared)
	}
	current, err := repo.CurrentID(ctx)
	if err != nil {
		t.Fatalf("CurrentID() failed: %v", err)
	}
	if current != "" {
		t.Errorf("NewDrawing did not clear the pointer: %q", current)
	}
}

func TestDispatch_GetDrawing_AbsentIsSuccess(t *testing.T) {
	coord, _, _, _ := setup(t)

	resp := coord.Dispatch(context.Background(), &protocol.GetDrawingRequest{ID: "nope"})
	if !resp.Success {
		t.Fatalf("GetDrawing on unknown id should succeed with an absent drawing: %s", resp.Error)
	}
	if resp.Drawing != nil {
		t.Errorf("GetDrawing returned a drawing for an unknown id: %+v", resp.Drawing)
	}
}

func TestDispatch_GetCurrentID(t *testing.T) {
	coord, repo, _, _ := setup(t)
	ctx := context.Background()

	resp := coord.Dispatch(ctx, &protocol.GetCurrentIDRequest{})
	if !resp.Success || resp.ID != "" {
		t.Fatalf("GetCurrentID on empty store: %+v", resp)
	}

	if err := repo.SetCurrentID(ctx, "some-id"); err != nil {
		t.Fatalf("SetCurrentID() failed: %v", err)
	}
	resp = coord.Dispatch(ctx, &protocol.GetCurrentIDRequest{})
	if !resp.Success || resp.ID != "some-id" {
		t.Fatalf("GetCurrentID: %+v", resp)
	}
}

func TestDispatch_BackupsRoundTrip(t *testing.T) {
	coord, repo, _, port := setup(t)
	ctx := context.Background()
	port.reachable = true
	port.data = liveData(1)

	created, err := repo.CreateDrawing(ctx, "sketch", *liveData(1), "")
	if err != nil {
		t.Fatalf("CreateDrawing() failed: %v", err)
	}
	if _, err := repo.UpdateDrawing(ctx, created.ID, *liveData(2), ""); err != nil {
		t.Fatalf("UpdateDrawing() failed: %v", err)
	}

	resp := coord.Dispatch(ctx, &protocol.GetBackupsRequest{DrawingID: created.ID})
	if !resp.Success {
		t.Fatalf("GetBackups failed: %s", resp.Error)
	}
	if len(resp.Backups) != 2 {
		t.Fatalf("Backup count: got %d, want 2", len(resp.Backups))
	}

	restore := coord.Dispatch(ctx, &protocol.RestoreBackupRequest{BackupID: resp.Backups[0].ID})
	if !restore.Success {
		t.Fatalf("RestoreBackup failed: %s", restore.Error)
	}
	if restore.Drawing.Data != *liveData(1) {
		t.Errorf("Restored content: %q", restore.Drawing.Data.Elements)
	}
}

func TestStartStop(t *testing.T) {
	coord, _, _, _ := setup(t)
	coord.Start()
	coord.Stop()
	// Stop must be safe to call again.
	coord.Stop()
}
