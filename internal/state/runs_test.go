package state

import (
	"testing"
	"time"

	"github.com/ShayCichocki/jit/pkg/models"
)

func TestRunLifecycle(t *testing.T) {
	db := setupTestDB(t)
	start := time.Now()

	run := &models.RunRecord{
		ID:        "run-1",
		SessionID: "default",
		Request:   "Weather in Oslo?",
		StartedAt: start,
	}
	if err := db.StartRun(run); err != nil {
		t.Fatalf("StartRun failed: %v", err)
	}

	got, err := db.GetRun("run-1")
	if err != nil || got == nil {
		t.Fatalf("GetRun = %v, %v", got, err)
	}
	if got.Status != models.RunRunning || !got.FinishedAt.IsZero() || got.Graph != nil {
		t.Errorf("running run = %+v", got)
	}

	run.Path = models.RouteAgent
	run.Reasoning = "needs weather data"
	run.Graph = &models.ExecutionGraph{Subtasks: []models.Subtask{
		{ID: "get_weather", Tools: []string{"get_weather"}, Instructions: "Oslo"},
	}}
	run.Response = "Rain, 12C."
	run.FinishedAt = start.Add(2 * time.Second)
	if err := db.FinishRun(run); err != nil {
		t.Fatalf("FinishRun failed: %v", err)
	}

	got, _ = db.GetRun("run-1")
	if got.Status != models.RunDone || got.Path != models.RouteAgent || got.Response != "Rain, 12C." {
		t.Errorf("finished run = %+v", got)
	}
	if got.Graph == nil || got.Graph.Subtasks[0].ID != "get_weather" {
		t.Errorf("plan not stored: %+v", got.Graph)
	}
	if d := got.Duration(); d < 1900*time.Millisecond || d > 2100*time.Millisecond {
		t.Errorf("Duration = %v, want ~2s", d)
	}
}

func TestGetRun_NotFound(t *testing.T) {
	db := setupTestDB(t)
	got, err := db.GetRun("missing")
	if err != nil || got != nil {
		t.Errorf("GetRun(missing) = %v, %v", got, err)
	}
}

func TestRecentRuns(t *testing.T) {
	db := setupTestDB(t)
	base := time.Now().Add(-time.Hour)

	for i, id := range []string{"r1", "r2", "r3"} {
		session := "a"
		if id == "r2" {
			session = "b"
		}
		err := db.RecordRun(&models.RunRecord{
			ID:         id,
			SessionID:  session,
			Request:    "req " + id,
			Path:       models.RouteDirect,
			Response:   "resp",
			StartedAt:  base.Add(time.Duration(i) * time.Minute),
			FinishedAt: base.Add(time.Duration(i)*time.Minute + time.Second),
		})
		if err != nil {
			t.Fatalf("RecordRun(%s) failed: %v", id, err)
		}
	}

	runs, err := db.RecentRuns(2)
	if err != nil {
		t.Fatalf("RecentRuns failed: %v", err)
	}
	if len(runs) != 2 || runs[0].ID != "r3" || runs[1].ID != "r2" {
		t.Errorf("RecentRuns(2) = %v", runIDs(runs))
	}
	if runs[0].Status != models.RunDone {
		t.Errorf("recorded run status = %q", runs[0].Status)
	}

	forA, _ := db.RecentRunsForSession("a", 10)
	if len(forA) != 2 || forA[0].ID != "r3" || forA[1].ID != "r1" {
		t.Errorf("RecentRunsForSession(a) = %v", runIDs(forA))
	}
}

func TestPurgeOldRuns(t *testing.T) {
	db := setupTestDB(t)
	old := time.Now().Add(-48 * time.Hour)

	db.RecordRun(&models.RunRecord{ID: "old", SessionID: "s", Request: "x", StartedAt: old, FinishedAt: old})
	db.StartRun(&models.RunRecord{ID: "old-running", SessionID: "s", Request: "x", StartedAt: old})
	db.RecordRun(&models.RunRecord{ID: "new", SessionID: "s", Request: "x", StartedAt: time.Now(), FinishedAt: time.Now()})

	n, err := db.PurgeOldRuns(24 * time.Hour)
	if err != nil {
		t.Fatalf("PurgeOldRuns failed: %v", err)
	}
	if n != 1 {
		t.Errorf("purged %d runs, want 1", n)
	}
	if got, _ := db.GetRun("old-running"); got == nil {
		t.Error("running runs must not be purged")
	}
}

func TestRecoveryManager(t *testing.T) {
	db := setupTestDB(t)
	boot := time.Now()

	db.StartRun(&models.RunRecord{ID: "crashed", SessionID: "s", Request: "weather?", StartedAt: boot.Add(-time.Minute)})
	db.StartRun(&models.RunRecord{ID: "live", SessionID: "s", Request: "news?", StartedAt: boot.Add(time.Second)})
	db.RecordRun(&models.RunRecord{ID: "done", SessionID: "s", Request: "hi", StartedAt: boot.Add(-time.Hour), FinishedAt: boot.Add(-time.Hour)})

	rm := NewRecoveryManager(db)
	interrupted, err := rm.CheckForInterrupted(boot)
	if err != nil {
		t.Fatalf("CheckForInterrupted failed: %v", err)
	}
	if len(interrupted) != 1 || interrupted[0].RunID != "crashed" || interrupted[0].Request != "weather?" {
		t.Fatalf("interrupted = %+v", interrupted)
	}

	n, err := rm.MarkInterrupted(boot)
	if err != nil || n != 1 {
		t.Fatalf("MarkInterrupted = %d, %v", n, err)
	}

	crashed, _ := db.GetRun("crashed")
	if crashed.Status != models.RunInterrupted || crashed.FinishedAt.IsZero() {
		t.Errorf("crashed run = %+v", crashed)
	}
	live, _ := db.GetRun("live")
	if live.Status != models.RunRunning {
		t.Errorf("live run status = %q", live.Status)
	}
}

func runIDs(runs []models.RunRecord) []string {
	ids := make([]string, len(runs))
	for i, r := range runs {
		ids[i] = r.ID
	}
	return ids
}
