//go:build e2e
// +build e2e

package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/rs/zerolog"

	"github.com/quizdrill/quizdrill-backend/internal/config"
	"github.com/quizdrill/quizdrill-backend/internal/handler"
	"github.com/quizdrill/quizdrill-backend/internal/model"
	"github.com/quizdrill/quizdrill-backend/internal/prefs"
	"github.com/quizdrill/quizdrill-backend/internal/queue"
	"github.com/quizdrill/quizdrill-backend/internal/registry"
	"github.com/quizdrill/quizdrill-backend/internal/results"
	"github.com/quizdrill/quizdrill-backend/internal/router"
	"github.com/quizdrill/quizdrill-backend/internal/sched"
	"github.com/quizdrill/quizdrill-backend/internal/storage"
	"github.com/quizdrill/quizdrill-backend/internal/validator"
	ws "github.com/quizdrill/quizdrill-backend/internal/websocket"
)

const examID = "e2e-go-basics"

const examMarkdown = `# Go Basics

## Question 1

What is the zero value of an int?

- [x] 0
- [ ] nil
- [ ] -1

## Question 2

Which of these are builtin functions?

- [x] len
- [ ] printf
- [x] cap

## Question 3

Which keyword declares a constant?

- [ ] var
- [x] const
`

var (
	baseURL string
	backup  []byte
)

func TestMain(m *testing.M) {
	zerolog.SetGlobalLevel(zerolog.Disabled)
	validator.Setup()

	dataDir, err := os.MkdirTemp("", "quizdrill-e2e-*")
	if err != nil {
		fmt.Printf("Setup failed: %v\n", err)
		os.Exit(1)
	}
	defer os.RemoveAll(dataDir)

	srv, err := buildServer(dataDir)
	if err != nil {
		fmt.Printf("Setup failed: %v\n", err)
		os.Exit(1)
	}
	defer srv.Close()
	baseURL = srv.URL + "/api/v1"

	os.Exit(m.Run())
}

// buildServer wires the full stack the way cmd/server does, but against
// a throwaway data directory and with no sync target configured, so the
// queue stays in its offline buffering mode.
func buildServer(dataDir string) (*httptest.Server, error) {
	log := zerolog.Nop()

	cfg := &config.Config{
		GinMode:          "release",
		DataDir:          dataDir,
		MaxStorageBytes:  5 * 1024 * 1024,
		EvictThreshold:   0.8,
		KeepSessions:     10,
		KeepResults:      50,
		MaxHistorySize:   50,
		MaxRetries:       3,
		AutosaveInterval: 0,
	}

	medium, err := storage.NewFileMedium(cfg.DataDir)
	if err != nil {
		return nil, err
	}
	store := storage.New(medium, storage.Options{
		MaxBytes:       cfg.MaxStorageBytes,
		EvictThreshold: cfg.EvictThreshold,
		KeepSessions:   cfg.KeepSessions,
		KeepResults:    cfg.KeepResults,
	}, log)

	offline := func(ctx context.Context, action model.PendingAction) (bool, error) {
		return false, nil
	}
	q := queue.New(store, offline, queue.Options{MaxRetries: cfg.MaxRetries}, log)

	prefsManager := prefs.New(store, log)
	history := results.New(store, cfg.MaxHistorySize, log)
	reg := registry.New(log)
	hub := ws.NewHub(log)

	handlers := &router.Handlers{
		Exam:    handler.NewExamHandler(reg),
		Session: handler.NewSessionHandler(reg, store, sched.NewManualScheduler(), q, history, hub, cfg, log),
		Results: handler.NewResultsHandler(history),
		Prefs:   handler.NewPrefsHandler(prefsManager),
		Storage: handler.NewStorageHandler(store),
		Queue:   handler.NewQueueHandler(q),
		Notify:  handler.NewNotifyHandler(hub, log, nil),
	}

	return httptest.NewServer(router.SetupRouter(handlers, cfg)), nil
}

func TestE2EFlow(t *testing.T) {
	// Step 1: Load an exam from markdown
	t.Run("LoadExam", func(t *testing.T) {
		resp := post(t, "/exams", map[string]string{"id": examID, "content": examMarkdown})
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusCreated {
			t.Fatalf("status %d: %s", resp.StatusCode, readBody(resp))
		}
	})

	// Step 1b: Loading the same id again must conflict
	t.Run("DuplicateExamRejected", func(t *testing.T) {
		resp := post(t, "/exams", map[string]string{"id": examID, "content": examMarkdown})
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusConflict {
			t.Fatalf("expected 409, got %d: %s", resp.StatusCode, readBody(resp))
		}
	})

	// Step 2: The catalog lists it
	t.Run("ListExams", func(t *testing.T) {
		resp := get(t, "/exams")
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("status %d: %s", resp.StatusCode, readBody(resp))
		}
		var body struct {
			Data struct {
				Exams []struct {
					ID            string `json:"id"`
					QuestionCount int    `json:"question_count"`
				} `json:"exams"`
			} `json:"data"`
		}
		decodeJSON(t, resp, &body)
		exams := body.Data.Exams
		if len(exams) != 1 || exams[0].ID != examID || exams[0].QuestionCount != 3 {
			t.Fatalf("unexpected catalog: %+v", exams)
		}
	})

	// Step 3: Start a practice session
	t.Run("StartSession", func(t *testing.T) {
		resp := post(t, "/exams/"+examID+"/session", map[string]string{"mode": "PRACTICE"})
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusCreated {
			t.Fatalf("status %d: %s", resp.StatusCode, readBody(resp))
		}
		view := decodeView(t, resp)
		if view.State != "ACTIVE" {
			t.Fatalf("expected ACTIVE state, got %q", view.State)
		}
	})

	// Step 4: Answer and navigate
	t.Run("AnswerAndNavigate", func(t *testing.T) {
		resp := post(t, "/exams/"+examID+"/session/answer", map[string]any{
			"question_id": "q1", "selected": []string{"A"},
		})
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("answer q1: status %d", resp.StatusCode)
		}

		resp = post(t, "/exams/"+examID+"/session/next", nil)
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("next: status %d", resp.StatusCode)
		}

		resp = post(t, "/exams/"+examID+"/session/answer", map[string]any{
			"question_id": "q2", "selected": []string{"A", "C"},
		})
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("answer q2: status %d", resp.StatusCode)
		}
		view := decodeView(t, resp)
		if view.Progress.Answered != 2 {
			t.Fatalf("expected 2 answered, got %d", view.Progress.Answered)
		}
	})

	// Step 5: Undo removes the last answer, redo restores it
	t.Run("UndoRedo", func(t *testing.T) {
		resp := post(t, "/exams/"+examID+"/session/undo", nil)
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("undo: status %d", resp.StatusCode)
		}

		resp = get(t, "/exams/"+examID+"/session")
		view := decodeView(t, resp)
		resp.Body.Close()
		if view.Progress.Answered != 1 {
			t.Fatalf("expected 1 answered after undo, got %d", view.Progress.Answered)
		}

		resp = post(t, "/exams/"+examID+"/session/redo", nil)
		view = decodeView(t, resp)
		resp.Body.Close()
		if view.Progress.Answered != 2 {
			t.Fatalf("expected 2 answered after redo, got %d", view.Progress.Answered)
		}
	})

	// Step 6: Flag a question for review
	t.Run("FlagQuestion", func(t *testing.T) {
		resp := post(t, "/exams/"+examID+"/session/flag", map[string]string{"question_id": "q3"})
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("status %d: %s", resp.StatusCode, readBody(resp))
		}
	})

	// Step 7: Submit and verify the score (q1 and q2 correct, q3 skipped)
	t.Run("SubmitSession", func(t *testing.T) {
		resp := post(t, "/exams/"+examID+"/session/submit", nil)
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("status %d: %s", resp.StatusCode, readBody(resp))
		}
		var body struct {
			Data struct {
				Result model.QuizResult `json:"result"`
			} `json:"data"`
		}
		decodeJSON(t, resp, &body)
		r := body.Data.Result
		if r.Score != 2 || r.CorrectCount != 2 || r.SkippedCount != 1 {
			t.Fatalf("unexpected result: %+v", r)
		}
		if r.Percentage < 66.0 || r.Percentage > 67.0 {
			t.Fatalf("unexpected percentage: %v", r.Percentage)
		}
	})

	// Step 7b: The frozen session rejects further mutation
	t.Run("MutationAfterSubmitRejected", func(t *testing.T) {
		resp := post(t, "/exams/"+examID+"/session/answer", map[string]any{
			"question_id": "q3", "selected": []string{"B"},
		})
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusConflict {
			t.Fatalf("expected 409, got %d: %s", resp.StatusCode, readBody(resp))
		}
	})

	// Step 8: The result landed in history and stats
	t.Run("ResultsRecorded", func(t *testing.T) {
		resp := get(t, "/results")
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("status %d: %s", resp.StatusCode, readBody(resp))
		}
		var body struct {
			Data struct {
				Results []struct {
					ExamID string `json:"exam_id"`
				} `json:"results"`
			} `json:"data"`
		}
		decodeJSON(t, resp, &body)
		if len(body.Data.Results) != 1 || body.Data.Results[0].ExamID != examID {
			t.Fatalf("unexpected history: %+v", body.Data.Results)
		}

		stats := get(t, "/results/stats/"+examID)
		defer stats.Body.Close()
		if stats.StatusCode != http.StatusOK {
			t.Fatalf("stats status %d", stats.StatusCode)
		}
	})

	// Step 9: Every user action was buffered offline, none delivered
	t.Run("ActionsBufferedOffline", func(t *testing.T) {
		resp := get(t, "/queue/pending")
		defer resp.Body.Close()
		var body struct {
			Data struct {
				Online  bool `json:"online"`
				Pending []struct {
					Type string `json:"type"`
				} `json:"pending"`
			} `json:"data"`
		}
		decodeJSON(t, resp, &body)
		if body.Data.Online {
			t.Fatal("queue should report offline")
		}

		// Two answers, one navigation, one flag, one submit.
		byType := map[string]int{}
		for _, a := range body.Data.Pending {
			byType[a.Type]++
		}
		want := map[string]int{"answer": 2, "navigation": 1, "flag": 1, "submit": 1}
		for typ, n := range want {
			if byType[typ] != n {
				t.Fatalf("expected %d %s actions, got %d (all: %v)", n, typ, byType[typ], byType)
			}
		}
		if len(body.Data.Pending) != 5 {
			t.Fatalf("expected 5 pending actions, got %d", len(body.Data.Pending))
		}
	})

	// Step 10: Preferences round-trip through the API
	t.Run("PreferencesRoundTrip", func(t *testing.T) {
		resp := put(t, "/preferences", map[string]any{
			"theme":            "dark",
			"show_timer":       true,
			"auto_save":        true,
			"sound_enabled":    false,
			"question_order":   "ordered",
			"default_mode":     "EXAM",
			"max_history_size": 25,
		})
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("put status %d", resp.StatusCode)
		}

		resp = get(t, "/preferences")
		defer resp.Body.Close()
		var body struct {
			Data struct {
				Preferences model.Preferences `json:"preferences"`
			} `json:"data"`
		}
		decodeJSON(t, resp, &body)
		p := body.Data.Preferences
		if p.Theme != "dark" || p.DefaultMode != model.QuizModeExam {
			t.Fatalf("unexpected preferences: %+v", p)
		}
	})

	// Step 10b: Invalid preferences are rejected
	t.Run("InvalidPreferencesRejected", func(t *testing.T) {
		resp := put(t, "/preferences", map[string]any{
			"theme":            "neon",
			"question_order":   "ordered",
			"default_mode":     "EXAM",
			"max_history_size": 25,
		})
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusUnprocessableEntity {
			t.Fatalf("expected 422, got %d: %s", resp.StatusCode, readBody(resp))
		}
	})

	// Step 11: Full backup, then restore into the same store
	t.Run("BackupAndRestore", func(t *testing.T) {
		resp := get(t, "/storage/backup")
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("backup status %d", resp.StatusCode)
		}
		backup = readBytes(t, resp)
		resp.Body.Close()
		if len(backup) == 0 {
			t.Fatal("empty backup blob")
		}

		resp = postRaw(t, "/storage/restore", backup)
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("restore status %d: %s", resp.StatusCode, readBody(resp))
		}
	})

	// Step 11b: A junk blob must not touch the store
	t.Run("RestoreFailsClosed", func(t *testing.T) {
		resp := postRaw(t, "/storage/restore", []byte(`{"version":99}`))
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusUnprocessableEntity {
			t.Fatalf("expected 422, got %d: %s", resp.StatusCode, readBody(resp))
		}
		// Survivorship check: preferences saved in step 10 still there.
		prefsResp := get(t, "/preferences")
		defer prefsResp.Body.Close()
		var body struct {
			Data struct {
				Preferences model.Preferences `json:"preferences"`
			} `json:"data"`
		}
		decodeJSON(t, prefsResp, &body)
		if body.Data.Preferences.Theme != "dark" {
			t.Fatalf("store mutated by failed restore: %+v", body.Data.Preferences)
		}
	})

	// Step 12: Store health after the full run
	t.Run("StorageHealthy", func(t *testing.T) {
		resp := get(t, "/storage/health")
		defer resp.Body.Close()
		var body struct {
			Data struct {
				Healthy bool `json:"healthy"`
			} `json:"data"`
		}
		decodeJSON(t, resp, &body)
		if !body.Data.Healthy {
			t.Fatalf("store unhealthy: %s", readBody(resp))
		}
	})

	// Step 13: Discard the submitted session
	t.Run("DeleteSession", func(t *testing.T) {
		resp := del(t, "/exams/"+examID+"/session")
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("delete status %d", resp.StatusCode)
		}

		resp = get(t, "/exams/"+examID+"/session")
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusNotFound {
			t.Fatalf("expected 404 after delete, got %d", resp.StatusCode)
		}
	})
}

type sessionView struct {
	State    string `json:"state"`
	Progress struct {
		Answered int     `json:"answered"`
		Total    int     `json:"total"`
		Percent  float64 `json:"percentage"`
	} `json:"progress"`
}

func decodeView(t *testing.T, resp *http.Response) sessionView {
	t.Helper()
	var body struct {
		Data sessionView `json:"data"`
	}
	decodeJSON(t, resp, &body)
	return body.Data
}

func request(t *testing.T, method, path string, payload []byte) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, baseURL+path, bytes.NewReader(payload))
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	return resp
}

func post(t *testing.T, path string, body any) *http.Response {
	t.Helper()
	return request(t, http.MethodPost, path, marshal(t, body))
}

func postRaw(t *testing.T, path string, blob []byte) *http.Response {
	t.Helper()
	return request(t, http.MethodPost, path, blob)
}

func put(t *testing.T, path string, body any) *http.Response {
	t.Helper()
	return request(t, http.MethodPut, path, marshal(t, body))
}

func get(t *testing.T, path string) *http.Response {
	t.Helper()
	return request(t, http.MethodGet, path, nil)
}

func del(t *testing.T, path string) *http.Response {
	t.Helper()
	return request(t, http.MethodDelete, path, nil)
}

func marshal(t *testing.T, body any) []byte {
	t.Helper()
	if body == nil {
		return nil
	}
	blob, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("encode payload: %v", err)
	}
	return blob
}

func decodeJSON(t *testing.T, resp *http.Response, dst any) {
	t.Helper()
	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

func readBytes(t *testing.T, resp *http.Response) []byte {
	t.Helper()
	blob, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return blob
}

func readBody(resp *http.Response) string {
	blob, _ := io.ReadAll(resp.Body)
	return string(blob)
}
