package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"mural-backend/internal/auth"
	"mural-backend/internal/board"
	"mural-backend/internal/session"
	"mural-backend/internal/store"
)

func setupTestAPI(t *testing.T) (*API, *store.Store, func()) {
	t.Helper()

	tmpDir, err := os.MkdirTemp("", "mural-api-test-*")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}

	st, err := store.New(filepath.Join(tmpDir, "test.db"))
	if err != nil {
		os.RemoveAll(tmpDir)
		t.Fatalf("Failed to create store: %v", err)
	}

	registry := session.NewRegistry()
	a := New(registry, st, auth.NewVerifier("test-secret"))

	cleanup := func() {
		st.Close()
		os.RemoveAll(tmpDir)
	}

	return a, st, cleanup
}

func TestHealthHandler(t *testing.T) {
	a, _, cleanup := setupTestAPI(t)
	defer cleanup()

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()

	a.HealthHandler(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", rec.Code)
	}

	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("Failed to parse response: %v", err)
	}
	if body["status"] != "ok" {
		t.Errorf("Expected status 'ok', got %v", body["status"])
	}
}

func TestStatsHandler(t *testing.T) {
	a, st, cleanup := setupTestAPI(t)
	defer cleanup()

	if _, err := st.JoinBoard("room-1", "user-a", ""); err != nil {
		t.Fatalf("Failed to seed board: %v", err)
	}
	stroke, _ := json.Marshal(board.Element{ID: "s1", Kind: board.KindFreehand})
	if err := st.UpsertStroke("room-1", "s1", stroke); err != nil {
		t.Fatalf("Failed to seed stroke: %v", err)
	}
	a.registry.GetOrCreate("room-1").Add("conn-a", session.Member{Name: "Ada"})

	req := httptest.NewRequest(http.MethodGet, "/api/stats", nil)
	rec := httptest.NewRecorder()

	a.StatsHandler(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", rec.Code)
	}

	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("Failed to parse response: %v", err)
	}
	if body["active_rooms"].(float64) != 1 {
		t.Errorf("Expected 1 active room, got %v", body["active_rooms"])
	}
	if body["active_clients"].(float64) != 1 {
		t.Errorf("Expected 1 active client, got %v", body["active_clients"])
	}
	if body["total_boards"].(float64) != 1 {
		t.Errorf("Expected 1 board, got %v", body["total_boards"])
	}
	if body["total_strokes"].(float64) != 1 {
		t.Errorf("Expected 1 stroke, got %v", body["total_strokes"])
	}
}

func TestRecentSessionsHandler(t *testing.T) {
	a, st, cleanup := setupTestAPI(t)
	defer cleanup()

	if _, err := st.JoinBoard("room-1", "user-a", "Design Review"); err != nil {
		t.Fatalf("Failed to seed board: %v", err)
	}
	if _, err := st.JoinBoard("room-2", "user-a", ""); err != nil {
		t.Fatalf("Failed to seed board: %v", err)
	}
	if err := st.MarkLeft("room-2", "user-a"); err != nil {
		t.Fatalf("Failed to mark left: %v", err)
	}

	token, err := a.verifier.Sign("user-a", "Ada", time.Hour)
	if err != nil {
		t.Fatalf("Failed to sign token: %v", err)
	}

	handler := auth.Middleware(a.verifier, a.RecentSessionsHandler)
	req := httptest.NewRequest(http.MethodGet, "/api/sessions/recent", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()

	handler(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var body struct {
		Success  bool                  `json:"success"`
		Sessions []store.RecentSession `json:"sessions"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("Failed to parse response: %v", err)
	}
	if !body.Success {
		t.Error("Expected success true")
	}
	if len(body.Sessions) != 2 {
		t.Fatalf("Expected 2 sessions, got %d", len(body.Sessions))
	}

	byRoom := make(map[string]store.RecentSession)
	for _, s := range body.Sessions {
		byRoom[s.RoomID] = s
	}
	if byRoom["room-1"].Status != board.StatusActive {
		t.Errorf("Expected room-1 active, got '%s'", byRoom["room-1"].Status)
	}
	if byRoom["room-1"].Name != "Design Review" {
		t.Errorf("Expected room-1 name 'Design Review', got '%s'", byRoom["room-1"].Name)
	}
	if byRoom["room-2"].Status != board.StatusExpired {
		t.Errorf("Expected left room-2 to read expired, got '%s'", byRoom["room-2"].Status)
	}
}

func TestRecentSessionsHandlerUnauthorized(t *testing.T) {
	a, _, cleanup := setupTestAPI(t)
	defer cleanup()

	handler := auth.Middleware(a.verifier, a.RecentSessionsHandler)
	req := httptest.NewRequest(http.MethodGet, "/api/sessions/recent", nil)
	rec := httptest.NewRecorder()

	handler(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("Expected status 401, got %d", rec.Code)
	}
}

func TestRecentSessionsHandlerMethodNotAllowed(t *testing.T) {
	a, _, cleanup := setupTestAPI(t)
	defer cleanup()

	token, err := a.verifier.Sign("user-a", "Ada", time.Hour)
	if err != nil {
		t.Fatalf("Failed to sign token: %v", err)
	}

	handler := auth.Middleware(a.verifier, a.RecentSessionsHandler)
	req := httptest.NewRequest(http.MethodPost, "/api/sessions/recent", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()

	handler(rec, req)

	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("Expected status 405, got %d", rec.Code)
	}
}
