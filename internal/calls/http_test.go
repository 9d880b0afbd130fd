package calls

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

func newTestRouter(repo Repository) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := Handlers{Repo: repo}
	r := gin.New()
	r.GET("/calls", h.ListCalls)
	r.GET("/calls/:id", h.GetCall)
	return r
}

func seedCompletedCall(t *testing.T, repo Repository, callID string) {
	t.Helper()
	ctx := context.Background()
	if err := repo.Upsert(ctx, CallRecord{
		CallID:      callID,
		Direction:   DirectionInbound,
		FromAddress: "+15550001111",
		ToAddress:   "+15552223333",
		State:       CallStateInitiated,
		CreatedAt:   testBase,
	}); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if _, err := repo.Transition(ctx, callID, CallStateAnswered, testBase.Add(5*time.Second)); err != nil {
		t.Fatalf("Transition answered: %v", err)
	}
	if _, err := repo.Transition(ctx, callID, CallStateCompleted, testBase.Add(65*time.Second)); err != nil {
		t.Fatalf("Transition completed: %v", err)
	}
}

func TestListCallsEndpoint(t *testing.T) {
	repo := NewMemoryRepo()
	seedCompletedCall(t, repo, "cc_list_1")
	r := newTestRouter(repo)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/calls?page=1&limit=10", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}

	var resp struct {
		Calls []struct {
			CallID          string `json:"call_id"`
			State           string `json:"state"`
			DurationSeconds int    `json:"duration_seconds"`
		} `json:"calls"`
		Total int `json:"total"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Total != 1 || len(resp.Calls) != 1 {
		t.Fatalf("resp = %+v", resp)
	}
	if resp.Calls[0].State != "completed" || resp.Calls[0].DurationSeconds != 60 {
		t.Errorf("call = %+v", resp.Calls[0])
	}
}

func TestGetCallEndpoint(t *testing.T) {
	repo := NewMemoryRepo()
	seedCompletedCall(t, repo, "cc_get_1")
	if err := repo.AddRecording(context.Background(), Recording{
		ID:           "rec_1",
		CallID:       "cc_get_1",
		RecordingURL: "https://example.com/rec.mp3",
		CreatedAt:    testBase.Add(2 * time.Minute),
	}); err != nil {
		t.Fatalf("AddRecording: %v", err)
	}
	r := newTestRouter(repo)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/calls/cc_get_1", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}

	var resp map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp["call_id"] != "cc_get_1" || resp["state"] != "completed" {
		t.Errorf("resp = %v", resp)
	}
	recs, ok := resp["recordings"].([]any)
	if !ok || len(recs) != 1 {
		t.Errorf("recordings = %v", resp["recordings"])
	}
}

func TestGetCallNotFound(t *testing.T) {
	r := newTestRouter(NewMemoryRepo())

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/calls/cc_missing", nil))
	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}
