package routers

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/jitenkr2030/video-shiksha/config"
	"github.com/jitenkr2030/video-shiksha/models"
	"github.com/jitenkr2030/video-shiksha/routers/api"
	"github.com/jitenkr2030/video-shiksha/service"
)

type testServer struct {
	router *gin.Engine
	store  *models.MemStore
	queue  *service.MemQueue
}

// newTestServer assembles the stub-backend stack behind the real router.
func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)
	cfg := config.Default()

	store := models.NewMemStore()
	queue := service.NewMemQueue(4)
	artifacts := service.NewMemArtifactStore()
	pricing := service.NewPricing(cfg.Credits)
	credits := service.NewCredits(store, pricing)
	ledger := service.NewLedger(store)

	orch, err := service.NewOrchestrator(store, ledger, credits, queue, cfg.Pipeline.FanoutPoolSize)
	if err != nil {
		t.Fatalf("orchestrator: %v", err)
	}
	proc := service.NewProcessor(store, ledger, queue, artifacts, service.NewCollaborators(cfg.Pipeline), cfg.Pipeline)
	proc.Register()
	if err := queue.Run(); err != nil {
		t.Fatalf("queue run: %v", err)
	}
	t.Cleanup(func() {
		queue.Close()
		orch.Close()
	})

	h := &api.Handler{
		Store:        store,
		Artifacts:    artifacts,
		Orchestrator: orch,
		Credits:      credits,
		Pricing:      pricing,
		Ledger:       ledger,
		SignupGrant:  cfg.Credits.SignupGrant,
	}
	return &testServer{router: InitRouter(h), store: store, queue: queue}
}

func (s *testServer) do(t *testing.T, method, path, userID string, body *bytes.Buffer, contentType string) *httptest.ResponseRecorder {
	t.Helper()
	if body == nil {
		body = &bytes.Buffer{}
	}
	req := httptest.NewRequest(method, path, body)
	if userID != "" {
		req.Header.Set("X-User-ID", userID)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func (s *testServer) doJSON(t *testing.T, method, path, userID string, payload any) *httptest.ResponseRecorder {
	t.Helper()
	var body bytes.Buffer
	if payload != nil {
		if err := json.NewEncoder(&body).Encode(payload); err != nil {
			t.Fatalf("encode payload: %v", err)
		}
	}
	return s.do(t, method, path, userID, &body, "application/json")
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response %q: %v", w.Body.String(), err)
	}
	return out
}

func deckUpload(t *testing.T, deck string, fields map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("deck", "lecture.txt")
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := fw.Write([]byte(deck)); err != nil {
		t.Fatalf("write deck: %v", err)
	}
	for k, v := range fields {
		mw.WriteField(k, v)
	}
	mw.Close()
	return &body, mw.FormDataContentType()
}

const uploadDeck = "Intro\nWelcome to the lecture series\n---\nBody\nAll the material lives here\n---\nWrap\nThat is everything for today"

func TestCreateProjectRunsPipeline(t *testing.T) {
	s := newTestServer(t)

	body, ct := deckUpload(t, uploadDeck, map[string]string{"title": "Lecture 1"})
	w := s.do(t, http.MethodPost, "/v1/api/projects", "alice", body, ct)
	if w.Code != http.StatusCreated {
		t.Fatalf("create status = %d, body %s", w.Code, w.Body.String())
	}
	created := decodeBody(t, w)
	projectID, _ := created["project_id"].(string)
	if projectID == "" {
		t.Fatal("no project_id in response")
	}
	s.queue.Drain()

	w = s.do(t, http.MethodGet, "/v1/api/projects/"+projectID, "alice", nil, "")
	if w.Code != http.StatusOK {
		t.Fatalf("get status = %d", w.Code)
	}
	got := decodeBody(t, w)
	project := got["project"].(map[string]any)
	if project["status"] != "completed" {
		t.Fatalf("project status = %v (%v), want completed", project["status"], project["error"])
	}
	if project["title"] != "Lecture 1" {
		t.Fatalf("title = %v, want Lecture 1", project["title"])
	}
	slides := got["slides"].([]any)
	if len(slides) != 3 {
		t.Fatalf("slides = %d, want 3", len(slides))
	}

	// Signup grant 50 minus the full run (3 slides with subtitles = 15).
	w = s.do(t, http.MethodGet, "/v1/api/credits/balance", "alice", nil, "")
	if w.Code != http.StatusOK {
		t.Fatalf("balance status = %d", w.Code)
	}
	if bal := decodeBody(t, w)["balance"].(float64); bal != 35 {
		t.Fatalf("balance = %v, want 35", bal)
	}

	w = s.do(t, http.MethodGet, "/v1/api/projects/"+projectID+"/video", "alice", nil, "")
	if w.Code != http.StatusOK {
		t.Fatalf("video status = %d", w.Code)
	}
	video := decodeBody(t, w)["video"].(map[string]any)
	if video["status"] != "completed" {
		t.Fatalf("video status = %v, want completed", video["status"])
	}
	if url, _ := video["videoUrl"].(string); url == "" {
		t.Fatal("video has no url")
	}
	if url, _ := video["subtitleUrl"].(string); url == "" {
		t.Fatal("video has no subtitle url")
	}
}

func TestCreateProjectRequiresDeckAndUser(t *testing.T) {
	s := newTestServer(t)

	body, ct := deckUpload(t, uploadDeck, nil)
	if w := s.do(t, http.MethodPost, "/v1/api/projects", "", body, ct); w.Code != http.StatusUnauthorized {
		t.Fatalf("missing user status = %d, want 401", w.Code)
	}

	var empty bytes.Buffer
	mw := multipart.NewWriter(&empty)
	mw.WriteField("title", "no deck")
	mw.Close()
	if w := s.do(t, http.MethodPost, "/v1/api/projects", "alice", &empty, mw.FormDataContentType()); w.Code != http.StatusBadRequest {
		t.Fatalf("missing deck status = %d, want 400", w.Code)
	}
}

func TestProjectEstimateAndJobs(t *testing.T) {
	s := newTestServer(t)
	body, ct := deckUpload(t, uploadDeck, nil)
	w := s.do(t, http.MethodPost, "/v1/api/projects", "bob", body, ct)
	if w.Code != http.StatusCreated {
		t.Fatalf("create status = %d", w.Code)
	}
	projectID := decodeBody(t, w)["project_id"].(string)
	s.queue.Drain()

	w = s.do(t, http.MethodGet, "/v1/api/projects/"+projectID+"/estimate", "bob", nil, "")
	if w.Code != http.StatusOK {
		t.Fatalf("estimate status = %d", w.Code)
	}
	est := decodeBody(t, w)
	if est["slide_count"].(float64) != 3 || est["estimate"].(float64) != 15 {
		t.Fatalf("estimate = %v, want 3 slides at 15 credits", est)
	}

	w = s.do(t, http.MethodGet, "/v1/api/projects/"+projectID+"/jobs", "bob", nil, "")
	if w.Code != http.StatusOK {
		t.Fatalf("jobs status = %d", w.Code)
	}
	jobs := decodeBody(t, w)["jobs"].([]any)
	// 1 parse, 3 scripts, 3 TTS, 1 render, 1 subtitles.
	if len(jobs) != 9 {
		t.Fatalf("jobs = %d, want 9", len(jobs))
	}
	for _, raw := range jobs {
		job := raw.(map[string]any)
		if job["status"] != "completed" {
			t.Errorf("job %v status = %v (%v)", job["id"], job["status"], job["error"])
		}
	}
}

func TestRegenerateScriptEndpoint(t *testing.T) {
	s := newTestServer(t)
	body, ct := deckUpload(t, uploadDeck, nil)
	w := s.do(t, http.MethodPost, "/v1/api/projects", "carol", body, ct)
	projectID := decodeBody(t, w)["project_id"].(string)
	s.queue.Drain()

	slides, err := s.store.SlidesByProject(projectID)
	if err != nil || len(slides) == 0 {
		t.Fatalf("slides: %v", err)
	}
	slideID := slides[0].ID

	w = s.doJSON(t, http.MethodPost, "/v1/api/slides/"+slideID+"/script", "carol", map[string]string{"custom_prompt": "Make it formal."})
	if w.Code != http.StatusAccepted {
		t.Fatalf("regenerate status = %d, body %s", w.Code, w.Body.String())
	}
	s.queue.Drain()

	script, err := s.store.ScriptBySlide(slideID)
	if err != nil {
		t.Fatalf("script: %v", err)
	}
	if !strings.HasPrefix(script.Content, "Make it formal.") {
		t.Fatalf("script = %q, want custom prompt applied", script.Content)
	}
}

func TestCreditEndpoints(t *testing.T) {
	s := newTestServer(t)

	// First contact grants the signup balance.
	w := s.do(t, http.MethodGet, "/v1/api/credits/balance", "dave", nil, "")
	if w.Code != http.StatusOK {
		t.Fatalf("balance status = %d", w.Code)
	}
	if bal := decodeBody(t, w)["balance"].(float64); bal != 50 {
		t.Fatalf("balance = %v, want signup grant 50", bal)
	}

	w = s.doJSON(t, http.MethodPost, "/v1/api/credits/topup", "dave", map[string]any{"amount": 25})
	if w.Code != http.StatusOK {
		t.Fatalf("topup status = %d", w.Code)
	}
	if bal := decodeBody(t, w)["balance"].(float64); bal != 75 {
		t.Fatalf("balance after topup = %v, want 75", bal)
	}

	w = s.doJSON(t, http.MethodPost, "/v1/api/credits/topup", "dave", map[string]any{"amount": -5})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("negative topup status = %d, want 400", w.Code)
	}

	w = s.do(t, http.MethodGet, "/v1/api/credits/entries", "dave", nil, "")
	if w.Code != http.StatusOK {
		t.Fatalf("entries status = %d", w.Code)
	}
	// Signup grant plus the successful top-up; the rejected one leaves no trace.
	entries := decodeBody(t, w)["entries"].([]any)
	if len(entries) != 2 {
		t.Fatalf("entries = %d, want 2", len(entries))
	}
}

func TestLookupsReturn404(t *testing.T) {
	s := newTestServer(t)
	if w := s.do(t, http.MethodGet, "/v1/api/projects/nope", "alice", nil, ""); w.Code != http.StatusNotFound {
		t.Fatalf("project status = %d, want 404", w.Code)
	}
	if w := s.do(t, http.MethodGet, "/v1/api/jobs/nope", "alice", nil, ""); w.Code != http.StatusNotFound {
		t.Fatalf("job status = %d, want 404", w.Code)
	}
	if w := s.do(t, http.MethodGet, "/v1/api/videos/nope", "alice", nil, ""); w.Code != http.StatusNotFound {
		t.Fatalf("video status = %d, want 404", w.Code)
	}
}
