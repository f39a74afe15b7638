package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/zulandar/docket/internal/blob"
	"github.com/zulandar/docket/internal/config"
	"github.com/zulandar/docket/internal/dbtest"
	"github.com/zulandar/docket/internal/events"
	"github.com/zulandar/docket/internal/identity"
	"github.com/zulandar/docket/internal/workflow"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	goleak.VerifyTestMain(m,
		goleak.IgnoreTopFunction("go.opencensus.io/stats/view.(*worker).start"),
	)
}

var testAuth = identity.NewJWTProvider("test-secret")

type harness struct {
	router *gin.Engine
	svc    *workflow.Service
	blobs  *blob.Memory
	events *events.Recorder
}

func newHarness(t *testing.T) harness {
	t.Helper()
	db := dbtest.Open(t)
	dbtest.User(t, db, 1, "Cabinet Secretary", identity.RoleAdmin)
	dbtest.User(t, db, 2, "Clerk", identity.RoleUser)
	blobs := blob.NewMemory()
	rec := &events.Recorder{}
	svc := workflow.New(db, blobs, rec, config.TimeoutConfig{Store: 5 * time.Second, Blob: 5 * time.Second})
	return harness{router: NewRouter(svc, testAuth), svc: svc, blobs: blobs, events: rec}
}

func token(t *testing.T, id uint, role, name string) string {
	t.Helper()
	tok, err := testAuth.Issue(identity.Actor{ID: id, Role: role, DisplayName: name, Email: fmt.Sprintf("user%d@example.gov", id)}, time.Hour)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	return tok
}

func (h harness) do(t *testing.T, method, path, tok string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		r = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, r)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	w := httptest.NewRecorder()
	h.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, dst any) {
	t.Helper()
	if err := json.Unmarshal(w.Body.Bytes(), dst); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
}

type errorEnvelope struct {
	Error errorBody `json:"error"`
}

func expectError(t *testing.T, w *httptest.ResponseRecorder, status int, kind string) errorBody {
	t.Helper()
	if w.Code != status {
		t.Fatalf("status = %d, want %d (body %s)", w.Code, status, w.Body.String())
	}
	var env errorEnvelope
	decode(t, w, &env)
	if string(env.Error.Kind) != kind {
		t.Errorf("error kind = %q, want %q", env.Error.Kind, kind)
	}
	return env.Error
}

func TestStart_NilService(t *testing.T) {
	err := Start(context.Background(), StartOpts{Auth: testAuth})
	if err == nil || !strings.Contains(err.Error(), "service is required") {
		t.Fatalf("err = %v, want service is required", err)
	}
}

func TestStart_NilAuth(t *testing.T) {
	svc := workflow.New(dbtest.Open(t), blob.NewMemory(), &events.Recorder{}, config.TimeoutConfig{})
	err := Start(context.Background(), StartOpts{Service: svc})
	if err == nil || !strings.Contains(err.Error(), "identity provider is required") {
		t.Fatalf("err = %v, want identity provider is required", err)
	}
}

func TestStart_ShutsDownOnCancel(t *testing.T) {
	svc := workflow.New(dbtest.Open(t), blob.NewMemory(), &events.Recorder{}, config.TimeoutConfig{})
	ctx, cancel := context.WithCancel(context.Background())
	port := 18080 + int(time.Now().UnixNano()%1000)

	var out bytes.Buffer
	errc := make(chan error, 1)
	go func() {
		errc <- Start(ctx, StartOpts{Service: svc, Auth: testAuth, Port: port, Out: &out})
	}()

	url := fmt.Sprintf("http://localhost:%d/healthz", port)
	client := &http.Client{Timeout: time.Second}
	deadline := time.Now().Add(3 * time.Second)
	for {
		resp, err := client.Get(url)
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode != http.StatusOK {
				t.Errorf("healthz status = %d, want 200", resp.StatusCode)
			}
			break
		}
		if time.Now().After(deadline) {
			cancel()
			t.Fatalf("server did not come up: %v", err)
		}
		time.Sleep(20 * time.Millisecond)
	}
	client.CloseIdleConnections()

	cancel()
	select {
	case err := <-errc:
		if err != nil {
			t.Fatalf("Start returned %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Start did not return after cancel")
	}
	if !strings.Contains(out.String(), "listening on") {
		t.Errorf("output = %q, want listening banner", out.String())
	}
}

func TestHealthz(t *testing.T) {
	h := newHarness(t)
	w := h.do(t, http.MethodGet, "/healthz", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	h := newHarness(t)
	h.do(t, http.MethodGet, "/healthz", "", nil)
	w := h.do(t, http.MethodGet, "/metrics", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "docket_http_requests_total") {
		t.Error("metrics output missing docket_http_requests_total")
	}
}

func TestAuth(t *testing.T) {
	h := newHarness(t)
	tests := []struct {
		name   string
		header string
	}{
		{"missing header", ""},
		{"wrong scheme", "Basic abc"},
		{"garbage token", "Bearer not-a-jwt"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/memos", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			h.router.ServeHTTP(w, req)
			expectError(t, w, http.StatusUnauthorized, "authentication")
		})
	}
}

func TestAuth_RemembersActor(t *testing.T) {
	h := newHarness(t)
	w := h.do(t, http.MethodGet, "/api/memos", token(t, 7, identity.RoleUser, "New Officer"), nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}
	a, err := identity.Lookup(context.Background(), h.svc.DB, 7)
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if a.DisplayName != "New Officer" {
		t.Errorf("display name = %q", a.DisplayName)
	}
}

func TestMemoLifecycle(t *testing.T) {
	h := newHarness(t)
	clerk := token(t, 2, identity.RoleUser, "Clerk")
	ministry := dbtest.Ministry(t, h.svc.DB, "MOH", "Health")

	w := h.do(t, http.MethodPost, "/api/memos", clerk, map[string]any{
		"name": "Health Budget", "summary": "s", "body": "b",
		"ministry_id":       ministry,
		"affected_entities": []string{fmt.Sprintf("ministry_%d", ministry)},
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("create status = %d: %s", w.Code, w.Body.String())
	}
	var created struct {
		ID               uint     `json:"id"`
		Status           string   `json:"status"`
		CreatedBy        uint     `json:"created_by"`
		AffectedEntities []string `json:"affected_entities"`
	}
	decode(t, w, &created)
	if created.Status != "draft" || created.CreatedBy != 2 {
		t.Errorf("created = %+v", created)
	}
	if len(created.AffectedEntities) != 1 {
		t.Errorf("affected = %v", created.AffectedEntities)
	}

	path := fmt.Sprintf("/api/memos/%d", created.ID)
	w = h.do(t, http.MethodPatch, path, clerk, map[string]any{"status": "submitted"})
	if w.Code != http.StatusOK {
		t.Fatalf("patch status = %d: %s", w.Code, w.Body.String())
	}
	var updated struct {
		Name        string     `json:"name"`
		Status      string     `json:"status"`
		SubmittedAt *time.Time `json:"submitted_at"`
	}
	decode(t, w, &updated)
	if updated.Name != "Health Budget" {
		t.Errorf("name = %q, want unchanged", updated.Name)
	}
	if updated.Status != "submitted" {
		t.Errorf("status = %q", updated.Status)
	}

	w = h.do(t, http.MethodDelete, path, clerk, nil)
	expectError(t, w, http.StatusForbidden, "authorization")

	w = h.do(t, http.MethodGet, "/api/memos?status=submitted", clerk, nil)
	var list struct {
		Memos []struct {
			ID uint `json:"id"`
		} `json:"memos"`
	}
	decode(t, w, &list)
	if len(list.Memos) != 1 || list.Memos[0].ID != created.ID {
		t.Errorf("list = %+v", list.Memos)
	}

	// the admin receives a notification for the submission
	w = h.do(t, http.MethodGet, "/api/notifications", token(t, 1, identity.RoleAdmin, "Cabinet Secretary"), nil)
	var inbox struct {
		Notifications []struct {
			ID uint `json:"id"`
		} `json:"notifications"`
	}
	decode(t, w, &inbox)
	if len(inbox.Notifications) != 1 {
		t.Fatalf("admin inbox = %d, want 1", len(inbox.Notifications))
	}
	w = h.do(t, http.MethodPost, fmt.Sprintf("/api/notifications/%d/ack", inbox.Notifications[0].ID),
		token(t, 1, identity.RoleAdmin, "Cabinet Secretary"), nil)
	if w.Code != http.StatusNoContent {
		t.Errorf("ack status = %d", w.Code)
	}
}

func TestMemoValidationBody(t *testing.T) {
	h := newHarness(t)
	w := h.do(t, http.MethodPost, "/api/memos", token(t, 2, identity.RoleUser, "Clerk"), map[string]any{
		"priority":          "critical",
		"affected_entities": []string{"planet_3"},
	})
	body := expectError(t, w, http.StatusUnprocessableEntity, "validation")
	if len(body.Violations) < 3 {
		t.Errorf("violations = %v, want name, priority and entity problems", body.Violations)
	}
}

func TestErrorStatuses(t *testing.T) {
	h := newHarness(t)
	tok := token(t, 2, identity.RoleUser, "Clerk")
	tests := []struct {
		name   string
		method string
		path   string
		body   any
		status int
		kind   string
	}{
		{"missing memo", http.MethodGet, "/api/memos/99", nil, http.StatusNotFound, "not_found"},
		{"bad id", http.MethodGet, "/api/memos/abc", nil, http.StatusUnprocessableEntity, "validation"},
		{"missing meeting", http.MethodGet, "/api/meetings/42", nil, http.StatusNotFound, "not_found"},
		{"missing document", http.MethodDelete, "/api/documents/5", nil, http.StatusNotFound, "not_found"},
		{"bad date", http.MethodGet, "/api/meetings?date=yesterday", nil, http.StatusUnprocessableEntity, "validation"},
		{"malformed body", http.MethodPost, "/api/meetings", "not an object", http.StatusUnprocessableEntity, "validation"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := h.do(t, tt.method, tt.path, tok, tt.body)
			expectError(t, w, tt.status, tt.kind)
		})
	}
}

func TestMeetingAgendaDocuments(t *testing.T) {
	h := newHarness(t)
	admin := token(t, 1, identity.RoleAdmin, "Cabinet Secretary")

	w := h.do(t, http.MethodPost, "/api/meetings", admin, map[string]any{
		"name": "Cabinet", "type": "cabinet", "location": "State House",
		"start_at":     time.Date(2026, 3, 4, 9, 0, 0, 0, time.UTC),
		"participants": []uint{1, 2},
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("create meeting = %d: %s", w.Code, w.Body.String())
	}
	var mt struct {
		ID uint `json:"id"`
	}
	decode(t, w, &mt)

	agendaPath := fmt.Sprintf("/api/meetings/%d/agenda", mt.ID)
	w = h.do(t, http.MethodPost, agendaPath, admin, map[string]any{"name": "Budget"})
	if w.Code != http.StatusCreated {
		t.Fatalf("create agenda = %d: %s", w.Code, w.Body.String())
	}
	var item struct {
		ID        uint `json:"id"`
		SortOrder int  `json:"sort_order"`
	}
	decode(t, w, &item)
	if item.SortOrder != 1 {
		t.Errorf("sort_order = %d, want 1", item.SortOrder)
	}

	w = h.do(t, http.MethodPost, agendaPath, admin, map[string]any{"name": "Dup", "sort_order": 1})
	expectError(t, w, http.StatusConflict, "conflict")

	w = h.do(t, http.MethodGet, agendaPath+"/next-order", admin, nil)
	var next struct {
		Next int `json:"next_sort_order"`
	}
	decode(t, w, &next)
	if next.Next != 2 {
		t.Errorf("next = %d, want 2", next.Next)
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", "budget.pdf")
	if err != nil {
		t.Fatalf("form file: %v", err)
	}
	part.Write([]byte("%PDF-1.4 budget"))
	mw.Close()
	req := httptest.NewRequest(http.MethodPost, fmt.Sprintf("/api/agenda/%d/documents", item.ID), &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+admin)
	rec := httptest.NewRecorder()
	h.router.ServeHTTP(rec, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("attach = %d: %s", rec.Code, rec.Body.String())
	}
	var doc struct {
		ID uint `json:"id"`
	}
	decode(t, rec, &doc)
	if h.blobs.Len() != 1 {
		t.Errorf("blobs = %d, want 1", h.blobs.Len())
	}

	w = h.do(t, http.MethodGet, fmt.Sprintf("/api/meetings/%d", mt.ID), admin, nil)
	var view struct {
		Participants []struct {
			DisplayName string `json:"display_name"`
		} `json:"participants"`
		Agenda []struct {
			Documents []json.RawMessage `json:"documents"`
		} `json:"agenda"`
	}
	decode(t, w, &view)
	if len(view.Participants) != 2 {
		t.Errorf("participants = %d, want 2", len(view.Participants))
	}
	if len(view.Agenda) != 1 || len(view.Agenda[0].Documents) != 1 {
		t.Errorf("agenda = %+v", view.Agenda)
	}

	w = h.do(t, http.MethodDelete, fmt.Sprintf("/api/meetings/%d", mt.ID), admin, nil)
	if w.Code != http.StatusNoContent {
		t.Fatalf("delete meeting = %d: %s", w.Code, w.Body.String())
	}
	if h.blobs.Len() != 0 {
		t.Errorf("blobs after cascade = %d, want 0", h.blobs.Len())
	}
	w = h.do(t, http.MethodGet, fmt.Sprintf("/api/documents/%d", doc.ID), admin, nil)
	expectError(t, w, http.StatusNotFound, "not_found")
}

func TestAttach_MissingFile(t *testing.T) {
	h := newHarness(t)
	req := httptest.NewRequest(http.MethodPost, "/api/agenda/1/documents", strings.NewReader(""))
	req.Header.Set("Authorization", "Bearer "+token(t, 1, identity.RoleAdmin, "Cabinet Secretary"))
	w := httptest.NewRecorder()
	h.router.ServeHTTP(w, req)
	expectError(t, w, http.StatusUnprocessableEntity, "validation")
}

func TestAttach_StorageFailure(t *testing.T) {
	h := newHarness(t)
	mt := dbtest.Meeting(t, h.svc.DB, "Cabinet", time.Now(), 1)
	item := dbtest.AgendaItem(t, h.svc.DB, mt.ID, "Budget", 1)
	h.blobs.FailPut = os.ErrPermission

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, _ := mw.CreateFormFile("file", "notes.txt")
	part.Write([]byte("notes"))
	mw.Close()
	req := httptest.NewRequest(http.MethodPost, fmt.Sprintf("/api/agenda/%d/documents", item.ID), &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token(t, 1, identity.RoleAdmin, "Cabinet Secretary"))
	w := httptest.NewRecorder()
	h.router.ServeHTTP(w, req)
	expectError(t, w, http.StatusBadGateway, "storage")
}
