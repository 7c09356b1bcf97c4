package api

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/ashby/guidepost/internal/guideservice"
	"github.com/ashby/guidepost/internal/models"
	"github.com/ashby/guidepost/internal/session"
	"github.com/ashby/guidepost/internal/testutil"
	"github.com/ashby/guidepost/internal/upstream"
)

// testEnv sets up a temp document store, SQLite DB, services, and router.
// An empty authToken means auth is disabled. upstreamURL may be empty when
// a test does not exercise the streaming endpoints.
func testEnv(t *testing.T, authToken, upstreamURL string) http.Handler {
	t.Helper()

	_, docs := testutil.TestDocs(t)
	db := testutil.TestDB(t)

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	sessions := session.NewManager(docs, logger)
	guides := guideservice.NewService(db, docs, logger, nil)
	h := NewHandler(sessions, guides, upstream.New(upstreamURL), nil, nil)
	return NewRouter(h, authToken != "", authToken, nil)
}

func doJSON(t *testing.T, router http.Handler, method, path string, payload any) *httptest.ResponseRecorder {
	t.Helper()
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			t.Fatal(err)
		}
		body = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, body)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestCreateAndGetDraft(t *testing.T) {
	router := testEnv(t, "", "")

	w := doJSON(t, router, http.MethodPost, "/travel/drafts", map[string]string{
		"id": "d1", "destination": "Tokyo",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("create status = %d, body = %s", w.Code, w.Body.String())
	}

	w = doJSON(t, router, http.MethodGet, "/travel/drafts/d1", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("get status = %d", w.Code)
	}
	var draft models.Draft
	if err := json.Unmarshal(w.Body.Bytes(), &draft); err != nil {
		t.Fatal(err)
	}
	if draft.ID != "d1" || draft.Destination != "Tokyo" {
		t.Errorf("draft = %+v", draft)
	}
}

func TestCreateDraftValidation(t *testing.T) {
	router := testEnv(t, "", "")
	w := doJSON(t, router, http.MethodPost, "/travel/drafts", map[string]string{"id": "d1"})
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestGetDraftNotFound(t *testing.T) {
	router := testEnv(t, "", "")
	w := doJSON(t, router, http.MethodGet, "/travel/drafts/missing", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}

func TestListAndDeleteDrafts(t *testing.T) {
	router := testEnv(t, "", "")
	for _, id := range []string{"a", "b"} {
		doJSON(t, router, http.MethodPost, "/travel/drafts", map[string]string{"id": id, "destination": "Rome"})
	}

	w := doJSON(t, router, http.MethodGet, "/travel/drafts", nil)
	var list DraftListResponse
	_ = json.Unmarshal(w.Body.Bytes(), &list)
	if list.Total != 2 {
		t.Fatalf("total = %d, want 2", list.Total)
	}

	w = doJSON(t, router, http.MethodDelete, "/travel/drafts/a", nil)
	if w.Code != http.StatusNoContent {
		t.Fatalf("delete status = %d", w.Code)
	}
	w = doJSON(t, router, http.MethodDelete, "/travel/drafts/a", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("second delete status = %d, want 404", w.Code)
	}
}

func TestSavedItemsLifecycle(t *testing.T) {
	router := testEnv(t, "", "")
	doJSON(t, router, http.MethodPost, "/travel/drafts", map[string]string{"id": "d1", "destination": "Rome"})

	w := doJSON(t, router, http.MethodPost, "/travel/drafts/d1/saved-items", map[string]string{
		"content": "Da Enzo", "queryContext": "Trastevere food",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("add status = %d, body = %s", w.Code, w.Body.String())
	}
	var item models.SavedItem
	_ = json.Unmarshal(w.Body.Bytes(), &item)
	if item.ID == "" || item.Content != "Da Enzo" {
		t.Fatalf("item = %+v", item)
	}

	w = doJSON(t, router, http.MethodDelete, "/travel/drafts/d1/saved-items/"+item.ID, nil)
	if w.Code != http.StatusNoContent {
		t.Errorf("remove status = %d", w.Code)
	}
	w = doJSON(t, router, http.MethodDelete, "/travel/drafts/d1/saved-items/"+item.ID, nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("second remove status = %d, want 404", w.Code)
	}

	doJSON(t, router, http.MethodPost, "/travel/drafts/d1/saved-items", map[string]string{"content": "x"})
	w = doJSON(t, router, http.MethodDelete, "/travel/drafts/d1/saved-items", nil)
	if w.Code != http.StatusNoContent {
		t.Errorf("clear status = %d", w.Code)
	}
}

func TestSavedItemValidation(t *testing.T) {
	router := testEnv(t, "", "")
	doJSON(t, router, http.MethodPost, "/travel/drafts", map[string]string{"id": "d1", "destination": "Rome"})

	w := doJSON(t, router, http.MethodPost, "/travel/drafts/d1/saved-items", map[string]string{"content": ""})
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func longBody(seed string, n int) string {
	var b strings.Builder
	for i := 0; i < n; i++ {
		b.WriteString(seed)
		b.WriteString(" visit ")
	}
	return b.String()
}

func guidePayload() map[string]any {
	return map[string]any{
		"destination": "Tokyo",
		"title":       "Tokyo Essentials",
		"sections": []map[string]string{
			{"title": "Ramen", "query": "best ramen", "body": longBody("ramen", 120)},
			{"title": "Temples", "query": "temples to visit", "body": longBody("temple", 120)},
		},
	}
}

func TestSaveGuideAcceptedAndFetch(t *testing.T) {
	router := testEnv(t, "", "")

	w := doJSON(t, router, http.MethodPost, "/travel/guides", guidePayload())
	if w.Code != http.StatusCreated {
		t.Fatalf("save status = %d, body = %s", w.Code, w.Body.String())
	}
	var res SaveResult
	_ = json.Unmarshal(w.Body.Bytes(), &res)
	if res.Verdict != guideservice.VerdictAccepted || res.GuideID == "" {
		t.Fatalf("result = %+v", res)
	}

	w = doJSON(t, router, http.MethodGet, "/travel/guides/"+res.GuideID, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("get status = %d", w.Code)
	}
	var guide models.Guide
	_ = json.Unmarshal(w.Body.Bytes(), &guide)
	if len(guide.Sections) != 2 {
		t.Errorf("sections = %d", len(guide.Sections))
	}

	// Duplicate submission returns 200 with the duplicate verdict.
	w = doJSON(t, router, http.MethodPost, "/travel/guides", guidePayload())
	if w.Code != http.StatusOK {
		t.Fatalf("dup status = %d", w.Code)
	}
	_ = json.Unmarshal(w.Body.Bytes(), &res)
	if res.Verdict != guideservice.VerdictDuplicate {
		t.Errorf("verdict = %q", res.Verdict)
	}
}

func TestSaveGuideInsufficient(t *testing.T) {
	router := testEnv(t, "", "")
	payload := guidePayload()
	payload["sections"] = []map[string]string{
		{"title": "Only", "query": "one", "body": "short"},
	}
	w := doJSON(t, router, http.MethodPost, "/travel/guides", payload)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var res SaveResult
	_ = json.Unmarshal(w.Body.Bytes(), &res)
	if res.Verdict != guideservice.VerdictInsufficient {
		t.Errorf("verdict = %q", res.Verdict)
	}
}

func TestGuideStateAndDelete(t *testing.T) {
	router := testEnv(t, "", "")
	w := doJSON(t, router, http.MethodPost, "/travel/guides", guidePayload())
	var res SaveResult
	_ = json.Unmarshal(w.Body.Bytes(), &res)

	w = doJSON(t, router, http.MethodPost, "/travel/guides/"+res.GuideID+"/state", map[string]string{"state": "published"})
	if w.Code != http.StatusNoContent {
		t.Fatalf("state status = %d, body = %s", w.Code, w.Body.String())
	}
	w = doJSON(t, router, http.MethodPost, "/travel/guides/"+res.GuideID+"/state", map[string]string{"state": "bogus"})
	if w.Code != http.StatusBadRequest {
		t.Errorf("bogus state status = %d", w.Code)
	}

	w = doJSON(t, router, http.MethodGet, "/travel/guides?state=published", nil)
	var list GuideListResponse
	_ = json.Unmarshal(w.Body.Bytes(), &list)
	if list.Total != 1 {
		t.Errorf("published total = %d", list.Total)
	}

	w = doJSON(t, router, http.MethodDelete, "/travel/guides/"+res.GuideID, nil)
	if w.Code != http.StatusNoContent {
		t.Fatalf("delete status = %d", w.Code)
	}
	w = doJSON(t, router, http.MethodGet, "/travel/guides/"+res.GuideID, nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("get after delete status = %d", w.Code)
	}
}

func TestSearchEndpoint(t *testing.T) {
	router := testEnv(t, "", "")
	doJSON(t, router, http.MethodPost, "/travel/guides", guidePayload())

	w := doJSON(t, router, http.MethodGet, "/search?q=ramen", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var res SearchResponse
	_ = json.Unmarshal(w.Body.Bytes(), &res)
	if len(res.Results) == 0 {
		t.Error("expected search hits")
	}

	w = doJSON(t, router, http.MethodGet, "/search", nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("missing q status = %d", w.Code)
	}
}

func TestSuggestionsEndpoint(t *testing.T) {
	router := testEnv(t, "", "")
	w := doJSON(t, router, http.MethodGet, "/travel/suggestions/new-york", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var res Suggestions
	_ = json.Unmarshal(w.Body.Bytes(), &res)
	if res.Cached || len(res.Suggestions) != 3 {
		t.Errorf("suggestions = %+v", res)
	}
}

func TestPersonaEndpoints(t *testing.T) {
	router := testEnv(t, "", "")

	w := doJSON(t, router, http.MethodPut, "/travel/persona", map[string]any{
		"name": "Sam", "interests": []string{"food"},
	})
	if w.Code != http.StatusOK {
		t.Fatalf("put status = %d", w.Code)
	}

	w = doJSON(t, router, http.MethodGet, "/travel/persona", nil)
	var p models.Persona
	_ = json.Unmarshal(w.Body.Bytes(), &p)
	if p.Name != "Sam" {
		t.Errorf("persona = %+v", p)
	}
}

func TestExploreStreamsIntoDraft(t *testing.T) {
	up := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "data: {\"content\": \"## Ramen\\n\"}\n\n")
		io.WriteString(w, "data: {\"content\": \"### Afuri\\n\"}\n\n")
		io.WriteString(w, "data: [DONE]\n\n")
	}))
	defer up.Close()

	router := testEnv(t, "", up.URL)
	doJSON(t, router, http.MethodPost, "/travel/drafts", map[string]string{"id": "d1", "destination": "Tokyo"})

	w := doJSON(t, router, http.MethodPost, "/travel/explore", map[string]string{
		"city": "Tokyo", "query": "best ramen", "draftId": "d1",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	body := w.Body.String()
	if !strings.Contains(body, `"content":"## Ramen\n"`) {
		t.Errorf("relayed body missing content: %q", body)
	}
	if !strings.HasSuffix(body, "data: [DONE]\n\n") {
		t.Errorf("missing sentinel: %q", body)
	}

	// The fragments must have accumulated on a finalized unit.
	w = doJSON(t, router, http.MethodGet, "/travel/drafts/d1", nil)
	var draft models.Draft
	_ = json.Unmarshal(w.Body.Bytes(), &draft)
	if len(draft.Units) != 1 {
		t.Fatalf("units = %d, want 1", len(draft.Units))
	}
	u := draft.Units[0]
	if u.Query != "best ramen" || u.IsStreaming {
		t.Errorf("unit = %+v", u)
	}
	if u.Response != "## Ramen\n### Afuri\n" {
		t.Errorf("response = %q", u.Response)
	}
}

func TestExploreUpstreamError(t *testing.T) {
	up := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer up.Close()

	router := testEnv(t, "", up.URL)
	w := doJSON(t, router, http.MethodPost, "/travel/explore", map[string]string{
		"city": "Tokyo", "query": "x", "draftId": "d1",
	})
	if w.Code != http.StatusBadGateway {
		t.Errorf("status = %d, want 502", w.Code)
	}
}

func TestExploreRequiresDraftID(t *testing.T) {
	router := testEnv(t, "", "")
	w := doJSON(t, router, http.MethodPost, "/travel/explore", map[string]string{
		"city": "Tokyo", "query": "x",
	})
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestParsedUnit(t *testing.T) {
	up := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "data: {\"content\": \"## Ramen\\n### Afuri\\n**Location:** Ebisu\\n\"}\n\n")
		io.WriteString(w, "data: [DONE]\n\n")
	}))
	defer up.Close()

	router := testEnv(t, "", up.URL)
	doJSON(t, router, http.MethodPost, "/travel/drafts", map[string]string{"id": "d1", "destination": "Tokyo"})
	doJSON(t, router, http.MethodPost, "/travel/explore", map[string]string{
		"city": "Tokyo", "query": "best ramen", "draftId": "d1",
	})

	w := doJSON(t, router, http.MethodGet, "/travel/drafts/d1", nil)
	var draft models.Draft
	_ = json.Unmarshal(w.Body.Bytes(), &draft)
	if len(draft.Units) != 1 {
		t.Fatal("expected one unit")
	}

	w = doJSON(t, router, http.MethodGet, "/travel/drafts/d1/units/"+draft.Units[0].ID+"/parsed", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("parsed status = %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "Afuri") {
		t.Errorf("parsed body = %q", w.Body.String())
	}
}

func TestAuthEnforced(t *testing.T) {
	router := testEnv(t, "sekrit", "")

	req := httptest.NewRequest(http.MethodGet, "/travel/drafts", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("no token status = %d", w.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/travel/drafts", nil)
	req.Header.Set("Authorization", "Bearer sekrit")
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("valid token status = %d", w.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/travel/drafts", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("wrong token status = %d", w.Code)
	}
}
