package routes

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"bluffquiz/handlers"
	"bluffquiz/services"

	"github.com/gin-gonic/gin"
)

const testHostCode = "classroom-secret"

func newTestRouter(t *testing.T) (*gin.Engine, *services.SessionService) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	authService, err := services.NewAuthService(testHostCode, "test-jwt-secret")
	if err != nil {
		t.Fatalf("NewAuthService failed: %v", err)
	}
	sessionService := services.NewSessionService()
	summaryService := services.NewSummaryService(sessionService, nil)
	hub := services.NewHub(sessionService, summaryService)
	go hub.Run()

	// deck endpoints need a database; they are registered but not called here
	deckService := services.NewDeckService(nil)

	router := gin.New()
	SetupRoutes(
		router,
		handlers.NewAuthHandler(authService),
		handlers.NewDeckHandler(deckService),
		handlers.NewSessionHandler(sessionService, summaryService, hub),
		hub,
		sessionService,
		authService,
		t.TempDir(),
	)
	return router, sessionService
}

func doJSON(t *testing.T, router *gin.Engine, method, path string, body interface{}, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal request body: %v", err)
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	for key, value := range headers {
		req.Header.Set(key, value)
	}

	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, req)
	return recorder
}

func decodeBody(t *testing.T, recorder *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	if err := json.Unmarshal(recorder.Body.Bytes(), &body); err != nil {
		t.Fatalf("response %q is not json: %v", recorder.Body.String(), err)
	}
	return body
}

func hostHeaders() map[string]string {
	return map[string]string{"X-Host-Code": testHostCode}
}

func TestHostGateRejectsWithoutLeakingRooms(t *testing.T) {
	router, sessions := newTestRouter(t)

	code, err := sessions.CreateRoom("D1")
	if err != nil {
		t.Fatalf("CreateRoom failed: %v", err)
	}

	// Missing and wrong credentials read the same for a real room and a
	// made-up one.
	for _, target := range []string{code, "ZZZZZZ"} {
		resp := doJSON(t, router, http.MethodGet, "/session/"+target+"/summary", nil, nil)
		if resp.Code != http.StatusUnauthorized {
			t.Errorf("no credential for %s: status %d, want 401", target, resp.Code)
		}

		resp = doJSON(t, router, http.MethodGet, "/session/"+target+"/summary", nil, map[string]string{"X-Host-Code": "wrong"})
		if resp.Code != http.StatusUnauthorized {
			t.Errorf("bad credential for %s: status %d, want 401", target, resp.Code)
		}
	}

	// join and status polling stay public
	resp := doJSON(t, router, http.MethodPost, "/join-session", map[string]string{"room_code": code, "player_name": "Alice"}, nil)
	if resp.Code != http.StatusOK {
		t.Errorf("public join status %d, want 200: %s", resp.Code, resp.Body.String())
	}
	resp = doJSON(t, router, http.MethodGet, "/session-status/"+code, nil, nil)
	if resp.Code != http.StatusOK {
		t.Errorf("public status poll status %d, want 200: %s", resp.Code, resp.Body.String())
	}
	resp = doJSON(t, router, http.MethodGet, "/session-status/ZZZZZZ", nil, nil)
	if resp.Code != http.StatusNotFound {
		t.Errorf("public status poll for unknown room status %d, want 404", resp.Code)
	}
}

func TestHostLoginIssuesUsableToken(t *testing.T) {
	router, _ := newTestRouter(t)

	resp := doJSON(t, router, http.MethodPost, "/host/login", map[string]string{"host_code": "wrong"}, nil)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("login with wrong code: status %d, want 401", resp.Code)
	}

	resp = doJSON(t, router, http.MethodPost, "/host/login", map[string]string{"host_code": testHostCode}, nil)
	if resp.Code != http.StatusOK {
		t.Fatalf("login status %d: %s", resp.Code, resp.Body.String())
	}
	token, _ := decodeBody(t, resp)["token"].(string)
	if token == "" {
		t.Fatal("login returned no token")
	}

	resp = doJSON(t, router, http.MethodGet, "/host/verify", nil, map[string]string{"Authorization": "Bearer " + token})
	if resp.Code != http.StatusOK {
		t.Errorf("verify with bearer token: status %d, want 200", resp.Code)
	}

	resp = doJSON(t, router, http.MethodGet, "/host/verify", nil, map[string]string{"Authorization": "Bearer not-a-token"})
	if resp.Code != http.StatusUnauthorized {
		t.Errorf("verify with garbage token: status %d, want 401", resp.Code)
	}
}

func TestSessionLifecycleOverHTTP(t *testing.T) {
	router, _ := newTestRouter(t)

	resp := doJSON(t, router, http.MethodPost, "/create-session", map[string]string{"deck_id": "D1"}, hostHeaders())
	if resp.Code != http.StatusCreated {
		t.Fatalf("create status %d: %s", resp.Code, resp.Body.String())
	}
	code, _ := decodeBody(t, resp)["room_code"].(string)
	if len(code) == 0 || code != strings.ToUpper(code) {
		t.Fatalf("room_code = %q", code)
	}

	for _, player := range []string{"Alice", "Bob"} {
		resp = doJSON(t, router, http.MethodPost, "/join-session", map[string]string{"room_code": code, "player_name": player}, nil)
		if resp.Code != http.StatusOK {
			t.Fatalf("join %s status %d: %s", player, resp.Code, resp.Body.String())
		}
	}

	// status polling needs no credential; players use it from the lobby
	resp = doJSON(t, router, http.MethodGet, "/session-status/"+code, nil, nil)
	if resp.Code != http.StatusOK {
		t.Fatalf("status status %d: %s", resp.Code, resp.Body.String())
	}
	body := decodeBody(t, resp)
	if body["status"] != services.StatusLobby {
		t.Errorf("status = %v, want lobby", body["status"])
	}
	players := body["players"].([]interface{})
	if len(players) != 2 || players[0] != "Alice" || players[1] != "Bob" {
		t.Errorf("players = %v", players)
	}

	// joining an unknown room is a 404, not a 400
	resp = doJSON(t, router, http.MethodPost, "/join-session", map[string]string{"room_code": "ZZZZZZ", "player_name": "Ghost"}, nil)
	if resp.Code != http.StatusNotFound {
		t.Errorf("join unknown room status %d, want 404", resp.Code)
	}

	resp = doJSON(t, router, http.MethodDelete, "/session/"+code, nil, hostHeaders())
	if resp.Code != http.StatusOK {
		t.Fatalf("cancel status %d: %s", resp.Code, resp.Body.String())
	}

	resp = doJSON(t, router, http.MethodGet, "/session-status/"+code, nil, nil)
	if body := decodeBody(t, resp); body["status"] != services.StatusCancelled {
		t.Errorf("status after cancel = %v, want cancelled", body["status"])
	}

	resp = doJSON(t, router, http.MethodPost, "/join-session", map[string]string{"room_code": code, "player_name": "Late"}, nil)
	if resp.Code != http.StatusBadRequest {
		t.Errorf("join after cancel status %d, want 400", resp.Code)
	}
}

func TestSummaryEndpoint(t *testing.T) {
	router, sessions := newTestRouter(t)

	code, err := sessions.CreateRoom("D1")
	if err != nil {
		t.Fatalf("CreateRoom failed: %v", err)
	}
	if _, err := sessions.JoinRoom(code, "Alice"); err != nil {
		t.Fatalf("join failed: %v", err)
	}
	if err := sessions.StartQuestion(code, 0, json.RawMessage(`{"text":"q"}`)); err != nil {
		t.Fatalf("StartQuestion failed: %v", err)
	}
	if err := sessions.RecordFake(code, "Alice", "X"); err != nil {
		t.Fatalf("RecordFake failed: %v", err)
	}

	resp := doJSON(t, router, http.MethodGet, "/session/"+code+"/summary", nil, hostHeaders())
	if resp.Code != http.StatusOK {
		t.Fatalf("summary status %d: %s", resp.Code, resp.Body.String())
	}
	body := decodeBody(t, resp)
	if body["room_code"] != code {
		t.Errorf("summary room_code = %v", body["room_code"])
	}
	if rows := body["rows"].([]interface{}); len(rows) != 1 {
		t.Errorf("summary rows = %v", rows)
	}

	resp = doJSON(t, router, http.MethodGet, "/session/"+code+"/summary?format=csv", nil, hostHeaders())
	if resp.Code != http.StatusOK {
		t.Fatalf("csv summary status %d", resp.Code)
	}
	if contentType := resp.Header().Get("Content-Type"); !strings.HasPrefix(contentType, "text/csv") {
		t.Errorf("csv content type = %q", contentType)
	}
	if !strings.HasPrefix(resp.Body.String(), "Round,Player_Name") {
		t.Errorf("csv body = %q", resp.Body.String())
	}

	resp = doJSON(t, router, http.MethodGet, "/session/ZZZZZZ/summary", nil, hostHeaders())
	if resp.Code != http.StatusNotFound {
		t.Errorf("unknown summary status %d, want 404", resp.Code)
	}
}
