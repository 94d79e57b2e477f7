package httpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/robalobadob/wavelength/internal/game"
	"github.com/robalobadob/wavelength/internal/live"
	"github.com/robalobadob/wavelength/internal/service"
	"github.com/robalobadob/wavelength/internal/store"
)

const testTarget = 12.5

type testEnv struct {
	ts    *httptest.Server
	store store.Store
	deps  Deps
}

// newTestEnv builds a server over a memory store with a fixed target angle.
// mutate may adjust the dependencies before the server is built.
func newTestEnv(t *testing.T, mutate func(d *Deps)) *testEnv {
	t.Helper()
	st := store.NewMemoryStore(store.Options{TTL: time.Hour})
	t.Cleanup(func() { _ = st.Close() })
	hub := live.NewHub(nil)
	svc := service.New(st, 4, 5,
		service.WithTargetSource(func() (float64, error) { return testTarget, nil }),
		service.WithPublisher(hub),
	)
	d := Deps{Service: svc, Store: st, Hub: hub}
	if mutate != nil {
		mutate(&d)
	}
	srv := New(d)
	return &testEnv{ts: newTestServer(t, srv.Handler()), store: d.Store, deps: srv.deps}
}

func newTestServer(t *testing.T, handler http.Handler) *httptest.Server {
	t.Helper()
	listener, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		t.Skipf("skipping test; listen unavailable: %v", err)
	}
	ts := &httptest.Server{
		Listener: listener,
		Config:   &http.Server{Handler: handler},
	}
	ts.Start()
	t.Cleanup(ts.Close)
	return ts
}

func doRequest(t *testing.T, ts *httptest.Server, method, path string, payload any) *http.Response {
	t.Helper()
	var body *bytes.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			t.Fatalf("marshal payload: %v", err)
		}
		body = bytes.NewReader(data)
	} else {
		body = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, ts.URL+path, body)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func decodeBody(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	return body
}

func expectStatus(t *testing.T, resp *http.Response, want int) map[string]any {
	t.Helper()
	body := decodeBody(t, resp)
	if resp.StatusCode != want {
		t.Fatalf("%s %s: expected status %d, got %d (%v)", resp.Request.Method, resp.Request.URL.Path, want, resp.StatusCode, body)
	}
	return body
}

func expectError(t *testing.T, resp *http.Response, status int, msg string) {
	t.Helper()
	body := expectStatus(t, resp, status)
	if body["error"] != msg {
		t.Fatalf("expected error %q, got %v", msg, body["error"])
	}
}

func createGame(t *testing.T, ts *httptest.Server, playerID, name string) string {
	t.Helper()
	resp := doRequest(t, ts, http.MethodPost, "/api/game", map[string]string{
		"playerId":   playerID,
		"playerName": name,
	})
	body := expectStatus(t, resp, http.StatusOK)
	return body["gameId"].(string)
}

func joinGame(t *testing.T, ts *httptest.Server, code, playerID, name string) map[string]any {
	t.Helper()
	resp := doRequest(t, ts, http.MethodPost, "/api/game/"+code+"/join", map[string]string{
		"playerId":   playerID,
		"playerName": name,
	})
	return expectStatus(t, resp, http.StatusOK)
}

func submitHint(t *testing.T, ts *httptest.Server, code, playerID string) *http.Response {
	t.Helper()
	return doRequest(t, ts, http.MethodPost, "/api/game/"+code+"/hint", map[string]any{
		"playerId": playerID,
		"scale":    map[string]string{"left": "Cold", "right": "Hot"},
		"hint":     "Coffee",
	})
}

// downStore fails every call the way an unreachable backend does.
type downStore struct{}

func down() error { return fmt.Errorf("%w: dial tcp: connection refused", game.ErrStoreUnavailable) }

func (downStore) Get(context.Context, string) (*game.Record, error) { return nil, down() }
func (downStore) Save(context.Context, *game.Record) error          { return down() }
func (downStore) CreateIfAbsent(context.Context, *game.Record) (bool, error) {
	return false, down()
}
func (downStore) Update(context.Context, string, func(*game.Record) error) (*game.Record, error) {
	return nil, down()
}
func (downStore) Clear(context.Context) (int, error) { return 0, down() }
func (downStore) Ping(context.Context) error         { return down() }
func (downStore) Close() error                       { return nil }
