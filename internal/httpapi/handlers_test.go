package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/DoyleJ11/raffle-backend/internal/engine"
	"github.com/DoyleJ11/raffle-backend/internal/history"
	"github.com/DoyleJ11/raffle-backend/internal/hub"
	"github.com/DoyleJ11/raffle-backend/internal/session"
	"github.com/DoyleJ11/raffle-backend/internal/types"
	pub "github.com/DoyleJ11/raffle-backend/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var pngMagic = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	store := history.NewMemoryStore()
	h := hub.NewHub(ctx, session.Config{
		Pacing:  session.Pacing{Reveal: 2 * time.Millisecond, Settle: 2 * time.Millisecond},
		History: store,
	})
	srv := httptest.NewServer(SetupRoutes(h, Options{
		History:        store,
		AllowedOrigins: []string{"localhost:*"},
	}))
	t.Cleanup(srv.Close)
	return srv
}

type upload struct {
	filename string
	content  string
	title    string
	logos    [][]byte
}

func multipartBody(t *testing.T, u upload) (io.Reader, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if u.filename != "" {
		fw, err := mw.CreateFormFile("file", u.filename)
		require.NoError(t, err)
		_, err = fw.Write([]byte(u.content))
		require.NoError(t, err)
	}
	if u.title != "" {
		require.NoError(t, mw.WriteField("title", u.title))
	}
	for i, logo := range u.logos {
		fw, err := mw.CreateFormFile("logos", "logo"+string(rune('0'+i))+".png")
		require.NoError(t, err)
		_, err = fw.Write(logo)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func do(t *testing.T, method, url, contentType string, body io.Reader) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, url, body)
	require.NoError(t, err)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func postJSON(t *testing.T, url string, v any) *http.Response {
	t.Helper()
	payload, err := json.Marshal(v)
	require.NoError(t, err)
	return do(t, http.MethodPost, url, "application/json", bytes.NewReader(payload))
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func createSession(t *testing.T, srv *httptest.Server) string {
	t.Helper()
	resp := do(t, http.MethodPost, srv.URL+"/sessions", "", nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	return decode[pub.CreateSessionResponse](t, resp).Code
}

func uploadRoster(t *testing.T, srv *httptest.Server, code string, u upload) *http.Response {
	t.Helper()
	body, ct := multipartBody(t, u)
	return do(t, http.MethodPost, srv.URL+"/sessions/"+code+"/roster", ct, body)
}

func waitForPhase(t *testing.T, srv *httptest.Server, code string, phase engine.Phase) pub.SessionView {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		resp := do(t, http.MethodGet, srv.URL+"/sessions/"+code, "", nil)
		view := decode[pub.SessionView](t, resp)
		if view.Phase == phase {
			return view
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("session %s never reached %s", code, phase)
	return pub.SessionView{}
}

func TestHealthz(t *testing.T) {
	srv := newTestServer(t)
	resp := do(t, http.MethodGet, srv.URL+"/healthz", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestCreateAndGetSession(t *testing.T) {
	srv := newTestServer(t)
	code := createSession(t, srv)
	assert.Regexp(t, `^[A-Z0-9]{6}$`, code)

	resp := do(t, http.MethodGet, srv.URL+"/sessions/"+strings.ToLower(code), "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	view := decode[pub.SessionView](t, resp)
	assert.Equal(t, code, view.Code)
	assert.Equal(t, engine.PhaseUpload, view.Phase)
	assert.Equal(t, 0, view.Version)
}

func TestUnknownSession(t *testing.T) {
	srv := newTestServer(t)
	for _, tc := range []struct{ method, path string }{
		{http.MethodGet, "/sessions/NOPE00"},
		{http.MethodDelete, "/sessions/NOPE00"},
		{http.MethodPost, "/sessions/NOPE00/new-draw"},
		{http.MethodGet, "/sessions/NOPE00/history"},
	} {
		resp := do(t, tc.method, srv.URL+tc.path, "", nil)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode, tc.path)
		assert.Equal(t, types.CodeNotFound, decode[pub.ErrorResponse](t, resp).Error)
	}
}

func TestUploadRoster(t *testing.T) {
	cases := []struct {
		name       string
		upload     upload
		wantStatus int
		wantCode   string
	}{
		{"csv", upload{filename: "guests.csv", content: "Ana\nBen\n\nCy\n", title: "Gala"}, http.StatusOK, ""},
		{"unsupported", upload{filename: "guests.txt", content: "Ana\n"}, http.StatusUnprocessableEntity, types.CodeInvalidRoster},
		{"no names", upload{filename: "guests.csv", content: "\n \n"}, http.StatusUnprocessableEntity, types.CodeInvalidRoster},
		{"missing file", upload{title: "Gala"}, http.StatusBadRequest, types.CodeBadRequest},
		{"bad logo", upload{filename: "guests.csv", content: "Ana\n", logos: [][]byte{[]byte("plain text")}}, http.StatusUnprocessableEntity, types.CodeInvalidBranding},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := newTestServer(t)
			code := createSession(t, srv)

			resp := uploadRoster(t, srv, code, tc.upload)
			require.Equal(t, tc.wantStatus, resp.StatusCode)
			if tc.wantCode != "" {
				assert.Equal(t, tc.wantCode, decode[pub.ErrorResponse](t, resp).Error)
				return
			}

			view := decode[pub.SessionView](t, resp)
			assert.Equal(t, engine.PhaseConfigure, view.Phase)
			assert.Equal(t, 3, view.PoolSize)
			assert.Equal(t, "Gala", view.Branding.Title)
			assert.Equal(t, engine.Participant{ID: "guests.csv-3", Name: "Cy"}, view.Pool[2])
		})
	}
}

func TestUploadRoster_Logos(t *testing.T) {
	srv := newTestServer(t)
	code := createSession(t, srv)

	resp := uploadRoster(t, srv, code, upload{filename: "guests.csv", content: "Ana\n", logos: [][]byte{pngMagic}})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	view := decode[pub.SessionView](t, resp)
	require.Len(t, view.Branding.Logos, 1)
	assert.True(t, strings.HasPrefix(view.Branding.Logos[0], "data:image/png;base64,"))
}

func TestUploadRoster_TooLarge(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h := hub.NewHub(ctx, session.Config{})
	srv := httptest.NewServer(SetupRoutes(h, Options{MaxUploadBytes: 64}))
	defer srv.Close()

	code := createSession(t, srv)
	resp := uploadRoster(t, srv, code, upload{filename: "guests.csv", content: strings.Repeat("Name\n", 100)})
	assert.Equal(t, http.StatusRequestEntityTooLarge, resp.StatusCode)
}

func TestStartDraw_Errors(t *testing.T) {
	srv := newTestServer(t)
	code := createSession(t, srv)

	resp := postJSON(t, srv.URL+"/sessions/"+code+"/draws", pub.DrawRequest{Count: 1})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, types.CodeWrongPhase, decode[pub.ErrorResponse](t, resp).Error)

	uploadRoster(t, srv, code, upload{filename: "guests.csv", content: "Ana\nBen\n"})

	for _, count := range []int{0, 3, -1} {
		resp := postJSON(t, srv.URL+"/sessions/"+code+"/draws", pub.DrawRequest{Count: count})
		assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
		assert.Equal(t, types.CodeInvalidCount, decode[pub.ErrorResponse](t, resp).Error)
	}

	resp = do(t, http.MethodPost, srv.URL+"/sessions/"+code+"/draws", "application/json", strings.NewReader(`{"count":`))
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = do(t, http.MethodPost, srv.URL+"/sessions/"+code+"/draws", "application/json", strings.NewReader(`{"cuont":1}`))
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestDrawLifecycle(t *testing.T) {
	srv := newTestServer(t)
	code := createSession(t, srv)
	base := srv.URL + "/sessions/" + code

	resp := uploadRoster(t, srv, code, upload{filename: "guests.csv", content: "Ana\nBen\nCy\n"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = postJSON(t, base+"/draws", pub.DrawRequest{Count: 2})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	started := decode[pub.SessionView](t, resp)
	assert.Equal(t, 2, started.Requested)

	results := waitForPhase(t, srv, code, engine.PhaseResults)
	require.Len(t, results.Winners, 2)
	assert.Equal(t, 1, results.PoolSize)
	assert.Equal(t, 1, results.Draws)

	resp = do(t, http.MethodGet, base+"/history", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	hist := decode[pub.HistoryView](t, resp)
	require.Len(t, hist.Draws, 1)
	assert.Equal(t, results.Winners, hist.Draws[0].Winners)
	assert.Equal(t, 3, hist.Draws[0].PoolSize)

	resp = do(t, http.MethodPost, base+"/new-draw", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, engine.PhaseConfigure, decode[pub.SessionView](t, resp).Phase)

	resp = postJSON(t, base+"/draws", pub.DrawRequest{Count: 1})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	last := waitForPhase(t, srv, code, engine.PhaseResults)
	assert.Equal(t, 0, last.PoolSize)

	resp = do(t, http.MethodPost, base+"/new-draw", "", nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, types.CodePoolExhausted, decode[pub.ErrorResponse](t, resp).Error)

	resp = postJSON(t, base+"/reset", pub.ResetRequest{KeepRoster: true})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	reset := decode[pub.SessionView](t, resp)
	assert.Equal(t, engine.PhaseConfigure, reset.Phase)
	assert.Equal(t, 3, reset.PoolSize)

	resp = do(t, http.MethodPost, base+"/reset", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, engine.PhaseUpload, decode[pub.SessionView](t, resp).Phase)
}

func TestSetBranding(t *testing.T) {
	srv := newTestServer(t)
	code := createSession(t, srv)
	url := srv.URL + "/sessions/" + code + "/branding"

	payload, err := json.Marshal(engine.Branding{Title: "Spring raffle", Logos: []string{"data:image/png;base64,iVBORw0KGgo="}})
	require.NoError(t, err)
	resp := do(t, http.MethodPut, url, "application/json", bytes.NewReader(payload))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	view := decode[pub.SessionView](t, resp)
	assert.Equal(t, "Spring raffle", view.Branding.Title)

	payload, err = json.Marshal(engine.Branding{Title: strings.Repeat("x", engine.MaxTitleLen+1)})
	require.NoError(t, err)
	resp = do(t, http.MethodPut, url, "application/json", bytes.NewReader(payload))
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
}

func TestDeleteSession(t *testing.T) {
	srv := newTestServer(t)
	code := createSession(t, srv)

	resp := do(t, http.MethodDelete, srv.URL+"/sessions/"+code, "", nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = do(t, http.MethodGet, srv.URL+"/sessions/"+code, "", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestCORS(t *testing.T) {
	srv := newTestServer(t)

	req, err := http.NewRequest(http.MethodOptions, srv.URL+"/sessions", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Less(t, resp.StatusCode, 300)
	assert.Equal(t, "http://localhost:5173", resp.Header.Get("Access-Control-Allow-Origin"))
	assert.Contains(t, resp.Header.Get("Access-Control-Allow-Methods"), http.MethodPost)

	req.Header.Set("Origin", "https://evil.example")
	resp2, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp2.Body.Close()
	assert.Empty(t, resp2.Header.Get("Access-Control-Allow-Origin"))

	// simple requests get the header too
	get, err := http.NewRequest(http.MethodGet, srv.URL+"/healthz", nil)
	require.NoError(t, err)
	get.Header.Set("Origin", "http://localhost:5173")
	resp3, err := http.DefaultClient.Do(get)
	require.NoError(t, err)
	defer resp3.Body.Close()
	assert.Equal(t, http.StatusOK, resp3.StatusCode)
	assert.Equal(t, "http://localhost:5173", resp3.Header.Get("Access-Control-Allow-Origin"))
}

func TestOriginAllowed(t *testing.T) {
	patterns := []string{"localhost:*", "*.example.com"}
	cases := map[string]bool{
		"http://localhost:5173":      true,
		"http://LOCALHOST:3000":      true,
		"https://raffle.example.com": true,
		"https://example.com":        false,
		"https://evil.example":       false,
		"not a url":                  false,
		"":                           false,
	}
	for origin, want := range cases {
		assert.Equal(t, want, originAllowed(origin, patterns), origin)
	}
}
