package handler

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/minhvtb/songvault-be/internal/api/domain"
	"github.com/minhvtb/songvault-be/internal/api/service"
)

type fakeGate struct {
	submitRes  *service.Result
	submitErr  error
	statusRes  *service.Result
	statusErr  error
	requeueRes *service.Result
	requeueErr error
	deleteErr  error

	submissions []service.Submission
}

func (g *fakeGate) Submit(_ context.Context, sub service.Submission) (*service.Result, error) {
	g.submissions = append(g.submissions, sub)
	return g.submitRes, g.submitErr
}

func (g *fakeGate) Status(_ context.Context, _ string) (*service.Result, error) {
	return g.statusRes, g.statusErr
}

func (g *fakeGate) Requeue(_ context.Context, _ string) (*service.Result, error) {
	return g.requeueRes, g.requeueErr
}

func (g *fakeGate) Delete(_ context.Context, _ string) error {
	return g.deleteErr
}

func newTestHandler(gate Gate) *DownloadHandler {
	return NewDownloadHandler(&Dependencies{
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		Gate:   gate,
	})
}

func performJSON(t *testing.T, h gin.HandlerFunc, method, target, body string, params gin.Params) *httptest.ResponseRecorder {
	t.Helper()
	gin.SetMode(gin.TestMode)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(method, target, strings.NewReader(body))
	c.Request.Header.Set("Content-Type", "application/json")
	c.Params = params

	h(c)
	return w
}

func TestCreateDownload_MissingFields(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"missing artists", `{"id":"abc","url":"https://service/track/abc","name":"Song"}`},
		{"missing name", `{"id":"abc","url":"https://service/track/abc","artists":"Artist"}`},
		{"missing url", `{"id":"abc","name":"Song","artists":"Artist"}`},
		{"missing id", `{"url":"https://service/track/abc","name":"Song","artists":"Artist"}`},
		{"empty body", `{}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gate := &fakeGate{}
			h := newTestHandler(gate)

			w := performJSON(t, h.CreateDownload, http.MethodPost, "/api/v1/downloads", tt.body, nil)

			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Empty(t, gate.submissions, "rejected before any state mutation")
		})
	}
}

func TestCreateDownload_DerivesKeyword(t *testing.T) {
	gate := &fakeGate{
		submitRes: &service.Result{
			Status:     domain.StatusProcessing,
			DownloadID: "abc",
			Message:    "Download in progress, try again later.",
		},
	}
	h := newTestHandler(gate)

	body := `{"id":"abc","url":"https://service/track/abc","name":"Song","artists":"Artist"}`
	w := performJSON(t, h.CreateDownload, http.MethodPost, "/api/v1/downloads", body, nil)

	require.Equal(t, http.StatusOK, w.Code)
	require.Len(t, gate.submissions, 1)
	assert.Equal(t, "Song Artist", gate.submissions[0].Keyword)
	assert.Equal(t, "https://service/track/abc", gate.submissions[0].SourceURL)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "processing", resp["status"])
	assert.Equal(t, "abc", resp["download_id"])
}

func TestGetDownload_NotFound(t *testing.T) {
	gate := &fakeGate{statusErr: domain.ErrDownloadNotFound}
	h := newTestHandler(gate)

	w := performJSON(t, h.GetDownload, http.MethodGet, "/api/v1/downloads/abc", "",
		gin.Params{{Key: "download_id", Value: "abc"}})

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGetDownload_Completed(t *testing.T) {
	gate := &fakeGate{
		statusRes: &service.Result{
			Status:     domain.StatusCompleted,
			DownloadID: "abc",
			FileURL:    "https://s3.example.com/bucket/song-artist_abc.mp3?sig=abc",
		},
	}
	h := newTestHandler(gate)

	w := performJSON(t, h.GetDownload, http.MethodGet, "/api/v1/downloads/abc", "",
		gin.Params{{Key: "download_id", Value: "abc"}})

	require.Equal(t, http.StatusOK, w.Code)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "completed", resp["status"])
	assert.Contains(t, resp["file"], "song-artist_abc.mp3")
}

func TestRequeueDownload_Conflict(t *testing.T) {
	gate := &fakeGate{requeueErr: domain.ErrNotRequeueable}
	h := newTestHandler(gate)

	w := performJSON(t, h.RequeueDownload, http.MethodPost, "/api/v1/downloads/abc/requeue", "",
		gin.Params{{Key: "download_id", Value: "abc"}})

	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestDeleteDownload_NotFound(t *testing.T) {
	gate := &fakeGate{deleteErr: domain.ErrDownloadNotFound}
	h := newTestHandler(gate)

	w := performJSON(t, h.DeleteDownload, http.MethodDelete, "/api/v1/downloads/abc", "",
		gin.Params{{Key: "download_id", Value: "abc"}})

	assert.Equal(t, http.StatusNotFound, w.Code)
}
