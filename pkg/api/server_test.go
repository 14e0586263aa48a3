//nolint:funlen // ok for tests
package api

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mpapenbr/fpv-racedash/pkg/bracket"
	"github.com/mpapenbr/fpv-racedash/pkg/engine"
	"github.com/mpapenbr/fpv-racedash/pkg/model"
	"github.com/mpapenbr/fpv-racedash/pkg/store/memory"
	"github.com/mpapenbr/fpv-racedash/testsupport/basedata"
)

type fixedStates struct {
	st *engine.State
}

func (f fixedStates) Current() *engine.State { return f.st }

func (f fixedStates) Subscribe() <-chan *engine.State {
	return make(chan *engine.State)
}

func (f fixedStates) CancelSubscription(<-chan *engine.State) {}

func sampleEvent() *basedata.EventBuilder {
	return basedata.NewEvent().
		Pilots("a", "b", "c").
		Round("r1", model.EventTypeRace).
		Race("race1", "r1", 1, 2, "a", "b", "c").
		Laps("a", 20, 21).Laps("b", 19, 20).Laps("c", 25).Completed().Event().
		Race("race2", "r1", 2, 2, "a", "b", "c").Event()
}

func newTestServer(t *testing.T, f *bracket.Format) *Server {
	t.Helper()
	st := engine.Compute(sampleEvent().Snapshot(), f, engine.DefaultSettings())
	return New(fixedStates{st: st})
}

func doRequest(t *testing.T, s *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func TestGetEndpoints(t *testing.T) {
	s := newTestServer(t, nil)
	tests := []struct {
		name   string
		path   string
		status int
		check  func(t *testing.T, body []byte)
	}{
		{
			name: "state", path: "/api/state", status: http.StatusOK,
			check: func(t *testing.T, body []byte) {
				t.Helper()
				var got map[string]any
				require.NoError(t, json.Unmarshal(body, &got))
				assert.Contains(t, got, "leaderboard")
				assert.Contains(t, got, "finals")
			},
		},
		{
			name: "leaderboard", path: "/api/leaderboard", status: http.StatusOK,
			check: func(t *testing.T, body []byte) {
				t.Helper()
				var got struct {
					CurrentRaceID string   `json:"currentRaceId"`
					Current       []string `json:"current"`
				}
				require.NoError(t, json.Unmarshal(body, &got))
				assert.Equal(t, "race1", got.CurrentRaceID)
				assert.Equal(t, []string{"b", "a", "c"}, got.Current)
			},
		},
		{
			name: "finals", path: "/api/finals", status: http.StatusOK,
			check: func(t *testing.T, body []byte) {
				t.Helper()
				assert.Contains(t, string(body), "No bracket configured")
			},
		},
		{name: "no bracket", path: "/api/bracket", status: http.StatusNotFound},
		{
			name: "race ranking", path: "/api/races/race1/ranking", status: http.StatusOK,
			check: func(t *testing.T, body []byte) {
				t.Helper()
				var got []struct {
					Position int    `json:"position"`
					PilotID  string `json:"pilotId"`
				}
				require.NoError(t, json.Unmarshal(body, &got))
				require.Len(t, got, 3)
				assert.Equal(t, "b", got[0].PilotID)
				assert.Equal(t, 3, got[2].Position)
			},
		},
		{name: "unknown race ranking", path: "/api/races/nope/ranking", status: http.StatusNotFound},
		{
			name: "race metrics filtered", path: "/api/races/race1/metrics?pilot=a", status: http.StatusOK,
			check: func(t *testing.T, body []byte) {
				t.Helper()
				var got []struct {
					PilotID       string  `json:"pilotId"`
					CompletedLaps int     `json:"completedLaps"`
					BestLap       float64 `json:"bestLap"`
				}
				require.NoError(t, json.Unmarshal(body, &got))
				require.Len(t, got, 1)
				assert.Equal(t, "a", got[0].PilotID)
				assert.Equal(t, 2, got[0].CompletedLaps)
				assert.InDelta(t, 20.0, got[0].BestLap, 0.001)
			},
		},
		{name: "unknown race metrics", path: "/api/races/nope/metrics", status: http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doRequest(t, s, http.MethodGet, tt.path, "")
			assert.Equal(t, tt.status, rec.Code)
			if tt.check != nil {
				tt.check(t, rec.Body.Bytes())
			}
		})
	}
}

func TestGetBracket(t *testing.T) {
	f, err := bracket.Builtin(bracket.DefaultFormat)
	require.NoError(t, err)
	s := newTestServer(t, f)
	rec := doRequest(t, s, http.MethodGet, "/api/bracket", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	var got engine.BracketState
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, f.Name, got.Name)
	assert.Len(t, got.Nodes, len(f.Nodes))
}

func TestNoStateYet(t *testing.T) {
	s := New(fixedStates{})
	rec := doRequest(t, s, http.MethodGet, "/api/leaderboard", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestValidateNextRaceOverrides(t *testing.T) {
	s := newTestServer(t, nil)
	tests := []struct {
		name     string
		body     string
		status   int
		messages []string
	}{
		{
			name:     "valid",
			body:     `[{"startSourceId":"src-race1","endSourceId":"src-race2","label":"Lunch"}]`,
			status:   http.StatusOK,
			messages: []string{},
		},
		{
			name:     "empty list",
			body:     `[]`,
			status:   http.StatusOK,
			messages: []string{},
		},
		{
			name:   "reversed range and empty label",
			body:   `[{"startSourceId":"src-race2","endSourceId":"src-race1","label":" "}]`,
			status: http.StatusUnprocessableEntity,
			messages: []string{
				"entry 1: label is empty",
				`entry 1: start race "src-race2" comes after end race "src-race1"`,
			},
		},
		{
			name: "overlap",
			body: `[{"startSourceId":"src-race1","label":"A"},
				{"startSourceId":"src-race2","label":"B"}]`,
			status:   http.StatusUnprocessableEntity,
			messages: []string{"entries 1 and 2 overlap"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doRequest(t, s, http.MethodPost, "/api/validate/next-race-overrides", tt.body)
			assert.Equal(t, tt.status, rec.Code)
			var got validationResult
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
			assert.Equal(t, tt.status == http.StatusOK, got.Valid)
			assert.Equal(t, tt.messages, got.Messages)
		})
	}
}

func TestValidateNextRaceOverridesBadJSON(t *testing.T) {
	s := newTestServer(t, nil)
	rec := doRequest(t, s, http.MethodPost, "/api/validate/next-race-overrides", `{"label":`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestValidateNextRaceOverridesUnsupportedMediaType(t *testing.T) {
	s := newTestServer(t, nil)
	req := httptest.NewRequest(http.MethodPost, "/api/validate/next-race-overrides",
		strings.NewReader(`[]`))
	req.Header.Set("Content-Type", "text/plain")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)
}

func TestCORSPreflight(t *testing.T) {
	s := newTestServer(t, nil)
	req := httptest.NewRequest(http.MethodOptions, "/api/state", nil)
	req.Header.Set("Origin", "http://example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodGet)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	assert.Equal(t, "http://example.com", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestStream(t *testing.T) {
	src := memory.New(memory.WithRecords(sampleEvent().Records()))
	defer src.Close()
	eng := engine.New(context.Background(), src)
	defer eng.Close()
	ts := httptest.NewServer(New(eng).Handler())
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+"/api/stream", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	sc := bufio.NewScanner(resp.Body)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	lines := []string{}
	for sc.Scan() && len(lines) < 3 {
		lines = append(lines, sc.Text())
	}
	require.Len(t, lines, 3)
	assert.Equal(t, "id: 1", lines[0])
	assert.Equal(t, "event: state", lines[1])
	assert.True(t, strings.HasPrefix(lines[2], "data: {"))
}
