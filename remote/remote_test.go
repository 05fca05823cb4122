package remote

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/hupe1980/turnmesh/core"
	"github.com/hupe1980/turnmesh/generator"
	"github.com/hupe1980/turnmesh/memory"
)

func serve(t *testing.T, status int, body string, seen *[]byte) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		if seen != nil {
			b, _ := io.ReadAll(r.Body)
			*seen = b
		}
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestClient_Call(t *testing.T) {
	srv := serve(t, http.StatusOK, `{"intent":"greet"}`, nil)

	out, err := NewClient().Call(context.Background(), srv.URL, []byte(`{}`))
	require.NoError(t, err)
	assert.JSONEq(t, `{"intent":"greet"}`, string(out))
}

func TestClient_Failures(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   error
	}{
		{"server error", http.StatusInternalServerError, `oops`, ErrStatus},
		{"malformed", http.StatusOK, `{"intent":`, ErrMalformed},
		{"error flag", http.StatusOK, `{"error": true, "message": "model overloaded"}`, ErrFlagged},
		{"error flag without message", http.StatusOK, `{"error": true}`, ErrFlagged},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := serve(t, tt.status, tt.body, nil)
			_, err := NewClient().Call(context.Background(), srv.URL, []byte(`{}`))
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestClient_ErrorFalseIsFine(t *testing.T) {
	srv := serve(t, http.StatusOK, `{"error": false, "value": 1}`, nil)
	_, err := NewClient().Call(context.Background(), srv.URL, []byte(`{}`))
	assert.NoError(t, err)
}

func TestClient_RespectsContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(time.Second):
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	_, err := NewClient().Call(ctx, srv.URL, []byte(`{}`))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestClient_Cache(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	c := NewClient(func(o *Options) { o.Cache = memory.NewInMemoryCache() })

	for i := 0; i < 3; i++ {
		_, err := c.Call(context.Background(), srv.URL, []byte(`{"q":1}`))
		require.NoError(t, err)
	}
	_, err := c.Call(context.Background(), srv.URL, []byte(`{"q":2}`))
	require.NoError(t, err)

	assert.EqualValues(t, 2, hits.Load())
}

func TestNewAnnotator(t *testing.T) {
	var seen []byte
	srv := serve(t, http.StatusOK, `{"result": {"entities": ["paris"], "score": 0.9}}`, &seen)

	task := NewAnnotator("entity", srv.URL, func(o *AnnotatorOptions) {
		o.Dependencies = []string{"ner", "coref.v2"}
		o.ResultPath = "result.entities.0"
		o.Timeout = time.Second
	})

	assert.Equal(t, "entity", task.Name)
	assert.Equal(t, []string{"ner", "coref.v2"}, task.Dependencies)
	assert.Equal(t, time.Second, task.Timeout)

	ctx := core.WithTurn(context.Background(), &core.Turn{SessionID: "s1", Index: 2, Utterance: "I love Paris"})
	v, err := task.Run(ctx, core.Inputs{"ner": []any{"Paris"}, "coref.v2": "none"})
	require.NoError(t, err)
	assert.Equal(t, "paris", v)

	assert.Equal(t, "I love Paris", gjson.GetBytes(seen, "utterance").String())
	assert.EqualValues(t, 2, gjson.GetBytes(seen, "turn_index").Int())
	assert.Equal(t, "Paris", gjson.GetBytes(seen, "inputs.ner.0").String())
	assert.Equal(t, "none", gjson.GetBytes(seen, `inputs.coref\.v2`).String())
}

func TestNewAnnotator_WholeBodyAndMissingPath(t *testing.T) {
	srv := serve(t, http.StatusOK, `{"label":"question"}`, nil)

	whole := NewAnnotator("dialog_act", srv.URL)
	v, err := whole.Run(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"label": "question"}, v)

	missing := NewAnnotator("dialog_act", srv.URL, func(o *AnnotatorOptions) { o.ResultPath = "nope" })
	_, err = missing.Run(context.Background(), nil)
	assert.Error(t, err)

	def, err := missing.DefaultValue(nil)
	require.NoError(t, err)
	assert.Nil(t, def)
}

func TestGenerator_Respond(t *testing.T) {
	var seen []byte
	srv := serve(t, http.StatusOK, `{
		"priority": "strong_continue",
		"text": "Paris is lovely in spring.",
		"needs_follow_up": true,
		"entity": "Paris",
		"state": {"topic": "paris", "depth": 2},
		"state_version": 3
	}`, &seen)

	g := NewGenerator("travel", srv.URL)

	st, err := g.BootstrapState()
	require.NoError(t, err)
	assert.Equal(t, "travel", st.Producer)

	req := &generator.Request{
		Turn: &core.Turn{
			Utterance:   "tell me about paris",
			Annotations: core.Results{"entity": core.Success("paris", 0), "late": core.Missing(nil)},
		},
		State: core.State{Producer: "travel", Version: 2, Data: json.RawMessage(`{"topic":"paris","depth":1}`)},
	}

	c, err := g.Respond(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, core.PriorityStrongContinue, c.Priority)
	assert.Equal(t, "Paris is lovely in spring.", c.Text)
	assert.True(t, c.NeedsFollowUp)
	assert.Equal(t, "Paris", c.Entity)
	require.NotNil(t, c.State)
	assert.Equal(t, 3, c.State.Version)
	assert.JSONEq(t, `{"topic": "paris", "depth": 2}`, string(c.State.Data))

	assert.EqualValues(t, 1, gjson.GetBytes(seen, "state.depth").Int())
	assert.EqualValues(t, 2, gjson.GetBytes(seen, "state_version").Int())
	assert.Equal(t, "paris", gjson.GetBytes(seen, "annotations.entity").String())
	assert.False(t, gjson.GetBytes(seen, "annotations.late").Exists())
}

func TestGenerator_Respond_NothingToSay(t *testing.T) {
	srv := serve(t, http.StatusOK, `{}`, nil)

	c, err := NewGenerator("quiet", srv.URL).Respond(context.Background(), &generator.Request{Turn: &core.Turn{}})
	require.NoError(t, err)
	assert.False(t, c.Rankable())
	assert.Nil(t, c.State)
}

func TestGenerator_Respond_BadPriority(t *testing.T) {
	srv := serve(t, http.StatusOK, `{"priority": "shout", "text": "HI"}`, nil)

	_, err := NewGenerator("loud", srv.URL).Respond(context.Background(), &generator.Request{Turn: &core.Turn{}})
	assert.Error(t, err)
}
