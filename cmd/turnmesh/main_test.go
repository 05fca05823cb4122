package main

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/turnmesh/config"
	"github.com/hupe1980/turnmesh/logging"
)

func newRemoteServer(t *testing.T) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/topic", func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		topic := "chitchat"
		if strings.Contains(string(body), "weather") {
			topic = "weather"
		}
		_, _ = w.Write([]byte(`{"topic":"` + topic + `"}`))
	})
	mux.HandleFunc("/weather", func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		if strings.Contains(string(body), `"topic":"weather"`) {
			_, _ = w.Write([]byte(`{"priority":"force_start","text":"It is sunny","state":{}}`))
			return
		}
		if strings.Contains(string(body), "bye") {
			_, _ = w.Write([]byte(`{"priority":"force_start","text":"Bye","end_session":true}`))
			return
		}
		_, _ = w.Write([]byte(`{}`))
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	return srv
}

func testConfig(srv *httptest.Server) *config.Config {
	cfg := config.DefaultConfig()
	cfg.Remote.Annotators = []config.AnnotatorConfig{{
		Name:       "topic",
		URL:        srv.URL + "/topic",
		ResultPath: "topic",
		Default:    "chitchat",
	}}
	cfg.Remote.Generators = []config.GeneratorConfig{{Name: "weather", URL: srv.URL + "/weather"}}
	return cfg
}

func TestBuildAndChat(t *testing.T) {
	srv := newRemoteServer(t)
	cfg := testConfig(srv)

	reg := prometheus.NewRegistry()
	m, err := build(cfg, reg, logging.NoOpLogger{})
	require.NoError(t, err)

	assert.Equal(t, []string{"weather", "fallback"}, m.Engine().Generators())
	assert.Equal(t, []string{"topic"}, m.Engine().Annotators())

	in := strings.NewReader("hello\n\nweather today?\nbye\nnever read\n")
	var out bytes.Buffer

	require.NoError(t, chat(context.Background(), m, "s1", in, &out))

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "> Sorry, I'm not sure how to answer that. What would you like to talk about?", lines[0])
	assert.Equal(t, "> > It is sunny", lines[1])
	assert.Equal(t, "> Bye", lines[2])

	families, err := reg.Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, families)
}

func TestBuild_Errors(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Remote.Annotators = []config.AnnotatorConfig{{Name: "entity", URL: "http://x", Dependencies: []string{"ner"}}}

	_, err := build(cfg, nil, nil)
	assert.Error(t, err)

	_, err = newModel(config.LLMConfig{Provider: "ollama"})
	assert.Error(t, err)

	mdl, err := newModel(config.LLMConfig{Provider: config.ProviderNone})
	require.NoError(t, err)
	assert.Nil(t, mdl)
}

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "turnmesh.yaml")
	require.NoError(t, os.WriteFile(path, []byte("llm:\n  provider: openai\n"), 0644))

	cfg, err := loadConfig(chatFlags{configPath: path, llm: "none", metricsAddr: ":0"})
	require.NoError(t, err)
	assert.Equal(t, config.ProviderNone, cfg.LLM.Provider)
	assert.Equal(t, ":0", cfg.Metrics.Addr)

	_, err = loadConfig(chatFlags{llm: "ollama"})
	assert.Error(t, err)
}

func TestInitAndVersion(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.yaml")

	cmd := rootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"init", path})
	require.NoError(t, cmd.Execute())

	cfg, err := config.LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, config.DefaultConfig(), cfg)

	cmd = rootCmd()
	out.Reset()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"version"})
	require.NoError(t, cmd.Execute())
	assert.Contains(t, out.String(), "turnmesh version "+Version)
}
