package main

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/c360studio/coderonin/config"
	"github.com/c360studio/coderonin/sabotage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
}

// chatServer answers OpenAI-compatible chat completions with a fixed content string.
func chatServer(t *testing.T, content string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"model": "llama-3.1-8b-instant",
			"choices": []map[string]any{{
				"message":       map[string]string{"role": "assistant", "content": content},
				"finish_reason": "stop",
			}},
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func testConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.Metrics.Enabled = true
	return cfg
}

func TestNewApp_WithoutCredentialIsUnavailable(t *testing.T) {
	app, err := NewApp(testConfig(), quietLogger())
	require.NoError(t, err)
	defer app.Close()

	assert.False(t, app.Saboteur().Available())

	var out bytes.Buffer
	err = runSabotage(context.Background(), app.Saboteur(), sabotage.Request{Code: "print(1)", Difficulty: 10}, &out)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unavailable")
	assert.Empty(t, out.String())
}

func TestNewApp_SabotageThroughGenerator(t *testing.T) {
	srv := chatServer(t, `{"sabotagedCode":"import pandas as pd\ndf = pd.DataFrame()","explanation":"hint","type":"semantic"}`)

	cfg := testConfig()
	cfg.Generator.URL = srv.URL + "/v1"
	cfg.Generator.APIKey = "test-key"

	app, err := NewApp(cfg, quietLogger())
	require.NoError(t, err)
	defer app.Close()
	require.True(t, app.Saboteur().Available())

	var out bytes.Buffer
	err = runSabotage(context.Background(), app.Saboteur(), sabotage.Request{
		Code:       "import pandas as pd\ndf = pd.DataFrame()",
		Difficulty: 80,
		Skill:      "Pandas",
	}, &out)
	require.NoError(t, err)

	var result sabotage.Result
	require.NoError(t, json.Unmarshal(out.Bytes(), &result))
	assert.Equal(t, sabotage.CategorySemantic, result.Type)
	assert.Equal(t, "hint", result.Explanation)
}

func TestNewApp_UndecodableReplyFails(t *testing.T) {
	srv := chatServer(t, "I cannot help with that.")

	cfg := testConfig()
	cfg.Generator.URL = srv.URL + "/v1"
	cfg.Generator.APIKey = "test-key"

	app, err := NewApp(cfg, quietLogger())
	require.NoError(t, err)
	defer app.Close()

	err = runSabotage(context.Background(), app.Saboteur(), sabotage.Request{Code: "x = 1", Difficulty: 40}, &bytes.Buffer{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed")
}

func TestNewApp_UnknownProvider(t *testing.T) {
	cfg := testConfig()
	cfg.Generator.APIKey = "test-key"
	cfg.Generator.Provider = "carrier-pigeon"

	_, err := NewApp(cfg, quietLogger())
	assert.Error(t, err)
}

func TestNewApp_MissingDocsDir(t *testing.T) {
	cfg := testConfig()
	cfg.Docs.Dir = filepath.Join(t.TempDir(), "missing")

	_, err := NewApp(cfg, quietLogger())
	assert.Error(t, err)
}

func TestNewApp_UnreachableNATSIsNotFatal(t *testing.T) {
	cfg := testConfig()
	cfg.Events.NATSURL = "nats://127.0.0.1:1"

	app, err := NewApp(cfg, quietLogger())
	require.NoError(t, err)
	app.Close()
}

func TestApp_HandlerServesMetrics(t *testing.T) {
	app, err := NewApp(testConfig(), quietLogger())
	require.NoError(t, err)
	defer app.Close()

	srv := httptest.NewServer(app.Handler())
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/api/sabotage", "application/json", strings.NewReader(`{"code":"print(1)","difficulty":10}`))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	var body bytes.Buffer
	_, _ = body.ReadFrom(resp.Body)
	assert.Contains(t, body.String(), `coderonin_sabotage_total{category="syntax",outcome="unavailable"} 1`)
}

func TestApp_ServeStopsOnCancel(t *testing.T) {
	cfg := testConfig()
	cfg.Docs.Dir = t.TempDir()
	cfg.Docs.Watch = true

	app, err := NewApp(cfg, quietLogger())
	require.NoError(t, err)
	defer app.Close()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- app.Serve(ctx, ln) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + ln.Addr().String() + "/health")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 5*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}
}

func TestPrintPatterns(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, printPatterns(&out, sabotage.DefaultRegistry(), "50"))

	text := out.String()
	assert.True(t, strings.HasPrefix(text, "LOGIC\n"))
	assert.Contains(t, text, "Off By One")
	assert.NotContains(t, text, "SYNTAX")

	assert.Error(t, printPatterns(&out, sabotage.DefaultRegistry(), "chaos"))
}

func TestPrintConfig_RedactsKeys(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Generator.APIKey = "gsk-secret"

	var out bytes.Buffer
	require.NoError(t, printConfig(&out, cfg))
	assert.NotContains(t, out.String(), "gsk-secret")
	assert.Contains(t, out.String(), "<set>")
	assert.Contains(t, out.String(), "llama-3.1-8b-instant")
}

func TestReadCode(t *testing.T) {
	code, err := readCode("", strings.NewReader("print(1)\n"))
	require.NoError(t, err)
	assert.Equal(t, "print(1)\n", code)

	_, err = readCode(filepath.Join(t.TempDir(), "missing.py"), nil)
	assert.Error(t, err)
}

func TestVersionCommand(t *testing.T) {
	cmd := rootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"version"})
	require.NoError(t, cmd.Execute())
	assert.Equal(t, "coderonin version 0.1.0 (build: dev)\n", out.String())
}
