// Package main implements a mock text-generation server for offline play and tests.
// It serves OpenAI-compatible /v1/chat/completions responses, routing by the "model"
// field in the request, so coderonin can run without a Groq key.
//
// Usage:
//
//	mock-llm --fixtures /path/to/fixtures --addr :11434
//
// Fixture files are named by model: "llama-3.1-8b-instant.txt" is returned verbatim as the
// assistant message for that model, "mock-saboteur.json" must hold valid JSON. Numbered
// files ("mock-saboteur.1.txt", "mock-saboteur.2.json") are returned in order on the Nth
// call; once exhausted the base file repeats.
//
// Models without a fixture get a built-in sabotage reply derived from the prompt. It
// embeds literal line breaks inside the JSON string, the way small models often answer.
package main

import (
	"encoding/json"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/spf13/cobra"
)

// --- OpenAI-compatible types ---

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature *float64      `json:"temperature,omitempty"`
	MaxTokens   *int          `json:"max_tokens,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	ID      string       `json:"id"`
	Object  string       `json:"object"`
	Created int64        `json:"created"`
	Model   string       `json:"model"`
	Choices []chatChoice `json:"choices"`
	Usage   chatUsage    `json:"usage"`
}

type chatChoice struct {
	Index        int         `json:"index"`
	Message      chatMessage `json:"message"`
	FinishReason string      `json:"finish_reason"`
}

type chatUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// --- Server ---

// capturedRequest stores the key fields of an incoming request for test verification.
type capturedRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature *float64      `json:"temperature,omitempty"`
	MaxTokens   *int          `json:"max_tokens,omitempty"`
	CallIndex   int           `json:"call_index"` // 1-indexed per-model call number
	Timestamp   int64         `json:"timestamp"`
}

type server struct {
	fixtures map[string][]string // model name → ordered fixture contents
	calls    atomic.Int64
	logger   *slog.Logger

	mu         sync.Mutex
	modelCalls map[string]int
	requests   map[string][]capturedRequest
}

func newServer(fixtures map[string][]string, logger *slog.Logger) *server {
	if fixtures == nil {
		fixtures = map[string][]string{}
	}
	return &server{
		fixtures:   fixtures,
		logger:     logger,
		modelCalls: make(map[string]int),
		requests:   make(map[string][]capturedRequest),
	}
}

func (s *server) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/v1/chat/completions", s.handleChatCompletions)
	mux.HandleFunc("/v1/models", s.handleModels)
	mux.HandleFunc("/stats", s.handleStats)
	mux.HandleFunc("/requests", s.handleRequests)
	return mux
}

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var fixtureDir, addr string

	cmd := &cobra.Command{
		Use:          "mock-llm",
		Short:        "OpenAI-compatible mock generator for offline sabotage",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), nil))

			if fixtureDir == "" {
				fixtureDir = os.Getenv("MOCK_LLM_FIXTURES")
			}

			var fixtures map[string][]string
			if fixtureDir != "" {
				var err error
				fixtures, err = loadFixtures(fixtureDir)
				if err != nil {
					return fmt.Errorf("load fixtures from %s: %w", fixtureDir, err)
				}
				for model, seq := range fixtures {
					logger.Info("Loaded fixtures", "model", model, "count", len(seq))
				}
			} else {
				logger.Info("No fixture dir; every model gets the built-in sabotage reply")
			}

			srv := &http.Server{
				Addr:              addr,
				Handler:           newServer(fixtures, logger).handler(),
				ReadHeaderTimeout: 10 * time.Second,
			}
			logger.Info("Mock LLM server listening", "addr", addr)
			return srv.ListenAndServe()
		},
	}

	cmd.Flags().StringVar(&fixtureDir, "fixtures", "", "Directory of fixture files (default: $MOCK_LLM_FIXTURES)")
	cmd.Flags().StringVar(&addr, "addr", ":11434", "Listen address")
	return cmd
}

func (s *server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, map[string]string{"status": "ok"})
}

func (s *server) handleChatCompletions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, fmt.Sprintf("invalid request body: %v", err), http.StatusBadRequest)
		return
	}
	if len(req.Messages) == 0 {
		http.Error(w, "messages must not be empty", http.StatusBadRequest)
		return
	}

	callNum := s.calls.Add(1)
	callIndex := s.record(req)

	var content string
	seq := s.lookup(req.Model)
	switch {
	case len(seq) == 0:
		content = builtinReply(req.Messages[len(req.Messages)-1].Content)
	case callIndex <= len(seq):
		content = seq[callIndex-1]
	default:
		content = seq[len(seq)-1]
	}

	s.logger.Debug("Completion served",
		"call", callNum,
		"model", req.Model,
		"call_index", callIndex,
		"fixtures", len(seq),
		"bytes", len(content))

	writeJSON(w, chatResponse{
		ID:      fmt.Sprintf("mock-%d", time.Now().UnixNano()),
		Object:  "chat.completion",
		Created: time.Now().Unix(),
		Model:   req.Model,
		Choices: []chatChoice{{
			Message:      chatMessage{Role: "assistant", Content: content},
			FinishReason: "stop",
		}},
		Usage: chatUsage{
			PromptTokens:     len(req.Messages[0].Content) / 4,
			CompletionTokens: len(content) / 4,
			TotalTokens:      (len(req.Messages[0].Content) + len(content)) / 4,
		},
	})
}

// lookup resolves a fixture sequence by exact model name, then without a "mock-" prefix.
func (s *server) lookup(model string) []string {
	if seq, ok := s.fixtures[model]; ok {
		return seq
	}
	return s.fixtures[strings.TrimPrefix(model, "mock-")]
}

// record captures the request and returns its 1-indexed per-model call number.
func (s *server) record(req chatRequest) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.modelCalls[req.Model]++
	n := s.modelCalls[req.Model]
	s.requests[req.Model] = append(s.requests[req.Model], capturedRequest{
		Model:       req.Model,
		Messages:    req.Messages,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
		CallIndex:   n,
		Timestamp:   time.Now().UnixMilli(),
	})
	return n
}

func (s *server) handleModels(w http.ResponseWriter, _ *http.Request) {
	type modelEntry struct {
		ID      string `json:"id"`
		Object  string `json:"object"`
		OwnedBy string `json:"owned_by"`
	}
	names := make([]string, 0, len(s.fixtures))
	for name := range s.fixtures {
		names = append(names, name)
	}
	sort.Strings(names)

	models := make([]modelEntry, 0, len(names))
	for _, name := range names {
		models = append(models, modelEntry{ID: name, Object: "model", OwnedBy: "mock-llm"})
	}
	writeJSON(w, map[string]any{"object": "list", "data": models})
}

// handleStats returns total_calls and a per-model calls_by_model breakdown.
func (s *server) handleStats(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	byModel := make(map[string]int, len(s.modelCalls))
	for model, n := range s.modelCalls {
		byModel[model] = n
	}
	s.mu.Unlock()

	writeJSON(w, map[string]any{
		"total_calls":    s.calls.Load(),
		"calls_by_model": byModel,
	})
}

// handleRequests returns captured requests, optionally filtered by ?model= and ?call=.
func (s *server) handleRequests(w http.ResponseWriter, r *http.Request) {
	modelFilter := r.URL.Query().Get("model")
	callFilter, _ := strconv.Atoi(r.URL.Query().Get("call"))

	s.mu.Lock()
	result := make(map[string][]capturedRequest)
	for model, reqs := range s.requests {
		if modelFilter != "" && model != modelFilter {
			continue
		}
		for _, req := range reqs {
			if callFilter == 0 || req.CallIndex == callFilter {
				result[model] = append(result[model], req)
			}
		}
	}
	s.mu.Unlock()

	writeJSON(w, map[string]any{"requests_by_model": result})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

// --- Built-in reply ---

var (
	promptCodeRe     = regexp.MustCompile("(?s)User Code:\n```python\n(.*?)\n```")
	promptCategoryRe = regexp.MustCompile(`Sabotage Type: (SYNTAX|LOGIC|SEMANTIC)`)
	headerColonRe    = regexp.MustCompile(`(?m)^(\s*(?:def|if|for|while|class|elif|else|with|try)\b[^\n]*):[ \t]*$`)
)

// builtinReply answers a sabotage prompt with the user's code minimally broken. The
// sabotagedCode value keeps raw line breaks and is therefore not strictly valid JSON.
func builtinReply(prompt string) string {
	code := ""
	if m := promptCodeRe.FindStringSubmatch(prompt); m != nil {
		code = m[1]
	}
	category := "SYNTAX"
	if m := promptCategoryRe.FindStringSubmatch(prompt); m != nil {
		category = m[1]
	}

	broken, hint := breakCode(code, category)
	escaped := strings.NewReplacer(`\`, `\\`, `"`, `\"`, "\t", `\t`).Replace(broken)
	return fmt.Sprintf(`{"sabotagedCode": "%s", "explanation": "%s", "type": "%s"}`,
		escaped, hint, strings.ToLower(category))
}

func breakCode(code, category string) (string, string) {
	switch category {
	case "LOGIC":
		for _, swap := range [][2]string{{" <= ", " < "}, {" < ", " <= "}, {" + 1", ""}, {" == ", " != "}} {
			if strings.Contains(code, swap[0]) {
				return strings.Replace(code, swap[0], swap[1], 1), "One step short of the summit."
			}
		}
		return code + "\nresult = None", "Something forgets what it learned."
	case "SEMANTIC":
		if strings.Contains(code, ".copy()") {
			return strings.Replace(code, ".copy()", "", 1), "Two names, one heart."
		}
		return code + "\n_cache = {}", "A shared memory lingers between calls."
	default:
		if loc := headerColonRe.FindStringSubmatchIndex(code); loc != nil {
			// Drop the trailing colon of the first block header.
			return code[:loc[3]] + code[loc[1]:], "A header lost its punctuation."
		}
		return code + "\nprint(", "An unclosed door."
	}
}

// --- Fixtures ---

// numberedFileRe matches files like "mock-saboteur.1.json" or "llama.2.txt".
var numberedFileRe = regexp.MustCompile(`^(.+)\.(\d+)\.(json|txt)$`)

// loadFixtures reads .json and .txt files from dir and returns a map of model→content
// sequence. Numbered files come first in numeric order, the base file is the fallback.
func loadFixtures(dir string) (map[string][]string, error) {
	baseFiles := make(map[string]string)
	numberedFiles := make(map[string]map[int]string)

	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		ext := filepath.Ext(d.Name())
		if d.IsDir() || (ext != ".json" && ext != ".txt") {
			return nil
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}
		if ext == ".json" && !json.Valid(data) {
			return fmt.Errorf("invalid JSON in %s", path)
		}
		content := strings.TrimRight(string(data), "\n")

		if m := numberedFileRe.FindStringSubmatch(d.Name()); m != nil {
			index, _ := strconv.Atoi(m[2])
			if numberedFiles[m[1]] == nil {
				numberedFiles[m[1]] = make(map[int]string)
			}
			numberedFiles[m[1]][index] = content
			return nil
		}

		baseFiles[strings.TrimSuffix(d.Name(), ext)] = content
		return nil
	})
	if err != nil {
		return nil, err
	}

	fixtures := make(map[string][]string)
	for model, numbered := range numberedFiles {
		indices := make([]int, 0, len(numbered))
		for idx := range numbered {
			indices = append(indices, idx)
		}
		sort.Ints(indices)
		for _, idx := range indices {
			fixtures[model] = append(fixtures[model], numbered[idx])
		}
	}
	for model, base := range baseFiles {
		fixtures[model] = append(fixtures[model], base)
	}

	if len(fixtures) == 0 {
		return nil, fmt.Errorf("no fixture files found in %s", dir)
	}
	return fixtures, nil
}
