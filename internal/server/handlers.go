package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/leapstack-labs/replsnip/internal/editctx"
	"github.com/leapstack-labs/replsnip/internal/repl"
	"github.com/leapstack-labs/replsnip/internal/snippet"
)

func setupRoutes(router chi.Router, s *Server) {
	router.Get("/health", s.health)
	router.Route("/api", func(r chi.Router) {
		r.Get("/snippets", s.listSnippets)
		r.Get("/tokens", s.listTokens)
		r.Post("/run", s.run)
	})
}

// SnippetInfo is one snippet as listed by the API.
type SnippetInfo struct {
	Label string `json:"label"`
	Key   string `json:"key,omitempty"`
	Name  string `json:"name"`
	NS    string `json:"ns,omitempty"`
	Repl  string `json:"repl"`
}

// RunRequest asks for a snippet key or code to be run.
type RunRequest struct {
	// CodeOrKey is a snippet key or literal code. The API has no menu, so a
	// request without it evaluates nothing.
	CodeOrKey *string             `json:"codeOrKey"`
	Context   *editctx.Static     `json:"context,omitempty"`
	Session   *repl.SessionState  `json:"session,omitempty"`
	Scopes    *RunRequestSnippets `json:"snippets,omitempty"`
}

// RunRequestSnippets lets an editor send its own snippet settings.
type RunRequestSnippets struct {
	Global          []snippet.Definition `json:"global,omitempty"`
	Workspace       []snippet.Definition `json:"workspace,omitempty"`
	WorkspaceFolder []snippet.Definition `json:"workspaceFolder,omitempty"`
	// Legacy is used only when the three scopes are empty.
	Legacy []snippet.Definition `json:"legacy,omitempty"`
}

// Message is a user-facing notification produced while running.
type Message struct {
	Level string `json:"level"`
	Text  string `json:"text"`
}

// RunResponse reports what a run did.
type RunResponse struct {
	Evaluated bool         `json:"evaluated"`
	Echoed    []string     `json:"echoed,omitempty"`
	Result    *repl.Result `json:"result,omitempty"`
	Messages  []Message    `json:"messages,omitempty"`
	Error     string       `json:"error,omitempty"`
}

// recorder is the output window and notifier of one API request.
type recorder struct {
	mu       sync.Mutex
	echoed   []string
	result   *repl.Result
	messages []Message
}

func (r *recorder) AppendCode(code string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.echoed = append(r.echoed, code)
}

func (r *recorder) AppendResult(res *repl.Result) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.result = res
}

func (r *recorder) AppendPrompt() {}

func (r *recorder) Info(msg string) { r.add("info", msg) }

func (r *recorder) Error(msg string) { r.add("error", msg) }

func (r *recorder) add(level, text string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, Message{Level: level, Text: text})
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"targets": s.cfg.Targets.Names(),
	})
}

func (s *Server) listSnippets(w http.ResponseWriter, _ *http.Request) {
	reg, err := snippet.Build(s.Scopes(), snippet.Defaults{Repl: s.cfg.Session.ReplType(true)})
	if err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, RunResponse{Error: err.Error()})
		return
	}

	infos := make([]SnippetInfo, 0, reg.Len())
	for _, e := range reg.Entries() {
		info := SnippetInfo{
			Label: e.Label,
			Key:   e.Definition.Key,
			Name:  e.Definition.Name,
			Repl:  e.Repl,
		}
		if e.NS != nil {
			info.NS = *e.NS
		}
		infos = append(infos, info)
	}
	writeJSON(w, http.StatusOK, infos)
}

func (s *Server) listTokens(w http.ResponseWriter, _ *http.Request) {
	type tokenInfo struct {
		Name        string `json:"name"`
		Description string `json:"description"`
	}
	tokens := snippet.Tokens()
	infos := make([]tokenInfo, 0, len(tokens))
	for _, tok := range tokens {
		infos = append(infos, tokenInfo{Name: tok.Name, Description: tok.Description})
	}
	writeJSON(w, http.StatusOK, infos)
}

func (s *Server) run(w http.ResponseWriter, r *http.Request) {
	var req RunRequest
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, RunResponse{Error: "invalid request: " + err.Error()})
		return
	}

	scopes := s.Scopes()
	if req.Scopes != nil {
		scopes = snippet.Scopes{
			Global:          req.Scopes.Global,
			Workspace:       req.Scopes.Workspace,
			WorkspaceFolder: req.Scopes.WorkspaceFolder,
			Legacy:          req.Scopes.Legacy,
		}
	}
	session := s.cfg.Session
	if req.Session != nil {
		session = *req.Session
	}
	var provider editctx.Provider = &editctx.Static{}
	if req.Context != nil {
		provider = req.Context
	}

	rec := &recorder{}
	runner := &snippet.Runner{
		Notifier: rec,
		Evaluator: &repl.Evaluator{
			Targets: s.cfg.Targets,
			Window:  rec,
			Journal: s.cfg.Journal,
			Logger:  s.logger,
		},
		Output: rec,
		Logger: s.logger,
	}

	res, err := runner.Run(r.Context(), snippet.Invocation{
		CodeOrKey: req.CodeOrKey,
		Scopes:    scopes,
		Context:   provider,
		Session:   session,
	})

	rec.mu.Lock()
	resp := RunResponse{
		Evaluated: res != nil || rec.result != nil,
		Echoed:    rec.echoed,
		Result:    rec.result,
		Messages:  rec.messages,
	}
	rec.mu.Unlock()

	status := http.StatusOK
	switch {
	case errors.Is(err, snippet.ErrConfiguration):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, repl.ErrUnknownTarget):
		status = http.StatusNotFound
	case err != nil:
		status = http.StatusBadGateway
	}
	if err != nil {
		resp.Error = err.Error()
		s.logger.Debug("run failed", "error", err)
	}
	writeJSON(w, status, resp)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
