/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package api exposes an editing session over HTTP for the host renderer:
// JSON endpoints for every store operation and a websocket stream that
// pushes the full list after each mutation.
package api

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"cutscenemaker/internal/action"
	"cutscenemaker/internal/export"
	applog "cutscenemaker/internal/log"
	"cutscenemaker/internal/runner"
	"cutscenemaker/internal/script"
	"cutscenemaker/internal/session"
	"cutscenemaker/internal/storage"
	"cutscenemaker/internal/store"
)

// maxImportBytes bounds a script import body.
const maxImportBytes = 4 << 20

// HistoryState mirrors store.History for clients.
type HistoryState struct {
	Undo    string `json:"undo,omitempty"`
	CanUndo bool   `json:"canUndo"`
	Redo    string `json:"redo,omitempty"`
	CanRedo bool   `json:"canRedo"`
}

// ActionInput is the body of create and update requests.
type ActionInput struct {
	Kind        action.Kind    `json:"kind"`
	Params      map[string]any `json:"params"`
	Description string         `json:"description"`
}

// ListResponse is returned by GET /api/actions.
type ListResponse struct {
	Actions []action.Action `json:"actions"`
	History HistoryState    `json:"history"`
}

// ImportResponse is returned by POST /api/actions/import.
type ImportResponse struct {
	IDs    []string       `json:"ids"`
	Blocks []script.Block `json:"blocks"`
}

// Options configures a Server.
type Options struct {
	Session *session.Session
	Logger  *slog.Logger
	// AllowedOrigins lists extra websocket origins (the host app's URL).
	AllowedOrigins []string
}

// Server is the HTTP surface of one session.
type Server struct {
	sess   *session.Session
	st     *store.Store
	log    *slog.Logger
	hub    *Hub
	engine *gin.Engine
	unsub  func()
}

// New builds the router and starts forwarding store events to websocket clients.
func New(opts Options) *Server {
	l := opts.Logger
	if l == nil {
		l = applog.WithComponent("api")
	}
	s := &Server{sess: opts.Session, st: opts.Session.Store(), log: l}
	s.hub = NewHub(l, originChecker(opts.AllowedOrigins))
	s.unsub = s.st.Subscribe(func(ev store.Event) {
		s.hub.Broadcast(s.message("event", &ev))
	})

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery(), s.requestLog())

	api := r.Group("/api")
	api.GET("/kinds", s.kinds)
	api.GET("/actions", s.list)
	api.POST("/actions", s.create)
	api.DELETE("/actions", s.clear)
	api.GET("/actions/:id", s.get)
	api.PUT("/actions/:id", s.update)
	api.DELETE("/actions/:id", s.remove)
	api.POST("/actions/:id/move", s.move)
	api.POST("/actions/reorder", s.reorder)
	api.POST("/actions/import", s.importScript)
	api.GET("/script", s.script)
	api.GET("/check", s.check)
	api.POST("/undo", s.undo)
	api.POST("/redo", s.redo)
	api.POST("/save", s.save)
	api.GET("/search", s.search)
	r.GET("/ws", func(c *gin.Context) {
		s.hub.Serve(c.Writer, c.Request, s.message("snapshot", nil))
	})
	s.engine = r
	return s
}

// Handler is the root http.Handler.
func (s *Server) Handler() http.Handler { return s.engine }

// Hub is the websocket hub.
func (s *Server) Hub() *Hub { return s.hub }

// Close stops event forwarding and disconnects websocket clients.
func (s *Server) Close() {
	if s.unsub != nil {
		s.unsub()
		s.unsub = nil
	}
	s.hub.Close()
}

func (s *Server) history() HistoryState {
	u, cu, r, cr := s.st.History()
	return HistoryState{Undo: u, CanUndo: cu, Redo: r, CanRedo: cr}
}

func (s *Server) message(typ string, ev *store.Event) Message {
	return Message{Type: typ, Event: ev, Actions: s.st.All(), History: s.history()}
}

func (s *Server) requestLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.log.Debug("request",
			slog.String("method", c.Request.Method),
			slog.String("path", c.FullPath()),
			slog.Int("status", c.Writer.Status()),
			slog.Duration("dur", time.Since(start)),
		)
	}
}

// originChecker accepts requests without an Origin header, same-host origins
// and the configured extra origins.
func originChecker(allowed []string) func(*http.Request) bool {
	extra := map[string]bool{}
	for _, o := range allowed {
		extra[strings.TrimRight(o, "/")] = true
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" || extra[origin] || extra["*"] {
			return true
		}
		u, err := url.Parse(origin)
		return err == nil && strings.EqualFold(u.Host, r.Host)
	}
}

type errorBody struct {
	Error string `json:"error"`
}

func fail(c *gin.Context, status int, err error) {
	c.AbortWithStatusJSON(status, errorBody{Error: err.Error()})
}

func (s *Server) kinds(c *gin.Context) {
	c.JSON(http.StatusOK, action.All())
}

func (s *Server) list(c *gin.Context) {
	c.JSON(http.StatusOK, ListResponse{Actions: s.st.All(), History: s.history()})
}

func (s *Server) get(c *gin.Context) {
	a, ok := s.st.Get(c.Param("id"))
	if !ok {
		fail(c, http.StatusNotFound, errors.New("no such action"))
		return
	}
	c.JSON(http.StatusOK, a)
}

func (s *Server) create(c *gin.Context) {
	var in ActionInput
	if err := c.ShouldBindJSON(&in); err != nil {
		fail(c, http.StatusBadRequest, err)
		return
	}
	id, err := s.st.Append(in.Kind, in.Params, in.Description)
	if err != nil {
		fail(c, http.StatusBadRequest, err)
		return
	}
	a, _ := s.st.Get(id)
	c.JSON(http.StatusCreated, a)
}

func (s *Server) update(c *gin.Context) {
	var in ActionInput
	if err := c.ShouldBindJSON(&in); err != nil {
		fail(c, http.StatusBadRequest, err)
		return
	}
	id := c.Param("id")
	if !s.st.Update(id, in.Params, in.Description) {
		fail(c, http.StatusNotFound, errors.New("no such action"))
		return
	}
	a, _ := s.st.Get(id)
	c.JSON(http.StatusOK, a)
}

func (s *Server) remove(c *gin.Context) {
	if !s.st.Remove(c.Param("id")) {
		fail(c, http.StatusNotFound, errors.New("no such action"))
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) clear(c *gin.Context) {
	s.st.Clear()
	c.Status(http.StatusNoContent)
}

func (s *Server) move(c *gin.Context) {
	var body struct {
		To *int `json:"to"`
	}
	if err := c.ShouldBindJSON(&body); err != nil || body.To == nil {
		fail(c, http.StatusBadRequest, errors.New(`body must be {"to": <index>}`))
		return
	}
	id := c.Param("id")
	if _, ok := s.st.Get(id); !ok {
		fail(c, http.StatusNotFound, errors.New("no such action"))
		return
	}
	if err := s.st.Move(id, *body.To); err != nil {
		fail(c, http.StatusBadRequest, err)
		return
	}
	s.list(c)
}

func (s *Server) reorder(c *gin.Context) {
	var body struct {
		IDs []string `json:"ids"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		fail(c, http.StatusBadRequest, err)
		return
	}
	if err := s.st.Reorder(body.IDs); err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, store.ErrReorderMismatch) {
			status = http.StatusConflict
		}
		fail(c, status, err)
		return
	}
	s.list(c)
}

// importScript parses a script body (text/plain) and appends the result, or
// replaces the list when mode=replace.
func (s *Server) importScript(c *gin.Context) {
	b, err := io.ReadAll(io.LimitReader(c.Request.Body, maxImportBytes+1))
	if err != nil {
		fail(c, http.StatusBadRequest, err)
		return
	}
	if len(b) > maxImportBytes {
		fail(c, http.StatusRequestEntityTooLarge, errors.New("script too large"))
		return
	}
	rep := script.ParseReport(string(b))
	if c.Query("mode") == "replace" {
		s.st.Clear()
	}
	ids, err := s.st.AppendMany(rep.Actions)
	if err != nil {
		fail(c, http.StatusBadRequest, err)
		return
	}
	c.JSON(http.StatusOK, ImportResponse{IDs: ids, Blocks: rep.Blocks})
}

// script renders the current list; ?format= selects script (default), run, json or pdf.
func (s *Server) script(c *gin.Context) {
	f := export.FormatScript
	if q := c.Query("format"); q != "" {
		var err error
		if f, err = export.ParseFormat(q); err != nil {
			fail(c, http.StatusBadRequest, err)
			return
		}
	}
	data, err := export.Render(f, s.sess.Sequence())
	if err != nil {
		fail(c, http.StatusInternalServerError, err)
		return
	}
	ct := "text/javascript; charset=utf-8"
	switch f {
	case export.FormatJSON:
		ct = "application/json"
	case export.FormatPDF:
		ct = "application/pdf"
	}
	c.Data(http.StatusOK, ct, data)
}

func (s *Server) check(c *gin.Context) {
	rep := runner.Check(script.SerializeSequence(s.st.All()))
	issues := make([]string, 0, len(rep.Issues))
	for _, i := range rep.Issues {
		issues = append(issues, i.String())
	}
	c.JSON(http.StatusOK, gin.H{"ok": rep.OK(), "blocks": rep.Blocks, "issues": issues})
}

func (s *Server) undo(c *gin.Context) {
	label, ok := s.st.Undo()
	c.JSON(http.StatusOK, gin.H{"ok": ok, "label": label, "history": s.history()})
}

func (s *Server) redo(c *gin.Context) {
	label, ok := s.st.Redo()
	c.JSON(http.StatusOK, gin.H{"ok": ok, "label": label, "history": s.history()})
}

func (s *Server) save(c *gin.Context) {
	if err := s.sess.Save(c.Request.Context()); err != nil {
		fail(c, http.StatusInternalServerError, err)
		return
	}
	ph := s.sess.Project()
	c.JSON(http.StatusOK, gin.H{"path": ph.DocumentPath, "actions": len(ph.Sequence.Actions)})
}

// search queries the project index, which reflects the last save.
func (s *Server) search(c *gin.Context) {
	q := storage.SearchQuery{Text: c.Query("q"), Kinds: c.QueryArray("kind")}
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			fail(c, http.StatusBadRequest, errors.New("limit must be a non-negative integer"))
			return
		}
		q.Limit = n
	}
	res, err := storage.Search(c.Request.Context(), s.sess.Project().Root, q)
	if err != nil {
		fail(c, http.StatusInternalServerError, err)
		return
	}
	if res == nil {
		res = []storage.SearchResult{}
	}
	c.JSON(http.StatusOK, res)
}
