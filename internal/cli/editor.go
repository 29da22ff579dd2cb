/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"cutscenemaker/internal/action"
	"cutscenemaker/internal/api"
	"cutscenemaker/internal/script"
	"cutscenemaker/internal/session"
)

// editor is the set of list edits a command can make, either on the
// document directly or through a running editor server.
type editor interface {
	list(ctx context.Context) ([]action.Action, error)
	get(ctx context.Context, id string) (action.Action, bool, error)
	add(ctx context.Context, kind action.Kind, params map[string]any, description string) (string, error)
	update(ctx context.Context, id string, params map[string]any, description string) (bool, error)
	remove(ctx context.Context, id string) (bool, error)
	move(ctx context.Context, id string, to int) error
	clear(ctx context.Context) error
	importText(ctx context.Context, text string, replace bool) ([]string, error)
	// commit persists local edits; remote edits are saved by the server.
	commit(ctx context.Context) error
}

func (a *App) editor() (editor, error) {
	if a.remote {
		return &remoteEditor{c: api.NewClient(a.serverAddr)}, nil
	}
	s, err := a.openSession()
	if err != nil {
		return nil, err
	}
	return &localEditor{s: s}, nil
}

type localEditor struct{ s *session.Session }

func (e *localEditor) list(context.Context) ([]action.Action, error) { return e.s.Store().All(), nil }

func (e *localEditor) get(_ context.Context, id string) (action.Action, bool, error) {
	a, ok := e.s.Store().Get(id)
	return a, ok, nil
}

func (e *localEditor) add(_ context.Context, kind action.Kind, params map[string]any, description string) (string, error) {
	return e.s.Store().Append(kind, params, description)
}

func (e *localEditor) update(_ context.Context, id string, params map[string]any, description string) (bool, error) {
	return e.s.Store().Update(id, params, description), nil
}

func (e *localEditor) remove(_ context.Context, id string) (bool, error) {
	return e.s.Store().Remove(id), nil
}

func (e *localEditor) move(_ context.Context, id string, to int) error {
	return e.s.Store().Move(id, to)
}

func (e *localEditor) clear(context.Context) error {
	e.s.Store().Clear()
	return nil
}

func (e *localEditor) importText(_ context.Context, text string, replace bool) ([]string, error) {
	if replace {
		e.s.Store().Clear()
	}
	return e.s.Store().AppendMany(script.Parse(text))
}

func (e *localEditor) commit(ctx context.Context) error {
	if !e.s.Dirty() {
		return nil
	}
	return e.s.Save(ctx)
}

type remoteEditor struct{ c *api.Client }

func (e *remoteEditor) list(ctx context.Context) ([]action.Action, error) {
	l, err := e.c.List(ctx)
	return l.Actions, err
}

func (e *remoteEditor) get(ctx context.Context, id string) (action.Action, bool, error) {
	a, err := e.c.Get(ctx, id)
	if isNotFound(err) {
		return action.Action{}, false, nil
	}
	return a, err == nil, err
}

func (e *remoteEditor) add(ctx context.Context, kind action.Kind, params map[string]any, description string) (string, error) {
	a, err := e.c.Append(ctx, api.ActionInput{Kind: kind, Params: params, Description: description})
	return a.ID, err
}

func (e *remoteEditor) update(ctx context.Context, id string, params map[string]any, description string) (bool, error) {
	_, err := e.c.Update(ctx, id, api.ActionInput{Params: params, Description: description})
	if isNotFound(err) {
		return false, nil
	}
	return err == nil, err
}

func (e *remoteEditor) remove(ctx context.Context, id string) (bool, error) {
	err := e.c.Remove(ctx, id)
	if isNotFound(err) {
		return false, nil
	}
	return err == nil, err
}

func (e *remoteEditor) move(ctx context.Context, id string, to int) error {
	return e.c.Move(ctx, id, to)
}

func (e *remoteEditor) clear(ctx context.Context) error { return e.c.Clear(ctx) }

func (e *remoteEditor) importText(ctx context.Context, text string, replace bool) ([]string, error) {
	rep, err := e.c.Import(ctx, text, replace)
	return rep.IDs, err
}

func (e *remoteEditor) commit(context.Context) error { return nil }

func isNotFound(err error) bool {
	var se *api.StatusError
	return errors.As(err, &se) && se.Code == http.StatusNotFound
}

// errNoAction is returned for an id that is not in the list.
func errNoAction(id string) error {
	return &ExitError{Code: 1, Err: fmt.Errorf("no action with id %q", id)}
}
