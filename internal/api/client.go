/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"cutscenemaker/internal/action"
)

// Client talks to a running editing server.
type Client struct {
	BaseURL string
	client  *http.Client
}

// NewClient creates a client. baseURL may omit the scheme and may include a trailing slash.
func NewClient(baseURL string) *Client {
	b := strings.TrimRight(baseURL, "/")
	if !strings.Contains(b, "://") {
		b = "http://" + b
	}
	return &Client{
		BaseURL: b,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

// StatusError is a non-2xx reply.
type StatusError struct {
	Method, Path string
	Code         int
	Message      string
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("server %s %s: %d %s", e.Method, e.Path, e.Code, e.Message)
	}
	return fmt.Sprintf("server %s %s: %d", e.Method, e.Path, e.Code)
}

func (c *Client) do(ctx context.Context, method, path, contentType string, body io.Reader) (*http.Response, error) {
	u, err := url.Parse(c.BaseURL + path)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return nil, err
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer resp.Body.Close()
		var eb errorBody
		_ = json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&eb)
		return nil, &StatusError{Method: method, Path: u.Path, Code: resp.StatusCode, Message: eb.Error}
	}
	return resp, nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, in, dest any) error {
	var body io.Reader
	ct := ""
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body, ct = bytes.NewReader(b), "application/json"
	}
	resp, err := c.do(ctx, method, path, ct, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if dest == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(dest)
}

// List returns the current actions and history state.
func (c *Client) List(ctx context.Context) (ListResponse, error) {
	var out ListResponse
	err := c.doJSON(ctx, http.MethodGet, "/api/actions", nil, &out)
	return out, err
}

// Kinds returns the registry descriptors.
func (c *Client) Kinds(ctx context.Context) ([]action.Descriptor, error) {
	var out []action.Descriptor
	err := c.doJSON(ctx, http.MethodGet, "/api/kinds", nil, &out)
	return out, err
}

// Append adds an action and returns it with its id.
func (c *Client) Append(ctx context.Context, in ActionInput) (action.Action, error) {
	var out action.Action
	err := c.doJSON(ctx, http.MethodPost, "/api/actions", in, &out)
	return out, err
}

// Update replaces the params and description of an action.
func (c *Client) Update(ctx context.Context, id string, in ActionInput) (action.Action, error) {
	var out action.Action
	err := c.doJSON(ctx, http.MethodPut, "/api/actions/"+url.PathEscape(id), in, &out)
	return out, err
}

// Remove deletes an action.
func (c *Client) Remove(ctx context.Context, id string) error {
	return c.doJSON(ctx, http.MethodDelete, "/api/actions/"+url.PathEscape(id), nil, nil)
}

// Get returns one action.
func (c *Client) Get(ctx context.Context, id string) (action.Action, error) {
	var out action.Action
	err := c.doJSON(ctx, http.MethodGet, "/api/actions/"+url.PathEscape(id), nil, &out)
	return out, err
}

// Move places an action at the zero-based index to.
func (c *Client) Move(ctx context.Context, id string, to int) error {
	return c.doJSON(ctx, http.MethodPost, "/api/actions/"+url.PathEscape(id)+"/move", map[string]any{"to": to}, nil)
}

// Clear empties the list.
func (c *Client) Clear(ctx context.Context) error {
	return c.doJSON(ctx, http.MethodDelete, "/api/actions", nil, nil)
}

// Reorder sets the list order.
func (c *Client) Reorder(ctx context.Context, ids []string) error {
	return c.doJSON(ctx, http.MethodPost, "/api/actions/reorder", map[string]any{"ids": ids}, nil)
}

// Import parses text on the server and appends the actions.
func (c *Client) Import(ctx context.Context, text string, replace bool) (ImportResponse, error) {
	path := "/api/actions/import"
	if replace {
		path += "?mode=replace"
	}
	resp, err := c.do(ctx, http.MethodPost, path, "text/plain; charset=utf-8", strings.NewReader(text))
	if err != nil {
		return ImportResponse{}, err
	}
	defer resp.Body.Close()
	var out ImportResponse
	err = json.NewDecoder(resp.Body).Decode(&out)
	return out, err
}

// Script fetches the rendered list in the given export format ("" for script).
func (c *Client) Script(ctx context.Context, format string) ([]byte, error) {
	path := "/api/script"
	if format != "" {
		path += "?format=" + url.QueryEscape(format)
	}
	resp, err := c.do(ctx, http.MethodGet, path, "", nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	return io.ReadAll(resp.Body)
}

// Undo steps back once; ok is false when there was nothing to undo.
func (c *Client) Undo(ctx context.Context) (label string, ok bool, err error) {
	return c.step(ctx, "/api/undo")
}

// Redo steps forward once.
func (c *Client) Redo(ctx context.Context) (label string, ok bool, err error) {
	return c.step(ctx, "/api/redo")
}

func (c *Client) step(ctx context.Context, path string) (string, bool, error) {
	var out struct {
		OK    bool   `json:"ok"`
		Label string `json:"label"`
	}
	if err := c.doJSON(ctx, http.MethodPost, path, nil, &out); err != nil {
		return "", false, err
	}
	return out.Label, out.OK, nil
}

// Save asks the server to write the project document.
func (c *Client) Save(ctx context.Context) (string, error) {
	var out struct {
		Path string `json:"path"`
	}
	err := c.doJSON(ctx, http.MethodPost, "/api/save", nil, &out)
	return out.Path, err
}
