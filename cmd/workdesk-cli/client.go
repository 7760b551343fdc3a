package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/gorilla/websocket"

	"github.com/xiaot623/gogo/workdesk/internal/domain"
)

// workspaceState mirrors the fields of the server's state the CLI shows.
type workspaceState struct {
	WorkspaceID    string         `json:"workspace_id"`
	User           domain.User    `json:"user"`
	View           domain.View    `json:"view"`
	Persona        domain.Persona `json:"persona"`
	ConversationID string         `json:"conversation_id"`
	Transcript     []domain.Entry `json:"transcript"`
	Suggestions    []string       `json:"suggestions"`
}

// apiError is the body of every non-2xx JSON response.
type apiError struct {
	Status  int
	Message string `json:"error"`
}

func (e *apiError) Error() string {
	return fmt.Sprintf("%s (HTTP %d)", e.Message, e.Status)
}

// Client talks to a workdesk server on behalf of one workspace.
type Client struct {
	baseURL     string
	http        *http.Client
	workspaceID string
}

// NewClient creates a client for the server at baseURL.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{},
	}
}

func (c *Client) workspacePath(suffix string) string {
	return "/v1/workspaces/" + c.workspaceID + suffix
}

func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.send(req, out)
}

func (c *Client) send(req *http.Request, out interface{}) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return decodeError(resp)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func decodeError(resp *http.Response) error {
	e := &apiError{Status: resp.StatusCode}
	data, _ := io.ReadAll(resp.Body)
	if err := json.Unmarshal(data, e); err != nil || e.Message == "" {
		e.Message = strings.TrimSpace(string(data))
	}
	return e
}

// Login opens a workspace and remembers its id.
func (c *Client) Login(ctx context.Context, name string, role domain.UserRole) (*workspaceState, error) {
	var st workspaceState
	if err := c.do(ctx, http.MethodPost, "/v1/login", map[string]interface{}{"name": name, "role": role}, &st); err != nil {
		return nil, err
	}
	c.workspaceID = st.WorkspaceID
	return &st, nil
}

// Logout drops the workspace.
func (c *Client) Logout(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, c.workspacePath("/logout"), nil, nil)
}

// Navigate switches the view.
func (c *Client) Navigate(ctx context.Context, view domain.View) (*workspaceState, error) {
	var st workspaceState
	if err := c.do(ctx, http.MethodPost, c.workspacePath("/view"), map[string]interface{}{"view": view}, &st); err != nil {
		return nil, err
	}
	return &st, nil
}

// Personas lists the personas the user may pick.
func (c *Client) Personas(ctx context.Context) ([]domain.Persona, error) {
	var out struct {
		Personas []domain.Persona `json:"personas"`
	}
	if err := c.do(ctx, http.MethodGet, c.workspacePath("/personas"), nil, &out); err != nil {
		return nil, err
	}
	return out.Personas, nil
}

// SelectPersona switches persona.
func (c *Client) SelectPersona(ctx context.Context, id domain.PersonaID) (*workspaceState, error) {
	var st workspaceState
	if err := c.do(ctx, http.MethodPost, c.workspacePath("/persona"), map[string]interface{}{"persona_id": id}, &st); err != nil {
		return nil, err
	}
	return &st, nil
}

// Clear resets the transcript.
func (c *Client) Clear(ctx context.Context) (*workspaceState, error) {
	var st workspaceState
	if err := c.do(ctx, http.MethodPost, c.workspacePath("/clear"), nil, &st); err != nil {
		return nil, err
	}
	return &st, nil
}

// Suggestions returns the current suggestion set.
func (c *Client) Suggestions(ctx context.Context) ([]string, error) {
	var out struct {
		Suggestions []string `json:"suggestions"`
	}
	if err := c.do(ctx, http.MethodGet, c.workspacePath("/suggestions"), nil, &out); err != nil {
		return nil, err
	}
	return out.Suggestions, nil
}

// Cancel stops the turn in flight.
func (c *Client) Cancel(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, c.workspacePath("/cancel"), nil, nil)
}

// Attach uploads the file at path as the pending attachment. The content
// type is detected locally; the server checks it again.
func (c *Client) Attach(ctx context.Context, path string) (*domain.Attachment, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, filepath.Base(path)))
	header.Set("Content-Type", mimetype.Detect(data).String())
	part, err := w.CreatePart(header)
	if err != nil {
		return nil, err
	}
	if _, err := part.Write(data); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+c.workspacePath("/attachment"), &buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", w.FormDataContentType())

	var att domain.Attachment
	if err := c.send(req, &att); err != nil {
		return nil, err
	}
	return &att, nil
}

// Send posts a message and calls onUpdate for every streamed update until
// the server closes the stream.
func (c *Client) Send(ctx context.Context, text string, onUpdate func(domain.Update)) error {
	data, err := json.Marshal(map[string]string{"text": text})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+c.workspacePath("/messages"), bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return decodeError(resp)
	}
	return readEvents(resp.Body, onUpdate)
}

// readEvents parses a server-sent event stream of updates.
func readEvents(r io.Reader, onUpdate func(domain.Update)) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)

	var data strings.Builder
	flush := func() error {
		if data.Len() == 0 {
			return nil
		}
		var u domain.Update
		if err := json.Unmarshal([]byte(data.String()), &u); err != nil {
			return fmt.Errorf("bad event: %w", err)
		}
		data.Reset()
		onUpdate(u)
		return nil
	}

	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case line == "":
			if err := flush(); err != nil {
				return err
			}
		case strings.HasPrefix(line, "data:"):
			if data.Len() > 0 {
				data.WriteByte('\n')
			}
			data.WriteString(strings.TrimSpace(strings.TrimPrefix(line, "data:")))
		}
	}
	if err := scanner.Err(); err != nil {
		return err
	}
	return flush()
}

// Listen streams pushed updates over the websocket until ctx is done.
func (c *Client) Listen(ctx context.Context, onUpdate func(domain.Update)) error {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return err
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = "/ws"
	u.RawQuery = url.Values{"workspace_id": {c.workspaceID}}.Encode()

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil || websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				return nil
			}
			return err
		}
		var update domain.Update
		if err := json.Unmarshal(data, &update); err != nil {
			continue
		}
		onUpdate(update)
	}
}
