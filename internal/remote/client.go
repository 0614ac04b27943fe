package remote

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

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/runnerr0/typelog/internal/identity"
)

// Client talks to a record sync service over HTTP, with WebSocket
// streams for subscriptions. Every request is scoped to the current
// identity's namespace; with no identity resolved all operations fail
// with ErrNoIdentity.
type Client struct {
	base   string
	http   *http.Client
	ident  identity.Provider
	device string
	log    *log.Logger
}

// NewClient builds a client for the service at base, e.g.
// "https://sync.example.com". The device id distinguishes this
// installation in the service's audit trail.
func NewClient(base string, ident identity.Provider, logger *log.Logger) *Client {
	return &Client{
		base:   strings.TrimRight(base, "/"),
		http:   &http.Client{Timeout: 30 * time.Second},
		ident:  ident,
		device: uuid.NewString(),
		log:    logger,
	}
}

var _ Gateway = (*Client)(nil)

func (c *Client) tableURL(table string) (string, error) {
	uid, ok := c.ident.Current()
	if !ok {
		return "", ErrNoIdentity
	}
	return fmt.Sprintf("%s/v1/users/%s/tables/%s",
		c.base, url.PathEscape(uid), url.PathEscape(table)), nil
}

func (c *Client) do(ctx context.Context, method, u string, body, out any) error {
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(buf)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Device-ID", c.device)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return ErrNotFound
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%s %s: %s: %s", method, u, resp.Status, strings.TrimSpace(string(msg)))
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func (c *Client) Get(ctx context.Context, table string) ([]Row, error) {
	u, err := c.tableURL(table)
	if err != nil {
		return nil, err
	}
	var rows []Row
	if err := c.do(ctx, http.MethodGet, u, nil, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

func (c *Client) GetByID(ctx context.Context, table, id string) (Row, error) {
	u, err := c.tableURL(table)
	if err != nil {
		return Row{}, err
	}
	var row Row
	if err := c.do(ctx, http.MethodGet, u+"/rows/"+url.PathEscape(id), nil, &row); err != nil {
		return Row{}, err
	}
	return row, nil
}

func (c *Client) Add(ctx context.Context, table string, row Row) (string, error) {
	u, err := c.tableURL(table)
	if err != nil {
		return "", err
	}
	var reply struct {
		Key string `json:"key"`
	}
	if err := c.do(ctx, http.MethodPost, u+"/rows", row, &reply); err != nil {
		return "", err
	}
	return reply.Key, nil
}

func (c *Client) Remove(ctx context.Context, table, id string) error {
	u, err := c.tableURL(table)
	if err != nil {
		return err
	}
	return c.do(ctx, http.MethodDelete, u+"/rows/"+url.PathEscape(id), nil, nil)
}

func (c *Client) Count(ctx context.Context, table string) (int64, error) {
	u, err := c.tableURL(table)
	if err != nil {
		return 0, err
	}
	var reply struct {
		Count int64 `json:"count"`
	}
	if err := c.do(ctx, http.MethodGet, u+"/count", nil, &reply); err != nil {
		return 0, err
	}
	return reply.Count, nil
}

func (c *Client) Replace(ctx context.Context, table string, rows []Row) error {
	u, err := c.tableURL(table)
	if err != nil {
		return err
	}
	if rows == nil {
		rows = []Row{}
	}
	return c.do(ctx, http.MethodPut, u, rows, nil)
}

// Subscribe opens a WebSocket to the table's watch endpoint. The
// service sends the full table snapshot on connect and again after
// every change; each frame is a JSON array of rows.
func (c *Client) Subscribe(table string, cb func([]Row)) (func(), error) {
	sub := &rowSub{cb: cb}
	return c.watch(table, "/watch", func(data []byte) {
		var rows []Row
		if err := json.Unmarshal(data, &rows); err != nil {
			c.log.Warn("dropping malformed snapshot frame", "table", table, "err", err)
			return
		}
		sub.deliver(rows)
	}, func() {
		sub.mu.Lock()
		sub.cancelled = true
		sub.mu.Unlock()
	})
}

// SubscribeCount streams the table's row count; each frame is a JSON
// object {"count": n}.
func (c *Client) SubscribeCount(table string, cb func(int64)) (func(), error) {
	sub := &countSub{cb: cb}
	return c.watch(table, "/watch/count", func(data []byte) {
		var frame struct {
			Count int64 `json:"count"`
		}
		if err := json.Unmarshal(data, &frame); err != nil {
			c.log.Warn("dropping malformed count frame", "table", table, "err", err)
			return
		}
		sub.deliver(frame.Count)
	}, func() {
		sub.mu.Lock()
		sub.cancelled = true
		sub.mu.Unlock()
	})
}

// watch dials the stream endpoint and feeds every text frame to
// handle. The returned unsubscribe closes the connection and then
// marks the subscription cancelled, so handle never runs afterwards.
func (c *Client) watch(table, suffix string, handle func([]byte), cancel func()) (func(), error) {
	u, err := c.tableURL(table)
	if err != nil {
		return nil, err
	}
	wsURL := "ws" + strings.TrimPrefix(u, "http") + suffix

	header := http.Header{}
	header.Set("X-Device-ID", c.device)
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, header)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", wsURL, err)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					c.log.Debug("watch stream closed", "table", table, "err", err)
				}
				return
			}
			handle(data)
		}
	}()

	return func() {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		_ = conn.Close()
		<-done
		cancel()
	}, nil
}
