package http

import (
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/labstack/echo/v4"
)

var errChannelClosed = errors.New("sse channel closed")

// sseChannel adapts one server-sent-events response stream to the
// realtime.Channel contract. Send is called from notifier workers while the
// handler goroutine keeps the response open; the mutex serializes writes and
// makes Send after Close a plain error instead of a write to a dead stream.
type sseChannel struct {
	mu     sync.Mutex
	writer *echo.Response
	done   chan struct{}
	closed bool
}

func newSSEChannel(w *echo.Response) *sseChannel {
	return &sseChannel{
		writer: w,
		done:   make(chan struct{}),
	}
}

func (c *sseChannel) Send(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return errChannelClosed
	}
	if _, err := fmt.Fprintf(c.writer, "data: %s\n\n", data); err != nil {
		return err
	}
	c.writer.Flush()
	return nil
}

func (c *sseChannel) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.closed {
		c.closed = true
		close(c.done)
	}
	return nil
}

func (c *sseChannel) Alive() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return !c.closed
}

// Events registers the caller in the connection registry and holds the SSE
// stream open until the client disconnects, an explicit logout closes it, or
// a newer connection for the same user supersedes it.
func (h *Handler) Events(c echo.Context) error {
	userID := c.Request().Header.Get(userHeader)
	if userID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "user identity header is required")
	}

	c.Response().Header().Set(echo.HeaderContentType, "text/event-stream")
	c.Response().Header().Set("Cache-Control", "no-cache")
	c.Response().Header().Set("Connection", "keep-alive")
	c.Response().WriteHeader(http.StatusOK)
	c.Response().Flush()

	ch := newSSEChannel(c.Response())
	h.registry.Register(userID, ch)

	select {
	case <-c.Request().Context().Done():
	case <-ch.done:
	}

	h.registry.Drop(userID, ch)
	return nil
}
