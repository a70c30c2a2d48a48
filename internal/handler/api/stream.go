package api

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"StockPredictor/internal/domain/models"
	xlogger "StockPredictor/pkg/logger"
)

const (
	streamWriteWait  = 5 * time.Second
	streamPingPeriod = 20 * time.Second
	// DefaultStreamPoll bounds how stale a stream can be when the job runs
	// on another replica and no in-process update arrives.
	DefaultStreamPoll = time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 8192,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// StreamJob pushes the job record on every status change until it is terminal.
// Updates come from this process's JobManager and from polling the shared
// store, so jobs executed by another replica are seen too.
func (h *PredictionEchoHandler) StreamJob(c echo.Context) error {
	id := c.Param("id")
	ctx := c.Request().Context()
	// subscribe before reading the record so no transition is missed
	updates, cancel := h.jobs.Subscribe(id)
	defer cancel()

	job, err := h.jobs.Get(ctx, id)
	if err != nil {
		return h.fail(c, "stream", err)
	}

	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		h.logger.Warn("websocket upgrade", xlogger.Error(err))
		return nil
	}
	defer conn.Close()

	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	write := func(v interface{}) error {
		_ = conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
		return conn.WriteJSON(v)
	}
	last := *job
	// push reports whether the stream should end.
	push := func(j models.Job) bool {
		if j.Status == last.Status && j.UpdatedAt.Equal(last.UpdatedAt) {
			return false
		}
		last = j
		if err := write(j); err != nil {
			return true
		}
		if j.Status.Terminal() {
			closeStream(conn)
			return true
		}
		return false
	}
	if err := write(job); err != nil || job.Status.Terminal() {
		closeStream(conn)
		return nil
	}

	ping := time.NewTicker(streamPingPeriod)
	defer ping.Stop()
	poll := time.NewTicker(h.streamPoll)
	defer poll.Stop()
	for {
		select {
		case j, ok := <-updates:
			if !ok {
				// terminal in this process; the store has the final record
				updates = nil
				if cur, err := h.jobs.Get(ctx, id); err == nil && push(*cur) {
					return nil
				}
				continue
			}
			if push(j) {
				return nil
			}
		case <-poll.C:
			cur, err := h.jobs.Get(ctx, id)
			if err != nil {
				h.logger.Warn("stream poll", xlogger.String("job_id", id), xlogger.Error(err))
				continue
			}
			if push(*cur) {
				return nil
			}
		case <-ping.C:
			_ = conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return nil
			}
		case <-closed:
			return nil
		case <-ctx.Done():
			return nil
		}
	}
}

func closeStream(conn *websocket.Conn) {
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "done")
	_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(streamWriteWait))
}
