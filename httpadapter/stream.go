package httpadapter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/finom/vovk"
)

// StreamContentType is the media type of streamed responses: one JSON value
// per line.
const StreamContentType = "application/jsonl; charset=utf-8"

// StreamHeader marks streamed responses for the client stream fetcher.
const StreamHeader = "X-Vovk-Stream"

// streamError is the final line written when the iterator fails.
type streamError struct {
	IsError bool        `json:"isError"`
	Error   *vovk.Error `json:"error"`
}

// WithStreamWriteTimeout bounds each line write of a streamed response.
// Zero disables the deadline.
func (a *Adapter) WithStreamWriteTimeout(d time.Duration) *Adapter {
	a.streamWriteTimeout = d
	return a
}

// WithStreamHeartbeat writes an empty line at the given interval while a
// stream is idle, so proxies keep the connection open. Zero disables it.
func (a *Adapter) WithStreamHeartbeat(d time.Duration) *Adapter {
	a.streamHeartbeat = d
	return a
}

// writeStream serves a route whose result is an iterator. Each value is
// encoded on its own line and flushed. An iterator error ends the stream
// with a streamError line.
func (a *Adapter) writeStream(w http.ResponseWriter, req *http.Request, route *vovk.Route, events iter.Seq2[any, error]) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		a.writeError(w, vovk.NewError(vovk.CodeInternal, "streaming not supported"))
		return
	}

	w.Header().Set("Content-Type", StreamContentType)
	w.Header().Set(StreamHeader, "true")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	logger := a.log()

	var rc *http.ResponseController
	if a.streamWriteTimeout > 0 {
		rc = http.NewResponseController(w)
	}

	type eventItem struct {
		event any
		err   error
	}
	eventCh := make(chan eventItem)
	done := make(chan struct{})
	defer close(done)

	// The iterator runs in its own goroutine so heartbeats can interleave.
	go func() {
		defer close(eventCh)
		for event, err := range events {
			select {
			case eventCh <- eventItem{event, err}:
			case <-done:
				return
			}
			if err != nil {
				return
			}
		}
	}()

	var heartbeat <-chan time.Time
	if a.streamHeartbeat > 0 {
		ticker := time.NewTicker(a.streamHeartbeat)
		defer ticker.Stop()
		heartbeat = ticker.C
	}

	for {
		select {
		case <-req.Context().Done():
			return

		case <-heartbeat:
			if _, err := io.WriteString(w, "\n"); err != nil {
				if !isClientDisconnect(err) {
					logger.Error("failed to write heartbeat",
						slog.String("route", route.String()),
						slog.Any("error", err))
				}
				return
			}
			flusher.Flush()

		case item, ok := <-eventCh:
			if !ok {
				return
			}

			if item.err != nil {
				a.writeStreamError(w, route, item.err)
				flusher.Flush()
				return
			}

			if rc != nil {
				if err := rc.SetWriteDeadline(time.Now().Add(a.streamWriteTimeout)); err != nil {
					logger.Warn("write deadline not supported",
						slog.String("route", route.String()),
						slog.Any("error", err))
					rc = nil
				}
			}

			if err := writeLine(w, item.event); err != nil {
				if isClientDisconnect(err) {
					logger.Debug("client disconnected during write",
						slog.String("route", route.String()))
				} else {
					logger.Error("failed to write stream event",
						slog.String("route", route.String()),
						slog.Any("error", err))
				}
				return
			}

			if rc != nil {
				rc.SetWriteDeadline(time.Time{})
			}
			flusher.Flush()
		}
	}
}

func writeLine(w io.Writer, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	data = append(data, '\n')
	_, err = w.Write(data)
	return err
}

func (a *Adapter) writeStreamError(w io.Writer, route *vovk.Route, err error) {
	svcErr := a.transform(err)
	if svcErr.Code == vovk.CodeInternal {
		a.log().Error("stream failed",
			slog.String("route", route.String()),
			slog.Any("error", err))
		if a.maskInternalErrors {
			svcErr = &vovk.Error{Code: svcErr.Code, Message: "internal server error"}
		}
	}
	if werr := writeLine(w, streamError{IsError: true, Error: svcErr}); werr != nil && !isClientDisconnect(werr) {
		a.log().Error("failed to write stream error",
			slog.String("route", route.String()),
			slog.Any("error", werr))
	}
}

// isClientDisconnect reports whether err means the client went away.
func isClientDisconnect(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return errors.Is(err, context.Canceled) ||
		strings.Contains(msg, "broken pipe") ||
		strings.Contains(msg, "connection reset") ||
		strings.Contains(msg, "client disconnected")
}
