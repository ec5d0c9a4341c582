// Package logging wires structured logging for every hdrshot component.
//
// Packages call L(component) at init time to get a logger, before Init has
// necessarily run — the handler is swapped in place so early loggers pick
// up the configured output once the host process calls Init.
package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"sync/atomic"
)

// KeyComponent tags every log line with the emitting package.
const KeyComponent = "component"

type switchableHandler struct {
	state  *atomic.Value // stores slog.Handler
	attrs  []slog.Attr
	groups []string
}

func newSwitchableHandler(h slog.Handler) *switchableHandler {
	state := &atomic.Value{}
	state.Store(h)
	return &switchableHandler{state: state}
}

func (h *switchableHandler) set(handler slog.Handler) { h.state.Store(handler) }

func (h *switchableHandler) materialize() slog.Handler {
	handler := h.state.Load().(slog.Handler)
	for _, group := range h.groups {
		handler = handler.WithGroup(group)
	}
	if len(h.attrs) > 0 {
		handler = handler.WithAttrs(h.attrs)
	}
	return handler
}

func (h *switchableHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.materialize().Enabled(ctx, level)
}

func (h *switchableHandler) Handle(ctx context.Context, record slog.Record) error {
	return h.materialize().Handle(ctx, record)
}

func (h *switchableHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	merged := make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	merged = append(merged, h.attrs...)
	merged = append(merged, attrs...)
	groups := append([]string(nil), h.groups...)
	return &switchableHandler{state: h.state, attrs: merged, groups: groups}
}

func (h *switchableHandler) WithGroup(name string) slog.Handler {
	attrs := append([]slog.Attr(nil), h.attrs...)
	groups := append(append([]string(nil), h.groups...), name)
	return &switchableHandler{state: h.state, attrs: attrs, groups: groups}
}

var (
	rootHandler   = newSwitchableHandler(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	defaultLogger = slog.New(rootHandler)
	mu            sync.Mutex
)

func init() {
	slog.SetDefault(defaultLogger)
}

// Init reconfigures the process-wide handler. format is "json" or "text"
// (default "text"); level is "debug"|"info"|"warn"|"error" (default
// "info"); a nil output defaults to os.Stdout. Call once, typically from
// cmd/hdrshot after config.Load.
func Init(format, level string, output io.Writer) {
	mu.Lock()
	defer mu.Unlock()

	if output == nil {
		output = os.Stdout
	}

	opts := &slog.HandlerOptions{Level: parseLevel(level)}

	var handler slog.Handler
	if strings.EqualFold(format, "json") {
		handler = slog.NewJSONHandler(output, opts)
	} else {
		handler = slog.NewTextHandler(output, opts)
	}

	rootHandler.set(handler)
	defaultLogger = slog.New(rootHandler)
	slog.SetDefault(defaultLogger)
}

// L returns a logger tagged with the given component name, e.g. "pipeline",
// "capture", "tonemap".
func L(component string) *slog.Logger {
	return defaultLogger.With(slog.String(KeyComponent, component))
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
