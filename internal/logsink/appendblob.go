// Package logsink ships slog records as JSON lines to an Azure append blob.
package logsink

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"sync"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/appendblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/bloberror"
)

// maxBlock keeps each append under the service's 4 MiB block limit.
const maxBlock = 4 << 20

type Config struct {
	AccountName string
	AccountKey  string
	Container   string
	BlobName    string        // may contain slashes; defaults to BlobName(time.Now())
	FlushEvery  time.Duration // default 2s
	Level       slog.Leveler
}

func (c Config) Enabled() bool {
	return c.AccountName != "" && c.AccountKey != ""
}

type appender interface {
	AppendBlock(ctx context.Context, body io.ReadSeekCloser, o *appendblob.AppendBlockOptions) (appendblob.AppendBlockResponse, error)
}

// Handler buffers encoded records and appends them to the blob on a timer.
type Handler struct {
	sink  *sink
	attrs []slog.Attr
	group string
}

type sink struct {
	ab    appender
	level slog.Leveler
	ch    chan []byte
	done  chan struct{}
	every time.Duration

	mu     sync.RWMutex
	closed bool
}

func New(ctx context.Context, cfg Config) (*Handler, error) {
	if !cfg.Enabled() || cfg.Container == "" {
		return nil, errors.New("account name, account key and container are required")
	}
	if cfg.BlobName == "" {
		cfg.BlobName = BlobName(time.Now())
	}

	cred, err := azblob.NewSharedKeyCredential(cfg.AccountName, cfg.AccountKey)
	if err != nil {
		return nil, fmt.Errorf("invalid log blob credentials: %w", err)
	}
	blobURL := "https://" + cfg.AccountName + ".blob.core.windows.net/" +
		url.PathEscape(cfg.Container) + "/" + cfg.BlobName
	ab, err := appendblob.NewClientWithSharedKeyCredential(blobURL, cred, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create append blob client: %w", err)
	}
	if _, err := ab.Create(ctx, nil); err != nil && !bloberror.HasCode(err, bloberror.BlobAlreadyExists) {
		return nil, fmt.Errorf("failed to create log blob %s: %w", cfg.BlobName, err)
	}
	return newHandler(ab, cfg), nil
}

func newHandler(ab appender, cfg Config) *Handler {
	if cfg.FlushEvery <= 0 {
		cfg.FlushEvery = 2 * time.Second
	}
	level := cfg.Level
	if level == nil {
		level = slog.LevelInfo
	}
	s := &sink{
		ab:    ab,
		level: level,
		ch:    make(chan []byte, 1024),
		done:  make(chan struct{}),
		every: cfg.FlushEvery,
	}
	go s.loop()
	return &Handler{sink: s}
}

// Close flushes buffered lines and stops the background writer.
func (h *Handler) Close() error {
	h.sink.mu.Lock()
	if !h.sink.closed {
		h.sink.closed = true
		close(h.sink.ch)
	}
	h.sink.mu.Unlock()
	<-h.sink.done
	return nil
}

func (h *Handler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.sink.level.Level()
}

func (h *Handler) Handle(_ context.Context, r slog.Record) error {
	line, err := encode(r, h.attrs, h.group)
	if err != nil {
		return err
	}
	h.sink.mu.RLock()
	defer h.sink.mu.RUnlock()
	if h.sink.closed {
		return nil
	}
	select {
	case h.sink.ch <- line:
	default:
		// writer is behind; dropping beats blocking the caller
	}
	return nil
}

func (h *Handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	if len(attrs) == 0 {
		return h
	}
	next := *h
	for _, a := range attrs {
		if h.group != "" {
			a.Key = h.group + "." + a.Key
		}
		next.attrs = append(next.attrs[:len(next.attrs):len(next.attrs)], a)
	}
	return &next
}

func (h *Handler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	next := *h
	if next.group != "" {
		name = next.group + "." + name
	}
	next.group = name
	return &next
}

// encode renders one record as a JSON line. Groups are flattened one level
// into nested objects.
func encode(r slog.Record, attrs []slog.Attr, group string) ([]byte, error) {
	ev := make(map[string]any, r.NumAttrs()+len(attrs)+3)
	ts := r.Time
	if ts.IsZero() {
		ts = time.Now()
	}
	ev["ts"] = ts.UTC().Format(time.RFC3339Nano)
	ev["level"] = r.Level.String()
	ev["msg"] = r.Message

	add := func(a slog.Attr, prefix string) {
		a.Value = a.Value.Resolve()
		if a.Equal(slog.Attr{}) {
			return
		}
		key := a.Key
		if prefix != "" {
			key = prefix + "." + key
		}
		if a.Value.Kind() == slog.KindGroup {
			m := map[string]any{}
			for _, aa := range a.Value.Group() {
				m[aa.Key] = value(aa.Value.Resolve())
			}
			ev[key] = m
			return
		}
		ev[key] = value(a.Value)
	}
	for _, a := range attrs {
		add(a, "")
	}
	r.Attrs(func(a slog.Attr) bool {
		add(a, group)
		return true
	})

	var b bytes.Buffer
	enc := json.NewEncoder(&b)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(ev); err != nil {
		return nil, err
	}
	return b.Bytes(), nil
}

func value(v slog.Value) any {
	if err, ok := v.Any().(error); ok {
		return err.Error()
	}
	return v.Any()
}

func (s *sink) loop() {
	defer close(s.done)
	ticker := time.NewTicker(s.every)
	defer ticker.Stop()

	var buf []byte
	flush := func() {
		if len(buf) == 0 {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if _, err := s.ab.AppendBlock(ctx, readSeekNopCloser{bytes.NewReader(buf)}, nil); err != nil {
			// can't log through slog here without recursing into ourselves
			fmt.Fprintf(os.Stderr, "logsink: failed to append %d bytes: %v\n", len(buf), err)
		}
		buf = buf[:0]
	}

	for {
		select {
		case line, ok := <-s.ch:
			if !ok {
				flush()
				return
			}
			if len(buf)+len(line) > maxBlock {
				flush()
			}
			buf = append(buf, line...)
		case <-ticker.C:
			flush()
		}
	}
}

type readSeekNopCloser struct{ io.ReadSeeker }

func (r readSeekNopCloser) Close() error { return nil }
