// Package snapshot drives camera image acquisition: request a snapshot,
// wait for the remote rendering pipeline, download the image, and persist
// it under the image directory.
package snapshot

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/h2non/filetype"

	"sophia/internal/domain"
	"sophia/internal/meraki"
)

// State is one phase of a snapshot request's lifecycle. Transitions only
// move forward; Persisted and Failed are terminal.
type State string

const (
	StateRequested         State = "requested"
	StateAwaitingReadiness State = "awaiting_readiness"
	StateDownloading       State = "downloading"
	StatePersisted         State = "persisted"
	StateFailed            State = "failed"
)

// Generator is the single remote capability the workflow needs from the
// fleet client.
type Generator interface {
	GenerateSnapshot(ctx context.Context, serial string) (*meraki.SnapshotLink, error)
}

// Request tracks one snapshot acquisition from request to terminal state.
type Request struct {
	ID          string
	Serial      string
	TargetName  string
	State       State
	SnapshotURL string
	LocalPath   string
	Err         error

	trail []State // every state entered, in order
}

// Trail returns every state the request entered, in order.
func (r *Request) Trail() []State {
	out := make([]State, len(r.trail))
	copy(out, r.trail)
	return out
}

func (r *Request) advance(s State) {
	r.State = s
	r.trail = append(r.trail, s)
}

func (r *Request) fail(err error) *Request {
	r.Err = fmt.Errorf("snapshot %s (camera %s): %w", r.TargetName, r.Serial, err)
	r.advance(StateFailed)
	return r
}

// Config tunes the workflow's waits and persistence.
type Config struct {
	ImageDir     string
	SettleDelay  time.Duration // wait before the first fetch attempt
	PollInterval time.Duration // initial poll interval after the settle delay
	MaxInterval  time.Duration // backoff cap between polls
	Deadline     time.Duration // overall budget per capture
	UserAgent    string
}

// DefaultConfig returns the workflow defaults. The settle delay mirrors how
// long the rendering pipeline usually needs; it is a tunable, not a
// guarantee, which is why the fetch polls afterwards instead of trusting it.
func DefaultConfig() Config {
	return Config{
		ImageDir:     "camera_images",
		SettleDelay:  10 * time.Second,
		PollInterval: 2 * time.Second,
		MaxInterval:  15 * time.Second,
		Deadline:     90 * time.Second,
		UserAgent:    "Mozilla/5.0 (compatible; sophia-fleet-assistant)",
	}
}

// FromDomain converts the persisted config into a Config, falling back to
// defaults for non-positive fields.
func FromDomain(sc domain.SnapshotConfig) Config {
	cfg := DefaultConfig()
	if sc.ImageDir != "" {
		cfg.ImageDir = sc.ImageDir
	}
	if sc.SettleDelayMS > 0 {
		cfg.SettleDelay = time.Duration(sc.SettleDelayMS) * time.Millisecond
	}
	if sc.PollIntervalMS > 0 {
		cfg.PollInterval = time.Duration(sc.PollIntervalMS) * time.Millisecond
	}
	if sc.MaxIntervalMS > 0 {
		cfg.MaxInterval = time.Duration(sc.MaxIntervalMS) * time.Millisecond
	}
	if sc.DeadlineSeconds > 0 {
		cfg.Deadline = time.Duration(sc.DeadlineSeconds) * time.Second
	}
	return cfg
}

// sleepFn is the cancellable delay used between workflow phases; tests
// replace it to run captures instantly.
var sleepFn = func(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Workflow captures camera snapshots. Stateless between captures; each
// Capture owns its Request.
type Workflow struct {
	generator Generator
	http      *http.Client
	cfg       Config
	logger    *slog.Logger
}

// NewWorkflow returns a Workflow using the given snapshot generator.
// Generator must not be nil.
func NewWorkflow(g Generator, cfg Config, logger *slog.Logger) *Workflow {
	if g == nil {
		panic("snapshot: generator must not be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Workflow{
		generator: g,
		http:      &http.Client{Timeout: 30 * time.Second},
		cfg:       cfg,
		logger:    logger,
	}
}

// Capture runs the full acquisition for one camera:
// Requested → AwaitingReadiness → Downloading → Persisted | Failed.
// The returned Request is always in a terminal state; capture failures are
// recorded on it, never raised, so a failing camera cannot abort the
// caller's conversation.
func (w *Workflow) Capture(ctx context.Context, serial, displayName string) *Request {
	req := &Request{
		ID:         uuid.NewString(),
		Serial:     serial,
		TargetName: meraki.SanitizeName(displayName),
	}
	req.advance(StateRequested)

	link, err := w.generator.GenerateSnapshot(ctx, serial)
	if err != nil {
		return req.fail(err)
	}
	req.SnapshotURL = link.URL

	req.advance(StateAwaitingReadiness)
	resp, cancel, err := w.awaitImage(ctx, link.URL)
	if err != nil {
		return req.fail(err)
	}

	req.advance(StateDownloading)
	data, err := w.download(resp)
	cancel()
	if err != nil {
		return req.fail(err)
	}

	path, err := w.persist(req.TargetName, data)
	if err != nil {
		return req.fail(err)
	}
	req.LocalPath = path
	req.advance(StatePersisted)
	w.logger.Info("snapshot persisted", "camera", serial, "path", path)
	return req
}

// notReadyStatus reports whether a fetch status means the image is still
// rendering. The snapshot CDN answers 404 (and sometimes 403) until the
// image exists.
func notReadyStatus(code int) bool {
	return code == http.StatusNotFound || code == http.StatusForbidden || code == http.StatusAccepted
}

// awaitImage waits the settle delay, then polls url with capped exponential
// backoff under the overall deadline. On success the ready response and a
// cancel func are returned; the caller owns the body and must call cancel
// once done reading it.
func (w *Workflow) awaitImage(ctx context.Context, url string) (*http.Response, context.CancelFunc, error) {
	ctx, cancel := context.WithTimeout(ctx, w.cfg.Deadline)
	if err := sleepFn(ctx, w.cfg.SettleDelay); err != nil {
		cancel()
		return nil, nil, err
	}

	interval := w.cfg.PollInterval
	for {
		resp, err := w.fetch(ctx, url)
		if err != nil {
			cancel()
			return nil, nil, err
		}
		if resp.StatusCode >= 200 && resp.StatusCode <= 299 {
			return resp, cancel, nil
		}
		resp.Body.Close()
		if !notReadyStatus(resp.StatusCode) {
			cancel()
			return nil, nil, fmt.Errorf("image fetch failed: status %d %s", resp.StatusCode, http.StatusText(resp.StatusCode))
		}
		w.logger.Debug("snapshot not ready yet", "status", resp.StatusCode, "next_poll", interval)
		if err := sleepFn(ctx, interval); err != nil {
			cancel()
			return nil, nil, fmt.Errorf("image never became ready: %w", err)
		}
		interval *= 2
		if interval > w.cfg.MaxInterval {
			interval = w.cfg.MaxInterval
		}
	}
}

func (w *Workflow) fetch(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("image request: %w", err)
	}
	req.Header.Set("User-Agent", w.cfg.UserAgent)
	resp, err := w.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("image fetch: %w", err)
	}
	return resp, nil
}

// download reads the response body and verifies the bytes are an image
// before they ever touch disk.
func (w *Workflow) download(resp *http.Response) ([]byte, error) {
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("image read: %w", err)
	}
	if !filetype.IsImage(data) {
		return nil, fmt.Errorf("download is not an image (%d bytes)", len(data))
	}
	return data, nil
}

// persist writes the image under the image directory, creating it if
// absent. Repeat captures of the same name overwrite.
func (w *Workflow) persist(name string, data []byte) (string, error) {
	if err := os.MkdirAll(w.cfg.ImageDir, 0755); err != nil {
		return "", fmt.Errorf("image dir: %w", err)
	}
	path := filepath.Join(w.cfg.ImageDir, filepath.Base(name)+".jpg")
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("image write: %w", err)
	}
	return path, nil
}
