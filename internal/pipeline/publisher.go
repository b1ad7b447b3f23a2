package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"github.com/dgallion1/docxref/internal/pathstore"
	"github.com/dgallion1/docxref/internal/xref"
)

// Publisher collects engine progress records and writes them to the
// pathstore under xref/builds/<build id>/. Records are buffered per build
// and written by Flush so a pass never waits on the network.
type Publisher struct {
	ps  *pathstore.Client
	log *slog.Logger

	mu      sync.Mutex
	pending map[string][]record
}

type record struct {
	key   string
	value any
}

// NewPublisher returns a publisher writing through ps. A nil client turns
// every call into a no-op.
func NewPublisher(ps *pathstore.Client, log *slog.Logger) *Publisher {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Publisher{ps: ps, log: log, pending: make(map[string][]record)}
}

// Report implements xref.Reporter.
func (p *Publisher) Report(buildID, kind string, v any) {
	if p == nil || p.ps == nil {
		return
	}
	key := BuildPrefix(buildID) + "/" + kind
	if r, ok := v.(xref.LinkResult); ok {
		key = LinkKey(buildID, r.Target)
	}
	p.mu.Lock()
	p.pending[buildID] = append(p.pending[buildID], record{key: key, value: v})
	p.mu.Unlock()
}

// Flush writes the buffered records of one build. Failures are logged and
// counted, never returned: status publishing must not fail a build.
func (p *Publisher) Flush(ctx context.Context, buildID string) (written, failed int) {
	if p == nil || p.ps == nil {
		return 0, 0
	}
	p.mu.Lock()
	recs := p.pending[buildID]
	delete(p.pending, buildID)
	p.mu.Unlock()

	for _, rec := range recs {
		if err := p.put(ctx, buildID, rec); err != nil {
			p.log.Warn("status publish failed", "build_id", buildID, "key", rec.key, "error", err)
			failed++
			continue
		}
		written++
	}
	return written, failed
}

func (p *Publisher) put(ctx context.Context, buildID string, rec record) error {
	req := pathstore.NodeRequest{
		Value:  rec.value,
		Source: "docxref:" + buildID,
	}
	var err error
	for attempt := range MaxRetries {
		err = p.ps.PutNode(ctx, rec.key, req)
		if err == nil || !IsRetryable(err) {
			return err
		}
		p.log.Debug("retryable publish error", "key", rec.key, "attempt", attempt, "error", err)
		select {
		case <-time.After(Backoff(attempt)):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return fmt.Errorf("after %d attempts: %w", MaxRetries, err)
}

// Forget drops a build's published records and anything still buffered.
func (p *Publisher) Forget(ctx context.Context, buildID string) error {
	if p == nil || p.ps == nil {
		return nil
	}
	p.mu.Lock()
	delete(p.pending, buildID)
	p.mu.Unlock()
	return p.ps.DeleteNode(ctx, BuildPrefix(buildID), true)
}

// BuildPrefix is the pathstore key under which a build's records live.
func BuildPrefix(buildID string) string {
	return "xref/builds/" + buildID
}

// LinkKey is the pathstore key of one link's result. Each label maps to
// its own key; links without a target share one.
func LinkKey(buildID, target string) string {
	if target == "" {
		return BuildPrefix(buildID) + "/untargeted"
	}
	return BuildPrefix(buildID) + "/links/" + url.PathEscape(target)
}
