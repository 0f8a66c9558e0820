package autoindex

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

// ReindexEvent is the lightweight internal event published when a
// project's debounced change burst settles. The watcher resolves paths
// down to a project root before publishing.
type ReindexEvent struct {
	Project string `json:"project"`
	Path    string `json:"path"`
}

// subjectPrefix namespaces reindex events under a single
// wildcard-subscribable root.
const subjectPrefix = "ctxengine.reindex"

// Publisher publishes ReindexEvents to an in-process NATS connection,
// decoupling the watcher from whatever subscribes to reindex events (the
// indexer, and potentially a future metrics listener). Publishing is
// best-effort: a publish failure is logged, never returned to the caller,
// since trigger_reindex() must keep working as a direct synchronous call
// regardless of bus health.
type Publisher struct {
	nc     *nats.Conn
	logger *zap.Logger
}

// NewPublisher wraps an established NATS connection. nc must not be nil.
func NewPublisher(nc *nats.Conn, logger *zap.Logger) *Publisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Publisher{nc: nc, logger: logger}
}

// Publish sends ev on the reindex subject. Errors are logged, not
// returned: the bus is ambient plumbing, not the primary reindex path.
func (p *Publisher) Publish(ctx context.Context, ev ReindexEvent) {
	if p == nil || p.nc == nil {
		return
	}
	body, err := json.Marshal(ev)
	if err != nil {
		p.logger.Warn("autoindex: failed to marshal reindex event", zap.Error(err))
		return
	}
	if err := p.nc.Publish(subjectPrefix+"."+ev.Project, body); err != nil {
		p.logger.Warn("autoindex: failed to publish reindex event", zap.Error(err), zap.String("project", ev.Project))
	}
}

// Subscribe registers handler for every reindex event published across all
// projects (a wildcard subscription on subjectPrefix.*), returning the
// underlying subscription so callers can Unsubscribe on shutdown.
func Subscribe(nc *nats.Conn, handler func(ReindexEvent)) (*nats.Subscription, error) {
	sub, err := nc.Subscribe(subjectPrefix+".*", func(msg *nats.Msg) {
		var ev ReindexEvent
		if err := json.Unmarshal(msg.Data, &ev); err != nil {
			return
		}
		handler(ev)
	})
	if err != nil {
		return nil, fmt.Errorf("subscribing to reindex events: %w", err)
	}
	return sub, nil
}
