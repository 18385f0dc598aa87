package dlq

import (
	"context"
	"encoding/json"

	"github.com/greentic/messaging/pkg/bus"
	"github.com/greentic/messaging/pkg/subject"
)

// ReplayResult reports the outcome of replaying one entry. Err is nil when
// the entry was republished and removed.
type ReplayResult struct {
	Entry Entry
	Err   error
}

// Replay re-publishes up to limit entries for (tenant, stage) onto the
// target stage's work subject, removing each entry on success. A failing
// entry is reported in its result and does not abort its siblings.
func Replay(ctx context.Context, store Store, publisher bus.Publisher, tenant, stage, target string, limit int) ([]ReplayResult, error) {
	entries, err := store.List(ctx, tenant, stage, limit)
	if err != nil {
		return nil, err
	}

	subj := subject.Egress(tenant, target)
	results := make([]ReplayResult, 0, len(entries))
	for _, entry := range entries {
		res := ReplayResult{Entry: entry}
		if err := publisher.Publish(ctx, subj, json.RawMessage(entry.Record.Envelope)); err != nil {
			res.Err = err
		} else if err := store.Delete(ctx, entry.Sequence); err != nil {
			res.Err = err
		}
		results = append(results, res)
	}
	return results, nil
}
