package dlq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/greentic/messaging/pkg/bus"
	"github.com/greentic/messaging/pkg/subject"
)

// StreamStore is the JetStream-backed Store. Records are appended to the DLQ
// stream under their dead-letter subject; stream sequences are the entry ids.
type StreamStore struct {
	js     jetstream.JetStream
	stream jetstream.Stream
}

// NewStreamStore ensures the DLQ stream exists and binds a store to it.
func NewStreamStore(ctx context.Context, js jetstream.JetStream) (*StreamStore, error) {
	stream, err := bus.EnsureDLQStream(ctx, js)
	if err != nil {
		return nil, fmt.Errorf("ensure dlq stream: %w", err)
	}
	return &StreamStore{js: js, stream: stream}, nil
}

// Append publishes the record to its dead-letter subject.
func (s *StreamStore) Append(ctx context.Context, rec Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encoding dlq record: %w", err)
	}
	if _, err := s.js.Publish(ctx, rec.Subject(), data); err != nil {
		return fmt.Errorf("appending dlq record: %w", err)
	}
	return nil
}

// List walks the stream from the newest sequence down, collecting entries
// whose subject matches the tenant and stage.
func (s *StreamStore) List(ctx context.Context, tenant, stage string, limit int) ([]Entry, error) {
	info, err := s.stream.Info(ctx)
	if err != nil {
		return nil, fmt.Errorf("dlq stream info: %w", err)
	}

	var out []Entry
	for seq := info.State.LastSeq; seq >= info.State.FirstSeq && seq > 0; seq-- {
		if limit > 0 && len(out) >= limit {
			break
		}
		raw, err := s.stream.GetMsg(ctx, seq)
		if err != nil {
			if errors.Is(err, jetstream.ErrMsgNotFound) {
				// Deleted (replayed) entries leave sequence gaps.
				continue
			}
			return nil, fmt.Errorf("dlq get msg %d: %w", seq, err)
		}
		if !subjectMatches(raw.Subject, tenant, stage) {
			continue
		}
		entry, err := decodeEntry(seq, raw.Data)
		if err != nil {
			return nil, err
		}
		out = append(out, *entry)
	}
	return out, nil
}

// Get returns the entry stored at a stream sequence.
func (s *StreamStore) Get(ctx context.Context, sequence uint64) (*Entry, error) {
	raw, err := s.stream.GetMsg(ctx, sequence)
	if err != nil {
		if errors.Is(err, jetstream.ErrMsgNotFound) {
			return nil, fmt.Errorf("sequence %d: %w", sequence, ErrNotFound)
		}
		return nil, fmt.Errorf("dlq get msg %d: %w", sequence, err)
	}
	return decodeEntry(sequence, raw.Data)
}

// Delete removes the entry at a stream sequence.
func (s *StreamStore) Delete(ctx context.Context, sequence uint64) error {
	if err := s.stream.DeleteMsg(ctx, sequence); err != nil {
		if errors.Is(err, jetstream.ErrMsgNotFound) {
			return fmt.Errorf("sequence %d: %w", sequence, ErrNotFound)
		}
		return fmt.Errorf("dlq delete msg %d: %w", sequence, err)
	}
	return nil
}

func decodeEntry(seq uint64, data []byte) (*Entry, error) {
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("decoding dlq record %d: %w", seq, err)
	}
	return &Entry{Sequence: seq, Record: rec}, nil
}

// subjectMatches checks a DLQ subject against tenant and stage, accepting
// either direction token.
func subjectMatches(subj, tenant, stage string) bool {
	rest, ok := strings.CutPrefix(subj, subject.DLQPrefix+".")
	if !ok {
		return false
	}
	parts := strings.Split(rest, ".")
	if len(parts) != 3 {
		return false
	}
	return parts[1] == subject.Normalize(tenant) && parts[2] == subject.Normalize(stage)
}
