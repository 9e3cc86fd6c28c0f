package stream

import (
	"context"
	"encoding/binary"
	"errors"
	"time"
)

// OperatorNameSessionWindow is the operator kind for session-window
// aggregation.
const OperatorNameSessionWindow = "sessionWindowStateStoreSaveExec"

// SessionWindowOperator groups events per key into sessions separated by a
// gap of inactivity. Sessions live in a single store named "default" keyed
// by (key, session start), with the key column as scan prefix so all
// sessions of one key are adjacent.
type SessionWindowOperator struct {
	*BaseOperator
	gap time.Duration
}

// session is the stored per-window state: end of the window and the number
// of events folded into it.
type session struct {
	end   time.Time
	count uint64
}

// NewSessionWindowOperator creates a session-window operator with the given
// inactivity gap.
func NewSessionWindowOperator(id int64, cfg OperatorConfig, gap time.Duration) (*SessionWindowOperator, error) {
	if gap <= 0 {
		return nil, errors.New("session gap must be positive")
	}
	op := &SessionWindowOperator{
		BaseOperator: newBaseOperator(id, OperatorNameSessionWindow, cfg),
		gap:          gap,
	}
	if err := op.addStore("default", 1); err != nil {
		return nil, err
	}
	return op, nil
}

// ProcessBatch folds each event into the key's open session if the event
// falls within the gap, and opens a new session otherwise. Every update
// emits the session's current count.
func (o *SessionWindowOperator) ProcessBatch(ctx context.Context, batch Batch) ([]Event, error) {
	store := o.store("default")
	out := make([]Event, 0, len(batch.Events))

	for _, event := range batch.Events {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		start, sess, found, err := o.findSession(event)
		if err != nil {
			return nil, err
		}
		if found {
			if event.Time.After(sess.end) {
				sess.end = event.Time
			}
			sess.count++
		} else {
			start = event.Time
			sess = session{end: event.Time, count: 1}
		}

		startCol := make([]byte, 8)
		binary.BigEndian.PutUint64(startCol, uint64(start.UnixNano()))
		if err := store.Put([][]byte{event.Key, startCol}, encodeSession(sess)); err != nil {
			return nil, err
		}

		out = append(out, Event{
			Stream: event.Stream,
			Key:    event.Key,
			Value:  encodeCount(sess.count),
			Time:   sess.end,
		})
	}

	o.logger.Debug().Int64("batch_id", batch.ID).Int("events", len(batch.Events)).Msg("processed session batch")
	return out, nil
}

// findSession scans the key's sessions for one whose gap window contains the
// event time.
func (o *SessionWindowOperator) findSession(event Event) (time.Time, session, bool, error) {
	var (
		start time.Time
		sess  session
		found bool
	)
	err := o.store("default").PrefixScan([][]byte{event.Key}, func(cols [][]byte, val []byte) error {
		if len(cols) != 2 || len(cols[1]) != 8 {
			return errors.New("invalid session key in store")
		}
		candidateStart := time.Unix(0, int64(binary.BigEndian.Uint64(cols[1])))
		candidate, err := decodeSession(val)
		if err != nil {
			return err
		}
		if !event.Time.Before(candidateStart) && !event.Time.After(candidate.end.Add(o.gap)) {
			start, sess, found = candidateStart, candidate, true
		}
		return nil
	})
	if err != nil {
		return time.Time{}, session{}, false, err
	}
	return start, sess, found, nil
}

func encodeSession(s session) []byte {
	buf := make([]byte, 16)
	binary.BigEndian.PutUint64(buf[:8], uint64(s.end.UnixNano()))
	binary.BigEndian.PutUint64(buf[8:], s.count)
	return buf
}

func decodeSession(val []byte) (session, error) {
	if len(val) != 16 {
		return session{}, errors.New("invalid session value in store")
	}
	return session{
		end:   time.Unix(0, int64(binary.BigEndian.Uint64(val[:8]))),
		count: binary.BigEndian.Uint64(val[8:]),
	}, nil
}
