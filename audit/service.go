package audit

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	sentinel_errors "github.com/hearthguard/sentinel/errors"
	logger "github.com/hearthguard/sentinel/logging"
)

// Service is the only writer of audit storage. Append must be called before
// the triggering operation reports success.
type Service interface {
	Append(ctx context.Context, recordType RecordType, principalID string, payload interface{}) (Record, error)
	Export(ctx context.Context, filter Filter) ([]Record, error)
	Verify(ctx context.Context) (VerifyResult, error)
}

// Log is the hash-chained audit log. Appends are serialized under a single
// mutex so sequencing and chaining are never racy; a repository write error
// aborts the append entirely (fail closed).
type Log struct {
	mu       sync.Mutex
	records  []Record
	lastHash string
	seq      uint64
	repos    []Repository
}

func NewLog(repos ...Repository) *Log {
	return &Log{repos: repos}
}

// Reload rehydrates the chain state from the primary repository. It must run
// before the first Append when the repository already holds records;
// otherwise a restarted process would reissue sequence numbers from 1 and
// break the chain across the persisted segments.
func (l *Log) Reload(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if len(l.repos) == 0 {
		return nil
	}
	records, err := l.repos[0].Query(ctx, Filter{})
	if err != nil {
		return fmt.Errorf("reload audit log: %w", err)
	}
	l.records = records
	if n := len(records); n > 0 {
		l.seq = records[n-1].Sequence
		l.lastHash = records[n-1].Hash
	}
	return nil
}

// ChainHash computes the chained digest for a record: sha256(prevHash || payload).
func ChainHash(prevHash string, payload []byte) string {
	h := sha256.New()
	h.Write([]byte(prevHash))
	h.Write(payload)
	return hex.EncodeToString(h.Sum(nil))
}

func (l *Log) Append(ctx context.Context, recordType RecordType, principalID string, payload interface{}) (Record, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return Record{}, fmt.Errorf("%w: marshal payload: %v", sentinel_errors.ErrAuditWriteFailed, err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	rec := Record{
		Sequence:    l.seq + 1,
		Type:        recordType,
		PrincipalID: principalID,
		Timestamp:   time.Now().UTC(),
		Payload:     body,
		PrevHash:    l.lastHash,
		Hash:        ChainHash(l.lastHash, body),
	}

	for _, repo := range l.repos {
		if err := repo.Store(ctx, rec); err != nil {
			logger.Error("Audit repository write failed",
				zap.Error(err),
				zap.Uint64("sequence", rec.Sequence),
				zap.String("type", string(recordType)))
			return Record{}, fmt.Errorf("%w: %v", sentinel_errors.ErrAuditWriteFailed, err)
		}
	}

	l.records = append(l.records, rec)
	l.seq = rec.Sequence
	l.lastHash = rec.Hash
	return rec, nil
}

// Export returns matching records in sequence order.
func (l *Log) Export(ctx context.Context, filter Filter) ([]Record, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]Record, 0, len(l.records))
	for _, rec := range l.records {
		if filter.matches(rec) {
			out = append(out, rec)
		}
	}
	return out, nil
}

// Verify recomputes the chain from the first record. Any altered payload or
// broken link shows up at the first divergent sequence.
func (l *Log) Verify(ctx context.Context) (VerifyResult, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	prev := ""
	if len(l.records) > 0 {
		// after an archive sweep the chain base is the last archived hash,
		// carried in the first hot record's PrevHash
		prev = l.records[0].PrevHash
	}
	for _, rec := range l.records {
		if rec.PrevHash != prev || rec.Hash != ChainHash(prev, rec.Payload) {
			return VerifyResult{Valid: false, Records: len(l.records), FirstBadSequence: rec.Sequence}, nil
		}
		prev = rec.Hash
	}
	return VerifyResult{Valid: true, Records: len(l.records)}, nil
}

// SegmentTrimmer is implemented by repositories whose storage is
// date-segmented and can discard whole segments past a cutoff day.
type SegmentTrimmer interface {
	TrimSegmentsBefore(ctx context.Context, cutoff time.Time) error
}

// ArchiveExpired moves records older than the retention cutoff into the
// archive repository and drops them from the hot log, memory and segment
// files both. The cutoff is truncated to a UTC day boundary so archival and
// segment removal always agree; records inside the retention window are
// never touched. The chain survives the trim: the first remaining record
// still carries the last archived hash in PrevHash.
func (l *Log) ArchiveExpired(ctx context.Context, cutoff time.Time, archive Repository) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff = cutoff.UTC().Truncate(24 * time.Hour)

	expired := 0
	for _, rec := range l.records {
		if !rec.Timestamp.Before(cutoff) {
			break // records are in timestamp order
		}
		expired++
	}
	if expired == len(l.records) {
		// the newest record anchors seq and lastHash across restarts
		expired--
	}
	if expired <= 0 {
		return 0, nil
	}

	for i := 0; i < expired; i++ {
		if err := archive.Store(ctx, l.records[i]); err != nil {
			return i, fmt.Errorf("archive record %d: %w", l.records[i].Sequence, err)
		}
	}

	trimCutoff := l.records[expired].Timestamp.UTC().Truncate(24 * time.Hour)
	if cutoff.Before(trimCutoff) {
		trimCutoff = cutoff
	}
	l.records = append([]Record(nil), l.records[expired:]...)
	for _, repo := range l.repos {
		trimmer, ok := repo.(SegmentTrimmer)
		if !ok {
			continue
		}
		if err := trimmer.TrimSegmentsBefore(ctx, trimCutoff); err != nil {
			return expired, fmt.Errorf("trim archived segments: %w", err)
		}
	}
	return expired, nil
}
