package observer

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"

	"github.com/signalsfoundry/drone-delivery-sim/internal/logging"
)

// Journal appends every notification as one JSON line to a zstd stream so
// a run can be replayed or diffed afterwards.
type Journal struct {
	log logging.Logger
	now func() time.Time

	mu     sync.Mutex
	seq    uint64
	enc    *zstd.Encoder
	w      *bufio.Writer
	closer io.Closer
	err    error
}

// NewJournal writes compressed notifications to w. Close flushes the
// stream but does not close w.
func NewJournal(w io.Writer, log logging.Logger) (*Journal, error) {
	if log == nil {
		log = logging.Noop()
	}
	enc, err := zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		return nil, fmt.Errorf("journal: %w", err)
	}
	return &Journal{
		log: log,
		now: time.Now,
		enc: enc,
		w:   bufio.NewWriterSize(enc, 64*1024),
	}, nil
}

// OpenJournal creates (or truncates) the file at path and journals into it.
func OpenJournal(path string, log logging.Logger) (*Journal, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("journal: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("journal: %w", err)
	}
	j, err := NewJournal(f, log)
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	j.closer = f
	return j, nil
}

// Notify implements Sink. The first write error is kept, logged once and
// returned from Close; later notifications are dropped.
func (j *Journal) Notify(agent, message string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.err != nil || j.w == nil {
		return
	}
	j.seq++
	b, err := json.Marshal(Notification{
		Seq:     j.seq,
		Agent:   agent,
		Message: message,
		Time:    j.now().UTC(),
	})
	if err == nil {
		_, err = j.w.Write(append(b, '\n'))
	}
	if err != nil {
		j.err = err
		j.log.Error(context.Background(), "journal write failed", logging.Err(err))
	}
}

// Close flushes buffered lines and finishes the zstd frame.
func (j *Journal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.w == nil {
		return j.err
	}
	err := j.w.Flush()
	if cerr := j.enc.Close(); err == nil {
		err = cerr
	}
	if j.closer != nil {
		if cerr := j.closer.Close(); err == nil {
			err = cerr
		}
	}
	j.w, j.enc, j.closer = nil, nil, nil
	if j.err == nil {
		j.err = err
	}
	return j.err
}

// ReadJournal decodes a stream written by Journal.
func ReadJournal(r io.Reader) ([]Notification, error) {
	dec, err := zstd.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("journal: %w", err)
	}
	defer dec.Close()

	var out []Notification
	sc := bufio.NewScanner(dec)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	for sc.Scan() {
		var n Notification
		if err := json.Unmarshal(sc.Bytes(), &n); err != nil {
			return nil, fmt.Errorf("journal: line %d: %w", len(out)+1, err)
		}
		out = append(out, n)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("journal: %w", err)
	}
	return out, nil
}
