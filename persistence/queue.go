package persistence

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"
)

const (
	DefaultNamespace = "autosearch"

	keyWords = "words"
	keyIndex = "index"
)

// ErrInvalidRecord is returned by Save for a record whose cursor is out of range.
var ErrInvalidRecord = errors.New("invalid record")

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Record is the word batch and the cursor of the next word to serve.
// It is the only state that crosses a page load.
type Record struct {
	Words  []string
	Cursor int
}

// Exhausted reports whether every word of the batch has been served
func (r Record) Exhausted() bool {
	return r.Cursor >= len(r.Words)
}

// Remaining returns how many words are left to serve
func (r Record) Remaining() int {
	if r.Exhausted() {
		return 0
	}
	return len(r.Words) - r.Cursor
}

func (r Record) validate() error {
	if r.Cursor < 0 || r.Cursor > len(r.Words) {
		return fmt.Errorf("%w: cursor %d outside [0, %d]", ErrInvalidRecord, r.Cursor, len(r.Words))
	}
	return nil
}

// Queue persists a Record under the "words" and "index" keys of a namespace
type Queue struct {
	store     *Store
	namespace string
	logger    *zap.Logger
}

// NewQueue creates a queue scoped to namespace. An empty namespace uses DefaultNamespace.
func NewQueue(store *Store, namespace string, logger *zap.Logger) *Queue {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Queue{
		store:     store,
		namespace: namespace,
		logger:    logger.With(zap.String("namespace", namespace)),
	}
}

// Load returns the stored record. ok is false when nothing usable is stored,
// which is a normal result on first run. Unreadable values are treated as
// empty. The only error is ErrStorageUnavailable.
func (q *Queue) Load(ctx context.Context) (rec Record, ok bool, err error) {
	values, err := q.store.getValues(ctx, q.namespace, keyWords, keyIndex)
	if err != nil {
		return Record{}, false, fmt.Errorf("%w: load: %w", ErrStorageUnavailable, err)
	}

	rawWords, found := values[keyWords]
	if !found {
		return Record{}, false, nil
	}

	var words []string
	if err := json.Unmarshal([]byte(rawWords), &words); err != nil {
		q.logger.Warn("Discarding unreadable word batch", zap.Error(err))
		return Record{}, false, nil
	}

	cursor := 0
	if rawIndex, found := values[keyIndex]; found {
		cursor, err = strconv.Atoi(rawIndex)
		if err != nil || cursor < 0 {
			q.logger.Warn("Discarding unreadable cursor", zap.String("index", rawIndex))
			return Record{}, false, nil
		}
	}

	if cursor > len(words) {
		q.logger.Warn("Cursor beyond batch, treating batch as exhausted",
			zap.Int("cursor", cursor), zap.Int("batch_size", len(words)))
		cursor = len(words)
	}

	return Record{Words: words, Cursor: cursor}, true, nil
}

// Save writes the batch and cursor in a single transaction, so a reader never
// sees a batch from one write paired with a cursor from another.
func (q *Queue) Save(ctx context.Context, rec Record) error {
	if err := rec.validate(); err != nil {
		return err
	}

	words := rec.Words
	if words == nil {
		words = []string{}
	}
	encoded, err := json.Marshal(words)
	if err != nil {
		return fmt.Errorf("failed to encode word batch: %w", err)
	}

	err = q.store.setValues(ctx, q.namespace, map[string]string{
		keyWords: string(encoded),
		keyIndex: strconv.Itoa(rec.Cursor),
	})
	if err != nil {
		return fmt.Errorf("%w: save: %w", ErrStorageUnavailable, err)
	}
	return nil
}

// Advance persists the record with its cursor moved past the current word
func (q *Queue) Advance(ctx context.Context, rec Record) (Record, error) {
	if rec.Exhausted() {
		return rec, fmt.Errorf("%w: advance past end of batch", ErrInvalidRecord)
	}
	next := Record{Words: rec.Words, Cursor: rec.Cursor + 1}
	if err := q.Save(ctx, next); err != nil {
		return rec, err
	}
	return next, nil
}

// Clear resets the queue to empty
func (q *Queue) Clear(ctx context.Context) error {
	if err := q.store.deleteValues(ctx, q.namespace, keyWords, keyIndex); err != nil {
		return fmt.Errorf("%w: clear: %w", ErrStorageUnavailable, err)
	}
	return nil
}
