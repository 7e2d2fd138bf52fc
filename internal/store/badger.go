package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"

	badger "github.com/dgraph-io/badger/v4"

	"github.com/abrezinsky/votosafe/internal/logger"
)

// maxConflictRetries bounds optimistic transaction retries on write conflicts.
// Writers in this process are serialized, so a conflict can only come from
// a read-write transaction opened outside Update.
const maxConflictRetries = 5

// Badger stores keys in a badger database. An empty dir keeps everything in memory.
// Every collection lives under a few hot keys, so writers take writeMu
// instead of racing optimistic transactions against each other.
type Badger struct {
	db      *badger.DB
	writeMu sync.Mutex
}

var _ Store = (*Badger)(nil)

func NewBadger(dir string, log logger.Logger) (*Badger, error) {
	var opts badger.Options
	if dir == "" {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create data dir: %w", err)
		}
		opts = badger.DefaultOptions(dir)
	}
	opts = opts.WithLoggingLevel(badger.WARNING)
	if log != nil {
		opts = opts.WithLogger(badgerLogger{log: log.With("component", "badger")})
	} else {
		opts = opts.WithLogger(nil)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}
	return &Badger{db: db}, nil
}

func (b *Badger) Close() error {
	return b.db.Close()
}

func (b *Badger) Ping(ctx context.Context) error {
	if b.db.IsClosed() {
		return errors.New("badger: database closed")
	}
	return ctx.Err()
}

func (b *Badger) View(ctx context.Context, fn func(Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return b.db.View(func(txn *badger.Txn) error {
		return fn(&badgerTx{txn: txn})
	})
}

func (b *Badger) Update(ctx context.Context, fn func(Tx) error) error {
	b.writeMu.Lock()
	defer b.writeMu.Unlock()

	var err error
	for range maxConflictRetries {
		if err = ctx.Err(); err != nil {
			return err
		}
		err = b.db.Update(func(txn *badger.Txn) error {
			return fn(&badgerTx{txn: txn})
		})
		if !errors.Is(err, badger.ErrConflict) {
			return err
		}
	}
	return err
}

type badgerTx struct {
	txn *badger.Txn
}

func (t *badgerTx) Get(key string) ([]byte, error) {
	item, err := t.txn.Get([]byte(key))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return item.ValueCopy(nil)
}

func (t *badgerTx) Set(key string, value []byte) error {
	return t.txn.Set([]byte(key), value)
}

func (t *badgerTx) Delete(key string) error {
	return t.txn.Delete([]byte(key))
}

func (t *badgerTx) Keys(prefix string) ([]string, error) {
	opts := badger.DefaultIteratorOptions
	opts.PrefetchValues = false
	opts.Prefix = []byte(prefix)

	it := t.txn.NewIterator(opts)
	defer it.Close()

	var keys []string
	for it.Rewind(); it.Valid(); it.Next() {
		keys = append(keys, string(it.Item().KeyCopy(nil)))
	}
	return keys, nil
}

// badgerLogger routes badger's printf-style logging into our logger
type badgerLogger struct {
	log logger.Logger
}

func (l badgerLogger) Errorf(format string, args ...any) {
	l.log.Error(fmt.Sprintf(format, args...))
}

func (l badgerLogger) Warningf(format string, args ...any) {
	l.log.Warn(fmt.Sprintf(format, args...))
}

func (l badgerLogger) Infof(format string, args ...any) {
	l.log.Info(fmt.Sprintf(format, args...))
}

func (l badgerLogger) Debugf(format string, args ...any) {
	l.log.Debug(fmt.Sprintf(format, args...))
}
