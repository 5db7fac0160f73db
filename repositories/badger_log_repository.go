package repositories

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	"logserver/codec"
	"logserver/contract"
	"logserver/domain"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
)

var _ contract.EventStore = (*BadgerLogRepository)(nil)

// BadgerLogRepository is the embedded alternative to the SQL table. The table
// name becomes the key prefix.
type BadgerLogRepository struct {
	db     *badger.DB
	prefix string
	log    *slog.Logger
}

func OpenBadgerLogRepository(path, table string, log *slog.Logger) (*BadgerLogRepository, error) {
	if err := ValidateTableName(table); err != nil {
		return nil, err
	}
	db, err := badger.Open(badger.DefaultOptions(path).WithLoggingLevel(badger.WARNING))
	if err != nil {
		return nil, fmt.Errorf("database opening failed: %w", err)
	}
	return NewBadgerLogRepository(db, table, log), nil
}

func NewBadgerLogRepository(db *badger.DB, table string, log *slog.Logger) *BadgerLogRepository {
	return &BadgerLogRepository{db: db, prefix: table + ":", log: log}
}

func (b *BadgerLogRepository) Probe(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if b.db.IsClosed() {
		return fmt.Errorf("probing badger: database closed")
	}
	return b.db.View(func(txn *badger.Txn) error { return nil })
}

// Insert stores e under "{table}:{timestamp_padded}:{uuid}" so a prefix scan
// returns events in time order and identical timestamps never collide.
func (b *BadgerLogRepository) Insert(ctx context.Context, e domain.Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	key := fmt.Sprintf("%s%019d:%s", b.prefix, e.Timestamp.UnixNano(), uuid.New())
	value, err := codec.Marshal(e)
	if err != nil {
		return err
	}
	return b.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), value)
	})
}

// List returns the latest limit events in time order; limit <= 0 means all.
// Keys are walked newest first and the result is flipped back.
func (b *BadgerLogRepository) List(limit int) ([]domain.Event, error) {
	var events []domain.Event
	err := b.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Reverse = true
		it := txn.NewIterator(opts)
		defer it.Close()
		prefix := []byte(b.prefix)
		for it.Seek(append([]byte(b.prefix), 0xff)); it.ValidForPrefix(prefix); it.Next() {
			if limit > 0 && len(events) == limit {
				break
			}
			err := it.Item().Value(func(val []byte) error {
				e, err := codec.Unmarshal(val)
				if err != nil {
					return err
				}
				events = append(events, e)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	slices.Reverse(events)
	return events, err
}

func (b *BadgerLogRepository) Close() error {
	return b.db.Close()
}
