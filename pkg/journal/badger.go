package journal

import (
	"context"
	"errors"
	"iter"
	"log"

	badger "github.com/dgraph-io/badger/v4"
)

// Badger is a Journal backed by BadgerDB v4.
type Badger struct {
	db *badger.DB
}

// BadgerOptions configures the badger-backed journal.
type BadgerOptions struct {
	// Dir is the data directory. Required unless InMemory.
	Dir string

	// InMemory runs badger without disk persistence, for tests that want
	// the real engine.
	InMemory bool

	// Logger overrides badger's logger. The default suppresses info and
	// debug output.
	Logger badger.Logger
}

// OpenBadger opens a badger-backed journal.
func OpenBadger(opts BadgerOptions) (*Badger, error) {
	if !opts.InMemory && opts.Dir == "" {
		return nil, errors.New("journal: BadgerOptions.Dir is required for on-disk mode")
	}
	dbOpts := badger.DefaultOptions(opts.Dir)
	if opts.InMemory {
		dbOpts = dbOpts.WithInMemory(true)
	}
	if opts.Logger != nil {
		dbOpts = dbOpts.WithLogger(opts.Logger)
	} else {
		dbOpts = dbOpts.WithLogger(quietLogger{})
	}
	db, err := badger.Open(dbOpts)
	if err != nil {
		return nil, err
	}
	return &Badger{db: db}, nil
}

// Append implements Journal.
func (j *Badger) Append(_ context.Context, rec *Record) error {
	val, err := encodeRecord(rec)
	if err != nil {
		return err
	}
	return j.db.Update(func(txn *badger.Txn) error {
		return txn.Set(recordKey(rec), val)
	})
}

// ByBook implements Journal.
func (j *Badger) ByBook(_ context.Context, bookID string) iter.Seq2[*Record, error] {
	return j.scan(bookPrefix(bookID))
}

// All implements Journal.
func (j *Badger) All(_ context.Context) iter.Seq2[*Record, error] {
	return j.scan(bookPrefix(""))
}

func (j *Badger) scan(prefix []byte) iter.Seq2[*Record, error] {
	return func(yield func(*Record, error) bool) {
		err := j.db.View(func(txn *badger.Txn) error {
			iterOpts := badger.DefaultIteratorOptions
			iterOpts.Prefix = prefix
			it := txn.NewIterator(iterOpts)
			defer it.Close()

			for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
				val, err := it.Item().ValueCopy(nil)
				if err != nil {
					if !yield(nil, err) {
						return nil
					}
					continue
				}
				rec, err := decodeRecord(val)
				if !yield(rec, err) {
					return nil
				}
			}
			return nil
		})
		if err != nil {
			yield(nil, err)
		}
	}
}

func (j *Badger) Close() error {
	return j.db.Close()
}

// quietLogger forwards badger errors and warnings to the standard logger and
// drops the rest.
type quietLogger struct{}

func (quietLogger) Errorf(f string, v ...interface{})   { log.Printf("[journal] ERROR: "+f, v...) }
func (quietLogger) Warningf(f string, v ...interface{}) { log.Printf("[journal] WARN: "+f, v...) }
func (quietLogger) Infof(string, ...interface{})        {}
func (quietLogger) Debugf(string, ...interface{})       {}
