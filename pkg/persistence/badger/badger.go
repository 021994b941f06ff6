// Package badger provides embedded key-value persistence on BadgerDB. Records are stored as
// JSON documents under "<kind>/<id>" keys.
package badger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Stefan/orka-ppm-sub007/pkg/models"
	"github.com/Stefan/orka-ppm-sub007/pkg/persistence"
	badgerdb "github.com/dgraph-io/badger/v3"
	json "github.com/goccy/go-json"
)

const (
	definitionPrefix = "definition/"
	instancePrefix   = "instance/"
	approvalPrefix   = "approval/"
)

// Persistence implements the persistence.Persistence interface on a Badger database.
type Persistence struct {
	db             *badgerdb.DB
	definitionRepo *DefinitionRepository
	instanceRepo   *InstanceRepository
	approvalRepo   *ApprovalRepository
}

// NewPersistence opens the database at dir. A "badger://" prefix is stripped; an empty
// dir opens an in-memory database.
func NewPersistence(logger *slog.Logger, dir string) (*Persistence, error) {
	dir = strings.Replace(dir, "badger://", "", 1)

	opts := badgerdb.DefaultOptions(dir).WithLoggingLevel(badgerdb.ERROR)
	if dir == "" {
		opts = opts.WithInMemory(true)
	}

	db, err := badgerdb.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger database %q: %w", dir, err)
	}

	logger.With("module", "badger").Info("Opened badger database", "dir", dir, "in_memory", dir == "")

	return NewPersistenceFromDB(db), nil
}

// NewPersistenceFromDB wraps an already opened database.
func NewPersistenceFromDB(db *badgerdb.DB) *Persistence {
	kv := &kvStore{db: db}

	return &Persistence{
		db:             db,
		definitionRepo: &DefinitionRepository{kv: kv},
		instanceRepo:   &InstanceRepository{kv: kv},
		approvalRepo:   &ApprovalRepository{kv: kv},
	}
}

func (p *Persistence) Close(_ context.Context) error {
	err := p.db.Close()
	if err != nil {
		return fmt.Errorf("failed to close badger database: %w", err)
	}

	return nil
}

func (p *Persistence) HealthCheck(_ context.Context) error {
	if p.db.IsClosed() {
		return errors.New("badger database is closed")
	}

	return p.db.View(func(_ *badgerdb.Txn) error { return nil })
}

func (p *Persistence) DefinitionRepository() persistence.DefinitionRepository {
	return p.definitionRepo
}

func (p *Persistence) InstanceRepository() persistence.InstanceRepository {
	return p.instanceRepo
}

func (p *Persistence) ApprovalRepository() persistence.ApprovalRepository {
	return p.approvalRepo
}

// SaveInstanceState writes the instance and its approvals in a single transaction.
func (p *Persistence) SaveInstanceState(
	_ context.Context,
	instance *models.WorkflowInstance,
	approvals []*models.Approval,
) error {
	instance.UpdatedAt = time.Now().UTC()

	entries := make(map[string]any, len(approvals)+1)
	entries[instancePrefix+instance.ID] = instance

	for _, approval := range approvals {
		entries[approvalPrefix+approval.ID] = approval
	}

	err := p.instanceRepo.kv.put(entries)
	if err != nil {
		return persistence.NewRecordError("SaveInstanceState", "instance", instance.ID, err)
	}

	return nil
}

type kvStore struct {
	db *badgerdb.DB
}

// get decodes the value at key into out and reports whether the key exists.
func (s *kvStore) get(key string, out any) (bool, error) {
	var found bool

	err := s.db.View(func(txn *badgerdb.Txn) error {
		item, err := txn.Get([]byte(key))
		if errors.Is(err, badgerdb.ErrKeyNotFound) {
			return nil
		}

		if err != nil {
			return err
		}

		found = true

		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, out)
		})
	})
	if err != nil {
		return false, fmt.Errorf("failed to read %s: %w", key, err)
	}

	return found, nil
}

// put writes every entry in one transaction.
func (s *kvStore) put(entries map[string]any) error {
	return s.db.Update(func(txn *badgerdb.Txn) error {
		for key, value := range entries {
			data, err := json.Marshal(value)
			if err != nil {
				return fmt.Errorf("failed to marshal %s: %w", key, err)
			}

			err = txn.Set([]byte(key), data)
			if err != nil {
				return fmt.Errorf("failed to write %s: %w", key, err)
			}
		}

		return nil
	})
}

// scan decodes every value under prefix and hands it to visit.
func scan[T any](s *kvStore, prefix string, visit func(*T)) error {
	return s.db.View(func(txn *badgerdb.Txn) error {
		it := txn.NewIterator(badgerdb.DefaultIteratorOptions)
		defer it.Close()

		prefixBytes := []byte(prefix)

		for it.Seek(prefixBytes); it.ValidForPrefix(prefixBytes); it.Next() {
			value, err := it.Item().ValueCopy(nil)
			if err != nil {
				return fmt.Errorf("failed to read %s: %w", it.Item().Key(), err)
			}

			var record T

			err = json.Unmarshal(value, &record)
			if err != nil {
				return fmt.Errorf("failed to unmarshal %s: %w", it.Item().Key(), err)
			}

			visit(&record)
		}

		return nil
	})
}

func collect[T any](s *kvStore, prefix string, keep func(*T) bool) ([]*T, error) {
	records := make([]*T, 0)

	err := scan(s, prefix, func(record *T) {
		if keep(record) {
			records = append(records, record)
		}
	})

	return records, err
}

func all[T any](*T) bool { return true }

var _ persistence.Persistence = (*Persistence)(nil)
