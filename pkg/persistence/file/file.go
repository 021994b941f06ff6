// Package file provides file-based persistence: one JSON document per record under a root
// directory.
package file

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/Stefan/orka-ppm-sub007/pkg/models"
	"github.com/Stefan/orka-ppm-sub007/pkg/persistence"
	json "github.com/goccy/go-json"
)

// Persistence implements the persistence.Persistence interface using the file system.
type Persistence struct {
	stateMu        sync.Mutex
	root           string
	definitionRepo *DefinitionRepository
	instanceRepo   *InstanceRepository
	approvalRepo   *ApprovalRepository
}

// NewPersistence creates a new instance of Persistence with the specified root directory.
func NewPersistence(root string) *Persistence {
	cleanRoot := strings.Replace(root, "file://", "", 1)

	return &Persistence{
		root:           cleanRoot,
		definitionRepo: &DefinitionRepository{store: newStore[models.WorkflowDefinition](cleanRoot, "definitions")},
		instanceRepo:   &InstanceRepository{store: newStore[models.WorkflowInstance](cleanRoot, "instances")},
		approvalRepo:   &ApprovalRepository{store: newStore[models.Approval](cleanRoot, "approvals")},
	}
}

// Close performs any necessary cleanup. For file-based persistence, there is nothing to clean up.
func (fp *Persistence) Close(_ context.Context) error {
	return nil
}

// HealthCheck checks if the file persistence layer is healthy by verifying the root directory exists.
func (fp *Persistence) HealthCheck(_ context.Context) error {
	if _, err := os.Stat(fp.root); os.IsNotExist(err) {
		return os.ErrNotExist
	}

	return nil
}

func (fp *Persistence) DefinitionRepository() persistence.DefinitionRepository {
	return fp.definitionRepo
}

func (fp *Persistence) InstanceRepository() persistence.InstanceRepository {
	return fp.instanceRepo
}

func (fp *Persistence) ApprovalRepository() persistence.ApprovalRepository {
	return fp.approvalRepo
}

// SaveInstanceState writes the instance, then the approvals. When a write fails, every
// document touched so far is put back to its previous content, or removed if it is new.
func (fp *Persistence) SaveInstanceState(
	ctx context.Context,
	instance *models.WorkflowInstance,
	approvals []*models.Approval,
) error {
	fp.stateMu.Lock()
	defer fp.stateMu.Unlock()

	ids := make([]string, 0, len(approvals))
	for _, approval := range approvals {
		ids = append(ids, approval.ID)
	}

	previousInstance, err := fp.instanceRepo.store.snapshot([]string{instance.ID})
	if err != nil {
		return persistence.NewRecordError("SaveInstanceState", "instance", instance.ID, err)
	}

	previousApprovals, err := fp.approvalRepo.store.snapshot(ids)
	if err != nil {
		return persistence.NewRecordError("SaveInstanceState", "approval", "", err)
	}

	err = fp.instanceRepo.Save(ctx, instance)
	if err != nil {
		return errors.Join(err, fp.instanceRepo.store.restore(previousInstance))
	}

	err = fp.approvalRepo.SaveAll(ctx, approvals)
	if err != nil {
		return errors.Join(err,
			fp.approvalRepo.store.restore(previousApprovals),
			fp.instanceRepo.store.restore(previousInstance))
	}

	return nil
}

// store keeps records of one kind as <root>/<dir>/<id>.json.
type store[T any] struct {
	mu  sync.RWMutex
	dir string
}

func newStore[T any](root, dir string) *store[T] {
	return &store[T]{dir: filepath.Join(root, dir)}
}

// get returns nil when the record does not exist.
func (s *store[T]) get(id string) (*T, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.read(filepath.Join(s.dir, id+".json"))
}

func (s *store[T]) read(filePath string) (*T, error) {
	data, err := os.ReadFile(filePath)
	if os.IsNotExist(err) {
		return nil, nil
	}

	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", filePath, err)
	}

	var record T

	err = json.Unmarshal(data, &record)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal %s: %w", filePath, err)
	}

	return &record, nil
}

func (s *store[T]) put(records map[string]*T) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := os.MkdirAll(s.dir, 0750)
	if err != nil {
		return fmt.Errorf("failed to create directory %s: %w", s.dir, err)
	}

	for id, record := range records {
		data, err := json.MarshalIndent(record, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal record %s: %w", id, err)
		}

		// Write then rename so concurrent readers never see a partial document.
		tmp := filepath.Join(s.dir, "."+id+".json.tmp")

		err = os.WriteFile(tmp, data, 0600)
		if err != nil {
			return fmt.Errorf("failed to write record %s: %w", id, err)
		}

		err = os.Rename(tmp, filepath.Join(s.dir, id+".json"))
		if err != nil {
			return fmt.Errorf("failed to replace record %s: %w", id, err)
		}
	}

	return nil
}

// snapshot returns the raw documents of ids. Records that do not exist map to nil.
func (s *store[T]) snapshot(ids []string) (map[string][]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	documents := make(map[string][]byte, len(ids))

	for _, id := range ids {
		data, err := os.ReadFile(filepath.Join(s.dir, id+".json"))
		if err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read record %s: %w", id, err)
		}

		documents[id] = data
	}

	return documents, nil
}

// restore puts back documents taken by snapshot.
func (s *store[T]) restore(documents map[string][]byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var errs []error

	for id, data := range documents {
		path := filepath.Join(s.dir, id+".json")

		if data == nil {
			err := os.Remove(path)
			if err != nil && !os.IsNotExist(err) {
				errs = append(errs, fmt.Errorf("failed to remove record %s: %w", id, err))
			}

			continue
		}

		err := os.WriteFile(path, data, 0600)
		if err != nil {
			errs = append(errs, fmt.Errorf("failed to restore record %s: %w", id, err))
		}
	}

	return errors.Join(errs...)
}

func (s *store[T]) all() ([]*T, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	jsonFiles, err := fs.Glob(os.DirFS(s.dir), "*.json")
	if err != nil {
		return nil, fmt.Errorf("failed to list files in %s: %w", s.dir, err)
	}

	records := make([]*T, 0, len(jsonFiles))

	for _, file := range jsonFiles {
		record, err := s.read(filepath.Join(s.dir, file))
		if err != nil {
			return nil, err
		}

		if record != nil {
			records = append(records, record)
		}
	}

	return records, nil
}

func (s *store[T]) filter(keep func(*T) bool) ([]*T, error) {
	records, err := s.all()
	if err != nil {
		return nil, err
	}

	out := make([]*T, 0, len(records))

	for _, record := range records {
		if keep(record) {
			out = append(out, record)
		}
	}

	return out, nil
}
