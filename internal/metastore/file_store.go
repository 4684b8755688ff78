package metastore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"docdesk/internal/fileutil"
	"docdesk/internal/record"
	"docdesk/internal/services"
)

// FileStore keeps one pretty-printed JSON file per record.
type FileStore struct {
	dir string
}

// NewFileStore returns a FileStore rooted at dir, creating it when missing.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create meta directory: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

func (s *FileStore) path(docID string) string {
	return filepath.Join(s.dir, docID+".json")
}

// Create writes rec unless a record with the same docId exists.
func (s *FileStore) Create(_ context.Context, rec *record.Record) error {
	if err := validateRecord(rec); err != nil {
		return err
	}
	if _, err := os.Stat(s.path(rec.DocID)); err == nil {
		return services.Wrap(services.ErrExists, "metastore", "create", rec.DocID, nil)
	} else if !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("stat record: %w", err)
	}
	return s.write(rec)
}

// Get reads the record for docID.
func (s *FileStore) Get(_ context.Context, docID string) (*record.Record, error) {
	if err := ValidateID(docID); err != nil {
		return nil, err
	}
	return s.read(s.path(docID), docID)
}

// List returns every parsable record in the meta directory.
func (s *FileStore) List(_ context.Context) ([]*record.Record, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("read meta directory: %w", err)
	}
	records := make([]*record.Record, 0, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".json") || strings.HasPrefix(name, ".") {
			continue
		}
		docID := strings.TrimSuffix(name, ".json")
		if ValidateID(docID) != nil {
			continue
		}
		rec, err := s.read(filepath.Join(s.dir, name), docID)
		if err != nil {
			continue
		}
		records = append(records, rec)
	}
	return records, nil
}

// Put overwrites the record file atomically.
func (s *FileStore) Put(_ context.Context, rec *record.Record) error {
	if err := validateRecord(rec); err != nil {
		return err
	}
	return s.write(rec)
}

// Close is a no-op for the file backend.
func (s *FileStore) Close() error { return nil }

func (s *FileStore) write(rec *record.Record) error {
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("encode record: %w", err)
	}
	data = append(data, '\n')
	if err := fileutil.WriteFileAtomic(s.path(rec.DocID), data, 0o644); err != nil {
		return fmt.Errorf("write record %s: %w", rec.DocID, err)
	}
	return nil
}

func (s *FileStore) read(path, docID string) (*record.Record, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, services.Wrap(services.ErrNotFound, "metastore", "get", docID, nil)
	}
	if err != nil {
		return nil, fmt.Errorf("read record %s: %w", docID, err)
	}
	return decodeRecord(data, docID)
}

func decodeRecord(data []byte, docID string) (*record.Record, error) {
	var rec record.Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, services.Wrap(services.ErrCorrupt, "metastore", "decode", docID, err)
	}
	if rec.DocID != docID {
		return nil, services.Wrap(services.ErrCorrupt, "metastore", "decode", fmt.Sprintf("record %s carries docId %q", docID, rec.DocID), nil)
	}
	return &rec, nil
}
