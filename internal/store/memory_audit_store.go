package store

import (
	"context"
	"sync"

	"github.com/framefit/framefit/internal/domain"
)

type MemoryAuditStore struct {
	mu      sync.Mutex
	uploads []domain.UploadLog
	exports []domain.ExportLog
}

func NewMemoryAuditStore() *MemoryAuditStore {
	return &MemoryAuditStore{}
}

func (s *MemoryAuditStore) CreateUploadLog(_ context.Context, entry domain.UploadLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.uploads = append(s.uploads, entry)
	return nil
}

func (s *MemoryAuditStore) CreateExportLog(_ context.Context, entry domain.ExportLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.exports = append(s.exports, entry)
	return nil
}

func (s *MemoryAuditStore) UploadLogs() []domain.UploadLog {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.UploadLog, len(s.uploads))
	copy(out, s.uploads)
	return out
}

func (s *MemoryAuditStore) ExportLogs() []domain.ExportLog {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.ExportLog, len(s.exports))
	copy(out, s.exports)
	return out
}
