package store

import (
	"context"

	"github.com/framefit/framefit/internal/domain"
)

// AuditStore records upload and export events for later accounting. Writes
// are best-effort from the callers' point of view: a failed audit write is
// logged, never surfaced to the user.
type AuditStore interface {
	CreateUploadLog(ctx context.Context, entry domain.UploadLog) error
	CreateExportLog(ctx context.Context, entry domain.ExportLog) error
}
