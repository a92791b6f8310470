package domain

import "time"

// UploadLog is one audit row per successful source upload.
type UploadLog struct {
	SessionID string
	FileID    string
	Bytes     int64
	Width     int
	Height    int
	CreatedAt time.Time
}

// ExportLog is one audit row per materialized export.
type ExportLog struct {
	SessionID  string
	ObjectKey  string
	Bytes      int64
	Directives int
	CreatedAt  time.Time
}
