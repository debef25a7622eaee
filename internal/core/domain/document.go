package domain

import "time"

type DocumentStatus string

const (
	StatusUploaded   DocumentStatus = "uploaded"
	StatusProcessing DocumentStatus = "processing"
	StatusReady      DocumentStatus = "ready"
	StatusFailed     DocumentStatus = "failed"
)

// Document is the registry record of an uploaded source file. Its
// SourceID groups every chunk the file produced in the semantic index
// and is what re-ingestion supersedes.
type Document struct {
	ID          string         `json:"id"`
	SourceID    string         `json:"source_id"`
	Filename    string         `json:"filename"`
	MimeType    string         `json:"mime_type"`
	StoragePath string         `json:"storage_path"`
	ChunkCount  int            `json:"chunk_count,omitempty"`
	Status      DocumentStatus `json:"status"`
	Error       string         `json:"error,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}
