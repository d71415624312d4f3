package domain

import "time"

// DocType identifies the kind of media a document was ingested from.
type DocType string

const (
	DocTypeVideo DocType = "video"
	DocTypeAudio DocType = "audio"
	DocTypeImage DocType = "image"
	DocTypeText  DocType = "text"
)

// Valid reports whether the doc type is one of the supported media types.
func (t DocType) Valid() bool {
	switch t {
	case DocTypeVideo, DocTypeAudio, DocTypeImage, DocTypeText:
		return true
	}
	return false
}

// HasAudioTrack reports whether ingestion must run the transcription stages.
func (t DocType) HasAudioTrack() bool {
	return t == DocTypeVideo || t == DocTypeAudio
}

// DocumentStatus is the processing state of an ingested document.
// Transitions: processing -> completed | failed (both terminal).
type DocumentStatus string

const (
	DocStatusProcessing DocumentStatus = "processing"
	DocStatusCompleted  DocumentStatus = "completed"
	DocStatusFailed     DocumentStatus = "failed"
)

// Document represents one ingested source file and its processing state.
// Only the ingestion orchestrator mutates Status; the query path never does.
type Document struct {
	ID             int64          `json:"id"`
	SourceID       string         `json:"source_id"`
	SourceFileName string         `json:"source_file_name"`
	DocType        DocType        `json:"doc_type"`
	StoragePath    string         `json:"storage_path"`
	Status         DocumentStatus `json:"status"`
	CreatedAt      time.Time      `json:"created_at"`
}

// NewDocument creates a document in the initial processing state.
func NewDocument(sourceID, fileName string, docType DocType, storagePath string) *Document {
	return &Document{
		SourceID:       sourceID,
		SourceFileName: fileName,
		DocType:        docType,
		StoragePath:    storagePath,
		Status:         DocStatusProcessing,
		CreatedAt:      time.Now().UTC(),
	}
}

// TextChunk is one retrievable unit of text tied to exactly one document.
// VectorID is the ordinal position of the chunk's embedding in the vector
// index - the sole join key between the two stores. Chunks are immutable
// once persisted and are deleted only via document cascade.
type TextChunk struct {
	ID          int64    `json:"id"`
	DocumentID  int64    `json:"document_id"`
	VectorID    int64    `json:"vector_id"`
	TextContent string   `json:"text_content"`
	StartTime   *float64 `json:"start_time,omitempty"`
	EndTime     *float64 `json:"end_time,omitempty"`
	PageNumber  *int     `json:"page_number,omitempty"`
}

// RetrievedChunk is a text chunk joined to its owning document and annotated
// with a similarity score from the vector index.
type RetrievedChunk struct {
	Chunk    *TextChunk `json:"chunk"`
	Document *Document  `json:"document"`
	Score    float64    `json:"score"`
	// Rank is the position in the raw index search results, used as the
	// tiebreak when scores are equal.
	Rank int `json:"rank"`
}
