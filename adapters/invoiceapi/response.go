package invoiceapi

import (
	"mime"
	"time"

	"github.com/sticktoon/go-invoice/invoice"
)

// SkippedHeader marks a 204 answer to an export with nothing to capture.
const SkippedHeader = "X-Invoice-Skipped"

// File is a generated or archived invoice file ready to send.
type File struct {
	ExportID    string
	Filename    string
	ContentType string
	// Inline asks the browser to open the file instead of saving it.
	Inline bool
	Data   []byte
}

// Disposition returns the Content-Disposition value for the file.
func (f File) Disposition() string {
	kind := "attachment"
	if f.Inline {
		kind = "inline"
	}
	if value := mime.FormatMediaType(kind, map[string]string{"filename": f.Filename}); value != "" {
		return value
	}
	return kind
}

// Response is how a transport answers invoice requests.
type Response interface {
	// SendPage writes a rendered invoice page.
	SendPage(html []byte) error
	// SendFile writes a file with its download headers.
	SendFile(file File) error
	SendJSON(status int, payload any) error
	// Skipped answers an export that produced no file with 204 and the
	// SkippedHeader set to reason.
	Skipped(reason string) error
	// Reject answers a request no route serves. Invoice routes are GET only,
	// so a 405 carries Allow: GET.
	Reject(status int) error
}

// ErrorResponse describes JSON error responses.
type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

// ErrorBody contains error details.
type ErrorBody struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// HistoryEntry is the JSON form of an export record.
type HistoryEntry struct {
	ID          string    `json:"id"`
	Invoice     string    `json:"invoice"`
	Format      string    `json:"format"`
	Filename    string    `json:"filename,omitempty"`
	Bytes       int64     `json:"bytes"`
	RequestedBy string    `json:"requested_by,omitempty"`
	ArtifactKey string    `json:"artifact_key,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// HistoryResponse wraps a history listing.
type HistoryResponse struct {
	Records []HistoryEntry `json:"records"`
}

// NewHistoryResponse converts export records to their JSON form.
func NewHistoryResponse(records []invoice.ExportRecord) HistoryResponse {
	out := HistoryResponse{Records: make([]HistoryEntry, 0, len(records))}
	for _, record := range records {
		requestedBy := record.RequestedBy.Email
		if requestedBy == "" {
			requestedBy = record.RequestedBy.ID
		}
		out.Records = append(out.Records, HistoryEntry{
			ID:          record.ID,
			Invoice:     record.Invoice,
			Format:      string(record.Format),
			Filename:    record.Filename,
			Bytes:       record.Bytes,
			RequestedBy: requestedBy,
			ArtifactKey: record.Artifact.Key,
			CreatedAt:   record.CreatedAt,
		})
	}
	return out
}
