package domain

import (
	"fmt"
	"time"
)

// PackStatus represents the install lifecycle state of a pack.
type PackStatus string

const (
	PackStatusNotInstalled PackStatus = "not_installed"
	PackStatusDownloading  PackStatus = "downloading"
	PackStatusVerifying    PackStatus = "verifying"
	PackStatusInstalling   PackStatus = "installing"
	PackStatusInstalled    PackStatus = "installed"
	PackStatusFailed       PackStatus = "failed"
)

// PackErrorCode is the machine-readable failure classification persisted to
// the catalog so a disconnected UI can render the failure.
type PackErrorCode string

const (
	ErrCodeDownloadFailed  PackErrorCode = "DOWNLOAD_FAILED"
	ErrCodeHTTPStatusNotOK PackErrorCode = "HTTP_STATUS_NOT_OK"
	ErrCodeZipShaMismatch  PackErrorCode = "ZIP_SHA_MISMATCH"
	ErrCodeManifestMissing PackErrorCode = "MANIFEST_MISSING"
	ErrCodeManifestInvalid PackErrorCode = "MANIFEST_INVALID"
	ErrCodeFileShaMismatch PackErrorCode = "FILE_SHA_MISMATCH"
	ErrCodeUnzipFailed     PackErrorCode = "UNZIP_FAILED"
	ErrCodeDiskFull        PackErrorCode = "DISK_FULL"
	ErrCodeDBError         PackErrorCode = "DB_ERROR"
	ErrCodeCorruptPack     PackErrorCode = "CORRUPT_PACK"
	ErrCodeUnknown         PackErrorCode = "UNKNOWN"
)

// PackError carries a PackErrorCode across the installer boundary. The code
// and message are persisted to the catalog before the error is re-thrown.
type PackError struct {
	Code    PackErrorCode
	Message string
	Err     error
}

func (e *PackError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *PackError) Unwrap() error {
	return e.Err
}

// NewPackError builds a PackError wrapping an optional cause.
func NewPackError(code PackErrorCode, message string, err error) *PackError {
	return &PackError{Code: code, Message: message, Err: err}
}

// InstalledPack is the durable record of a pack's install state. Exactly one
// row exists per pack id; it is upserted, never duplicated.
type InstalledPack struct {
	ID              string        `json:"id" db:"id"`
	Version         string        `json:"version" db:"version"`
	Status          PackStatus    `json:"status" db:"status"`
	LocalPath       string        `json:"local_path" db:"local_path"`
	BytesTotal      int64         `json:"bytes_total" db:"bytes_total"`
	BytesDownloaded int64         `json:"bytes_downloaded" db:"bytes_downloaded"`
	ErrorCode       PackErrorCode `json:"error_code,omitempty" db:"error_code"`
	ErrorMessage    string        `json:"error_message,omitempty" db:"error_message"`
	UpdatedAt       time.Time     `json:"updated_at" db:"updated_at"`
	InstalledAt     *time.Time    `json:"installed_at,omitempty" db:"installed_at"`
}

// Book belongs to an installed pack. Book rows are replaced wholesale on each
// successful install of their pack.
type Book struct {
	ID        string `json:"id" db:"id"`
	PackID    string `json:"pack_id" db:"pack_id"`
	Title     string `json:"title" db:"title"`
	SortOrder int    `json:"sort_order" db:"sort_order"`
}

// Section is discovered by the index worker as it walks book content.
// Inserts are insert-or-ignore so resumed runs stay idempotent.
type Section struct {
	ID        string `json:"id" db:"id"`
	BookID    string `json:"book_id" db:"book_id"`
	Title     string `json:"title" db:"title"`
	SortOrder int    `json:"sort_order" db:"sort_order"`
	FilePath  string `json:"file_path" db:"file_path"`
}

// IndexJobStatus represents the lifecycle state of an index job. RUNNING is
// never a safe resting state across process restarts.
type IndexJobStatus string

const (
	IndexJobPending IndexJobStatus = "pending"
	IndexJobRunning IndexJobStatus = "running"
	IndexJobDone    IndexJobStatus = "done"
	IndexJobFailed  IndexJobStatus = "failed"
)

// IndexJob is one enqueued unit of indexing work for a pack version.
type IndexJob struct {
	JobID       string         `json:"job_id" db:"job_id"`
	PackID      string         `json:"pack_id" db:"pack_id"`
	PackVersion string         `json:"pack_version" db:"pack_version"`
	Status      IndexJobStatus `json:"status" db:"status"`
	Cursor      string         `json:"cursor" db:"cursor"`
	Progress    int            `json:"progress" db:"progress"`
	LastError   *string        `json:"last_error,omitempty" db:"last_error"`
	CreatedAt   time.Time      `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at" db:"updated_at"`
}

// SegmentType classifies the smallest addressable unit of book content.
type SegmentType string

const (
	SegmentHeading   SegmentType = "heading"
	SegmentParagraph SegmentType = "paragraph"
	SegmentNote      SegmentType = "note"
	SegmentFootnote  SegmentType = "footnote"
)
