// Package report persists the combined consultation report.
package report

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrEmptyContent   = errors.New("report content is empty")
	ErrReportNotFound = errors.New("report not found")
)

// FilePrefix and FileSuffix bracket the capture timestamp in a report name.
const (
	FilePrefix  = "ehr_report_"
	FileSuffix  = ".txt"
	timeLayout  = "20060102_150405"
	contentType = "text/plain; charset=utf-8"
)

// Report is the metadata of one saved report. The content itself lives in
// the blob store under FileName.
type Report struct {
	ID         uuid.UUID  `json:"id"`
	FileName   string     `json:"filename"`
	Location   string     `json:"filepath"`
	Size       int64      `json:"size"`
	SHA256     string     `json:"sha256,omitempty"`
	SessionID  *uuid.UUID `json:"session_id,omitempty"`
	CapturedAt time.Time  `json:"captured_at"`
	CreatedAt  time.Time  `json:"created_at"`
}

// FileName returns the report name for a capture time, with second precision.
func FileName(at time.Time) string {
	return FilePrefix + at.Format(timeLayout) + FileSuffix
}

// ParseFileName recovers the capture time encoded in a report name.
func ParseFileName(name string) (time.Time, bool) {
	if len(name) != len(FilePrefix)+len(timeLayout)+len(FileSuffix) {
		return time.Time{}, false
	}
	if name[:len(FilePrefix)] != FilePrefix || name[len(name)-len(FileSuffix):] != FileSuffix {
		return time.Time{}, false
	}
	at, err := time.ParseInLocation(timeLayout, name[len(FilePrefix):len(name)-len(FileSuffix)], time.Local)
	if err != nil {
		return time.Time{}, false
	}
	return at, true
}

// SaveInput is one report to persist.
type SaveInput struct {
	Content    string
	CapturedAt time.Time
	SessionID  *uuid.UUID
}
