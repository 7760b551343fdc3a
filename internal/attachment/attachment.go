// Package attachment reads user uploads into chat attachments.
package attachment

import (
	"encoding/base64"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"github.com/xiaot623/gogo/workdesk/internal/domain"
)

// DefaultMaxBytes is used when Read is given a non-positive limit.
const DefaultMaxBytes int64 = 20 << 20

const rejectMessage = "Please select a PDF or Image file."

// FieldType is the ValidationError field used when the file type is refused.
const FieldType = "type"

// Accepted reports whether mimeType may be sent to the model.
func Accepted(mimeType string) bool {
	mt := baseType(mimeType)
	return mt == "application/pdf" || strings.HasPrefix(mt, "image/")
}

// Read consumes r to completion and returns the attachment, or a
// ValidationError when the file is empty, too large or not a PDF/image.
// declaredType may be empty, in which case the content decides.
func Read(filename, declaredType string, r io.Reader, maxBytes int64) (*domain.Attachment, error) {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}

	data, err := io.ReadAll(io.LimitReader(r, maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read attachment: %w", err)
	}
	if len(data) == 0 {
		return nil, domain.NewValidationError("file", "file is empty")
	}
	if int64(len(data)) > maxBytes {
		return nil, domain.NewValidationError("file", fmt.Sprintf("file exceeds %d bytes", maxBytes))
	}

	mimeType, err := resolveType(declaredType, data)
	if err != nil {
		return nil, err
	}

	return &domain.Attachment{
		Filename: filepath.Base(filename),
		MIMEType: mimeType,
		Data:     base64.StdEncoding.EncodeToString(data),
	}, nil
}

// resolveType trusts the declared type only when the content does not
// contradict it.
func resolveType(declared string, data []byte) (string, error) {
	sniffed := mimetype.Detect(data)
	sniffedType := baseType(sniffed.String())
	declared = baseType(declared)

	if declared == "" || declared == "application/octet-stream" {
		declared = sniffedType
	}
	if !Accepted(declared) {
		return "", domain.NewValidationError(FieldType, rejectMessage)
	}
	if sniffedType != "application/octet-stream" && !Accepted(sniffedType) {
		return "", domain.NewValidationError(FieldType, rejectMessage)
	}
	return declared, nil
}

// Decode returns the raw bytes of att.
func Decode(att *domain.Attachment) ([]byte, error) {
	data, err := base64.StdEncoding.DecodeString(att.Data)
	if err != nil {
		return nil, fmt.Errorf("failed to decode attachment %s: %w", att.Filename, err)
	}
	return data, nil
}

// Describe is the metadata-only copy kept in the transcript.
func Describe(att *domain.Attachment) *domain.Attachment {
	if att == nil {
		return nil
	}
	return &domain.Attachment{Filename: att.Filename, MIMEType: att.MIMEType}
}

func baseType(mimeType string) string {
	mt, _, _ := strings.Cut(mimeType, ";")
	return strings.ToLower(strings.TrimSpace(mt))
}
