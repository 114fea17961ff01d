package models

import (
	"encoding/base64"
	"fmt"
	"strings"
)

// Evidence images are queued as data URIs ("data:image/jpeg;base64,....")
// so a photo survives JSON serialization into the local queue without a
// separate binary store. The MIME type rides along inside the encoding.

const evidenceSeparator = ";base64,"

// EncodeEvidence packs raw image bytes into the portable text form
func EncodeEvidence(mimeType string, data []byte) string {
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}
	return "data:" + mimeType + evidenceSeparator + base64.StdEncoding.EncodeToString(data)
}

// DecodeEvidence unpacks the portable text form back into MIME type and raw
// bytes
func DecodeEvidence(encoded string) (string, []byte, error) {
	head, payload, found := strings.Cut(encoded, evidenceSeparator)
	if !found {
		return "", nil, fmt.Errorf("evidence: missing base64 separator")
	}
	mimeType := strings.TrimPrefix(head, "data:")
	if mimeType == head || mimeType == "" {
		return "", nil, fmt.Errorf("evidence: malformed data URI header %q", head)
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", nil, fmt.Errorf("evidence: decode payload: %w", err)
	}
	return mimeType, data, nil
}

// EvidenceExtension picks a file extension for a blob key from the MIME
// type; unknown types fall back to jpg, matching what field devices send.
func EvidenceExtension(mimeType string) string {
	switch mimeType {
	case "image/png":
		return "png"
	case "image/webp":
		return "webp"
	case "image/heic":
		return "heic"
	default:
		return "jpg"
	}
}
