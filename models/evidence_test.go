package models

import (
	"bytes"
	"testing"
)

func TestEvidenceRoundTrip(t *testing.T) {
	payload := []byte{0xff, 0xd8, 0xff, 0xe0, 0x00, 0x10, 'J', 'F', 'I', 'F'}

	encoded := EncodeEvidence("image/jpeg", payload)
	mimeType, decoded, err := DecodeEvidence(encoded)
	if err != nil {
		t.Fatalf("DecodeEvidence: %v", err)
	}
	if mimeType != "image/jpeg" {
		t.Errorf("mime type: expected image/jpeg, got %s", mimeType)
	}
	if !bytes.Equal(decoded, payload) {
		t.Errorf("payload not byte-identical after round trip: %v vs %v", payload, decoded)
	}
}

func TestEncodeEvidenceDefaultsMIME(t *testing.T) {
	encoded := EncodeEvidence("", []byte{1, 2, 3})
	mimeType, _, err := DecodeEvidence(encoded)
	if err != nil {
		t.Fatalf("DecodeEvidence: %v", err)
	}
	if mimeType != "application/octet-stream" {
		t.Errorf("expected fallback mime type, got %s", mimeType)
	}
}

func TestDecodeEvidenceRejectsMalformedInput(t *testing.T) {
	testCases := []struct {
		name  string
		input string
	}{
		{name: "no separator", input: "data:image/jpeg"},
		{name: "no data prefix", input: "image/jpeg;base64,AAAA"},
		{name: "empty mime", input: "data:;base64,AAAA"},
		{name: "bad base64", input: "data:image/jpeg;base64,not base64!!"},
	}

	for _, testCase := range testCases {
		if _, _, err := DecodeEvidence(testCase.input); err == nil {
			t.Errorf("%s: expected error, got none", testCase.name)
		}
	}
}

func TestIsPlaceholderVenue(t *testing.T) {
	if !IsPlaceholderVenue("mock-1") {
		t.Error("mock-1 should be recognized as a placeholder venue")
	}
	if !IsPlaceholderVenue("demo-mock-22") {
		t.Error("marker anywhere in the id should match")
	}
	if IsPlaceholderVenue("real-venue-1") {
		t.Error("real-venue-1 should not be a placeholder venue")
	}
}

func TestIncidentDetailDefaults(t *testing.T) {
	report := &PendingReport{
		FormData: map[string]interface{}{
			FormKeyIsIncident: true,
		},
	}
	if !report.IsIncident() {
		t.Fatal("expected incident marker to be detected")
	}

	detail := report.IncidentDetail("report-9", "http://example.com/x.jpg")
	if detail.Category != "other" || detail.Severity != "low" {
		t.Errorf("expected default category/severity, got %s/%s", detail.Category, detail.Severity)
	}
	if detail.ReportID != "report-9" {
		t.Errorf("expected parent report id to be carried, got %s", detail.ReportID)
	}

	report.FormData[FormKeyCategory] = "violence"
	report.FormData[FormKeySeverity] = "high"
	detail = report.IncidentDetail("report-9", "")
	if detail.Category != "violence" || detail.Severity != "high" {
		t.Errorf("expected explicit fields to win, got %s/%s", detail.Category, detail.Severity)
	}
}
