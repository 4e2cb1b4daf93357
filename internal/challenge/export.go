package challenge

import (
	"encoding/json"
	"strings"
	"time"
)

// ExportVersion is written into every export file.
const ExportVersion = "1.0"

// ExportFile is the downloadable backup of every stored challenge.
type ExportFile struct {
	ExportedAt     string    `json:"exportedAt"`
	Version        string    `json:"version"`
	ChallengeCount int       `json:"challengeCount"`
	Challenges     []*Record `json:"challenges"`
}

// NewExportFile wraps records in manifest order.
func NewExportFile(records []*Record, now time.Time) ExportFile {
	if records == nil {
		records = []*Record{}
	}
	return ExportFile{
		ExportedAt:     now.UTC().Format(time.RFC3339Nano),
		Version:        ExportVersion,
		ChallengeCount: len(records),
		Challenges:     records,
	}
}

// ParseExportFile decodes a previously exported file.
func ParseExportFile(data []byte) (*ExportFile, error) {
	var f ExportFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, Wrap(KindMalformedPayload, err, "export file is not valid JSON")
	}
	if !strings.HasPrefix(f.Version, "1.") {
		return nil, Errorf(KindMalformedPayload, "unsupported export version %q", f.Version)
	}
	for i, rec := range f.Challenges {
		if rec == nil || rec.ID == "" {
			return nil, Errorf(KindMalformedPayload, "export entry %d has no id", i)
		}
	}
	return &f, nil
}
