package model

import (
	"fmt"
	"time"
)

// FileRecord is the metadata row describing one uploaded file.
// The row is owned by the metadata store; ID is assigned on insert.
type FileRecord struct {
	ID          int64     `json:"id"`
	DisplayName string    `json:"filename"`
	FileSize    int64     `json:"file_size"`
	PublicURL   string    `json:"public_url"`
	UploadedAt  time.Time `json:"uploaded_at"`
}

// HumanSize formats FileSize with two decimals in B, KB, MB or GB.
func (f FileRecord) HumanSize() string {
	return FormatSize(f.FileSize)
}

// FormatSize renders a byte count the way the listing page shows it.
func FormatSize(bytes int64) string {
	const (
		kb = 1024
		mb = 1024 * kb
		gb = 1024 * mb
	)
	switch {
	case bytes >= gb:
		return fmt.Sprintf("%.2f GB", float64(bytes)/gb)
	case bytes >= mb:
		return fmt.Sprintf("%.2f MB", float64(bytes)/mb)
	case bytes >= kb:
		return fmt.Sprintf("%.2f KB", float64(bytes)/kb)
	default:
		return fmt.Sprintf("%d bytes", bytes)
	}
}
