package worker

import (
	"path/filepath"
	"strings"
)

const maxFilenameLength = 100

// sanitizeFilename strips path separators and anything outside a conservative
// character set, then caps the length while keeping the extension usable.
func sanitizeFilename(name string) string {
	name = filepath.Base(strings.TrimSpace(name))
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '.', r == '_', r == '-', r == ' ':
			b.WriteRune(r)
		}
	}
	cleaned := strings.Trim(b.String(), ". ")
	if cleaned == "" {
		return "file"
	}
	if len(cleaned) <= maxFilenameLength {
		return cleaned
	}
	ext := filepath.Ext(cleaned)
	if len(ext) >= maxFilenameLength {
		return cleaned[:maxFilenameLength]
	}
	stem := cleaned[:maxFilenameLength-len(ext)]
	return stem + ext
}

// stagedPath builds an on-disk path unique per job. The correlation id prefix
// keeps two users sending identically named files from clobbering each other.
func stagedPath(dir, correlationID, filename string) string {
	prefix := correlationID
	if len(prefix) > 8 {
		prefix = prefix[:8]
	}
	return filepath.Join(dir, prefix+"_"+filename)
}
