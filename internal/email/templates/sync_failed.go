// filesync-service/internal/email/templates/sync_failed.go
package templates

import (
	_ "embed"
	"html/template"
	"strings"
	"time"
)

var syncFailedTmpl = template.Must(template.New("sync_failed").Parse(syncFailedHTML))

// SyncFailedData holds the data for the sync failure alert email.
type SyncFailedData struct {
	UserName     string
	Provider     string // display name, e.g. "Google Drive"
	ErrorMessage string
	OccurredAt   string // formatted RFC3339 or human-readable
	RunID        string
	LogoURL      string
	Year         int
}

// RenderSyncFailedEmail renders the sync failure alert HTML.
func RenderSyncFailedEmail(data SyncFailedData) (string, error) {
	if data.Year == 0 {
		data.Year = time.Now().Year()
	}
	if data.LogoURL == "" {
		data.LogoURL = "https://www.kt-portal.com/icon.png"
	}
	var buf strings.Builder
	err := syncFailedTmpl.Execute(&buf, data)
	return buf.String(), err
}
