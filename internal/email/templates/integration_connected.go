// filesync-service/internal/email/templates/integration_connected.go
package templates

import (
	_ "embed"
	"html/template"
	"strings"
	"time"
)

var integrationConnectedTmpl = template.Must(template.New("integration_connected").Parse(integrationConnectedHTML))

// IntegrationConnectedData holds the data for the integration connected email.
type IntegrationConnectedData struct {
	UserName    string
	Provider    string // display name, e.g. "Dropbox"
	ConnectedAt string
	LogoURL     string
	Year        int
}

// RenderIntegrationConnectedEmail renders the integration connected email HTML.
func RenderIntegrationConnectedEmail(data IntegrationConnectedData) (string, error) {
	if data.Year == 0 {
		data.Year = time.Now().Year()
	}
	if data.LogoURL == "" {
		data.LogoURL = "https://www.kt-portal.com/icon.png"
	}
	var buf strings.Builder
	err := integrationConnectedTmpl.Execute(&buf, data)
	return buf.String(), err
}
