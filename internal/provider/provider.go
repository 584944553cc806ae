// internal/provider/provider.go
package provider

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"filesync-service/internal/config"
	"filesync-service/pkg/models"
)

// Entry is one remote item from a provider listing, normalized just enough for
// the sync job to classify and mirror it.
type Entry struct {
	ID         string
	Name       string
	MimeType   string
	SizeBytes  int64
	ModifiedAt *time.Time
	IsFolder   bool
}

// Page is one bounded slice of a provider listing. NextCursor is the provider's
// opaque resume token; empty means the page sequence is exhausted.
type Page struct {
	Entries    []Entry
	NextCursor string
}

// Token is the result of a refresh-token exchange. RefreshToken is empty when
// the provider did not rotate it.
type Token struct {
	AccessToken  string
	RefreshToken string
	ExpiresIn    int64 // seconds until expiry
}

// Content is one downloaded file body.
type Content struct {
	Data        []byte
	ContentType string
}

// Adapter translates the sync job's generic steps into one provider's wire API.
type Adapter interface {
	Kind() models.Provider

	// RefreshAccessToken exchanges a refresh token for a fresh access token.
	// Fails when the provider rejects the token or the OAuth app credentials
	// are not configured; either way only the owning integration's pass aborts.
	RefreshAccessToken(ctx context.Context, refreshToken string) (*Token, error)

	// ListEntries returns one page of up to pageSize entries starting at
	// cursor. An empty cursor lists from the beginning.
	ListEntries(ctx context.Context, accessToken, cursor string, pageSize int) (*Page, error)

	// DownloadEntry fetches the raw bytes of one listed file.
	DownloadEntry(ctx context.Context, accessToken string, entry Entry) (*Content, error)

	// IsSyncableFile reports whether an entry is a plain downloadable file.
	// Folders and provider-native document types are not.
	IsSyncableFile(entry Entry) bool
}

// Registry maps the provider enum to its adapter.
type Registry struct {
	adapters map[models.Provider]Adapter
}

// NewRegistry wires one adapter per supported provider. A fourth provider is a
// new entry in this table, nothing in the sync loop changes.
func NewRegistry(cfg *config.Config) *Registry {
	httpClient := &http.Client{Timeout: 30 * time.Second}
	return &Registry{
		adapters: map[models.Provider]Adapter{
			models.ProviderGoogleDrive: NewGoogleDriveAdapter(cfg.GoogleClientID, cfg.GoogleClientSecret, httpClient),
			models.ProviderOneDrive:    NewOneDriveAdapter(cfg.MicrosoftClientID, cfg.MicrosoftClientSecret, httpClient),
			models.ProviderDropbox:     NewDropboxAdapter(cfg.DropboxClientID, cfg.DropboxClientSecret, httpClient),
		},
	}
}

// Get returns the adapter for a provider.
func (r *Registry) Get(p models.Provider) (Adapter, error) {
	a, ok := r.adapters[p]
	if !ok {
		return nil, fmt.Errorf("unsupported provider: %s", p)
	}
	return a, nil
}
