// internal/provider/googledrive.go
package provider

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/endpoints"
	drive "google.golang.org/api/drive/v3"
	"google.golang.org/api/option"

	"filesync-service/pkg/models"
)

const (
	googleFolderMimeType = "application/vnd.google-apps.folder"
	googleNativePrefix   = "application/vnd.google-apps"
)

// GoogleDriveAdapter speaks the Drive v3 API through the official client.
type GoogleDriveAdapter struct {
	clientID     string
	clientSecret string
	httpClient   *http.Client
	endpoint     oauth2.Endpoint
}

func NewGoogleDriveAdapter(clientID, clientSecret string, httpClient *http.Client) *GoogleDriveAdapter {
	return &GoogleDriveAdapter{
		clientID:     clientID,
		clientSecret: clientSecret,
		httpClient:   httpClient,
		endpoint:     endpoints.Google,
	}
}

func (g *GoogleDriveAdapter) Kind() models.Provider {
	return models.ProviderGoogleDrive
}

func (g *GoogleDriveAdapter) RefreshAccessToken(ctx context.Context, refreshToken string) (*Token, error) {
	if g.clientID == "" || g.clientSecret == "" {
		return nil, fmt.Errorf("google drive oauth credentials not configured")
	}

	conf := &oauth2.Config{
		ClientID:     g.clientID,
		ClientSecret: g.clientSecret,
		Endpoint:     g.endpoint,
	}
	ctx = context.WithValue(ctx, oauth2.HTTPClient, g.httpClient)
	tok, err := conf.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken}).Token()
	if err != nil {
		return nil, fmt.Errorf("google token refresh: %w", err)
	}

	expiresIn := int64(3600)
	if !tok.Expiry.IsZero() {
		expiresIn = int64(time.Until(tok.Expiry).Seconds())
	}
	rotated := ""
	if tok.RefreshToken != "" && tok.RefreshToken != refreshToken {
		rotated = tok.RefreshToken
	}
	return &Token{AccessToken: tok.AccessToken, RefreshToken: rotated, ExpiresIn: expiresIn}, nil
}

func (g *GoogleDriveAdapter) ListEntries(ctx context.Context, accessToken, cursor string, pageSize int) (*Page, error) {
	svc, err := g.driveService(ctx, accessToken)
	if err != nil {
		return nil, err
	}

	call := svc.Files.List().
		PageSize(int64(pageSize)).
		Q("trashed = false").
		Fields("nextPageToken, files(id, name, mimeType, size, modifiedTime)").
		Context(ctx)
	if cursor != "" {
		call = call.PageToken(cursor)
	}

	res, err := call.Do()
	if err != nil {
		return nil, fmt.Errorf("google drive list: %w", err)
	}

	entries := make([]Entry, 0, len(res.Files))
	for _, f := range res.Files {
		var modified *time.Time
		if f.ModifiedTime != "" {
			if t, perr := time.Parse(time.RFC3339, f.ModifiedTime); perr == nil {
				modified = &t
			}
		}
		entries = append(entries, Entry{
			ID:         f.Id,
			Name:       f.Name,
			MimeType:   f.MimeType,
			SizeBytes:  f.Size,
			ModifiedAt: modified,
			IsFolder:   f.MimeType == googleFolderMimeType,
		})
	}
	return &Page{Entries: entries, NextCursor: res.NextPageToken}, nil
}

func (g *GoogleDriveAdapter) DownloadEntry(ctx context.Context, accessToken string, entry Entry) (*Content, error) {
	svc, err := g.driveService(ctx, accessToken)
	if err != nil {
		return nil, err
	}

	res, err := svc.Files.Get(entry.ID).Context(ctx).Download()
	if err != nil {
		return nil, fmt.Errorf("google drive download %s: %w", entry.ID, err)
	}
	defer res.Body.Close()

	data, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, fmt.Errorf("google drive read %s: %w", entry.ID, err)
	}

	contentType := res.Header.Get("Content-Type")
	if contentType == "" {
		contentType = entry.MimeType
	}
	return &Content{Data: data, ContentType: contentType}, nil
}

// IsSyncableFile excludes folders and Google-native documents; the latter
// have no binary content without an export conversion.
func (g *GoogleDriveAdapter) IsSyncableFile(entry Entry) bool {
	if entry.IsFolder {
		return false
	}
	return !strings.HasPrefix(entry.MimeType, googleNativePrefix)
}

func (g *GoogleDriveAdapter) driveService(ctx context.Context, accessToken string) (*drive.Service, error) {
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: accessToken})
	svc, err := drive.NewService(ctx, option.WithTokenSource(ts))
	if err != nil {
		return nil, fmt.Errorf("google drive client: %w", err)
	}
	return svc, nil
}
