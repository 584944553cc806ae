// internal/provider/onedrive.go
package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"filesync-service/pkg/models"
)

const (
	defaultGraphBase         = "https://graph.microsoft.com/v1.0"
	defaultMicrosoftTokenURL = "https://login.microsoftonline.com/common/oauth2/v2.0/token"
)

// OneDriveAdapter speaks Microsoft Graph directly. Items carry a "file" or
// "folder" facet; the listing cursor is Graph's @odata.nextLink URL.
type OneDriveAdapter struct {
	clientID     string
	clientSecret string
	httpClient   *http.Client
	graphBase    string
	tokenURL     string
}

func NewOneDriveAdapter(clientID, clientSecret string, httpClient *http.Client) *OneDriveAdapter {
	return &OneDriveAdapter{
		clientID:     clientID,
		clientSecret: clientSecret,
		httpClient:   httpClient,
		graphBase:    defaultGraphBase,
		tokenURL:     defaultMicrosoftTokenURL,
	}
}

func (o *OneDriveAdapter) Kind() models.Provider {
	return models.ProviderOneDrive
}

func (o *OneDriveAdapter) RefreshAccessToken(ctx context.Context, refreshToken string) (*Token, error) {
	if o.clientID == "" || o.clientSecret == "" {
		return nil, fmt.Errorf("onedrive oauth credentials not configured")
	}

	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	form.Set("refresh_token", refreshToken)
	form.Set("client_id", o.clientID)
	form.Set("client_secret", o.clientSecret)

	req, err := http.NewRequestWithContext(ctx, "POST", o.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to create refresh request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := o.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("onedrive token refresh: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("onedrive token refresh returned %d: %s", resp.StatusCode, string(body))
	}

	var out struct {
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token"`
		ExpiresIn    int64  `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode onedrive token response: %w", err)
	}
	if out.AccessToken == "" {
		return nil, fmt.Errorf("onedrive token refresh returned no access token")
	}
	return &Token{AccessToken: out.AccessToken, RefreshToken: out.RefreshToken, ExpiresIn: out.ExpiresIn}, nil
}

func (o *OneDriveAdapter) ListEntries(ctx context.Context, accessToken, cursor string, pageSize int) (*Page, error) {
	// Graph pagination hands back a complete nextLink URL, which is exactly
	// what the stored cursor holds.
	listURL := cursor
	if listURL == "" {
		listURL = fmt.Sprintf("%s/me/drive/root/children?$top=%d", o.graphBase, pageSize)
	}

	req, err := http.NewRequestWithContext(ctx, "GET", listURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create list request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := o.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("onedrive list: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("onedrive list returned %d: %s", resp.StatusCode, string(body))
	}

	var out struct {
		Value []struct {
			ID                   string     `json:"id"`
			Name                 string     `json:"name"`
			Size                 int64      `json:"size"`
			LastModifiedDateTime *time.Time `json:"lastModifiedDateTime"`
			File                 *struct {
				MimeType string `json:"mimeType"`
			} `json:"file"`
			Folder *struct {
				ChildCount int64 `json:"childCount"`
			} `json:"folder"`
		} `json:"value"`
		NextLink string `json:"@odata.nextLink"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode onedrive listing: %w", err)
	}

	entries := make([]Entry, 0, len(out.Value))
	for _, item := range out.Value {
		e := Entry{
			ID:         item.ID,
			Name:       item.Name,
			SizeBytes:  item.Size,
			ModifiedAt: item.LastModifiedDateTime,
			IsFolder:   item.Folder != nil,
		}
		if item.File != nil {
			e.MimeType = item.File.MimeType
		}
		entries = append(entries, e)
	}
	return &Page{Entries: entries, NextCursor: out.NextLink}, nil
}

func (o *OneDriveAdapter) DownloadEntry(ctx context.Context, accessToken string, entry Entry) (*Content, error) {
	downloadURL := fmt.Sprintf("%s/me/drive/items/%s/content", o.graphBase, url.PathEscape(entry.ID))

	req, err := http.NewRequestWithContext(ctx, "GET", downloadURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create download request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	// Graph answers with a 302 to a pre-authenticated location; the client
	// follows it and Go drops the Authorization header on the cross-host hop.
	resp, err := o.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("onedrive download %s: %w", entry.ID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("onedrive download %s returned %d: %s", entry.ID, resp.StatusCode, string(body))
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("onedrive read %s: %w", entry.ID, err)
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = entry.MimeType
	}
	return &Content{Data: data, ContentType: contentType}, nil
}

// IsSyncableFile requires the file facet: folders and facet-less items
// (OneNote packages) are skipped. The file facet always carries a MIME type.
func (o *OneDriveAdapter) IsSyncableFile(entry Entry) bool {
	return !entry.IsFolder && entry.MimeType != ""
}
