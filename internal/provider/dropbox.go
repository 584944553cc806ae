// internal/provider/dropbox.go
package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"filesync-service/pkg/models"
	"filesync-service/utils"
)

const (
	defaultDropboxAPIBase     = "https://api.dropboxapi.com"
	defaultDropboxContentBase = "https://content.dropboxapi.com"
)

// DropboxAdapter speaks the Dropbox v2 RPC API. Entries discriminate file vs
// folder via the ".tag" field; the listing cursor pairs with has_more.
type DropboxAdapter struct {
	clientID     string
	clientSecret string
	httpClient   *http.Client
	apiBase      string
	contentBase  string
}

func NewDropboxAdapter(clientID, clientSecret string, httpClient *http.Client) *DropboxAdapter {
	return &DropboxAdapter{
		clientID:     clientID,
		clientSecret: clientSecret,
		httpClient:   httpClient,
		apiBase:      defaultDropboxAPIBase,
		contentBase:  defaultDropboxContentBase,
	}
}

func (d *DropboxAdapter) Kind() models.Provider {
	return models.ProviderDropbox
}

func (d *DropboxAdapter) RefreshAccessToken(ctx context.Context, refreshToken string) (*Token, error) {
	if d.clientID == "" || d.clientSecret == "" {
		return nil, fmt.Errorf("dropbox oauth credentials not configured")
	}

	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	form.Set("refresh_token", refreshToken)

	req, err := http.NewRequestWithContext(ctx, "POST", d.apiBase+"/oauth2/token", strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to create refresh request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(d.clientID, d.clientSecret)

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("dropbox token refresh: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("dropbox token refresh returned %d: %s", resp.StatusCode, string(body))
	}

	var out struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int64  `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode dropbox token response: %w", err)
	}
	if out.AccessToken == "" {
		return nil, fmt.Errorf("dropbox token refresh returned no access token")
	}
	// Dropbox keeps the original refresh token, no rotation.
	return &Token{AccessToken: out.AccessToken, ExpiresIn: out.ExpiresIn}, nil
}

func (d *DropboxAdapter) ListEntries(ctx context.Context, accessToken, cursor string, pageSize int) (*Page, error) {
	var (
		endpoint string
		payload  interface{}
	)
	if cursor == "" {
		endpoint = d.apiBase + "/2/files/list_folder"
		payload = map[string]interface{}{
			"path":      "",
			"recursive": false,
			"limit":     pageSize,
		}
	} else {
		endpoint = d.apiBase + "/2/files/list_folder/continue"
		payload = map[string]interface{}{"cursor": cursor}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal list request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create list request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("dropbox list: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("dropbox list returned %d: %s", resp.StatusCode, string(respBody))
	}

	var out struct {
		Entries []struct {
			Tag            string     `json:".tag"`
			ID             string     `json:"id"`
			Name           string     `json:"name"`
			Size           int64      `json:"size"`
			ServerModified *time.Time `json:"server_modified"`
		} `json:"entries"`
		Cursor  string `json:"cursor"`
		HasMore bool   `json:"has_more"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode dropbox listing: %w", err)
	}

	entries := make([]Entry, 0, len(out.Entries))
	for _, item := range out.Entries {
		entries = append(entries, Entry{
			ID:         item.ID,
			Name:       item.Name,
			SizeBytes:  item.Size,
			ModifiedAt: item.ServerModified,
			IsFolder:   item.Tag == "folder",
		})
	}

	// The cursor is only worth keeping while has_more is set; a finished
	// sequence stores NULL and the next pass re-lists from the root.
	nextCursor := ""
	if out.HasMore {
		nextCursor = out.Cursor
	}
	return &Page{Entries: entries, NextCursor: nextCursor}, nil
}

func (d *DropboxAdapter) DownloadEntry(ctx context.Context, accessToken string, entry Entry) (*Content, error) {
	arg, err := json.Marshal(map[string]string{"path": entry.ID})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal download arg: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", d.contentBase+"/2/files/download", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create download request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Dropbox-API-Arg", string(arg))

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("dropbox download %s: %w", entry.ID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("dropbox download %s returned %d: %s", entry.ID, resp.StatusCode, string(respBody))
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("dropbox read %s: %w", entry.ID, err)
	}

	// Dropbox labels everything application/octet-stream; the file name is a
	// better signal for the mirrored object's content type.
	contentType := resp.Header.Get("Content-Type")
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = utils.GuessContentType(entry.Name)
	}
	return &Content{Data: data, ContentType: contentType}, nil
}

// IsSyncableFile keeps entries tagged "file"; "folder" (and anything else the
// API may add) is skipped.
func (d *DropboxAdapter) IsSyncableFile(entry Entry) bool {
	return !entry.IsFolder && entry.ID != ""
}
