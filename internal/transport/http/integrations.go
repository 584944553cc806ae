// internal/transport/http/integrations.go
package http

import (
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/endpoints"

	"filesync-service/internal/audit"
	"filesync-service/internal/config"
	"filesync-service/pkg/models"
)

const stateTTL = 10 * time.Minute

// Dropbox is missing from x/oauth2/endpoints.
var dropboxEndpoint = oauth2.Endpoint{
	AuthURL:  "https://www.dropbox.com/oauth2/authorize",
	TokenURL: "https://api.dropboxapi.com/oauth2/token",
}

// oauthFlow holds the per-provider OAuth2 configs and the pending
// authorization states. States are single-use and expire after stateTTL.
type oauthFlow struct {
	configs map[models.Provider]*oauth2.Config

	mu     sync.Mutex
	states map[string]oauthState
}

type oauthState struct {
	userID    string
	provider  models.Provider
	expiresAt time.Time
}

func newOAuthFlow(cfg *config.Config) *oauthFlow {
	redirect := func(p models.Provider) string {
		return fmt.Sprintf("%s/v2/integrations/%s/callback", cfg.OAuthRedirectBase, p)
	}
	return &oauthFlow{
		configs: map[models.Provider]*oauth2.Config{
			models.ProviderGoogleDrive: {
				ClientID:     cfg.GoogleClientID,
				ClientSecret: cfg.GoogleClientSecret,
				Endpoint:     endpoints.Google,
				RedirectURL:  redirect(models.ProviderGoogleDrive),
				Scopes:       []string{"https://www.googleapis.com/auth/drive.readonly"},
			},
			models.ProviderOneDrive: {
				ClientID:     cfg.MicrosoftClientID,
				ClientSecret: cfg.MicrosoftClientSecret,
				Endpoint:     endpoints.Microsoft,
				RedirectURL:  redirect(models.ProviderOneDrive),
				Scopes:       []string{"offline_access", "Files.Read", "User.Read"},
			},
			models.ProviderDropbox: {
				ClientID:     cfg.DropboxClientID,
				ClientSecret: cfg.DropboxClientSecret,
				Endpoint:     dropboxEndpoint,
				RedirectURL:  redirect(models.ProviderDropbox),
				Scopes:       []string{"files.metadata.read", "files.content.read"},
			},
		},
		states: make(map[string]oauthState),
	}
}

func (f *oauthFlow) config(p models.Provider) (*oauth2.Config, bool) {
	conf, ok := f.configs[p]
	return conf, ok
}

// newState registers a pending authorization and returns its state token.
// Inputs are copied: fiber request strings do not outlive their handler, and
// the pending state must survive until the callback arrives.
func (f *oauthFlow) newState(userID string, p models.Provider) string {
	f.mu.Lock()
	defer f.mu.Unlock()

	now := time.Now()
	for s, st := range f.states {
		if now.After(st.expiresAt) {
			delete(f.states, s)
		}
	}

	state := uuid.New().String()
	f.states[state] = oauthState{
		userID:    strings.Clone(userID),
		provider:  models.Provider(strings.Clone(string(p))),
		expiresAt: now.Add(stateTTL),
	}
	return state
}

// takeState consumes a state token.
func (f *oauthFlow) takeState(state string) (oauthState, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	st, ok := f.states[state]
	if !ok {
		return oauthState{}, false
	}
	delete(f.states, state)
	if time.Now().After(st.expiresAt) {
		return oauthState{}, false
	}
	return st, true
}

// authCodeOptions returns the provider-specific authorize-URL parameters
// required to receive a refresh token.
func authCodeOptions(p models.Provider) []oauth2.AuthCodeOption {
	switch p {
	case models.ProviderGoogleDrive:
		return []oauth2.AuthCodeOption{oauth2.AccessTypeOffline, oauth2.SetAuthURLParam("prompt", "consent")}
	case models.ProviderDropbox:
		return []oauth2.AuthCodeOption{oauth2.SetAuthURLParam("token_access_type", "offline")}
	default:
		return nil
	}
}

// ListIntegrations returns the caller's connected drives, tokens redacted.
func (h *Handler) ListIntegrations(c *fiber.Ctx) error {
	integrations, err := h.store.ListIntegrationsByUser(c.Context(), requestUserID(c))
	if err != nil {
		log.Printf("❌ [ListIntegrations] %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to fetch integrations"})
	}
	return c.JSON(fiber.Map{"integrations": integrations})
}

// ConnectIntegration starts the OAuth flow for one provider and hands the
// authorize URL back to the portal frontend.
func (h *Handler) ConnectIntegration(c *fiber.Ctx) error {
	provider, ok := parseProviderParam(c)
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "unsupported provider"})
	}
	conf, ok := h.oauth.config(provider)
	if !ok || conf.ClientID == "" {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "provider not configured"})
	}

	state := h.oauth.newState(requestUserID(c), provider)
	authURL := conf.AuthCodeURL(state, authCodeOptions(provider)...)

	log.Printf("🔗 [ConnectIntegration] %s flow started for user %s", provider, requestUserID(c))
	return c.JSON(fiber.Map{"auth_url": authURL, "state": state})
}

// OAuthCallback finishes the flow: exchanges the authorization code and
// upserts the integration row for the user who started the flow.
func (h *Handler) OAuthCallback(c *fiber.Ctx) error {
	provider, ok := parseProviderParam(c)
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "unsupported provider"})
	}
	if errParam := c.Query("error"); errParam != "" {
		log.Printf("⚠️ [OAuthCallback] %s authorization denied: %s", provider, errParam)
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "authorization denied"})
	}

	code := c.Query("code")
	stateParam := c.Query("state")
	if code == "" || stateParam == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "code and state required"})
	}

	st, ok := h.oauth.takeState(stateParam)
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "unknown or expired state"})
	}
	if st.provider != provider {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "state does not match provider"})
	}

	conf, _ := h.oauth.config(provider)
	tok, err := conf.Exchange(c.Context(), code)
	if err != nil {
		log.Printf("❌ [OAuthCallback] %s token exchange failed: %v", provider, err)
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": "token exchange failed"})
	}

	orgID, err := h.resolveUserOrg(c, st.userID)
	if err != nil {
		// Org attachment is best-effort here; the sync job falls back to the
		// user's org at run time.
		log.Printf("⚠️ [OAuthCallback] Could not resolve org for %s: %v", st.userID, err)
	}

	accessToken := tok.AccessToken
	integ := &models.Integration{
		UserID:         st.userID,
		OrganizationID: orgID,
		Provider:       provider,
		Status:         models.IntegrationStatusActive,
		AccessToken:    &accessToken,
	}
	if tok.RefreshToken != "" {
		rt := tok.RefreshToken
		integ.RefreshToken = &rt
	}
	if !tok.Expiry.IsZero() {
		exp := tok.Expiry.UTC()
		integ.TokenExpiresAt = &exp
	}

	if err := h.store.UpsertIntegration(c.Context(), integ); err != nil {
		log.Printf("❌ [OAuthCallback] Failed to save %s integration for %s: %v", provider, st.userID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to save integration"})
	}

	h.audit.Record(c.Context(), audit.Entry{
		OrganizationID: orgID,
		ActorID:        &st.userID,
		Action:         audit.ActionIntegrationConnected,
		TargetType:     "integration",
		TargetID:       integ.ID.String(),
		Detail:         map[string]interface{}{"provider": provider},
	})
	h.alerts.IntegrationConnected(integ.ID, provider)

	log.Printf("✅ [OAuthCallback] %s connected for user %s", provider, st.userID)
	return c.JSON(fiber.Map{"status": "connected", "integration": integ})
}

// DisconnectIntegration turns an integration off. Rows are kept so the run
// history stays attributable.
func (h *Handler) DisconnectIntegration(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid integration id"})
	}

	integ, err := h.store.GetIntegration(c.Context(), id)
	if err != nil {
		log.Printf("❌ [DisconnectIntegration] %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to fetch integration"})
	}
	if integ == nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "integration not found"})
	}
	if integ.UserID != requestUserID(c) {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "not your integration"})
	}

	if err := h.store.SetIntegrationStatus(c.Context(), id, models.IntegrationStatusDisabled); err != nil {
		log.Printf("❌ [DisconnectIntegration] %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to disconnect integration"})
	}

	h.audit.Record(c.Context(), audit.Entry{
		OrganizationID: integ.OrganizationID,
		ActorID:        actorID(c),
		Action:         audit.ActionIntegrationDisconnected,
		TargetType:     "integration",
		TargetID:       id.String(),
		Detail:         map[string]interface{}{"provider": integ.Provider},
	})

	return c.JSON(fiber.Map{"status": "success", "message": "integration disconnected"})
}
