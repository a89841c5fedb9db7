package gateway

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	kratos "github.com/ory/kratos-client-go"

	"github.com/nw-com/nw-patrol/internal/domain"
)

const (
	traitEmail = "email"
	traitName  = "name"

	identityStateActive = "active"
)

// KratosGateway implements domain.TokenVerifier and domain.IdentityProvider.
type KratosGateway struct {
	public   *kratos.APIClient
	admin    *kratos.APIClient
	schemaID string
	logger   *slog.Logger
}

// NewKratosGateway creates a gateway for the public and admin Kratos APIs.
func NewKratosGateway(publicURL, adminURL, schemaID string, timeout time.Duration, logger *slog.Logger) (*KratosGateway, error) {
	if !isValidURL(publicURL) {
		return nil, fmt.Errorf("invalid Kratos public URL: %s", publicURL)
	}
	if !isValidURL(adminURL) {
		return nil, fmt.Errorf("invalid Kratos admin URL: %s", adminURL)
	}

	transport := &http.Transport{
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 20,
		IdleConnTimeout:     90 * time.Second,
	}
	httpClient := &http.Client{
		Timeout:   timeout,
		Transport: transport,
	}

	return &KratosGateway{
		public:   newAPIClient(publicURL, httpClient),
		admin:    newAPIClient(adminURL, httpClient),
		schemaID: schemaID,
		logger:   logger.With("component", "kratos_gateway"),
	}, nil
}

func newAPIClient(baseURL string, httpClient *http.Client) *kratos.APIClient {
	configuration := kratos.NewConfiguration()
	configuration.Servers = []kratos.ServerConfiguration{
		{URL: baseURL},
	}
	configuration.HTTPClient = httpClient
	return kratos.NewAPIClient(configuration)
}

// VerifyToken resolves a Kratos session token to the identity that owns it.
func (g *KratosGateway) VerifyToken(ctx context.Context, token string) (*domain.Caller, error) {
	if token == "" {
		return nil, domain.ErrCredentialInvalid
	}

	session, resp, err := g.public.FrontendAPI.ToSession(ctx).XSessionToken(token).Execute()
	if err != nil {
		if resp != nil {
			if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
				return nil, domain.ErrCredentialInvalid
			}
			return nil, fmt.Errorf("%w: kratos returned status %d", domain.ErrIdentityProviderUnavailable, resp.StatusCode)
		}
		return nil, fmt.Errorf("%w: %w", domain.ErrIdentityProviderUnavailable, err)
	}

	if session.Active != nil && !*session.Active {
		return nil, fmt.Errorf("%w: session is not active", domain.ErrCredentialInvalid)
	}
	if session.Identity == nil || session.Identity.Id == "" {
		return nil, fmt.Errorf("%w: session has no identity", domain.ErrCredentialInvalid)
	}

	return &domain.Caller{ID: session.Identity.Id, IsAuthenticated: true}, nil
}

// CreateAccount creates an identity with a password credential.
func (g *KratosGateway) CreateAccount(ctx context.Context, account domain.NewAccount) (*domain.IdentityRecord, error) {
	body := kratos.NewCreateIdentityBody(g.schemaID, map[string]interface{}{
		traitEmail: account.Email,
		traitName:  account.DisplayName,
	})
	body.Credentials = passwordCredentials(account.Password)

	identity, resp, err := g.admin.IdentityAPI.CreateIdentity(ctx).CreateIdentityBody(*body).Execute()
	if err != nil {
		classified := classifyIdentityError(err, resp)
		g.logger.WarnContext(ctx, "kratos create identity failed", "http_status", statusOf(resp), "error", classified)
		return nil, classified
	}

	g.logger.InfoContext(ctx, "kratos identity created", "identity_id", identity.Id)
	return &domain.IdentityRecord{
		ID:          identity.Id,
		Email:       account.Email,
		DisplayName: account.DisplayName,
	}, nil
}

// UpdateAccount rewrites the display name trait and, when given, the password.
// Kratos replaces the whole identity on PUT, so other traits, the state, both
// metadata documents and the external id are carried over from a fresh read.
func (g *KratosGateway) UpdateAccount(ctx context.Context, id string, changes domain.AccountChanges) error {
	identity, resp, err := g.admin.IdentityAPI.GetIdentity(ctx, id).Execute()
	if err != nil {
		return classifyIdentityError(err, resp)
	}

	traits := map[string]interface{}{}
	if existing, ok := identity.Traits.(map[string]interface{}); ok {
		for k, v := range existing {
			traits[k] = v
		}
	}
	traits[traitName] = changes.DisplayName

	state := string(identity.GetState())
	if state == "" {
		state = identityStateActive
	}

	body := kratos.NewUpdateIdentityBody(identity.SchemaId, state, traits)
	body.MetadataPublic = identity.MetadataPublic
	body.MetadataAdmin = identity.MetadataAdmin
	body.ExternalId = identity.ExternalId
	if changes.Password != "" {
		body.Credentials = passwordCredentials(changes.Password)
	}

	_, resp, err = g.admin.IdentityAPI.UpdateIdentity(ctx, id).UpdateIdentityBody(*body).Execute()
	if err != nil {
		classified := classifyIdentityError(err, resp)
		g.logger.WarnContext(ctx, "kratos update identity failed", "identity_id", id, "http_status", statusOf(resp), "error", classified)
		return classified
	}

	g.logger.InfoContext(ctx, "kratos identity updated", "identity_id", id, "password_changed", changes.Password != "")
	return nil
}

// DeleteAccount deletes the identity and with it all its sessions.
func (g *KratosGateway) DeleteAccount(ctx context.Context, id string) error {
	resp, err := g.admin.IdentityAPI.DeleteIdentity(ctx, id).Execute()
	if err != nil {
		classified := classifyIdentityError(err, resp)
		g.logger.WarnContext(ctx, "kratos delete identity failed", "identity_id", id, "http_status", statusOf(resp), "error", classified)
		return classified
	}

	g.logger.InfoContext(ctx, "kratos identity deleted", "identity_id", id)
	return nil
}

// HealthCheck reports whether the admin API is ready.
func (g *KratosGateway) HealthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	_, resp, err := g.admin.MetadataAPI.IsReady(ctx).Execute()
	if err != nil {
		return fmt.Errorf("kratos health check failed (status %d): %w", statusOf(resp), err)
	}
	return nil
}

func passwordCredentials(password string) *kratos.IdentityWithCredentials {
	return &kratos.IdentityWithCredentials{
		Password: &kratos.IdentityWithCredentialsPassword{
			Config: &kratos.IdentityWithCredentialsPasswordConfig{
				Password: kratos.PtrString(password),
			},
		},
	}
}

func statusOf(resp *http.Response) int {
	if resp == nil {
		return 0
	}
	return resp.StatusCode
}

// isValidURL checks if a URL is valid
func isValidURL(str string) bool {
	u, err := url.Parse(str)
	return err == nil && u.Scheme != "" && u.Host != ""
}
