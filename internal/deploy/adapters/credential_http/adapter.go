// Package credentialhttp resolves container registry credentials from an
// HTTP credential provider.
package credentialhttp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/nathantilsley/update-agent/api"
	"github.com/nathantilsley/update-agent/internal/deploy/domain"
	"github.com/nathantilsley/update-agent/internal/platform/schema"
)

const resourceKind = "container"

var credentialsSchema = sync.OnceValue(func() *schema.Validator {
	return schema.MustCompile(api.CredentialsSchema)
})

type fetchRequest struct {
	Kind       string `json:"kind"`
	ResourceID string `json:"resourceId"`
}

// Adapter implements ports.CredentialPort.
type Adapter struct {
	endpoint string
	token    string
	client   *http.Client
	logger   *slog.Logger
}

// New creates a credential provider client. endpoint must be an absolute
// http or https URL and token must be non-empty.
func New(endpoint, token string, timeout time.Duration, logger *slog.Logger) (*Adapter, error) {
	if err := validateEndpoint(endpoint); err != nil {
		return nil, domain.NewArgError("credentialProviderEndpoint", err.Error())
	}
	if token == "" {
		return nil, domain.NewArgError("credentialProviderAuth", "must not be empty")
	}
	return &Adapter{
		endpoint: endpoint,
		token:    token,
		client: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		logger: logger,
	}, nil
}

func validateEndpoint(endpoint string) error {
	u, err := url.Parse(endpoint)
	if err != nil {
		return fmt.Errorf("not a valid URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("scheme must be http or https, got %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("missing host in %q", endpoint)
	}
	return nil
}

// Fetch requests credentials for one repository. The request is made once.
func (a *Adapter) Fetch(ctx context.Context, repoURI string) (domain.Credentials, error) {
	a.logger.Debug("requesting container credentials", "repository", repoURI)

	body, err := json.Marshal(fetchRequest{Kind: resourceKind, ResourceID: repoURI})
	if err != nil {
		return domain.Credentials{}, &domain.FetchError{RepoURI: repoURI, Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.endpoint, bytes.NewReader(body))
	if err != nil {
		return domain.Credentials{}, &domain.FetchError{RepoURI: repoURI, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", a.token)

	resp, err := a.client.Do(req)
	if err != nil {
		a.logger.Error("credential provider request failed", "repository", repoURI, "error", err)
		return domain.Credentials{}, &domain.FetchError{RepoURI: repoURI, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return domain.Credentials{}, &domain.FetchError{RepoURI: repoURI, Err: fmt.Errorf("reading response: %w", err)}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		a.logger.Error("credential provider returned error status",
			"repository", repoURI, "status", resp.StatusCode)
		return domain.Credentials{}, &domain.FetchError{
			RepoURI: repoURI,
			Err:     fmt.Errorf("unexpected status %d", resp.StatusCode),
		}
	}

	var doc any
	if err := json.Unmarshal(payload, &doc); err != nil {
		return domain.Credentials{}, &domain.FetchError{RepoURI: repoURI, Err: fmt.Errorf("decoding response: %w", err)}
	}
	violations, err := credentialsSchema().Validate(doc)
	if err != nil {
		return domain.Credentials{}, &domain.FetchError{RepoURI: repoURI, Err: err}
	}
	if len(violations) > 0 {
		fields := make([]domain.FieldError, 0, len(violations))
		for _, v := range violations {
			fields = append(fields, domain.FieldError{Field: v.Field, Description: v.Description})
		}
		a.logger.Error("credentials do not conform to expected schema", "repository", repoURI)
		return domain.Credentials{}, &domain.FetchError{RepoURI: repoURI, Fields: fields}
	}

	var creds domain.Credentials
	if err := json.Unmarshal(payload, &creds); err != nil {
		return domain.Credentials{}, &domain.FetchError{RepoURI: repoURI, Err: fmt.Errorf("decoding response: %w", err)}
	}
	a.logger.Debug("container credentials received", "repository", repoURI, "server", creds.Server)
	return creds, nil
}
