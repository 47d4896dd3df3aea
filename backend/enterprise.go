package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/oauth2"

	"github.com/huykn/assessment-cache/cache"
	"github.com/huykn/assessment-cache/types"
)

const (
	// DefaultEnterpriseURL is the reCAPTCHA Enterprise API base.
	DefaultEnterpriseURL = "https://recaptchaenterprise.googleapis.com/v1"

	// epochZero is reported when the backend does not know the token's
	// creation time.
	epochZero = "1970-01-01T00:00:00Z"

	defaultEnvironmentClient = "assessment-cache"
)

// EnterpriseConfig configures the authenticated enterprise backend.
type EnterpriseConfig struct {
	// ProjectID is the Google Cloud project owning the site key.
	ProjectID string

	// TokenSource supplies bearer credentials.
	TokenSource oauth2.TokenSource

	// URL overrides DefaultEnterpriseURL.
	URL string

	// EnvironmentClient and EnvironmentVersion fill assessmentEnvironment.
	EnvironmentClient  string
	EnvironmentVersion string

	// Timeout bounds each call. Defaults to DefaultTimeout.
	Timeout time.Duration

	// Sender performs the HTTP exchange. Defaults to an HTTPSender.
	Sender Sender

	// Logger receives diagnostic output. Defaults to no-op.
	Logger cache.Logger
}

// Enterprise is the authenticated backend.
type Enterprise struct {
	config EnterpriseConfig
}

type enterpriseRequest struct {
	Event                 types.AssessmentEvent `json:"event"`
	AssessmentEnvironment assessmentEnvironment `json:"assessmentEnvironment"`
}

type assessmentEnvironment struct {
	Client  string `json:"client"`
	Version string `json:"version,omitempty"`
}

// NewEnterprise creates the enterprise backend.
func NewEnterprise(config EnterpriseConfig) (*Enterprise, error) {
	if config.ProjectID == "" {
		return nil, fmt.Errorf("enterprise backend: project id is required")
	}
	if config.TokenSource == nil {
		return nil, fmt.Errorf("enterprise backend: token source is required")
	}
	if config.URL == "" {
		config.URL = DefaultEnterpriseURL
	}
	if config.EnvironmentClient == "" {
		config.EnvironmentClient = defaultEnvironmentClient
	}
	if config.Timeout <= 0 {
		config.Timeout = DefaultTimeout
	}
	if config.Sender == nil {
		config.Sender = NewHTTPSender(nil)
	}
	if config.Logger == nil {
		config.Logger = cache.NewNoOpLogger()
	}
	return &Enterprise{config: config}, nil
}

// Name returns "enterprise".
func (e *Enterprise) Name() string {
	return "enterprise"
}

// Assess creates an assessment for the token.
func (e *Enterprise) Assess(ctx context.Context, req Request) (*types.Assessment, error) {
	ctx, cancel := context.WithTimeout(ctx, e.config.Timeout)
	defer cancel()

	token, err := e.token(ctx)
	if err != nil {
		return nil, err
	}

	body, err := json.Marshal(enterpriseRequest{
		Event: types.AssessmentEvent{
			Token:          req.Token,
			SiteKey:        req.SiteKey,
			ExpectedAction: req.Action,
			UserIPAddress:  req.RemoteIP,
			UserAgent:      req.UserAgent,
		},
		AssessmentEnvironment: assessmentEnvironment{
			Client:  e.config.EnvironmentClient,
			Version: e.config.EnvironmentVersion,
		},
	})
	if err != nil {
		return nil, wrap("encode request", err)
	}

	endpoint := e.config.URL + "/projects/" + url.PathEscape(e.config.ProjectID) + "/assessments"
	httpReq, err := http.NewRequest(http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, wrap("build request", err)
	}
	httpReq.Header.Set("Content-Type", "application/json; charset=utf-8")
	token.SetAuthHeader(httpReq)

	e.config.Logger.Debug("enterprise request", "url", endpoint)

	resp, err := e.config.Sender.Send(ctx, httpReq)
	if err != nil {
		return nil, wrap("send", err)
	}
	e.config.Logger.Debug("enterprise response", "status", resp.StatusCode, "body", string(resp.Body))

	if resp.StatusCode != http.StatusOK {
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: string(resp.Body)}
	}

	var assessment types.Assessment
	if err := json.Unmarshal(resp.Body, &assessment); err != nil {
		return nil, wrap("decode response", err)
	}
	assessment.Raw = resp.Body

	// The backend validates the token but not always the action; check the
	// echoed expectation ourselves.
	expected := ""
	if assessment.Event != nil {
		expected = assessment.Event.ExpectedAction
	}
	assessment.TokenProperties.Valid = assessment.TokenProperties.Valid && assessment.TokenProperties.Action == expected

	if assessment.TokenProperties.CreateTime == epochZero {
		assessment.TokenProperties.CreateTime = ""
	}

	return &assessment, nil
}

type tokenResult struct {
	token *oauth2.Token
	err   error
}

// token fetches a bearer token within ctx. TokenSource.Token takes no
// context, so a stalled credential endpoint is abandoned at the deadline.
func (e *Enterprise) token(ctx context.Context) (*oauth2.Token, error) {
	ch := make(chan tokenResult, 1)
	go func() {
		token, err := e.config.TokenSource.Token()
		ch <- tokenResult{token: token, err: err}
	}()

	select {
	case res := <-ch:
		if res.err != nil {
			return nil, fmt.Errorf("%w: %w", ErrCredential, res.err)
		}
		return res.token, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: acquire credential: %w", ErrCredential, ctx.Err())
	}
}
