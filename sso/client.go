package sso

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"federation/logger"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/oauth2"
)

const instrumentationName = "federation/sso"

// maxUserInfoBytes bounds the userinfo body read from a provider.
const maxUserInfoBytes = 1 << 20

// DefaultPublishTimeout bounds how long Login waits for the event publisher.
const DefaultPublishTimeout = 2 * time.Second

// ClientConfig contains the per-provider configuration supplied by the
// application.
type ClientConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	Scopes       []string
	// AccessHeaders are sent with every userinfo request. Some providers,
	// GitHub among them, reject requests without a User-Agent.
	AccessHeaders map[string]string
}

// LoginEvent describes a completed login. It is handed to the configured
// EventPublisher.
type LoginEvent struct {
	Provider   string     `json:"provider"`
	ProviderID ProviderID `json:"provider_id"`
	IdentityID string     `json:"identity_id"`
	Username   string     `json:"username,omitempty"`
	TokenType  string     `json:"token_type"`
	Missing    []string   `json:"missing_fields,omitempty"`
	At         time.Time  `json:"at"`
}

// EventPublisher receives login events.
type EventPublisher interface {
	PublishLogin(ctx context.Context, event LoginEvent) error
}

// Client binds a registered provider to its configuration and drives the
// OAuth2 authorization code exchange through golang.org/x/oauth2.
// A Client is immutable and safe for concurrent use.
type Client struct {
	id            ProviderID
	provider      Provider
	config        *oauth2.Config
	accessHeaders map[string]string

	httpClient *http.Client
	log        *logger.Logger
	tracer     trace.Tracer
	publisher  EventPublisher

	publishTimeout time.Duration

	logins  metric.Int64Counter
	missing metric.Int64Counter
}

// ClientOption configures a Client.
type ClientOption func(*clientOptions)

type clientOptions struct {
	httpClient     *http.Client
	log            *logger.Logger
	tracerProvider trace.TracerProvider
	meterProvider  metric.MeterProvider
	publisher      EventPublisher
	publishTimeout time.Duration
}

// WithHTTPClient sets the HTTP client used for token and userinfo requests.
func WithHTTPClient(c *http.Client) ClientOption {
	return func(o *clientOptions) { o.httpClient = c }
}

// WithLogger sets the logger.
func WithLogger(l *logger.Logger) ClientOption {
	return func(o *clientOptions) { o.log = l }
}

// WithTracerProvider sets the tracer provider. Defaults to the global one.
func WithTracerProvider(tp trace.TracerProvider) ClientOption {
	return func(o *clientOptions) { o.tracerProvider = tp }
}

// WithMeterProvider sets the meter provider. Defaults to the global one.
func WithMeterProvider(mp metric.MeterProvider) ClientOption {
	return func(o *clientOptions) { o.meterProvider = mp }
}

// WithPublisher sets the publisher notified after each successful login.
func WithPublisher(p EventPublisher) ClientOption {
	return func(o *clientOptions) { o.publisher = p }
}

// WithPublishTimeout bounds each PublishLogin call. Defaults to
// DefaultPublishTimeout.
func WithPublishTimeout(d time.Duration) ClientOption {
	return func(o *clientOptions) { o.publishTimeout = d }
}

// NewClient creates a client for the provider registered under id.
func NewClient(id ProviderID, provider Provider, cfg ClientConfig, opts ...ClientOption) (*Client, error) {
	endpoints := provider.Endpoints()
	if !endpoints.complete() {
		return nil, fmt.Errorf("%w: %q has endpoints %+v", ErrMissingEndpoint, provider.Name(), endpoints)
	}

	o := clientOptions{
		tracerProvider: otel.GetTracerProvider(),
		meterProvider:  otel.GetMeterProvider(),
		publishTimeout: DefaultPublishTimeout,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.log == nil {
		o.log = logger.Nop()
	}
	if o.httpClient == nil {
		o.httpClient = &http.Client{
			Timeout: 10 * time.Second,
			Transport: otelhttp.NewTransport(http.DefaultTransport,
				otelhttp.WithTracerProvider(o.tracerProvider),
				otelhttp.WithMeterProvider(o.meterProvider),
			),
		}
	}

	meter := o.meterProvider.Meter(instrumentationName)
	logins, err := meter.Int64Counter("sso.logins",
		metric.WithDescription("Completed login attempts by provider and outcome"))
	if err != nil {
		return nil, fmt.Errorf("creating logins counter: %w", err)
	}
	missing, err := meter.Int64Counter("sso.identity.missing_fields",
		metric.WithDescription("Supported identity fields absent from a userinfo response"))
	if err != nil {
		return nil, fmt.Errorf("creating missing fields counter: %w", err)
	}

	return &Client{
		id:       id,
		provider: provider,
		config: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       cfg.Scopes,
			Endpoint: oauth2.Endpoint{
				AuthURL:  endpoints.AuthURL,
				TokenURL: endpoints.TokenURL,
			},
		},
		accessHeaders: cfg.AccessHeaders,
		httpClient:    o.httpClient,
		log:           o.log,
		tracer:        o.tracerProvider.Tracer(instrumentationName),
		publisher:     o.publisher,
		logins:        logins,
		missing:       missing,

		publishTimeout: o.publishTimeout,
	}, nil
}

// ID returns the provider id the client was built for
func (c *Client) ID() ProviderID { return c.id }

// Provider returns the bound provider
func (c *Client) Provider() Provider { return c.provider }

// SameOrigin propagates the provider's same-origin flag to callers.
func (c *Client) SameOrigin() bool { return c.provider.SameOrigin() }

// AuthCodeURL returns the URL to redirect the user to for authentication
func (c *Client) AuthCodeURL(state string) string {
	return c.config.AuthCodeURL(state, oauth2.AccessTypeOnline)
}

// Exchange trades an authorization code for a normalized credential.
func (c *Client) Exchange(ctx context.Context, code string) (*Credential, error) {
	ctx, span := c.tracer.Start(ctx, "sso.Exchange", trace.WithAttributes(c.attrs()...))
	defer span.End()

	if code == "" {
		err := fmt.Errorf("no code in request")
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	tok, err := c.config.Exchange(context.WithValue(ctx, oauth2.HTTPClient, c.httpClient), code)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "code exchange failed")
		return nil, fmt.Errorf("code exchange failed: %w", err)
	}

	raw := tokenResponse(tok)
	cred := newCredential(tok)
	cred.Provider = c.provider.Name()
	cred.ProviderID = c.id
	cred = c.provider.ParseCredentials(cred, raw)

	wireType, _ := raw["token_type"].(string)
	if cred.TokenType == TokenTypeUnknown {
		c.log.With(
			logger.F("provider", c.provider.Name()),
			logger.F("token_type", wireType),
		).Context(ctx).Warn("token type not recognized by provider parser")
	}
	span.SetAttributes(attribute.String("sso.token_type", cred.TokenType.String()))
	return cred, nil
}

// FetchIdentity requests the userinfo endpoint with cred and normalizes the
// response through the provider's user parser.
func (c *Client) FetchIdentity(ctx context.Context, cred *Credential) (*Identity, error) {
	ctx, span := c.tracer.Start(ctx, "sso.FetchIdentity", trace.WithAttributes(c.attrs()...))
	defer span.End()

	data, err := c.userInfo(ctx, cred)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "userinfo request failed")
		return nil, err
	}

	identity := &Identity{Provider: c.provider.Name(), ProviderID: c.id, Data: data}
	identity = c.provider.ParseUser(identity, data)

	attrs := c.provider.SupportedAttributes()
	if cleared := attrs.Restrict(identity); len(cleared) > 0 {
		c.log.With(
			logger.F("provider", c.provider.Name()),
			logger.F("cleared", cleared),
		).Context(ctx).Warn("provider parser filled unsupported identity fields")
	}

	read, missing := fieldTrace(identity, attrs)
	c.log.With(
		logger.F("provider", c.provider.Name()),
		logger.F("read", read),
		logger.F("missing", missing),
	).Context(ctx).Debug("identity normalized")
	for _, name := range missing {
		c.missing.Add(ctx, 1, metric.WithAttributes(
			attribute.String("provider", c.provider.Name()),
			attribute.String("field", name),
		))
	}
	return identity, nil
}

// Login runs the code exchange and the userinfo request. The login event is
// published best effort within the publish timeout.
func (c *Client) Login(ctx context.Context, code string) (*Identity, *Credential, error) {
	cred, err := c.Exchange(ctx, code)
	if err != nil {
		c.count(ctx, "exchange_failed")
		return nil, nil, err
	}
	identity, err := c.FetchIdentity(ctx, cred)
	if err != nil {
		c.count(ctx, "userinfo_failed")
		return nil, nil, err
	}
	c.count(ctx, "success")

	c.log.With(
		logger.F("provider", identity.Provider),
		logger.F("provider_id", int(identity.ProviderID)),
		logger.F("identity", identity.String()),
	).Context(ctx).Info("user authenticated")

	if c.publisher != nil {
		_, missing := fieldTrace(identity, c.provider.SupportedAttributes())
		event := LoginEvent{
			Provider:   identity.Provider,
			ProviderID: identity.ProviderID,
			IdentityID: identity.ID,
			Username:   identity.Username,
			TokenType:  cred.TokenType.String(),
			Missing:    missing,
			At:         time.Now().UTC(),
		}
		c.publish(ctx, event)
	}
	return identity, cred, nil
}

func (c *Client) publish(ctx context.Context, event LoginEvent) {
	if c.publishTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.publishTimeout)
		defer cancel()
	}
	if err := c.publisher.PublishLogin(ctx, event); err != nil {
		c.log.With(logger.F("provider", event.Provider)).WithError(err).
			Context(ctx).Error("failed to publish login event")
	}
}

func (c *Client) userInfo(ctx context.Context, cred *Credential) (map[string]any, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.provider.Endpoints().UserInfoURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	for k, v := range c.accessHeaders {
		req.Header.Set(k, v)
	}
	cred.OAuth2Token().SetAuthHeader(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed getting user info: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxUserInfoBytes))
	if err != nil {
		return nil, fmt.Errorf("failed reading response body: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("failed to get user info: status=%d", resp.StatusCode)
	}

	var data map[string]any
	if err := json.Unmarshal(body, &data); err != nil {
		return nil, fmt.Errorf("%w: userinfo: %v", ErrMalformedResponse, err)
	}
	if data == nil {
		// A literal JSON null decodes without error.
		data = map[string]any{}
	}
	return data, nil
}

func (c *Client) count(ctx context.Context, outcome string) {
	c.logins.Add(ctx, 1, metric.WithAttributes(
		attribute.String("provider", c.provider.Name()),
		attribute.String("outcome", outcome),
	))
}

func (c *Client) attrs() []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String("sso.provider", c.provider.Name()),
		attribute.Int("sso.provider_id", int(c.id)),
	}
}

// fieldTrace splits the supported attributes into those present on identity
// and those missing.
func fieldTrace(identity *Identity, attrs SupportedAttributes) (read, missing []string) {
	fields := identity.Fields()
	for _, name := range attrs.Names() {
		if _, ok := fields[name]; ok {
			read = append(read, name)
		} else {
			missing = append(missing, name)
		}
	}
	return read, missing
}
