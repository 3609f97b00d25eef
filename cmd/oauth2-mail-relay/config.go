package main

import "time"

// Config holds server configuration loaded from environment variables
type Config struct {
	Port int `envconfig:"PORT" default:"8080"`

	// Client registration with the identity provider. Missing credentials
	// are a fatal startup condition.
	ClientID     string   `envconfig:"CLIENT_ID" required:"true"`
	ClientSecret string   `envconfig:"CLIENT_SECRET" required:"true"`
	TenantID     string   `envconfig:"TENANT_ID" default:"common"`
	RedirectURI  string   `envconfig:"REDIRECT_URI" default:"http://localhost:8080/oauth/redirect"`
	Scopes       []string `envconfig:"OAUTH_SCOPES"`

	// Token persistence. When REDIS_URL is set the token record and state
	// tokens live in Redis; otherwise the record is a local JSON file.
	TokenFile    string        `envconfig:"TOKEN_FILE" default:"token.json"`
	RedisURL     string        `envconfig:"REDIS_URL"`
	ExpiryBuffer time.Duration `envconfig:"TOKEN_EXPIRY_BUFFER" default:"5m"`

	// Authorization state (CSRF) settings.
	StateSecret string        `envconfig:"STATE_SECRET"`
	StateExpiry time.Duration `envconfig:"STATE_EXPIRY" default:"10m"`

	GraphBaseURL string `envconfig:"GRAPH_BASE_URL" default:"https://graph.microsoft.com"`

	// HTTP server timeouts.
	ReadTimeout       time.Duration `envconfig:"READ_TIMEOUT" default:"5s"`
	WriteTimeout      time.Duration `envconfig:"WRITE_TIMEOUT" default:"10s"`
	IdleTimeout       time.Duration `envconfig:"IDLE_TIMEOUT" default:"120s"`
	ReadHeaderTimeout time.Duration `envconfig:"READ_HEADER_TIMEOUT" default:"2s"`
	RequestTimeout    time.Duration `envconfig:"REQUEST_TIMEOUT" default:"30s"`
}
