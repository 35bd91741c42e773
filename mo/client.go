// Package mo implements the directory query facade over the OS2mo registry:
// GraphQL reads plus record edits through the service API.
package mo

import (
	"net/http"
	"time"

	graphql "github.com/hasura/go-graphql-client"
)

// authTransport injects a static bearer token into every registry request.
type authTransport struct {
	token string
	base  http.RoundTripper
}

func (t *authTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	clone := req.Clone(req.Context())
	clone.Header.Set("Authorization", "Bearer "+t.token)
	return t.base.RoundTrip(clone)
}

// NewHTTPClient builds the HTTP client shared by the GraphQL and service API
// transports. The timeout bounds every registry call.
func NewHTTPClient(timeout time.Duration, token string) *http.Client {
	client := &http.Client{Timeout: timeout}
	if token != "" {
		client.Transport = &authTransport{token: token, base: http.DefaultTransport}
	}
	return client
}

// NewGraphQLClient builds a client for the registry's GraphQL endpoint.
func NewGraphQLClient(moURL string, httpClient *http.Client) *graphql.Client {
	return graphql.NewClient(moURL+"/graphql", httpClient)
}
