// Package clients holds typed Go clients for the auction server's Connect
// services. They speak the server's JSON codec, so no generated stubs are needed.
package clients

import (
	"context"
	"net/http"
	"time"

	"connectrpc.com/connect"

	"github.com/mcdev12/leagueauction/go/internal/auction/service"
)

type BaseClient struct {
	baseURL string
	client  *http.Client
	headers http.Header
}

func NewBaseClient(baseURL string) *BaseClient {
	return &BaseClient{
		baseURL: baseURL,
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
		headers: make(http.Header),
	}
}

// NewBaseClientWithHTTP uses an existing client, e.g. one from httptest.
func NewBaseClientWithHTTP(baseURL string, client *http.Client) *BaseClient {
	c := NewBaseClient(baseURL)
	c.client = client
	return c
}

func (c *BaseClient) SetHeader(key, value string) {
	c.headers.Set(key, value)
}

// SetToken sends token as a bearer credential on every call.
func (c *BaseClient) SetToken(token string) {
	c.SetHeader("Authorization", "Bearer "+token)
}

func (c *BaseClient) SetTimeout(timeout time.Duration) {
	c.client.Timeout = timeout
}

func (c *BaseClient) headerInterceptor() connect.UnaryInterceptorFunc {
	return func(next connect.UnaryFunc) connect.UnaryFunc {
		return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
			if req.Spec().IsClient {
				for key, values := range c.headers {
					for _, v := range values {
						req.Header().Add(key, v)
					}
				}
			}
			return next(ctx, req)
		}
	}
}

// newUnary builds a client for one procedure of the auction server.
func newUnary[Req, Res any](c *BaseClient, procedure string) *connect.Client[Req, Res] {
	return connect.NewClient[Req, Res](
		c.client,
		c.baseURL+procedure,
		connect.WithCodec(service.JSONCodec{}),
		connect.WithInterceptors(c.headerInterceptor()),
	)
}

func invoke[Req, Res any](ctx context.Context, client *connect.Client[Req, Res], msg *Req) (*Res, error) {
	resp, err := client.CallUnary(ctx, connect.NewRequest(msg))
	if err != nil {
		return nil, err
	}
	return resp.Msg, nil
}
