package backend

import (
	"context"
	"io"
	"net/http"
)

// maxBodySize caps how much of an upstream response is read.
const maxBodySize = 1 << 20

// Response is the status and body of an upstream reply.
type Response struct {
	StatusCode int
	Body       []byte
}

// Sender performs one HTTP exchange. Transport failures, including an
// exceeded deadline, are returned as errors, never as a Response.
type Sender interface {
	Send(ctx context.Context, req *http.Request) (Response, error)
}

// HTTPSender is a Sender backed by an http.Client.
type HTTPSender struct {
	client *http.Client
}

// NewHTTPSender creates a Sender. A nil client means http.DefaultClient;
// the deadline always comes from the context passed to Send.
func NewHTTPSender(client *http.Client) *HTTPSender {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPSender{client: client}
}

// Send executes req with ctx and reads the whole body.
func (s *HTTPSender) Send(ctx context.Context, req *http.Request) (Response, error) {
	resp, err := s.client.Do(req.WithContext(ctx))
	if err != nil {
		return Response{}, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return Response{}, err
	}
	return Response{StatusCode: resp.StatusCode, Body: body}, nil
}
