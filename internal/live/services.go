package live

import (
	"context"

	"github.com/lmarceau/cutroom/internal/executor"
)

// #region services
// Services exposes the remote generation and quality endpoints as the
// phase-3 collaborator pair.
type Services struct {
	client *Client
}

// NewServices builds the live generation and evaluation services.
func NewServices(client *Client) *Services {
	return &Services{client: client}
}

type generateResponse struct {
	Ref string `json:"ref"`
}

// Generate requests one artifact for the slot.
func (s *Services) Generate(ctx context.Context, req executor.GenerationRequest) (executor.Artifact, error) {
	var resp generateResponse
	if err := s.client.post(ctx, "/v1/generate", req, &resp); err != nil {
		return executor.Artifact{}, err
	}
	return executor.Artifact{Ref: resp.Ref}, nil
}

type scoreRequest struct {
	Ref     string                     `json:"ref"`
	Request executor.GenerationRequest `json:"request"`
}

type scoreResponse struct {
	Quality float64 `json:"quality"`
}

// Score requests a quality judgment for a generated artifact.
func (s *Services) Score(ctx context.Context, art executor.Artifact, req executor.GenerationRequest) (float64, error) {
	var resp scoreResponse
	if err := s.client.post(ctx, "/v1/score", scoreRequest{Ref: art.Ref, Request: req}, &resp); err != nil {
		return 0, err
	}
	return resp.Quality, nil
}

// #endregion services
