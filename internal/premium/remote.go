package premium

import (
	"context"
	"errors"
	"fmt"
)

// JSONPoster posts a JSON payload and decodes the reply.
// *resilience.Client satisfies this interface.
type JSONPoster interface {
	PostJSON(ctx context.Context, url string, in, out any) error
}

type remoteRequest struct {
	Segment  Segment            `json:"segment"`
	Features map[string]float64 `json:"features"`
}

type remoteResponse struct {
	Prediction *float64 `json:"prediction"`
}

// RemoteRegressor delegates prediction to an external model server. The
// server receives the scaled feature vector keyed by column name.
type RemoteRegressor struct {
	client  JSONPoster
	url     string
	segment Segment
}

// NewRemoteRegressor creates a regressor for one segment served at url.
func NewRemoteRegressor(client JSONPoster, url string, segment Segment) *RemoteRegressor {
	return &RemoteRegressor{client: client, url: url, segment: segment}
}

// Predict implements Regressor.
func (r *RemoteRegressor) Predict(ctx context.Context, v FeatureVector) (float64, error) {
	var resp remoteResponse
	err := r.client.PostJSON(ctx, r.url, remoteRequest{Segment: r.segment, Features: v.Map()}, &resp)
	if err != nil {
		return 0, fmt.Errorf("remote %s model: %w", r.segment, err)
	}
	if resp.Prediction == nil {
		return 0, errors.New("remote model reply has no prediction")
	}
	return *resp.Prediction, nil
}
