package vision

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/riskdesk/riskdesk/internal/telemetry"
)

// ErrModelUnavailable is returned when the weights could not be loaded.
var ErrModelUnavailable = errors.New("vision model unavailable")

// DefaultKeyPrefix is the state-dict prefix of the training wrapper module.
const DefaultKeyPrefix = "model."

// State is the lifecycle state of a Classifier.
type State int32

const (
	StateUnloaded State = iota
	StateLoaded
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateLoaded:
		return "loaded"
	case StateFailed:
		return "failed"
	default:
		return "unloaded"
	}
}

// WeightsSource locates the weight file.
type WeightsSource interface {
	VisionWeightsPath(ctx context.Context) (string, error)
}

// WeightsPath is a WeightsSource for a fixed path.
type WeightsPath string

// VisionWeightsPath implements WeightsSource.
func (p WeightsPath) VisionWeightsPath(context.Context) (string, error) {
	return string(p), nil
}

// ClassifierConfig holds configuration for the classifier.
type ClassifierConfig struct {
	// Weights locates the safetensors weight file.
	Weights WeightsSource

	// Architecture defaults to ResNet50.
	Architecture *Architecture

	// KeyPrefix defaults to DefaultKeyPrefix.
	KeyPrefix *string

	// Transform defaults to DefaultTransformConfig.
	Transform *TransformConfig

	// Metrics records inference telemetry; optional.
	Metrics *telemetry.InferenceMetrics

	Logger zerolog.Logger
}

// Result is a classification with per-label probabilities.
type Result struct {
	Label  Label
	Scores map[Label]float64
}

// Classifier lazily loads the network once and classifies images. A load
// failure is permanent for the life of the Classifier.
type Classifier struct {
	weights   WeightsSource
	arch      Architecture
	prefix    string
	transform TransformConfig
	metrics   *telemetry.InferenceMetrics
	logger    zerolog.Logger

	once    sync.Once
	state   atomic.Int32
	net     *Network
	loadErr error
}

// NewClassifier creates an unloaded classifier.
func NewClassifier(cfg ClassifierConfig) *Classifier {
	arch := ResNet50
	if cfg.Architecture != nil {
		arch = *cfg.Architecture
	}
	prefix := DefaultKeyPrefix
	if cfg.KeyPrefix != nil {
		prefix = *cfg.KeyPrefix
	}
	transform := DefaultTransformConfig()
	if cfg.Transform != nil {
		transform = *cfg.Transform
	}

	return &Classifier{
		weights:   cfg.Weights,
		arch:      arch,
		prefix:    prefix,
		transform: transform,
		metrics:   cfg.Metrics,
		logger:    cfg.Logger,
	}
}

// State returns the current lifecycle state.
func (c *Classifier) State() State {
	return State(c.state.Load())
}

// LoadError returns the cached load failure, if any.
func (c *Classifier) LoadError() error {
	if c.State() != StateFailed {
		return nil
	}
	return c.loadErr
}

// Load loads the weights if not yet attempted. Concurrent callers share
// one attempt and observe the same outcome.
func (c *Classifier) Load(ctx context.Context) error {
	c.once.Do(func() {
		start := time.Now()
		c.net, c.loadErr = c.load(ctx)
		c.metrics.RecordArtifactLoad(ctx, "vision_weights", c.loadErr)

		if c.loadErr != nil {
			c.state.Store(int32(StateFailed))
			c.logger.Error().Err(c.loadErr).Msg("vision model failed to load")
			return
		}
		c.state.Store(int32(StateLoaded))
		c.logger.Info().
			Str("architecture", c.arch.Name).
			Dur("elapsed", time.Since(start)).
			Msg("vision model loaded")
	})

	if c.loadErr != nil {
		return fmt.Errorf("%w: %w", ErrModelUnavailable, c.loadErr)
	}
	return nil
}

func (c *Classifier) load(ctx context.Context) (*Network, error) {
	if c.weights == nil {
		return nil, errors.New("no weights source configured")
	}
	path, err := c.weights.VisionWeightsPath(ctx)
	if err != nil {
		return nil, err
	}
	params, err := ReadWeightsFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return BuildNetwork(c.arch, params, c.prefix)
}

// Classify returns the damage label of img.
func (c *Classifier) Classify(ctx context.Context, img image.Image) (Label, error) {
	res, err := c.ClassifyWithScores(ctx, img)
	if err != nil {
		return "", err
	}
	return res.Label, nil
}

// ClassifyWithScores returns the label of img and the softmax score of
// every label.
func (c *Classifier) ClassifyWithScores(ctx context.Context, img image.Image) (*Result, error) {
	if err := c.Load(ctx); err != nil {
		return nil, err
	}

	start := time.Now()
	res, err := c.classify(ctx, img)
	c.metrics.RecordInference(ctx, "vision", c.arch.Name, time.Since(start), err)
	return res, err
}

func (c *Classifier) classify(ctx context.Context, img image.Image) (*Result, error) {
	logits, err := c.net.Forward(ctx, c.transform.Apply(img))
	if err != nil {
		return nil, err
	}

	label, err := LabelAt(argmax(logits))
	if err != nil {
		return nil, err
	}

	probs := Softmax(logits)
	scores := make(map[Label]float64, NumLabels)
	for i, l := range Labels {
		scores[l] = probs[i]
	}
	return &Result{Label: label, Scores: scores}, nil
}
