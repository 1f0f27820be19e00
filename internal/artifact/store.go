package artifact

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/riskdesk/riskdesk/internal/premium"
	"github.com/riskdesk/riskdesk/internal/telemetry"
)

// ErrArtifactLoad is matched by every artifact loading failure.
var ErrArtifactLoad = errors.New("artifact load failed")

// LoadError records which artifact failed to load.
type LoadError struct {
	Path string
	Err  error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("loading %s: %v", e.Path, e.Err)
}

// Is reports ErrArtifactLoad.
func (e *LoadError) Is(target error) bool {
	return target == ErrArtifactLoad
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// Syncer mirrors remote artifacts into the local artifact directory.
type Syncer interface {
	Sync(ctx context.Context) error
}

// RemoteConfig serves predictions from a model server instead of the local
// regressor files. Scalers are still read locally.
type RemoteConfig struct {
	Client premium.JSONPoster
	URL    string
}

// StoreConfig holds configuration for the artifact store.
type StoreConfig struct {
	Locator Locator

	// Sync runs once before discovery; optional. Sync failures are logged
	// and local files are used.
	Sync Syncer
	// SyncTimeout bounds the one-time sync. Defaults to DefaultSyncTimeout.
	SyncTimeout time.Duration

	// Remote replaces the local regressors; optional.
	Remote *RemoteConfig

	Metrics *telemetry.InferenceMetrics
	Logger  zerolog.Logger
}

// DefaultSyncTimeout bounds the object-storage sync when none is configured.
const DefaultSyncTimeout = 2 * time.Minute

// Status describes what the store has loaded so far.
type Status struct {
	ArtifactDir    string
	ModelDir       string
	TabularLoaded  bool
	TabularError   error
	MissingScalers []string
}

// Store loads the tabular artifacts once per process and locates the vision
// weights. Loaded artifacts are immutable and shared.
type Store struct {
	locator Locator
	syncer      Syncer
	syncTimeout time.Duration
	remote      *RemoteConfig
	metrics *telemetry.InferenceMetrics
	logger  zerolog.Logger

	syncOnce sync.Once

	dirOnce     sync.Once
	artifactDir string
	dirErr      error

	tabularOnce    sync.Once
	tabularDone    atomic.Bool
	tabular        *premium.Artifacts
	tabularErr     error
	missingScalers []string

	modelOnce sync.Once
	modelDone atomic.Bool
	modelDir  string
	modelErr  error
}

// NewStore creates an artifact store. Nothing is read until first use.
func NewStore(cfg StoreConfig) *Store {
	if cfg.SyncTimeout <= 0 {
		cfg.SyncTimeout = DefaultSyncTimeout
	}
	return &Store{
		locator:     cfg.Locator,
		syncer:      cfg.Sync,
		syncTimeout: cfg.SyncTimeout,
		remote:      cfg.Remote,
		metrics:     cfg.Metrics,
		logger:      cfg.Logger,
	}
}

// sync runs detached from the caller's cancellation: its outcome is cached
// for the life of the process, so one disconnecting client must not decide
// it.
func (s *Store) sync(ctx context.Context) {
	s.syncOnce.Do(func() {
		if s.syncer == nil {
			return
		}
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.syncTimeout)
		defer cancel()

		start := time.Now()
		if err := s.syncer.Sync(ctx); err != nil {
			s.logger.Warn().Err(err).Msg("artifact sync failed, using local artifacts")
			return
		}
		s.logger.Info().Dur("elapsed", time.Since(start)).Msg("artifacts synced from object storage")
	})
}

func (s *Store) dir(ctx context.Context) (string, error) {
	s.dirOnce.Do(func() {
		s.sync(ctx)
		s.artifactDir, s.dirErr = s.locator.FindArtifactDir()
	})
	return s.artifactDir, s.dirErr
}

// Tabular returns the regressors and scalers, loading them on first call.
// A failed load is cached.
func (s *Store) Tabular(ctx context.Context) (*premium.Artifacts, error) {
	s.tabularOnce.Do(func() {
		defer s.tabularDone.Store(true)
		s.tabular, s.tabularErr = s.loadTabular(context.WithoutCancel(ctx))
		if s.tabularErr != nil {
			s.logger.Error().Err(s.tabularErr).Msg("tabular artifacts failed to load")
			return
		}
		s.logger.Info().
			Str("artifact_dir", s.artifactDir).
			Strs("missing_scalers", s.missingScalers).
			Msg("tabular artifacts loaded")
	})
	return s.tabular, s.tabularErr
}

func (s *Store) loadTabular(ctx context.Context) (*premium.Artifacts, error) {
	dir, err := s.dir(ctx)
	if err != nil {
		return nil, &LoadError{Path: "tabular artifacts", Err: err}
	}

	a := &premium.Artifacts{}
	if s.remote != nil {
		a.YoungModel = premium.NewRemoteRegressor(s.remote.Client, s.remote.URL, premium.SegmentYoung)
		a.RestModel = premium.NewRemoteRegressor(s.remote.Client, s.remote.URL, premium.SegmentRest)
	} else {
		if a.YoungModel, err = s.loadRegressor(ctx, filepath.Join(dir, YoungModelFile)); err != nil {
			return nil, err
		}
		if a.RestModel, err = s.loadRegressor(ctx, filepath.Join(dir, RestModelFile)); err != nil {
			return nil, err
		}
	}

	a.YoungScaler = s.loadScaler(ctx, filepath.Join(dir, YoungScalerFile))
	a.RestScaler = s.loadScaler(ctx, filepath.Join(dir, RestScalerFile))
	return a, nil
}

func (s *Store) loadRegressor(ctx context.Context, path string) (premium.Regressor, error) {
	r, err := readAndDecode(path, premium.DecodeRegressor)
	s.metrics.RecordArtifactLoad(ctx, filepath.Base(path), err)
	if err != nil {
		return nil, &LoadError{Path: path, Err: err}
	}
	return r, nil
}

// loadScaler returns nil when the scaler is missing or unreadable; the
// router then predicts unscaled.
func (s *Store) loadScaler(ctx context.Context, path string) *premium.Scaler {
	sc, err := readAndDecode(path, premium.DecodeScaler)
	s.metrics.RecordArtifactLoad(ctx, filepath.Base(path), err)
	if err != nil {
		s.logger.Warn().Err(err).Str("path", path).Msg("scaler unavailable, predictions will run unscaled")
		s.missingScalers = append(s.missingScalers, filepath.Base(path))
		return nil
	}
	return sc
}

func readAndDecode[T any](path string, decode func([]byte) (T, error)) (T, error) {
	var zero T
	data, err := os.ReadFile(path)
	if err != nil {
		return zero, err
	}
	return decode(data)
}

// VisionWeightsPath returns the path of the vision weight file. It
// implements vision.WeightsSource.
func (s *Store) VisionWeightsPath(ctx context.Context) (string, error) {
	s.modelOnce.Do(func() {
		defer s.modelDone.Store(true)
		artifactDir, _ := s.dir(context.WithoutCancel(ctx))
		s.modelDir, s.modelErr = s.locator.FindModelDir(artifactDir)
	})
	if s.modelErr != nil {
		return "", &LoadError{Path: VisionWeightsFile, Err: s.modelErr}
	}

	path := filepath.Join(s.modelDir, VisionWeightsFile)
	if _, err := os.Stat(path); err != nil {
		return "", &LoadError{Path: path, Err: err}
	}
	return path, nil
}

// Status reports the store's load state without triggering a load.
func (s *Store) Status() Status {
	st := Status{}
	// A load in flight reports as not loaded.
	if s.tabularDone.Load() {
		st.ArtifactDir = s.artifactDir
		st.TabularLoaded = s.tabularErr == nil
		st.TabularError = s.tabularErr
		st.MissingScalers = append([]string(nil), s.missingScalers...)
	}
	if s.modelDone.Load() {
		st.ModelDir = s.modelDir
	}
	return st
}
