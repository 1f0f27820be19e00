// Package artifact locates and loads the pre-trained model artifacts.
package artifact

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Artifact file names.
const (
	YoungModelFile    = "model_young.json"
	RestModelFile     = "model_rest.json"
	YoungScalerFile   = "scaler_young.json"
	RestScalerFile    = "scaler_rest.json"
	VisionWeightsFile = "saved_model.safetensors"
)

// ErrNotFound is returned when no candidate directory exists.
var ErrNotFound = errors.New("artifact directory not found")

// Locator resolves the artifact and model directories.
type Locator struct {
	// ArtifactDir and ModelDir override discovery when set.
	ArtifactDir string
	ModelDir    string

	// WorkDir anchors relative candidates (default: current directory).
	WorkDir string
	// ExeDir is the executable's directory (default: os.Executable).
	ExeDir string
}

func (l Locator) workDir() string {
	if l.WorkDir != "" {
		return l.WorkDir
	}
	return "."
}

func (l Locator) exeDir() string {
	if l.ExeDir != "" {
		return l.ExeDir
	}
	exe, err := os.Executable()
	if err != nil {
		return ""
	}
	return filepath.Dir(exe)
}

// ArtifactCandidates lists the directories probed for tabular artifacts, in
// order.
func (l Locator) ArtifactCandidates() []string {
	if l.ArtifactDir != "" {
		return []string{l.ArtifactDir}
	}
	wd := l.workDir()
	candidates := []string{
		filepath.Join(wd, "artifacts"),
		filepath.Join(wd, "artifact"),
	}
	if exe := l.exeDir(); exe != "" {
		candidates = append(candidates,
			filepath.Join(exe, "artifacts"),
			filepath.Join(exe, "artifact"),
			filepath.Join(exe, "..", "artifacts"),
			filepath.Join(exe, "..", "artifact"),
		)
	}
	return candidates
}

// FindArtifactDir returns the first existing artifact candidate. An explicit
// ArtifactDir is returned as is.
func (l Locator) FindArtifactDir() (string, error) {
	if l.ArtifactDir != "" {
		return l.ArtifactDir, nil
	}
	return firstDir(l.ArtifactCandidates())
}

// ModelCandidates lists the directories probed for the vision weights.
// artifactDir may be empty when no artifact directory was found.
func (l Locator) ModelCandidates(artifactDir string) []string {
	if l.ModelDir != "" {
		return []string{l.ModelDir}
	}
	candidates := []string{filepath.Join(l.workDir(), "model")}
	if artifactDir != "" {
		candidates = append(candidates, filepath.Join(artifactDir, "model"))
	}
	if exe := l.exeDir(); exe != "" {
		candidates = append(candidates, filepath.Join(exe, "model"))
	}
	return candidates
}

// FindModelDir returns the first existing model candidate.
func (l Locator) FindModelDir(artifactDir string) (string, error) {
	if l.ModelDir != "" {
		return l.ModelDir, nil
	}
	return firstDir(l.ModelCandidates(artifactDir))
}

func firstDir(candidates []string) (string, error) {
	for _, dir := range candidates {
		if info, err := os.Stat(dir); err == nil && info.IsDir() {
			return dir, nil
		}
	}
	return "", fmt.Errorf("%w: tried %s", ErrNotFound, strings.Join(candidates, ", "))
}
