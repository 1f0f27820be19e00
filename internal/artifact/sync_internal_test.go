package artifact

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalPath(t *testing.T) {
	dir := filepath.Join("var", "artifacts")

	tests := []struct {
		name    string
		prefix  string
		key     string
		want    string
		wantErr bool
	}{
		{"flat", "premium/", "premium/model_young.json", filepath.Join(dir, "model_young.json"), false},
		{"nested", "premium/", "premium/model/saved_model.safetensors", filepath.Join(dir, "model", "saved_model.safetensors"), false},
		{"no prefix", "", "scaler_rest.json", filepath.Join(dir, "scaler_rest.json"), false},
		{"traversal is contained", "premium/", "premium/../../etc/passwd", filepath.Join(dir, "etc", "passwd"), false},
		{"prefix only", "premium/", "premium/", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := localPath(dir, tt.prefix, tt.key)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
