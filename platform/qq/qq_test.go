package qq

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDest(t *testing.T) {
	tests := []struct {
		dest     string
		wantKind string
		wantID   int64
		wantErr  bool
	}{
		{dest: "user:12345", wantKind: "user", wantID: 12345},
		{dest: "group:67890", wantKind: "group", wantID: 67890},
		{dest: "12345", wantKind: "user", wantID: 12345},
		{dest: "channel:1", wantErr: true},
		{dest: "user:abc", wantErr: true},
		{dest: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.dest, func(t *testing.T) {
			kind, id, err := parseDest(tt.dest)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantKind, kind)
			assert.Equal(t, tt.wantID, id)
		})
	}
}

func TestNewDefaults(t *testing.T) {
	p, err := New(map[string]any{})
	require.NoError(t, err)
	assert.Equal(t, "qq", p.Name())
	assert.Equal(t, "ws://127.0.0.1:3001", p.(*Platform).wsURL)
}
