package config

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSize(t *testing.T) {
	tests := []struct {
		input   string
		want    int64
		wantErr bool
	}{
		{"0", 0, false},
		{"123", 123, false},
		{"1K", 1024, false},
		{"1k", 1024, false},
		{"2M", 2 << 20, false},
		{"3G", 3 << 30, false},
		{" 10 K ", 10240, false},
		{"", 0, true},
		{"K", 0, true},
		{"1.5M", 0, true},
		{"-1K", 0, true},
		{"10X", 0, true},
	}

	for _, tc := range tests {
		got, err := ParseSize(tc.input)
		if tc.wantErr {
			assert.Errorf(t, err, "ParseSize(%q)", tc.input)
			continue
		}
		require.NoErrorf(t, err, "ParseSize(%q)", tc.input)
		assert.Equalf(t, tc.want, got, "ParseSize(%q)", tc.input)
	}
}

func TestByteSize_UnmarshalJSON(t *testing.T) {
	var b ByteSize

	require.NoError(t, json.Unmarshal([]byte(`"512K"`), &b))
	assert.Equal(t, ByteSize(512*1024), b)

	require.NoError(t, json.Unmarshal([]byte(`2048`), &b))
	assert.Equal(t, ByteSize(2048), b)

	assert.Error(t, json.Unmarshal([]byte(`true`), &b))
	assert.Error(t, json.Unmarshal([]byte(`"huge"`), &b))
}
