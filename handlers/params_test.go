package handlers

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTopicIDs(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    []int64
		wantErr bool
	}{
		{"empty", "", nil, false},
		{"single", "3", []int64{3}, false},
		{"list with spaces", "1, 2 ,3", []int64{1, 2, 3}, false},
		{"trailing and doubled commas", "1,,2,", []int64{1, 2}, false},
		{"only commas", ",,", nil, false},
		{"malformed", "1,abc", nil, true},
		{"float", "1.5", nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseTopicIDs(tt.raw)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
