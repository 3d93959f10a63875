package fsx

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClean(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    string
		wantErr bool
	}{
		{name: "simple", in: "transcripts/a/b.json", want: "transcripts/a/b.json"},
		{name: "redundant segments", in: "transcripts//a/./b.json", want: "transcripts/a/b.json"},
		{name: "backslashes", in: `transcripts\a\b.json`, want: "transcripts/a/b.json"},
		{name: "inner parent stays inside", in: "a/../b.json", want: "b.json"},
		{name: "empty", in: "  ", wantErr: true},
		{name: "absolute", in: "/etc/passwd", wantErr: true},
		{name: "escapes root", in: "../secret", wantErr: true},
		{name: "escapes after clean", in: "a/../../secret", wantErr: true},
		{name: "dot", in: ".", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Clean(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrInvalidPath())
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
