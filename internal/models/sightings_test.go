package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMediaKindForContentType(t *testing.T) {
	tests := []struct {
		contentType string
		want        MediaKind
		ok          bool
	}{
		{"image/jpeg", MediaKindImage, true},
		{"image/jpg", MediaKindImage, true},
		{"IMAGE/PNG", MediaKindImage, true},
		{"image/png; charset=binary", MediaKindImage, true},
		{"video/mp4", MediaKindVideo, true},
		{"video/avi", MediaKindVideo, true},
		{"video/mov", MediaKindVideo, true},
		{"video/quicktime", MediaKindVideo, true},
		{"image/gif", "", false},
		{"application/pdf", "", false},
		{"", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.contentType, func(t *testing.T) {
			got, ok := MediaKindForContentType(tt.contentType)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}
