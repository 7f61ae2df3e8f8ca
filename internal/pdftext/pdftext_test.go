package pdftext

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"empty", "", ""},
		{"whitespace only", " \n\t\n ", ""},
		{"trims lines", "  Photosynthesis  \r\n  uses light ", "Photosynthesis\nuses light"},
		{"collapses blank runs", "a\n\n\n\nb", "a\n\nb"},
		{"carriage returns", "a\rb", "a\nb"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Normalize(tt.in))
		})
	}
}

func TestExtractRejectsNonPDF(t *testing.T) {
	_, err := Extract([]byte("this is not a pdf"))
	assert.Error(t, err)

	_, err = Extract(nil)
	assert.Error(t, err)
}
