package validator

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/docsearch/pkg/errors"
)

func TestSecureFilename(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"report.txt", "report.txt"},
		{"My Lab Report.pdf", "My_Lab_Report.pdf"},
		{"../../etc/passwd", "etc_passwd"},
		{`C:\Users\lab\results.docx`, "C_Users_lab_results.docx"},
		{"café résumé.doc", "cafe_resume.doc"},
		{".hidden", "hidden"},
		{"血液.txt", "txt"},
		{"///", ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, SecureFilename(tt.in))
		})
	}
	assert.LessOrEqual(t, len(SecureFilename(strings.Repeat("a", 400)+".txt")), 255)
	assert.True(t, strings.HasSuffix(SecureFilename(strings.Repeat("a", 400)+".txt"), ".txt"))
}

func TestValidate(t *testing.T) {
	v := New(config.Default().Upload)

	require.NoError(t, v.Validate(Upload{Filename: "a.txt", Size: 10}))
	require.NoError(t, v.Validate(Upload{Filename: "A.PDF", Size: 10}))

	err := v.Validate(Upload{Filename: "image.png", Size: 10})
	var ve *ValidationError
	require.True(t, errors.As(err, &ve))
	assert.Contains(t, ve.Fields["filename"], "not allowed")
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)

	err = v.Validate(Upload{Filename: "", Size: 0})
	require.True(t, errors.As(err, &ve))
	assert.Equal(t, "is required", ve.Fields["filename"])
	assert.Equal(t, "must not be empty", ve.Fields["size"])

	err = v.Validate(Upload{Filename: "big.txt", Size: 17 << 20})
	require.True(t, errors.As(err, &ve))
	assert.Contains(t, ve.Fields["size"], "byte limit")
}

func TestAllowed(t *testing.T) {
	v := New(config.UploadConfig{Dir: "u", MaxBytes: 1, AllowedExtensions: []string{".TXT", "md"}})
	assert.True(t, v.Allowed("x.txt"))
	assert.True(t, v.Allowed("x.MD"))
	assert.False(t, v.Allowed("x.pdf"))
	assert.False(t, v.Allowed("txt"))
}
