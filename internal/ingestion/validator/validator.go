// Package validator checks uploads before they are stored: the filename is
// made safe for the filesystem and the extension and size are checked
// against the upload configuration.
package validator

import (
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/docsearch/pkg/errors"
)

const maxFilenameLength = 255

// ValidationError holds per-field validation failure messages.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s: %s", k, e.Fields[k])
	}
	return strings.Join(parts, "; ")
}

func (e *ValidationError) Unwrap() error {
	return apperrors.ErrInvalidInput
}

// Upload describes a received file.
type Upload struct {
	Filename string `validate:"required,max=255"`
	Size     int64  `validate:"gt=0"`
}

type Validator struct {
	validate *validator.Validate
	allowed  []string
	maxBytes int64
}

func New(cfg config.UploadConfig) *Validator {
	allowed := make([]string, 0, len(cfg.AllowedExtensions))
	for _, ext := range cfg.AllowedExtensions {
		allowed = append(allowed, strings.ToLower(strings.TrimPrefix(ext, ".")))
	}
	return &Validator{
		validate: validator.New(),
		allowed:  allowed,
		maxBytes: cfg.MaxBytes,
	}
}

// Validate checks u, whose Filename must already be sanitized.
func (v *Validator) Validate(u Upload) error {
	errs := make(map[string]string)
	if err := v.validate.Struct(u); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return fmt.Errorf("validating upload: %w", err)
		}
		for _, fe := range verrs {
			errs[strings.ToLower(fe.Field())] = message(fe)
		}
	}
	if _, ok := errs["filename"]; !ok {
		if !v.Allowed(u.Filename) {
			errs["filename"] = fmt.Sprintf("file type not allowed (allowed: %s)", strings.Join(v.allowed, ", "))
		}
	}
	if _, ok := errs["size"]; !ok && v.maxBytes > 0 {
		if err := v.validate.Var(u.Size, fmt.Sprintf("lte=%d", v.maxBytes)); err != nil {
			errs["size"] = fmt.Sprintf("file exceeds the %d byte limit", v.maxBytes)
		}
	}
	if len(errs) > 0 {
		return &ValidationError{Fields: errs}
	}
	return nil
}

// Allowed reports whether filename has an accepted extension.
func (v *Validator) Allowed(filename string) bool {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(filename), "."))
	if ext == "" || len(v.allowed) == 0 {
		return false
	}
	return v.validate.Var(ext, "oneof="+strings.Join(v.allowed, " ")) == nil
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "max":
		return "must be at most " + fe.Param() + " characters"
	case "gt":
		return "must not be empty"
	default:
		return "failed " + fe.Tag()
	}
}

var (
	stripMarks     = runes.Remove(runes.In(unicode.Mn))
	filenameUnsafe = strings.NewReplacer("/", " ", "\\", " ")
)

// SecureFilename reduces name to a flat ASCII filename made of letters,
// digits, '_', '-' and '.'. Directory components are flattened, whitespace
// becomes '_', and leading or trailing dots and underscores are trimmed. The
// result may be empty.
func SecureFilename(name string) string {
	folded, _, err := transform.String(transform.Chain(norm.NFKD, stripMarks, norm.NFC), name)
	if err != nil {
		folded = name
	}
	folded = filenameUnsafe.Replace(folded)

	var b strings.Builder
	for _, word := range strings.Fields(folded) {
		if b.Len() > 0 {
			b.WriteByte('_')
		}
		for _, r := range word {
			if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' || r == '-' || r == '.') {
				b.WriteRune(r)
			}
		}
	}
	out := strings.Trim(b.String(), "._")
	if len(out) > maxFilenameLength {
		ext := filepath.Ext(out)
		out = out[:maxFilenameLength-len(ext)] + ext
	}
	return out
}
