package api

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/tendant/simple-newsletter/pkg/newsletter"
)

// Limits bounds the size of uploaded files
type Limits struct {
	MaxDocumentBytes int64
	MaxCoverBytes    int64
}

// fileRule describes what an upload field accepts.
type fileRule struct {
	field      string
	types      map[string]bool
	extensions map[string]bool
	message    string
}

var (
	documentRule = fileRule{
		field:      "file",
		types:      map[string]bool{"application/pdf": true},
		extensions: map[string]bool{".pdf": true},
		message:    "must be a PDF document",
	}
	coverRule = fileRule{
		field:      "cover",
		types:      map[string]bool{"image/jpeg": true, "image/png": true, "image/webp": true},
		extensions: map[string]bool{".jpg": true, ".jpeg": true, ".png": true, ".webp": true},
		message:    "must be a JPEG, PNG or WebP image",
	}
)

// multipartMemory is how much of a form is buffered before spilling to disk.
const multipartMemory = 8 << 20

// parseMultipart bounds the request body and parses the form.
func (h *NewsletterHandler) parseMultipart(w http.ResponseWriter, r *http.Request) error {
	r.Body = http.MaxBytesReader(w, r.Body, h.limits.MaxDocumentBytes+h.limits.MaxCoverBytes+1<<20)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var maxBytes *http.MaxBytesError
		if errors.As(err, &maxBytes) {
			return err
		}
		return &newsletter.ValidationError{Field: "body", Message: "must be a multipart form"}
	}
	return nil
}

// readFile returns the named upload, or nil when the field is absent.
func readFile(r *http.Request, rule fileRule, limit int64) (*newsletter.FileInput, error) {
	f, header, err := r.FormFile(rule.field)
	if errors.Is(err, http.ErrMissingFile) {
		return nil, nil
	}
	if err != nil {
		return nil, &newsletter.ValidationError{Field: rule.field, Message: "could not be read"}
	}
	defer f.Close()

	if header.Size > limit {
		return nil, &newsletter.ValidationError{Field: rule.field, Message: fmt.Sprintf("must not exceed %d bytes", limit)}
	}
	data, err := io.ReadAll(io.LimitReader(f, limit+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", rule.field, err)
	}
	if int64(len(data)) > limit {
		return nil, &newsletter.ValidationError{Field: rule.field, Message: fmt.Sprintf("must not exceed %d bytes", limit)}
	}

	contentType, err := sniff(rule, header.Filename, data)
	if err != nil {
		return nil, err
	}

	return &newsletter.FileInput{
		Name:        header.Filename,
		ContentType: contentType,
		Data:        data,
	}, nil
}

// sniff checks both the file extension and the detected content type.
func sniff(rule fileRule, name string, data []byte) (string, error) {
	if !rule.extensions[strings.ToLower(filepath.Ext(name))] {
		return "", &newsletter.ValidationError{Field: rule.field, Message: rule.message}
	}
	contentType := http.DetectContentType(data)
	if i := strings.IndexByte(contentType, ';'); i >= 0 {
		contentType = contentType[:i]
	}
	if !rule.types[contentType] {
		return "", &newsletter.ValidationError{Field: rule.field, Message: rule.message}
	}
	return contentType, nil
}

// formString returns a form value and whether it was sent at all.
func formString(r *http.Request, key string) (string, bool) {
	values, ok := r.MultipartForm.Value[key]
	if !ok || len(values) == 0 {
		return "", false
	}
	return values[0], true
}

func formBool(r *http.Request, key string) (*bool, error) {
	raw, ok := formString(r, key)
	if !ok || raw == "" {
		return nil, nil
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return nil, &newsletter.ValidationError{Field: key, Message: "must be true or false"}
	}
	return &b, nil
}

// formPatch collects the fields present in a multipart form.
func formPatch(r *http.Request) (newsletter.Patch, error) {
	var patch newsletter.Patch
	if v, ok := formString(r, "title"); ok {
		patch.Title = newsletter.Ptr(v)
	}
	if v, ok := formString(r, "description"); ok {
		patch.Description = newsletter.Ptr(v)
	}
	if v, ok := formString(r, "language"); ok {
		lang, err := newsletter.ParseLanguage(v)
		if err != nil {
			return patch, err
		}
		patch.Language = &lang
	}
	if v, ok := formString(r, "published_date"); ok {
		patch.PublishedDate = newsletter.Ptr(strings.TrimSpace(v))
	}
	active, err := formBool(r, "is_active")
	if err != nil {
		return patch, err
	}
	patch.IsActive = active
	return patch, nil
}
