package newsletter

import (
	"strings"
	"time"
)

// Language is the edition language of a newsletter.
type Language string

// Supported languages.
const (
	LanguageKorean  Language = "ko"
	LanguageEnglish Language = "en"
)

// IsValid reports whether l is one of the supported languages.
func (l Language) IsValid() bool {
	return l == LanguageKorean || l == LanguageEnglish
}

// ParseLanguage converts a raw tag into a Language.
func ParseLanguage(s string) (Language, error) {
	l := Language(strings.ToLower(strings.TrimSpace(s)))
	if !l.IsValid() {
		return "", &ValidationError{Field: "language", Message: "must be 'ko' or 'en'"}
	}
	return l, nil
}

// DateLayout is the storage format of PublishedDate.
const DateLayout = "2006-01-02"

// Newsletter is a published newsletter record.
type Newsletter struct {
	ID            int64     `json:"id"`
	Title         string    `json:"title"`
	Description   *string   `json:"description"`
	CoverImageURL *string   `json:"cover_image_url"`
	FileURL       string    `json:"file_url"`
	FileSize      *int64    `json:"file_size"`
	Language      Language  `json:"language"`
	PublishedDate string    `json:"published_date"`
	IsActive      bool      `json:"is_active"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Clone returns a deep copy of n.
func (n *Newsletter) Clone() *Newsletter {
	c := *n
	if n.Description != nil {
		d := *n.Description
		c.Description = &d
	}
	if n.CoverImageURL != nil {
		u := *n.CoverImageURL
		c.CoverImageURL = &u
	}
	if n.FileSize != nil {
		s := *n.FileSize
		c.FileSize = &s
	}
	return &c
}

// CreateRequest carries the fields accepted when creating a newsletter.
type CreateRequest struct {
	Title         string   `json:"title"`
	Description   *string  `json:"description,omitempty"`
	CoverImageURL *string  `json:"cover_image_url,omitempty"`
	FileURL       string   `json:"file_url"`
	FileSize      *int64   `json:"file_size,omitempty"`
	Language      Language `json:"language"`
	PublishedDate string   `json:"published_date"`
	IsActive      *bool    `json:"is_active,omitempty"`
}

// Validate checks required fields and formats.
func (r CreateRequest) Validate() error {
	if strings.TrimSpace(r.Title) == "" {
		return &ValidationError{Field: "title", Message: "is required"}
	}
	if strings.TrimSpace(r.FileURL) == "" {
		return &ValidationError{Field: "file_url", Message: "is required"}
	}
	if !r.Language.IsValid() {
		return &ValidationError{Field: "language", Message: "must be 'ko' or 'en'"}
	}
	if err := validateDate(r.PublishedDate); err != nil {
		return err
	}
	if r.FileSize != nil && *r.FileSize < 0 {
		return &ValidationError{Field: "file_size", Message: "must not be negative"}
	}
	return nil
}

// newsletter builds the record to insert. IsActive defaults to true.
func (r CreateRequest) newsletter(now time.Time) *Newsletter {
	active := true
	if r.IsActive != nil {
		active = *r.IsActive
	}
	n := &Newsletter{
		Title:         strings.TrimSpace(r.Title),
		Description:   r.Description,
		CoverImageURL: r.CoverImageURL,
		FileURL:       r.FileURL,
		FileSize:      r.FileSize,
		Language:      r.Language,
		PublishedDate: r.PublishedDate,
		IsActive:      active,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	return n.Clone()
}

// Patch is a partial update. A nil field leaves the stored value unchanged.
type Patch struct {
	Title         *string   `json:"title,omitempty"`
	Description   *string   `json:"description,omitempty"`
	CoverImageURL *string   `json:"cover_image_url,omitempty"`
	FileURL       *string   `json:"file_url,omitempty"`
	FileSize      *int64    `json:"file_size,omitempty"`
	Language      *Language `json:"language,omitempty"`
	PublishedDate *string   `json:"published_date,omitempty"`
	IsActive      *bool     `json:"is_active,omitempty"`
}

// IsEmpty reports whether the patch carries no fields.
func (p Patch) IsEmpty() bool {
	return p.Title == nil && p.Description == nil && p.CoverImageURL == nil &&
		p.FileURL == nil && p.FileSize == nil && p.Language == nil &&
		p.PublishedDate == nil && p.IsActive == nil
}

// Validate checks every supplied field.
func (p Patch) Validate() error {
	if p.Title != nil && strings.TrimSpace(*p.Title) == "" {
		return &ValidationError{Field: "title", Message: "must not be empty"}
	}
	if p.FileURL != nil && strings.TrimSpace(*p.FileURL) == "" {
		return &ValidationError{Field: "file_url", Message: "must not be empty"}
	}
	if p.Language != nil && !p.Language.IsValid() {
		return &ValidationError{Field: "language", Message: "must be 'ko' or 'en'"}
	}
	if p.PublishedDate != nil {
		if err := validateDate(*p.PublishedDate); err != nil {
			return err
		}
	}
	if p.FileSize != nil && *p.FileSize < 0 {
		return &ValidationError{Field: "file_size", Message: "must not be negative"}
	}
	return nil
}

// Apply copies the supplied fields onto n. It does not touch timestamps.
func (p Patch) Apply(n *Newsletter) {
	if p.Title != nil {
		n.Title = strings.TrimSpace(*p.Title)
	}
	if p.Description != nil {
		d := *p.Description
		n.Description = &d
	}
	if p.CoverImageURL != nil {
		u := *p.CoverImageURL
		n.CoverImageURL = &u
	}
	if p.FileURL != nil {
		n.FileURL = *p.FileURL
	}
	if p.FileSize != nil {
		s := *p.FileSize
		n.FileSize = &s
	}
	if p.Language != nil {
		n.Language = *p.Language
	}
	if p.PublishedDate != nil {
		n.PublishedDate = *p.PublishedDate
	}
	if p.IsActive != nil {
		n.IsActive = *p.IsActive
	}
}

func validateDate(s string) error {
	if _, err := time.Parse(DateLayout, s); err != nil {
		return &ValidationError{Field: "published_date", Message: "must be a YYYY-MM-DD date"}
	}
	return nil
}

// ListParams selects newsletters from a Repository.
type ListParams struct {
	ActiveOnly bool
	Language   *Language
	// Search is matched case-insensitively as a substring of title or description.
	Search string
	Limit  int
	Offset int
}

// AssetClass names the object-store namespace an asset belongs to.
type AssetClass string

// Asset classes. The values double as storage namespace names.
const (
	AssetDocument AssetClass = "newsletters"
	AssetCover    AssetClass = "newsletter-covers"
)

// IsValid reports whether c is a known asset class.
func (c AssetClass) IsValid() bool {
	return c == AssetDocument || c == AssetCover
}

// Asset is an uploaded object.
type Asset struct {
	Class     AssetClass `json:"class"`
	Key       string     `json:"key"`
	PublicURL string     `json:"public_url"`
	Size      int64      `json:"size"`
}

// ObjectInfo describes a stored object.
type ObjectInfo struct {
	Key          string
	Size         int64
	LastModified time.Time
}

// UploadOptions are passed through to a BlobStore upload.
type UploadOptions struct {
	ContentType  string
	CacheControl string
	NoOverwrite  bool
}

// Ptr returns a pointer to v.
func Ptr[T any](v T) *T {
	return &v
}
