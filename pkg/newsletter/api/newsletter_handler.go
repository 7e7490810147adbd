package api

import (
	"encoding/json"
	"log/slog"
	"mime"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/tendant/simple-newsletter/pkg/newsletter"
)

const (
	defaultLatestLimit   = 6
	defaultAdminPageSize = 10
)

// NewsletterHandler serves the public listing and admin endpoints
type NewsletterHandler struct {
	service   newsletter.Service
	publisher *newsletter.Publisher
	limits    Limits
	logger    *slog.Logger
}

// NewNewsletterHandler creates a new newsletter handler
func NewNewsletterHandler(service newsletter.Service, publisher *newsletter.Publisher, limits Limits, logger *slog.Logger) *NewsletterHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &NewsletterHandler{
		service:   service,
		publisher: publisher,
		limits:    limits,
		logger:    logger,
	}
}

// PublicRoutes returns the read-only routes for site visitors
func (h *NewsletterHandler) PublicRoutes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.ListActive)
	r.Get("/latest", h.ListLatest)
	r.Get("/{id}", h.GetActive)
	return r
}

// AdminRoutes returns the management routes
func (h *NewsletterHandler) AdminRoutes() chi.Router {
	r := chi.NewRouter()

	r.Route("/newsletters", func(r chi.Router) {
		r.Get("/", h.ListAdmin)
		r.Post("/", h.Publish)
		r.Get("/{id}", h.Get)
		r.Patch("/{id}", h.Revise)
		r.Delete("/{id}", h.Withdraw)
	})

	r.Get("/assets/{class}", h.ListAssets)
	r.Delete("/assets/{class}/*", h.DeleteAsset)

	return r
}

// ListResponse is a page of newsletters
type ListResponse struct {
	Items      []*newsletter.Newsletter `json:"items"`
	Total      int64                    `json:"total"`
	Page       int                      `json:"page"`
	PageSize   int                      `json:"page_size"`
	TotalPages int64                    `json:"total_pages"`
}

// PublishResponse is returned by the publish, revise and withdraw endpoints
type PublishResponse struct {
	Newsletter *newsletter.Newsletter   `json:"newsletter,omitempty"`
	Warnings   []newsletter.StepOutcome `json:"warnings"`
}

// ReviseRequest is the JSON body of a revise call without files
type ReviseRequest struct {
	newsletter.Patch
	RegenerateCover bool `json:"regenerate_cover"`
	RemoveReplaced  bool `json:"remove_replaced"`
}

// AssetResponse describes a stored object
type AssetResponse struct {
	Key          string `json:"key"`
	Size         int64  `json:"size"`
	LastModified string `json:"last_modified"`
}

func publishResponse(res *newsletter.PublishResult) PublishResponse {
	resp := PublishResponse{Warnings: []newsletter.StepOutcome{}}
	if res == nil {
		return resp
	}
	resp.Newsletter = res.Newsletter
	if w := res.Warnings(); w != nil {
		resp.Warnings = w
	}
	return resp
}

func parseID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id < 1 {
		return 0, &newsletter.ValidationError{Field: "id", Message: "must be a positive integer"}
	}
	return id, nil
}

func queryInt(r *http.Request, key string, def int) (int, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, &newsletter.ValidationError{Field: key, Message: "must be an integer"}
	}
	return v, nil
}

func queryBool(r *http.Request, key string) (bool, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return false, &newsletter.ValidationError{Field: key, Message: "must be true or false"}
	}
	return b, nil
}

// ListActive lists the active newsletters, optionally of one language
func (h *NewsletterHandler) ListActive(w http.ResponseWriter, r *http.Request) {
	var lang *newsletter.Language
	if raw := r.URL.Query().Get("language"); raw != "" {
		l, err := newsletter.ParseLanguage(raw)
		if err != nil {
			writeError(w, r, h.logger, err)
			return
		}
		lang = &l
	}

	items, err := h.service.ListActive(r.Context(), lang)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	render.JSON(w, r, items)
}

// ListLatest lists the most recent active newsletters
func (h *NewsletterHandler) ListLatest(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", defaultLatestLimit)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	items, err := h.service.ListLatest(r.Context(), limit)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	render.JSON(w, r, items)
}

// GetActive returns one newsletter, hiding inactive ones
func (h *NewsletterHandler) GetActive(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	n, err := h.service.GetByID(r.Context(), id)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if !n.IsActive {
		writeError(w, r, h.logger, &newsletter.StoreError{Op: "get", ID: id, Err: newsletter.ErrNotFound})
		return
	}
	render.JSON(w, r, n)
}

// ListAdmin returns one page of all newsletters with the total count
func (h *NewsletterHandler) ListAdmin(w http.ResponseWriter, r *http.Request) {
	page, err := queryInt(r, "page", 1)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	pageSize, err := queryInt(r, "page_size", defaultAdminPageSize)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	items, total, err := h.service.ListAdmin(r.Context(), page, pageSize, r.URL.Query().Get("q"))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	render.JSON(w, r, ListResponse{
		Items:      items,
		Total:      total,
		Page:       page,
		PageSize:   pageSize,
		TotalPages: (total + int64(pageSize) - 1) / int64(pageSize),
	})
}

// Get returns one newsletter regardless of its active flag
func (h *NewsletterHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	n, err := h.service.GetByID(r.Context(), id)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	render.JSON(w, r, n)
}

// Publish creates a newsletter from a multipart form with a PDF and an optional cover
func (h *NewsletterHandler) Publish(w http.ResponseWriter, r *http.Request) {
	if err := h.parseMultipart(w, r); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	defer r.MultipartForm.RemoveAll()

	patch, err := formPatch(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	doc, err := readFile(r, documentRule, h.limits.MaxDocumentBytes)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if doc == nil {
		writeError(w, r, h.logger, &newsletter.ValidationError{Field: "file", Message: "is required"})
		return
	}
	cover, err := readFile(r, coverRule, h.limits.MaxCoverBytes)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	in := newsletter.PublishInput{
		IsActive: patch.IsActive,
		Document: *doc,
		Cover:    cover,
	}
	if patch.Title != nil {
		in.Title = *patch.Title
	}
	if patch.Description != nil && strings.TrimSpace(*patch.Description) != "" {
		in.Description = patch.Description
	}
	if patch.Language != nil {
		in.Language = *patch.Language
	}
	if patch.PublishedDate != nil {
		in.PublishedDate = *patch.PublishedDate
	}

	res, err := h.publisher.Publish(r.Context(), in)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	render.Status(r, http.StatusCreated)
	render.JSON(w, r, publishResponse(res))
}

// Revise updates a newsletter from a JSON patch or a multipart form with replacement files
func (h *NewsletterHandler) Revise(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	var in newsletter.ReviseInput
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "multipart/form-data" {
		in, err = h.reviseForm(w, r)
		if r.MultipartForm != nil {
			defer r.MultipartForm.RemoveAll()
		}
	} else {
		var req ReviseRequest
		if decodeErr := json.NewDecoder(r.Body).Decode(&req); decodeErr != nil {
			err = &newsletter.ValidationError{Field: "body", Message: "must be a JSON object"}
		}
		in = newsletter.ReviseInput{
			Patch:           req.Patch,
			RegenerateCover: req.RegenerateCover,
			RemoveReplaced:  req.RemoveReplaced,
		}
	}
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	res, err := h.publisher.Revise(r.Context(), id, in)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	render.JSON(w, r, publishResponse(res))
}

func (h *NewsletterHandler) reviseForm(w http.ResponseWriter, r *http.Request) (newsletter.ReviseInput, error) {
	var in newsletter.ReviseInput
	if err := h.parseMultipart(w, r); err != nil {
		return in, err
	}

	patch, err := formPatch(r)
	if err != nil {
		return in, err
	}
	in.Patch = patch

	if in.Document, err = readFile(r, documentRule, h.limits.MaxDocumentBytes); err != nil {
		return in, err
	}
	if in.Cover, err = readFile(r, coverRule, h.limits.MaxCoverBytes); err != nil {
		return in, err
	}

	regenerate, err := formBool(r, "regenerate_cover")
	if err != nil {
		return in, err
	}
	in.RegenerateCover = regenerate != nil && *regenerate

	remove, err := formBool(r, "remove_replaced")
	if err != nil {
		return in, err
	}
	in.RemoveReplaced = remove != nil && *remove

	return in, nil
}

// Withdraw deletes a newsletter; purge_assets=true also removes its files
func (h *NewsletterHandler) Withdraw(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	purge, err := queryBool(r, "purge_assets")
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	res, err := h.publisher.Withdraw(r.Context(), id, purge)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	resp := publishResponse(res)
	resp.Newsletter = nil
	render.JSON(w, r, resp)
}

func parseClass(r *http.Request) (newsletter.AssetClass, error) {
	class := newsletter.AssetClass(chi.URLParam(r, "class"))
	if !class.IsValid() {
		return "", &newsletter.ValidationError{Field: "class", Message: "must be 'newsletters' or 'newsletter-covers'"}
	}
	return class, nil
}

// ListAssets lists the objects stored in one namespace
func (h *NewsletterHandler) ListAssets(w http.ResponseWriter, r *http.Request) {
	class, err := parseClass(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	objects, err := h.service.ListAssets(r.Context(), class)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	resp := make([]AssetResponse, 0, len(objects))
	for _, o := range objects {
		item := AssetResponse{Key: o.Key, Size: o.Size}
		if !o.LastModified.IsZero() {
			item.LastModified = o.LastModified.UTC().Format(time.RFC3339)
		}
		resp = append(resp, item)
	}
	render.JSON(w, r, resp)
}

// DeleteAsset removes one stored object
func (h *NewsletterHandler) DeleteAsset(w http.ResponseWriter, r *http.Request) {
	class, err := parseClass(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	key := chi.URLParam(r, "*")
	if unescaped, err := url.PathUnescape(key); err == nil {
		key = unescaped
	}
	if key == "" {
		writeError(w, r, h.logger, &newsletter.ValidationError{Field: "key", Message: "is required"})
		return
	}

	if err := h.service.DeleteAsset(r.Context(), class, key); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
