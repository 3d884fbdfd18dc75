package httpserver

import (
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"

	"replymate/internal/app"
	"replymate/internal/domain"
)

const maxBodyBytes = 1 << 20

var validate = validator.New(validator.WithRequiredStructEnabled())

type Handlers struct {
	SessionSecret string

	Sync        *app.SyncService
	Replies     *app.ReplyService
	Queries     *app.QueryService
	Businesses  *app.BusinessService
	Drafts      *app.DraftService
	Competitors *app.CompetitorService
	OAuth       *OAuthHandlers
}

func (s *Server) MountHandlers(h *Handlers) {
	s.mux.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200); _, _ = w.Write([]byte("ok")) })

	if h.OAuth != nil {
		// The callback is authenticated by the signed state cookie.
		s.mux.Get("/v1/google/callback", h.OAuth.callback)
	}

	s.mux.Group(func(r chi.Router) {
		r.Use(Session(h.SessionSecret))

		r.Post("/v1/sync", h.sync)
		r.Post("/v1/reply", h.reply)

		r.Get("/v1/businesses", h.listBusinesses)
		r.Post("/v1/businesses", h.onboard)
		r.Delete("/v1/businesses/{id}", h.deleteBusiness)
		r.Get("/v1/businesses/{id}/reviews", h.listReviews)

		r.Post("/v1/reviews/{id}/generate", h.generate)
		r.Get("/v1/businesses/{id}/competitors", h.listCompetitors)
		r.Post("/v1/competitors", h.addCompetitor)
		r.Delete("/v1/competitors/{id}", h.deleteCompetitor)
		r.Post("/v1/competitors/{id}/sync", h.syncCompetitor)

		if h.OAuth != nil {
			r.Get("/v1/google/authorize", h.OAuth.authorize)
			r.Post("/v1/google/disconnect", h.OAuth.disconnect)
		}
	})
}

// decodeBody reads and validates a JSON body. Failures wrap ErrValidation.
func decodeBody(r *http.Request, dst any) error { return decode(r, dst, false) }

// decodeOptionalBody treats an empty body as the zero value of dst.
func decodeOptionalBody(r *http.Request, dst any) error { return decode(r, dst, true) }

func decode(r *http.Request, dst any, optional bool) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil && !(optional && errors.Is(err, io.EOF)) {
		return fmt.Errorf("%w: malformed JSON body", domain.ErrValidation)
	}
	if err := validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return fmt.Errorf("%w: %s is %s", domain.ErrValidation, verrs[0].Field(), verrs[0].Tag())
		}
		return fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("write JSON response failed")
	}
}

// calcETagAndBody marshals once and hashes once, returning both ETag and body.
func calcETagAndBody(v any) (string, []byte) {
	body, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal object for ETag/body")
		return "", nil
	}
	sum := sha1.Sum(body)
	return `W/"` + hex.EncodeToString(sum[:]) + `"`, body
}

type businessStats struct {
	ID           string     `json:"id"`
	Rating       *float64   `json:"rating"`
	TotalReviews int        `json:"total_reviews"`
	LastSyncAt   *time.Time `json:"last_sync_at"`
}

type syncRequest struct {
	BusinessID string `json:"businessId" validate:"required"`
}

type syncResponse struct {
	Inserted      int           `json:"inserted"`
	Updated       int           `json:"updated"`
	UsedPlacesAPI bool          `json:"usedPlacesAPI"`
	Message       string        `json:"message"`
	ReviewCount   int           `json:"reviewCount"`
	Business      businessStats `json:"business"`
}

func (h *Handlers) sync(w http.ResponseWriter, r *http.Request) {
	var req syncRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	res, err := h.Sync.SyncBusiness(r.Context(), UserID(r.Context()), req.BusinessID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, syncResponse{
		Inserted:      res.Inserted,
		Updated:       res.Updated,
		UsedPlacesAPI: res.UsedPlacesAPI,
		Message:       res.Message,
		ReviewCount:   res.ReviewCount,
		Business: businessStats{
			ID: res.Business.ID, Rating: res.Business.Rating,
			TotalReviews: res.Business.TotalReviews, LastSyncAt: res.Business.LastSyncAt,
		},
	})
}

type replyRequest struct {
	BusinessID string `json:"businessId" validate:"required"`
	ReviewID   string `json:"reviewId" validate:"required"`
	ReplyText  string `json:"replyText" validate:"required,max=4096"`
}

type replyResponse struct {
	Success   bool      `json:"success"`
	Message   string    `json:"message"`
	RepliedAt time.Time `json:"replied_at"`
}

func (h *Handlers) reply(w http.ResponseWriter, r *http.Request) {
	var req replyRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	res, err := h.Replies.PostReply(r.Context(), UserID(r.Context()), req.BusinessID, req.ReviewID, req.ReplyText)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, replyResponse{Success: res.Success, Message: res.Message, RepliedAt: res.RepliedAt})
}

type businessJSON struct {
	ID                 string     `json:"id"`
	PlaceID            string     `json:"place_id"`
	Name               string     `json:"name"`
	Address            *string    `json:"address"`
	Phone              *string    `json:"phone"`
	Website            *string    `json:"website"`
	Category           *string    `json:"category"`
	Rating             *float64   `json:"rating"`
	TotalReviews       int        `json:"total_reviews"`
	LastSyncAt         *time.Time `json:"last_sync_at"`
	DefaultLanguage    *string    `json:"default_language"`
	DefaultTone        *string    `json:"default_tone"`
	CustomInstructions *string    `json:"custom_instructions"`
	IsActive           bool       `json:"is_active"`
	CreatedAt          time.Time  `json:"created_at"`
}

func toBusinessJSON(b domain.Business) businessJSON {
	return businessJSON{
		ID: b.ID, PlaceID: b.PlaceID, Name: b.Name,
		Address: b.Address, Phone: b.Phone, Website: b.Website, Category: b.Category,
		Rating: b.Rating, TotalReviews: b.TotalReviews, LastSyncAt: b.LastSyncAt,
		DefaultLanguage: b.DefaultLanguage, DefaultTone: b.DefaultTone, CustomInstructions: b.CustomInstructions,
		IsActive: b.IsActive, CreatedAt: b.CreatedAt,
	}
}

func (h *Handlers) listBusinesses(w http.ResponseWriter, r *http.Request) {
	view, err := h.Queries.ListBusinesses(r.Context(), UserID(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	out := make([]businessJSON, 0, len(view.Businesses))
	for _, b := range view.Businesses {
		out = append(out, toBusinessJSON(b))
	}
	writeJSON(w, http.StatusOK, map[string]any{"businesses": out, "hasGoogleConnection": view.HasGoogleConnection})
}

type onboardRequest struct {
	PlaceID string `json:"placeId" validate:"required,max=255"`
}

func (h *Handlers) onboard(w http.ResponseWriter, r *http.Request) {
	var req onboardRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	b, err := h.Businesses.Onboard(r.Context(), UserID(r.Context()), req.PlaceID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"business": toBusinessJSON(b)})
}

func (h *Handlers) deleteBusiness(w http.ResponseWriter, r *http.Request) {
	soft, _ := strconv.ParseBool(r.URL.Query().Get("soft"))
	if err := h.Businesses.Delete(r.Context(), UserID(r.Context()), chi.URLParam(r, "id"), soft); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type reviewJSON struct {
	ID              string     `json:"id"`
	GoogleReviewID  string     `json:"google_review_id"`
	AuthorName      string     `json:"author_name"`
	AuthorPhotoURL  *string    `json:"author_photo_url"`
	Rating          int        `json:"rating"`
	Text            *string    `json:"text"`
	Language        *string    `json:"language"`
	HasReply        bool       `json:"has_reply"`
	ReplyText       *string    `json:"reply_text"`
	ReplyAuthor     *string    `json:"reply_author"`
	RepliedAt       *time.Time `json:"replied_at"`
	ReviewCreatedAt time.Time  `json:"review_created_at"`
}

func (h *Handlers) listReviews(w http.ResponseWriter, r *http.Request) {
	q := domain.ReviewQuery{Replied: domain.ReplyFilter(r.URL.Query().Get("replied"))}
	for name, dst := range map[string]*int{"limit": &q.Limit, "offset": &q.Offset} {
		if v := r.URL.Query().Get(name); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				writeProblem(w, http.StatusBadRequest, "Invalid "+name, name+" must be an integer")
				return
			}
			*dst = n
		}
	}

	page, err := h.Queries.ListReviews(r.Context(), UserID(r.Context()), chi.URLParam(r, "id"), q)
	if err != nil {
		writeError(w, r, err)
		return
	}
	items := make([]reviewJSON, 0, len(page.Items))
	for _, rv := range page.Items {
		items = append(items, reviewJSON{
			ID: rv.ID, GoogleReviewID: rv.GoogleReviewID, AuthorName: rv.AuthorName, AuthorPhotoURL: rv.AuthorPhotoURL,
			Rating: rv.Rating, Text: rv.Text, Language: rv.Language,
			HasReply: rv.HasReply, ReplyText: rv.ReplyText, ReplyAuthor: rv.ReplyAuthor, RepliedAt: rv.RepliedAt,
			ReviewCreatedAt: rv.ReviewCreatedAt,
		})
	}

	etag, body := calcETagAndBody(map[string]any{"items": items, "total": page.Total, "limit": page.Limit, "offset": page.Offset})
	if inm := r.Header.Get("If-None-Match"); inm != "" && inm == etag {
		w.Header().Set("ETag", etag)
		w.WriteHeader(http.StatusNotModified)
		return
	}

	w.Header().Set("ETag", etag)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(body); err != nil {
		log.Error().Err(err).Msg("failed to write listReviews body")
	}
}

type generateRequest struct {
	Tone     string `json:"tone" validate:"omitempty,max=32"`
	Language string `json:"language" validate:"omitempty,max=64"`
}

func (h *Handlers) generate(w http.ResponseWriter, r *http.Request) {
	var req generateRequest
	if err := decodeOptionalBody(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	d, err := h.Drafts.Generate(r.Context(), UserID(r.Context()), app.DraftRequest{
		ReviewID: chi.URLParam(r, "id"), Tone: req.Tone, Language: req.Language,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"reply": d.Reply, "tone": d.Tone, "language": d.Language})
}

type competitorSyncResponse struct {
	Inserted   int           `json:"inserted"`
	Updated    int           `json:"updated"`
	Message    string        `json:"message"`
	Competitor businessStats `json:"competitor"`
}

func (h *Handlers) syncCompetitor(w http.ResponseWriter, r *http.Request) {
	res, err := h.Competitors.SyncCompetitor(r.Context(), UserID(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	c := res.Competitor
	writeJSON(w, http.StatusOK, competitorSyncResponse{
		Inserted: res.Inserted, Updated: res.Updated, Message: res.Message,
		Competitor: businessStats{ID: c.ID, Rating: c.Rating, TotalReviews: c.TotalReviews, LastSyncAt: c.LastSyncAt},
	})
}

type competitorJSON struct {
	ID           string     `json:"id"`
	BusinessID   string     `json:"business_id"`
	PlaceID      string     `json:"place_id"`
	Name         string     `json:"name"`
	Address      *string    `json:"address"`
	Rating       *float64   `json:"rating"`
	TotalReviews int        `json:"total_reviews"`
	LastSyncAt   *time.Time `json:"last_sync_at"`
	CreatedAt    time.Time  `json:"created_at"`
}

func toCompetitorJSON(c domain.Competitor) competitorJSON {
	return competitorJSON{
		ID: c.ID, BusinessID: c.BusinessID, PlaceID: c.PlaceID, Name: c.Name, Address: c.Address,
		Rating: c.Rating, TotalReviews: c.TotalReviews, LastSyncAt: c.LastSyncAt, CreatedAt: c.CreatedAt,
	}
}

type addCompetitorRequest struct {
	BusinessID string `json:"businessId" validate:"required"`
	PlaceID    string `json:"placeId" validate:"required,max=255"`
}

func (h *Handlers) addCompetitor(w http.ResponseWriter, r *http.Request) {
	var req addCompetitorRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	c, err := h.Competitors.AddCompetitor(r.Context(), UserID(r.Context()), req.BusinessID, req.PlaceID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"competitor": toCompetitorJSON(c)})
}

func (h *Handlers) listCompetitors(w http.ResponseWriter, r *http.Request) {
	cs, err := h.Competitors.ListCompetitors(r.Context(), UserID(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	out := make([]competitorJSON, 0, len(cs))
	for _, c := range cs {
		out = append(out, toCompetitorJSON(c))
	}
	writeJSON(w, http.StatusOK, map[string]any{"competitors": out})
}

func (h *Handlers) deleteCompetitor(w http.ResponseWriter, r *http.Request) {
	if err := h.Competitors.DeleteCompetitor(r.Context(), UserID(r.Context()), chi.URLParam(r, "id")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
