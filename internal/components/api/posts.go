package api

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/MahdiBaghbani/huddle-go/internal/components/apperr"
	"github.com/MahdiBaghbani/huddle-go/internal/components/joinrequest"
	"github.com/MahdiBaghbani/huddle-go/internal/components/meetup"
	"github.com/MahdiBaghbani/huddle-go/internal/components/principal"
)

// PostsHandler serves post CRUD, direct participation and per-post join requests.
type PostsHandler struct {
	tracker  *meetup.Tracker
	workflow *joinrequest.Workflow
}

func NewPostsHandler(tracker *meetup.Tracker, workflow *joinrequest.Workflow) *PostsHandler {
	return &PostsHandler{tracker: tracker, workflow: workflow}
}

// PostView is a post as seen by one caller. The relation flags are present
// only when the caller is authenticated.
type PostView struct {
	*meetup.Post
	ParticipantCount  int   `json:"participantCount"`
	IsHost            *bool `json:"isHost,omitempty"`
	IsParticipant     *bool `json:"isParticipant,omitempty"`
	HasPendingRequest *bool `json:"hasPendingRequest,omitempty"`
}

type submitRequest struct {
	Message string `json:"message"`
}

// view decorates p for the caller bound to ctx, if any.
func (h *PostsHandler) view(ctx context.Context, p *meetup.Post) (*PostView, error) {
	v := &PostView{Post: p, ParticipantCount: len(p.ParticipantIDs)}
	who, ok := principal.FromContext(ctx)
	if !ok {
		return v, nil
	}

	isHost := p.HostID == who.ID
	isParticipant := p.IsParticipant(who.ID)
	pending := false
	if !isHost && !isParticipant {
		var err error
		pending, err = h.workflow.HasPending(ctx, p.ID, who.ID)
		if err != nil {
			return nil, err
		}
	}
	v.IsHost = &isHost
	v.IsParticipant = &isParticipant
	v.HasPendingRequest = &pending
	return v, nil
}

func (h *PostsHandler) views(ctx context.Context, ps []*meetup.Post) ([]*PostView, error) {
	out := make([]*PostView, 0, len(ps))
	for _, p := range ps {
		v, err := h.view(ctx, p)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func (h *PostsHandler) writeView(w http.ResponseWriter, r *http.Request, status int, p *meetup.Post) {
	v, err := h.view(r.Context(), p)
	if err != nil {
		WriteAppError(w, r, err)
		return
	}
	WriteJSON(w, status, v)
}

// Create handles POST /api/posts.
func (h *PostsHandler) Create(w http.ResponseWriter, r *http.Request) {
	p, ok := caller(r)
	if !ok {
		WriteAppError(w, r, errUnauthenticated)
		return
	}
	var in meetup.CreateInput
	if err := DecodeJSON(r, &in); err != nil {
		WriteAppError(w, r, err)
		return
	}
	post, err := h.tracker.Create(r.Context(), p.ID, in)
	if err != nil {
		WriteAppError(w, r, err)
		return
	}
	h.writeView(w, r, http.StatusCreated, post)
}

// List handles GET /api/posts.
func (h *PostsHandler) List(w http.ResponseWriter, r *http.Request) {
	ps, err := h.tracker.List(r.Context())
	if err != nil {
		WriteAppError(w, r, err)
		return
	}
	vs, err := h.views(r.Context(), ps)
	if err != nil {
		WriteAppError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, vs)
}

// Nearby handles GET /api/posts/nearby?lat=&lng=&radiusKm=.
func (h *PostsHandler) Nearby(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	lat, errLat := strconv.ParseFloat(q.Get("lat"), 64)
	lng, errLng := strconv.ParseFloat(q.Get("lng"), 64)
	if errLat != nil || errLng != nil {
		WriteAppError(w, r, apperr.Validation(apperr.CodeInvalidRequest, "lat and lng are required numbers"))
		return
	}
	var radius float64
	if s := q.Get("radiusKm"); s != "" {
		var err error
		if radius, err = strconv.ParseFloat(s, 64); err != nil {
			WriteAppError(w, r, apperr.Validation(apperr.CodeInvalidRequest, "radiusKm must be a number"))
			return
		}
	}

	ps, err := h.tracker.Nearby(r.Context(), meetup.Location{Lat: lat, Lng: lng}, radius)
	if err != nil {
		WriteAppError(w, r, err)
		return
	}
	vs, err := h.views(r.Context(), ps)
	if err != nil {
		WriteAppError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, vs)
}

// Get handles GET /api/posts/{postId}.
func (h *PostsHandler) Get(w http.ResponseWriter, r *http.Request) {
	post, err := h.tracker.Get(r.Context(), chi.URLParam(r, "postId"))
	if err != nil {
		WriteAppError(w, r, err)
		return
	}
	h.writeView(w, r, http.StatusOK, post)
}

// Edit handles PATCH /api/posts/{postId}.
func (h *PostsHandler) Edit(w http.ResponseWriter, r *http.Request) {
	var in meetup.EditInput
	if err := DecodeJSON(r, &in); err != nil {
		WriteAppError(w, r, err)
		return
	}
	post, err := h.tracker.Edit(r.Context(), chi.URLParam(r, "postId"), in)
	if err != nil {
		WriteAppError(w, r, err)
		return
	}
	h.writeView(w, r, http.StatusOK, post)
}

// Delete handles DELETE /api/posts/{postId}.
func (h *PostsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "postId")
	if err := h.tracker.Delete(r.Context(), id); err != nil {
		WriteAppError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]string{"id": id})
}

// Join handles POST /api/posts/{postId}/join.
func (h *PostsHandler) Join(w http.ResponseWriter, r *http.Request) {
	p, ok := caller(r)
	if !ok {
		WriteAppError(w, r, errUnauthenticated)
		return
	}
	post, err := h.tracker.Join(r.Context(), chi.URLParam(r, "postId"), p.ID)
	if err != nil {
		WriteAppError(w, r, err)
		return
	}
	h.writeView(w, r, http.StatusOK, post)
}

// Leave handles POST /api/posts/{postId}/leave.
func (h *PostsHandler) Leave(w http.ResponseWriter, r *http.Request) {
	p, ok := caller(r)
	if !ok {
		WriteAppError(w, r, errUnauthenticated)
		return
	}
	post, err := h.tracker.Leave(r.Context(), chi.URLParam(r, "postId"), p.ID)
	if err != nil {
		WriteAppError(w, r, err)
		return
	}
	h.writeView(w, r, http.StatusOK, post)
}

// SubmitRequest handles POST /api/posts/{postId}/requests. The body is optional.
func (h *PostsHandler) SubmitRequest(w http.ResponseWriter, r *http.Request) {
	p, ok := caller(r)
	if !ok {
		WriteAppError(w, r, errUnauthenticated)
		return
	}
	var req submitRequest
	if r.ContentLength != 0 {
		if err := DecodeJSON(r, &req); err != nil {
			WriteAppError(w, r, err)
			return
		}
	}
	jr, err := h.workflow.Submit(r.Context(), p.ID, chi.URLParam(r, "postId"), req.Message)
	if err != nil {
		WriteAppError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusCreated, jr)
}

// ListRequests handles GET /api/posts/{postId}/requests?status=.
func (h *PostsHandler) ListRequests(w http.ResponseWriter, r *http.Request) {
	rs, err := h.workflow.ListForPost(r.Context(), chi.URLParam(r, "postId"), r.URL.Query().Get("status"))
	if err != nil {
		WriteAppError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, rs)
}
