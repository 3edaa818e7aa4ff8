package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/loveneesh1804/Instagram-server/internal/httputil"
	"github.com/loveneesh1804/Instagram-server/internal/platform/media"
	"github.com/loveneesh1804/Instagram-server/internal/realtime"
	"github.com/loveneesh1804/Instagram-server/pkg/social"
)

// commentView is a post comment with its author denormalized.
type commentView struct {
	User      social.UserRef `json:"user"`
	Comment   string         `json:"comment"`
	CreatedAt time.Time      `json:"createdAt"`
}

// postView is the denormalized post representation: author, likers, and
// commenters resolved to display refs.
type postView struct {
	ID        string              `json:"_id"`
	Caption   string              `json:"caption"`
	UserID    social.UserRef      `json:"userId"`
	Resources []social.Attachment `json:"resources"`
	Likes     []social.UserRef    `json:"likes"`
	Comments  []commentView       `json:"comments"`
	View      string              `json:"view"`
	CreatedAt time.Time           `json:"createdAt"`
	UpdatedAt time.Time           `json:"updatedAt"`
}

// postViews denormalizes a batch of posts with one user lookup.
func (a *API) postViews(r *http.Request, posts []*social.Post) ([]postView, error) {
	var ids []string
	for _, p := range posts {
		ids = append(ids, p.UserID)
		ids = append(ids, p.Likes...)
		for _, c := range p.Comments {
			ids = append(ids, c.User)
		}
	}
	refs, err := a.userRefs(r.Context(), dedupe(ids))
	if err != nil {
		return nil, err
	}

	out := make([]postView, 0, len(posts))
	for _, p := range posts {
		view := postView{
			ID:        p.ID,
			Caption:   p.Caption,
			UserID:    refs[p.UserID],
			Resources: p.Resources,
			Likes:     make([]social.UserRef, 0, len(p.Likes)),
			Comments:  make([]commentView, 0, len(p.Comments)),
			View:      p.View,
			CreatedAt: p.CreatedAt,
			UpdatedAt: p.UpdatedAt,
		}
		for _, l := range p.Likes {
			if ref, ok := refs[l]; ok {
				view.Likes = append(view.Likes, ref)
			}
		}
		for _, c := range p.Comments {
			ref, ok := refs[c.User]
			if !ok {
				continue
			}
			view.Comments = append(view.Comments, commentView{
				User:      ref,
				Comment:   c.Comment,
				CreatedAt: c.CreatedAt,
			})
		}
		out = append(out, view)
	}
	return out, nil
}

func (a *API) newPost(w http.ResponseWriter, r *http.Request) {
	user, ok := a.authedUser(w, r)
	if !ok {
		return
	}

	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		httputil.WriteJSONError(w, http.StatusBadRequest, "Invalid form data")
		return
	}

	headers := r.MultipartForm.File["files"]
	if len(headers) == 0 {
		httputil.WriteJSONError(w, http.StatusBadRequest, "Please provide at least one file")
		return
	}
	if len(headers) > maxUploadFiles {
		httputil.WriteJSONError(w, http.StatusBadRequest, "Too many files")
		return
	}

	files := make([]media.File, 0, len(headers))
	for _, h := range headers {
		f, err := h.Open()
		if err != nil {
			httputil.WriteJSONError(w, http.StatusBadRequest, "Invalid form data")
			return
		}
		defer f.Close()
		files = append(files, media.File{
			Name:        h.Filename,
			ContentType: h.Header.Get("Content-Type"),
			Reader:      f,
		})
	}

	resources, err := a.media.Upload(r.Context(), files)
	if err != nil {
		a.logger.Error().Err(err).Msg("Failed to upload post media.")
		httputil.WriteJSONError(w, http.StatusInternalServerError, "Failed to upload files")
		return
	}

	view := r.FormValue("view")
	if view == "" {
		view = "public"
	}

	now := time.Now().UTC()
	post := &social.Post{
		Caption:   r.FormValue("caption"),
		UserID:    user.ID,
		Resources: resources,
		View:      view,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := a.stores.Posts.Create(r.Context(), post); err != nil {
		httputil.WriteJSONError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, map[string]any{
		"success": true,
		"post":    post,
	})
}

func (a *API) myPosts(w http.ResponseWriter, r *http.Request) {
	user, ok := a.authedUser(w, r)
	if !ok {
		return
	}
	a.userPosts(w, r, user.ID)
}

func (a *API) otherPosts(w http.ResponseWriter, r *http.Request) {
	if _, ok := a.authedUser(w, r); !ok {
		return
	}
	a.userPosts(w, r, chi.URLParam(r, "id"))
}

func (a *API) userPosts(w http.ResponseWriter, r *http.Request, userID string) {
	page := pageParam(r)
	posts, total, err := a.stores.Posts.ByUser(r.Context(), userID, postsPerPage, (page-1)*postsPerPage)
	if err != nil {
		httputil.WriteJSONError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	views, err := a.postViews(r, posts)
	if err != nil {
		httputil.WriteJSONError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"success":    true,
		"posts":      views,
		"totalPages": totalPages(total, postsPerPage),
	})
}

// morePosts returns other recent posts of the same author, for the strip
// under an open post.
func (a *API) morePosts(w http.ResponseWriter, r *http.Request) {
	if _, ok := a.authedUser(w, r); !ok {
		return
	}

	q := r.URL.Query()
	userID := q.Get("userId")
	excludeID := q.Get("postId")
	if userID == "" {
		httputil.WriteJSONError(w, http.StatusBadRequest, "userId is required")
		return
	}

	posts, err := a.stores.Posts.MoreByUser(r.Context(), userID, excludeID, morePostsLimit)
	if err != nil {
		httputil.WriteJSONError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	views, err := a.postViews(r, posts)
	if err != nil {
		httputil.WriteJSONError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"posts":   views,
	})
}

func (a *API) explorePosts(w http.ResponseWriter, r *http.Request) {
	user, ok := a.authedUser(w, r)
	if !ok {
		return
	}

	page := pageParam(r)
	posts, authorCount, err := a.stores.Posts.Explore(r.Context(), user.ID, postsPerPage, (page-1)*postsPerPage)
	if err != nil {
		httputil.WriteJSONError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	views, err := a.postViews(r, posts)
	if err != nil {
		httputil.WriteJSONError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"success":    true,
		"posts":      views,
		"totalPages": totalPages(authorCount, postsPerPage),
	})
}

// friendsFeed returns, for each account the caller follows, the newest post
// the caller has not liked yet.
func (a *API) friendsFeed(w http.ResponseWriter, r *http.Request) {
	user, ok := a.authedUser(w, r)
	if !ok {
		return
	}

	var posts []*social.Post
	for _, friendID := range user.Followings {
		post, err := a.stores.Posts.LatestNotLikedBy(r.Context(), friendID, user.ID)
		if err != nil {
			continue
		}
		posts = append(posts, post)
	}

	views, err := a.postViews(r, posts)
	if err != nil {
		httputil.WriteJSONError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"posts":   views,
	})
}

type likeRequest struct {
	PostID string `json:"postId"`
}

// likePost toggles the caller's like. Unliking also withdraws the LIKE
// notification it produced.
func (a *API) likePost(w http.ResponseWriter, r *http.Request) {
	user, ok := a.authedUser(w, r)
	if !ok {
		return
	}

	var req likeRequest
	if !decodeBody(w, r, &req) {
		return
	}

	post, err := a.stores.Posts.ByID(r.Context(), req.PostID)
	if err != nil {
		a.storeError(w, err, "Post not found")
		return
	}

	liked := post.LikedBy(user.ID)
	if liked {
		post.Likes = remove(post.Likes, user.ID)
	} else {
		post.Likes = append(post.Likes, user.ID)
	}
	post.UpdatedAt = time.Now().UTC()
	if err := a.stores.Posts.Update(r.Context(), post); err != nil {
		httputil.WriteJSONError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	if liked {
		if err := a.stores.Notifications.DeleteMatching(r.Context(), user.ID, post.UserID, social.NotifyLike, post.ID); err != nil {
			a.logger.Warn().Err(err).Str("post", post.ID).Msg("Failed to withdraw like notification.")
		}
	} else if post.UserID != user.ID {
		a.emitter.Emit(realtime.EventNewRequest, []string{post.UserID}, map[string]any{
			"sender": user.Ref(),
			"post":   post.ID,
			"type":   social.NotifyLike,
		})
	}

	message := "Post liked"
	if liked {
		message = "Post unliked"
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": message,
		"likes":   len(post.Likes),
	})
}

func (a *API) postLikes(w http.ResponseWriter, r *http.Request) {
	if _, ok := a.authedUser(w, r); !ok {
		return
	}

	post, err := a.stores.Posts.ByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		a.storeError(w, err, "Post not found")
		return
	}

	refs, err := a.userRefs(r.Context(), post.Likes)
	if err != nil {
		httputil.WriteJSONError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	out := make([]social.UserRef, 0, len(post.Likes))
	for _, id := range post.Likes {
		if ref, ok := refs[id]; ok {
			out = append(out, ref)
		}
	}

	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"likes":   out,
	})
}

type commentRequest struct {
	PostID  string `json:"postId"`
	Comment string `json:"comment"`
}

func (a *API) commentPost(w http.ResponseWriter, r *http.Request) {
	user, ok := a.authedUser(w, r)
	if !ok {
		return
	}

	var req commentRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Comment == "" {
		httputil.WriteJSONError(w, http.StatusBadRequest, "Comment cannot be empty")
		return
	}

	post, err := a.stores.Posts.ByID(r.Context(), req.PostID)
	if err != nil {
		a.storeError(w, err, "Post not found")
		return
	}
	if post.CommentedBy(user.ID) {
		httputil.WriteJSONError(w, http.StatusBadRequest, "You have already commented on this post")
		return
	}

	post.Comments = append(post.Comments, social.Comment{
		User:      user.ID,
		Comment:   req.Comment,
		CreatedAt: time.Now().UTC(),
	})
	post.UpdatedAt = time.Now().UTC()
	if err := a.stores.Posts.Update(r.Context(), post); err != nil {
		httputil.WriteJSONError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	if post.UserID != user.ID {
		a.emitter.Emit(realtime.EventNewRequest, []string{post.UserID}, map[string]any{
			"sender":  user.Ref(),
			"post":    post.ID,
			"type":    social.NotifyComment,
			"content": req.Comment,
		})
	}

	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Comment added",
	})
}

func (a *API) postComments(w http.ResponseWriter, r *http.Request) {
	if _, ok := a.authedUser(w, r); !ok {
		return
	}

	post, err := a.stores.Posts.ByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		a.storeError(w, err, "Post not found")
		return
	}

	views, err := a.postViews(r, []*social.Post{post})
	if err != nil {
		httputil.WriteJSONError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"success":  true,
		"comments": views[0].Comments,
	})
}

// deleteComment removes the caller's comment from the post and withdraws the
// COMMENT notification it produced.
func (a *API) deleteComment(w http.ResponseWriter, r *http.Request) {
	user, ok := a.authedUser(w, r)
	if !ok {
		return
	}

	post, err := a.stores.Posts.ByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		a.storeError(w, err, "Post not found")
		return
	}
	if !post.CommentedBy(user.ID) {
		httputil.WriteJSONError(w, http.StatusBadRequest, "No comment to delete")
		return
	}

	kept := post.Comments[:0]
	for _, c := range post.Comments {
		if c.User != user.ID {
			kept = append(kept, c)
		}
	}
	post.Comments = kept
	post.UpdatedAt = time.Now().UTC()
	if err := a.stores.Posts.Update(r.Context(), post); err != nil {
		httputil.WriteJSONError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	if err := a.stores.Notifications.DeleteMatching(r.Context(), user.ID, post.UserID, social.NotifyComment, post.ID); err != nil {
		a.logger.Warn().Err(err).Str("post", post.ID).Msg("Failed to withdraw comment notification.")
	}

	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Comment deleted",
	})
}

func (a *API) postDetails(w http.ResponseWriter, r *http.Request) {
	if _, ok := a.authedUser(w, r); !ok {
		return
	}

	post, err := a.stores.Posts.ByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		a.storeError(w, err, "Post not found")
		return
	}

	views, err := a.postViews(r, []*social.Post{post})
	if err != nil {
		httputil.WriteJSONError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"post":    views[0],
	})
}

type editPostRequest struct {
	Caption        *string `json:"caption"`
	RemoveResource string  `json:"removeResource"`
}

func (a *API) editPost(w http.ResponseWriter, r *http.Request) {
	user, ok := a.authedUser(w, r)
	if !ok {
		return
	}

	post, err := a.stores.Posts.ByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		a.storeError(w, err, "Post not found")
		return
	}
	if post.UserID != user.ID {
		httputil.WriteJSONError(w, http.StatusForbidden, "Only the author can edit a post")
		return
	}

	var req editPostRequest
	if !decodeBody(w, r, &req) {
		return
	}

	if req.Caption != nil {
		post.Caption = *req.Caption
	}

	if req.RemoveResource != "" {
		if len(post.Resources) <= 1 {
			httputil.WriteJSONError(w, http.StatusBadRequest, "A post must keep at least one resource")
			return
		}
		kept := make([]social.Attachment, 0, len(post.Resources))
		removed := false
		for _, res := range post.Resources {
			if res.PublicID == req.RemoveResource {
				removed = true
				continue
			}
			kept = append(kept, res)
		}
		if !removed {
			httputil.WriteJSONError(w, http.StatusBadRequest, "No such resource")
			return
		}
		post.Resources = kept
		if err := a.media.Delete(r.Context(), []string{req.RemoveResource}); err != nil {
			a.logger.Warn().Err(err).Str("post", post.ID).Msg("Failed to delete post media.")
		}
	}

	post.UpdatedAt = time.Now().UTC()
	if err := a.stores.Posts.Update(r.Context(), post); err != nil {
		httputil.WriteJSONError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"post":    post,
	})
}

func (a *API) deletePost(w http.ResponseWriter, r *http.Request) {
	user, ok := a.authedUser(w, r)
	if !ok {
		return
	}

	post, err := a.stores.Posts.ByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		a.storeError(w, err, "Post not found")
		return
	}
	if post.UserID != user.ID {
		httputil.WriteJSONError(w, http.StatusForbidden, "Only the author can delete a post")
		return
	}

	publicIDs := make([]string, 0, len(post.Resources))
	for _, res := range post.Resources {
		publicIDs = append(publicIDs, res.PublicID)
	}
	if err := a.media.Delete(r.Context(), publicIDs); err != nil {
		a.logger.Warn().Err(err).Str("post", post.ID).Msg("Failed to delete post media.")
	}

	if err := a.stores.Posts.Delete(r.Context(), post.ID); err != nil {
		httputil.WriteJSONError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Post deleted successfully",
	})
}
