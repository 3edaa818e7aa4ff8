package api

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/loveneesh1804/Instagram-server/internal/httputil"
	"github.com/loveneesh1804/Instagram-server/internal/platform/media"
	"github.com/loveneesh1804/Instagram-server/internal/realtime"
	"github.com/loveneesh1804/Instagram-server/pkg/social"
)

type newChatRequest struct {
	Name      string   `json:"name"`
	Members   []string `json:"members"`
	GroupChat bool     `json:"groupChat"`
}

func (a *API) newChat(w http.ResponseWriter, r *http.Request) {
	user, ok := a.authedUser(w, r)
	if !ok {
		return
	}

	var req newChatRequest
	if !decodeBody(w, r, &req) {
		return
	}

	members := dedupe(append(req.Members, user.ID))
	if req.GroupChat {
		if len(members) < minGroupMembers {
			httputil.WriteJSONError(w, http.StatusBadRequest,
				fmt.Sprintf("A group chat needs at least %d members", minGroupMembers))
			return
		}
		if req.Name == "" {
			httputil.WriteJSONError(w, http.StatusBadRequest, "Group name is required")
			return
		}
	} else {
		if len(members) != 2 {
			httputil.WriteJSONError(w, http.StatusBadRequest, "A direct chat needs exactly one other member")
			return
		}
	}

	memberUsers, err := a.stores.Users.ByIDs(r.Context(), members)
	if err != nil || len(memberUsers) != len(members) {
		httputil.WriteJSONError(w, http.StatusBadRequest, "One or more members do not exist")
		return
	}

	name := req.Name
	if !req.GroupChat {
		// Direct chats are named after their two members.
		names := make([]string, 0, 2)
		for _, m := range memberUsers {
			names = append(names, m.Name)
		}
		name = strings.Join(names, "-")
	}

	chat := &social.Chat{
		Name:         name,
		GroupChat:    req.GroupChat,
		GroupMembers: members,
		CreatedAt:    time.Now().UTC(),
		UpdatedAt:    time.Now().UTC(),
	}
	if req.GroupChat {
		chat.GroupAdmin = user.ID
	}
	if err := a.stores.Chats.Create(r.Context(), chat); err != nil {
		httputil.WriteJSONError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	if req.GroupChat {
		a.emitter.Emit(realtime.EventAlert, members, map[string]any{
			"chatId":  chat.ID,
			"message": fmt.Sprintf("Welcome to %s", chat.Name),
		})
	}
	a.emitter.Emit(realtime.EventRefetchChats, members, nil)

	httputil.WriteJSON(w, http.StatusCreated, map[string]any{
		"success": true,
		"chat":    chat,
	})
}

// chatView is the list representation of a chat: the displayed name and
// avatars are those of the other members for direct chats.
type chatView struct {
	ID          string              `json:"_id"`
	Name        string              `json:"name"`
	GroupChat   bool                `json:"groupChat"`
	Avatar      []social.Attachment `json:"avatar"`
	Members     []string            `json:"members"`
	LastMessage *social.Message     `json:"lastMessage,omitempty"`
}

func (a *API) myChats(w http.ResponseWriter, r *http.Request) {
	user, ok := a.authedUser(w, r)
	if !ok {
		return
	}

	chats, err := a.stores.Chats.ByMember(r.Context(), user.ID)
	if err != nil {
		httputil.WriteJSONError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	memberIDs := make([]string, 0)
	for _, c := range chats {
		memberIDs = append(memberIDs, c.GroupMembers...)
	}
	memberUsers, err := a.stores.Users.ByIDs(r.Context(), dedupe(memberIDs))
	if err != nil {
		httputil.WriteJSONError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	byID := make(map[string]*social.User, len(memberUsers))
	for _, u := range memberUsers {
		byID[u.ID] = u
	}

	out := make([]chatView, 0, len(chats))
	for _, c := range chats {
		view := chatView{
			ID:        c.ID,
			Name:      c.Name,
			GroupChat: c.GroupChat,
			Members:   c.GroupMembers,
			Avatar:    []social.Attachment{},
		}
		for _, m := range c.GroupMembers {
			if m == user.ID {
				continue
			}
			other, ok := byID[m]
			if !ok {
				continue
			}
			if !c.GroupChat {
				view.Name = other.Name
			}
			if len(view.Avatar) < 3 {
				view.Avatar = append(view.Avatar, other.Avatar)
			}
		}

		last, err := a.stores.Messages.Last(r.Context(), c.ID)
		if err == nil {
			view.LastMessage = last
		}
		out = append(out, view)
	}

	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"chats":   out,
	})
}

type groupMembersRequest struct {
	ChatID  string   `json:"chatId"`
	Members []string `json:"members"`
	UserID  string   `json:"userId"`
}

func (a *API) addGroupMembers(w http.ResponseWriter, r *http.Request) {
	user, ok := a.authedUser(w, r)
	if !ok {
		return
	}

	var req groupMembersRequest
	if !decodeBody(w, r, &req) {
		return
	}

	chat, ok := a.adminChat(w, r, req.ChatID, user.ID)
	if !ok {
		return
	}

	added := make([]string, 0, len(req.Members))
	for _, m := range req.Members {
		if !chat.IsMember(m) {
			chat.GroupMembers = append(chat.GroupMembers, m)
			added = append(added, m)
		}
	}
	if len(chat.GroupMembers) > maxGroupMembers {
		httputil.WriteJSONError(w, http.StatusBadRequest,
			fmt.Sprintf("A group can have at most %d members", maxGroupMembers))
		return
	}

	chat.UpdatedAt = time.Now().UTC()
	if err := a.stores.Chats.Update(r.Context(), chat); err != nil {
		httputil.WriteJSONError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	addedUsers, err := a.stores.Users.ByIDs(r.Context(), added)
	if err == nil && len(addedUsers) > 0 {
		names := make([]string, 0, len(addedUsers))
		for _, u := range addedUsers {
			names = append(names, u.Name)
		}
		a.emitter.Emit(realtime.EventAlert, chat.GroupMembers, map[string]any{
			"chatId":  chat.ID,
			"message": fmt.Sprintf("%s has been added to the group", strings.Join(names, ", ")),
		})
	}
	a.emitter.Emit(realtime.EventRefetchChats, chat.GroupMembers, nil)

	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Members added successfully",
	})
}

func (a *API) removeGroupMember(w http.ResponseWriter, r *http.Request) {
	user, ok := a.authedUser(w, r)
	if !ok {
		return
	}

	var req groupMembersRequest
	if !decodeBody(w, r, &req) {
		return
	}

	chat, ok := a.adminChat(w, r, req.ChatID, user.ID)
	if !ok {
		return
	}
	if !chat.IsMember(req.UserID) {
		httputil.WriteJSONError(w, http.StatusBadRequest, "User is not a group member")
		return
	}
	if len(chat.GroupMembers) <= minGroupMembers {
		httputil.WriteJSONError(w, http.StatusBadRequest,
			fmt.Sprintf("A group must keep at least %d members", minGroupMembers))
		return
	}

	notified := chat.GroupMembers
	chat.GroupMembers = remove(chat.GroupMembers, req.UserID)
	chat.UpdatedAt = time.Now().UTC()
	if err := a.stores.Chats.Update(r.Context(), chat); err != nil {
		httputil.WriteJSONError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	removed, err := a.stores.Users.ByID(r.Context(), req.UserID)
	if err == nil {
		a.emitter.Emit(realtime.EventAlert, notified, map[string]any{
			"chatId":  chat.ID,
			"message": fmt.Sprintf("%s has been removed from the group", removed.Name),
		})
	}
	a.emitter.Emit(realtime.EventRefetchChats, notified, nil)

	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Member removed successfully",
	})
}

func (a *API) leaveGroup(w http.ResponseWriter, r *http.Request) {
	user, ok := a.authedUser(w, r)
	if !ok {
		return
	}

	chat, err := a.stores.Chats.ByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		a.storeError(w, err, "Chat not found")
		return
	}
	if !chat.GroupChat {
		httputil.WriteJSONError(w, http.StatusBadRequest, "Not a group chat")
		return
	}
	if !chat.IsMember(user.ID) {
		httputil.WriteJSONError(w, http.StatusForbidden, "Not a group member")
		return
	}
	if chat.GroupAdmin == user.ID {
		httputil.WriteJSONError(w, http.StatusBadRequest, "The group admin cannot leave the group")
		return
	}
	if len(chat.GroupMembers) <= minGroupMembers {
		httputil.WriteJSONError(w, http.StatusBadRequest,
			fmt.Sprintf("A group must keep at least %d members", minGroupMembers))
		return
	}

	notified := chat.GroupMembers
	chat.GroupMembers = remove(chat.GroupMembers, user.ID)
	chat.UpdatedAt = time.Now().UTC()
	if err := a.stores.Chats.Update(r.Context(), chat); err != nil {
		httputil.WriteJSONError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	a.emitter.Emit(realtime.EventAlert, notified, map[string]any{
		"chatId":  chat.ID,
		"message": fmt.Sprintf("%s has left the group", user.Name),
	})
	a.emitter.Emit(realtime.EventRefetchChats, notified, nil)

	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Left the group",
	})
}

// sendAttachments creates an attachment-bearing message: files are uploaded
// to the media store, the message is persisted, and the members receive the
// same event sequence a realtime text message produces.
func (a *API) sendAttachments(w http.ResponseWriter, r *http.Request) {
	user, ok := a.authedUser(w, r)
	if !ok {
		return
	}

	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		httputil.WriteJSONError(w, http.StatusBadRequest, "Invalid form data")
		return
	}

	chat, err := a.stores.Chats.ByID(r.Context(), r.FormValue("chatId"))
	if err != nil {
		a.storeError(w, err, "Chat not found")
		return
	}
	if !chat.IsMember(user.ID) {
		httputil.WriteJSONError(w, http.StatusForbidden, "Not a chat member")
		return
	}

	headers := r.MultipartForm.File["files"]
	if len(headers) == 0 {
		httputil.WriteJSONError(w, http.StatusBadRequest, "Please provide at least one file")
		return
	}
	if len(headers) > maxUploadFiles {
		httputil.WriteJSONError(w, http.StatusBadRequest,
			fmt.Sprintf("At most %d files can be sent at once", maxUploadFiles))
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

	attachments, err := a.media.Upload(r.Context(), files)
	if err != nil {
		a.logger.Error().Err(err).Msg("Failed to upload attachments.")
		httputil.WriteJSONError(w, http.StatusInternalServerError, "Failed to upload files")
		return
	}

	msg := &social.Message{
		ID:          uuid.NewString(),
		Sender:      user.ID,
		ChatID:      chat.ID,
		Attachments: attachments,
		CreatedAt:   time.Now().UTC(),
	}
	if err := a.stores.Messages.Create(r.Context(), msg); err != nil {
		httputil.WriteJSONError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	view := realtime.MessageView{
		ID:          msg.ID,
		ChatID:      msg.ChatID,
		Sender:      user.NameRef(),
		Attachments: msg.Attachments,
		CreatedAt:   msg.CreatedAt,
	}
	payload := realtime.ChatMessagePayload{ChatID: chat.ID, Message: view}
	a.emitter.Emit(realtime.EventNewMessage, chat.GroupMembers, payload)
	a.emitter.Emit(realtime.EventNewMessageNotify, chat.GroupMembers, payload)
	a.emitter.Emit(realtime.EventLastMessage, chat.GroupMembers, payload)

	httputil.WriteJSON(w, http.StatusCreated, map[string]any{
		"success": true,
		"message": view,
	})
}

func (a *API) chatDetails(w http.ResponseWriter, r *http.Request) {
	user, ok := a.authedUser(w, r)
	if !ok {
		return
	}

	chat, err := a.stores.Chats.ByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		a.storeError(w, err, "Chat not found")
		return
	}
	if !chat.IsMember(user.ID) {
		httputil.WriteJSONError(w, http.StatusForbidden, "Not a chat member")
		return
	}

	if r.URL.Query().Get("populate") != "true" {
		httputil.WriteJSON(w, http.StatusOK, map[string]any{
			"success": true,
			"chat":    chat,
		})
		return
	}

	members, err := a.stores.Users.ByIDs(r.Context(), chat.GroupMembers)
	if err != nil {
		httputil.WriteJSONError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"chat": map[string]any{
			"_id":          chat.ID,
			"name":         chat.Name,
			"groupChat":    chat.GroupChat,
			"groupAdmin":   chat.GroupAdmin,
			"groupMembers": refsOf(members),
			"createdAt":    chat.CreatedAt,
			"updatedAt":    chat.UpdatedAt,
		},
	})
}

type renameRequest struct {
	Name string `json:"name"`
}

func (a *API) renameGroup(w http.ResponseWriter, r *http.Request) {
	user, ok := a.authedUser(w, r)
	if !ok {
		return
	}

	var req renameRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Name == "" {
		httputil.WriteJSONError(w, http.StatusBadRequest, "Name is required")
		return
	}

	chat, ok := a.adminChat(w, r, chi.URLParam(r, "id"), user.ID)
	if !ok {
		return
	}

	chat.Name = req.Name
	chat.UpdatedAt = time.Now().UTC()
	if err := a.stores.Chats.Update(r.Context(), chat); err != nil {
		httputil.WriteJSONError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	a.emitter.Emit(realtime.EventRefetchChats, chat.GroupMembers, nil)

	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"chat":    chat,
	})
}

func (a *API) deleteChat(w http.ResponseWriter, r *http.Request) {
	user, ok := a.authedUser(w, r)
	if !ok {
		return
	}

	chat, err := a.stores.Chats.ByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		a.storeError(w, err, "Chat not found")
		return
	}
	if chat.GroupChat && chat.GroupAdmin != user.ID {
		httputil.WriteJSONError(w, http.StatusForbidden, "Only the group admin can delete the group")
		return
	}
	if !chat.IsMember(user.ID) {
		httputil.WriteJSONError(w, http.StatusForbidden, "Not a chat member")
		return
	}

	// Attachment media is removed before the messages that reference it.
	withAttachments, err := a.stores.Messages.WithAttachments(r.Context(), chat.ID)
	if err != nil {
		httputil.WriteJSONError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	var publicIDs []string
	for _, m := range withAttachments {
		for _, att := range m.Attachments {
			publicIDs = append(publicIDs, att.PublicID)
		}
	}
	if len(publicIDs) > 0 {
		if err := a.media.Delete(r.Context(), publicIDs); err != nil {
			a.logger.Warn().Err(err).Str("chat", chat.ID).Msg("Failed to delete chat media.")
		}
	}

	if err := a.stores.Messages.DeleteByChat(r.Context(), chat.ID); err != nil {
		httputil.WriteJSONError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	if err := a.stores.Chats.Delete(r.Context(), chat.ID); err != nil {
		httputil.WriteJSONError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	a.emitter.Emit(realtime.EventRefetchChats, chat.GroupMembers, nil)

	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Chat deleted successfully",
	})
}

func (a *API) chatMessages(w http.ResponseWriter, r *http.Request) {
	user, ok := a.authedUser(w, r)
	if !ok {
		return
	}

	chat, err := a.stores.Chats.ByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		a.storeError(w, err, "Chat not found")
		return
	}
	if !chat.IsMember(user.ID) {
		httputil.WriteJSONError(w, http.StatusForbidden, "Not a chat member")
		return
	}

	page := pageParam(r)
	msgs, total, err := a.stores.Messages.ByChat(r.Context(), chat.ID, messagesPerPage, (page-1)*messagesPerPage)
	if err != nil {
		httputil.WriteJSONError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	senderIDs := make([]string, 0, len(msgs))
	for _, m := range msgs {
		senderIDs = append(senderIDs, m.Sender)
	}
	refs, err := a.userRefs(r.Context(), dedupe(senderIDs))
	if err != nil {
		httputil.WriteJSONError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	// The page is fetched newest-first and reversed so clients render it
	// oldest-first.
	out := make([]realtime.MessageView, 0, len(msgs))
	for i := len(msgs) - 1; i >= 0; i-- {
		m := msgs[i]
		sender := refs[m.Sender]
		out = append(out, realtime.MessageView{
			ID:          m.ID,
			Content:     m.Content,
			ChatID:      m.ChatID,
			Sender:      sender,
			Attachments: m.Attachments,
			CreatedAt:   m.CreatedAt,
		})
	}

	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"success":    true,
		"messages":   out,
		"totalPages": totalPages(total, messagesPerPage),
	})
}

// unsendMessage deletes a message the caller sent, removes its media, and
// tells the chat members to drop it and refresh their last-message preview.
func (a *API) unsendMessage(w http.ResponseWriter, r *http.Request) {
	user, ok := a.authedUser(w, r)
	if !ok {
		return
	}

	msg, err := a.stores.Messages.ByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		a.storeError(w, err, "Message not found")
		return
	}
	if msg.Sender != user.ID {
		httputil.WriteJSONError(w, http.StatusForbidden, "Only the sender can unsend a message")
		return
	}

	chat, err := a.stores.Chats.ByID(r.Context(), msg.ChatID)
	if err != nil {
		a.storeError(w, err, "Chat not found")
		return
	}

	if len(msg.Attachments) > 0 {
		publicIDs := make([]string, 0, len(msg.Attachments))
		for _, att := range msg.Attachments {
			publicIDs = append(publicIDs, att.PublicID)
		}
		if err := a.media.Delete(r.Context(), publicIDs); err != nil {
			a.logger.Warn().Err(err).Str("msg", msg.ID).Msg("Failed to delete message media.")
		}
	}

	if err := a.stores.Messages.Delete(r.Context(), msg.ID); err != nil {
		httputil.WriteJSONError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	a.emitter.Emit(realtime.EventDeleteMessage, chat.GroupMembers, map[string]any{
		"chatId": chat.ID,
		"_id":    msg.ID,
	})

	// The preview shown in chat lists must fall back to the new latest
	// message.
	if last, err := a.stores.Messages.Last(r.Context(), chat.ID); err == nil {
		refs, err := a.userRefs(r.Context(), []string{last.Sender})
		if err == nil {
			a.emitter.Emit(realtime.EventLastMessage, chat.GroupMembers, realtime.ChatMessagePayload{
				ChatID: chat.ID,
				Message: realtime.MessageView{
					ID:          last.ID,
					Content:     last.Content,
					ChatID:      last.ChatID,
					Sender:      refs[last.Sender],
					Attachments: last.Attachments,
					CreatedAt:   last.CreatedAt,
				},
			})
		}
	}

	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Message deleted successfully",
	})
}

// adminChat loads a group chat and verifies the caller administers it.
func (a *API) adminChat(w http.ResponseWriter, r *http.Request, chatID, userID string) (*social.Chat, bool) {
	chat, err := a.stores.Chats.ByID(r.Context(), chatID)
	if err != nil {
		a.storeError(w, err, "Chat not found")
		return nil, false
	}
	if !chat.GroupChat {
		httputil.WriteJSONError(w, http.StatusBadRequest, "Not a group chat")
		return nil, false
	}
	if chat.GroupAdmin != userID {
		httputil.WriteJSONError(w, http.StatusForbidden, "Only the group admin can do this")
		return nil, false
	}
	return chat, true
}

func dedupe(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

func remove(ids []string, id string) []string {
	out := make([]string, 0, len(ids))
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}
