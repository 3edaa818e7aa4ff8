package api

import (
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loveneesh1804/Instagram-server/internal/realtime"
	"github.com/loveneesh1804/Instagram-server/pkg/social"
)

func TestNewChat_Direct(t *testing.T) {
	h := newAPIHarness(t)
	h.addUser(t, "u1", "Alice", "u1@example.com", validPassword)
	h.addUser(t, "u2", "Bob", "u2@example.com", validPassword)

	rec := h.do(t, http.MethodPost, "/api/chat/new", "u1", map[string]any{
		"members": []string{"u2"},
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	var resp struct {
		Chat social.Chat `json:"chat"`
	}
	decode(t, rec, &resp)
	assert.False(t, resp.Chat.GroupChat)
	assert.Len(t, resp.Chat.GroupMembers, 2)
	// Direct chats are named after the two members.
	assert.Contains(t, resp.Chat.Name, "Alice")
	assert.Contains(t, resp.Chat.Name, "Bob")

	refetch := h.emitter.ByName(realtime.EventRefetchChats)
	require.Len(t, refetch, 1)
	assert.ElementsMatch(t, []string{"u1", "u2"}, refetch[0].Users)
}

func TestNewChat_Group(t *testing.T) {
	h := newAPIHarness(t)
	h.addUser(t, "u1", "Alice", "u1@example.com", validPassword)
	h.addUser(t, "u2", "Bob", "u2@example.com", validPassword)
	h.addUser(t, "u3", "Carol", "u3@example.com", validPassword)

	rec := h.do(t, http.MethodPost, "/api/chat/new", "u1", map[string]any{
		"name":      "The Gang",
		"groupChat": true,
		"members":   []string{"u2", "u3"},
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	var resp struct {
		Chat social.Chat `json:"chat"`
	}
	decode(t, rec, &resp)
	assert.True(t, resp.Chat.GroupChat)
	assert.Equal(t, "u1", resp.Chat.GroupAdmin)
	assert.Len(t, resp.Chat.GroupMembers, 3)

	alerts := h.emitter.ByName(realtime.EventAlert)
	require.Len(t, alerts, 1)
	assert.ElementsMatch(t, []string{"u1", "u2", "u3"}, alerts[0].Users)

	// Too few members for a group.
	small := h.do(t, http.MethodPost, "/api/chat/new", "u1", map[string]any{
		"name":      "Tiny",
		"groupChat": true,
		"members":   []string{"u2"},
	})
	require.Equal(t, http.StatusBadRequest, small.Code)
}

func TestMyChats(t *testing.T) {
	h := newAPIHarness(t)
	h.addUser(t, "u1", "Alice", "u1@example.com", validPassword)
	h.addUser(t, "u2", "Bob", "u2@example.com", validPassword)
	chat := h.seedChat(t, &social.Chat{Name: "Alice-Bob", GroupMembers: []string{"u1", "u2"}})
	require.NoError(t, h.msgs.Create(t.Context(), &social.Message{
		Sender: "u2", ChatID: chat.ID, Content: "latest", CreatedAt: time.Now().UTC(),
	}))

	rec := h.do(t, http.MethodGet, "/api/chat/my", "u1", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Chats []struct {
			ID          string              `json:"_id"`
			Name        string              `json:"name"`
			Avatar      []social.Attachment `json:"avatar"`
			LastMessage *social.Message     `json:"lastMessage"`
		} `json:"chats"`
	}
	decode(t, rec, &resp)
	require.Len(t, resp.Chats, 1)
	// A direct chat is presented under the other member's name and avatar.
	assert.Equal(t, "Bob", resp.Chats[0].Name)
	require.Len(t, resp.Chats[0].Avatar, 1)
	assert.Equal(t, "u2-avatar", resp.Chats[0].Avatar[0].PublicID)
	require.NotNil(t, resp.Chats[0].LastMessage)
	assert.Equal(t, "latest", resp.Chats[0].LastMessage.Content)
}

func TestAddGroupMembers(t *testing.T) {
	h := newAPIHarness(t)
	h.addUser(t, "u1", "Alice", "u1@example.com", validPassword)
	h.addUser(t, "u2", "Bob", "u2@example.com", validPassword)
	h.addUser(t, "u3", "Carol", "u3@example.com", validPassword)
	h.addUser(t, "u4", "Dave", "u4@example.com", validPassword)
	chat := h.seedChat(t, &social.Chat{
		Name: "Gang", GroupChat: true, GroupAdmin: "u1",
		GroupMembers: []string{"u1", "u2", "u3"},
	})

	// Only the admin may add members.
	forbidden := h.do(t, http.MethodPut, "/api/chat/group/add", "u2", map[string]any{
		"chatId": chat.ID, "members": []string{"u4"},
	})
	require.Equal(t, http.StatusForbidden, forbidden.Code)

	rec := h.do(t, http.MethodPut, "/api/chat/group/add", "u1", map[string]any{
		"chatId": chat.ID, "members": []string{"u4", "u2"},
	})
	require.Equal(t, http.StatusOK, rec.Code)

	updated, err := h.chats.ByID(t.Context(), chat.ID)
	require.NoError(t, err)
	// u2 was already a member; only u4 was added.
	assert.Len(t, updated.GroupMembers, 4)

	alerts := h.emitter.ByName(realtime.EventAlert)
	require.Len(t, alerts, 1)
	assert.Contains(t, fmt.Sprint(alerts[0].Payload), "Dave")
}

func TestAddGroupMembers_CapEnforced(t *testing.T) {
	h := newAPIHarness(t)
	h.addUser(t, "u1", "Alice", "u1@example.com", validPassword)
	members := make([]string, 0, maxGroupMembers)
	members = append(members, "u1")
	for i := 2; i <= maxGroupMembers; i++ {
		members = append(members, fmt.Sprintf("m%d", i))
	}
	chat := h.seedChat(t, &social.Chat{
		Name: "Huge", GroupChat: true, GroupAdmin: "u1", GroupMembers: members,
	})

	rec := h.do(t, http.MethodPut, "/api/chat/group/add", "u1", map[string]any{
		"chatId": chat.ID, "members": []string{"overflow"},
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRemoveGroupMember(t *testing.T) {
	h := newAPIHarness(t)
	h.addUser(t, "u1", "Alice", "u1@example.com", validPassword)
	h.addUser(t, "u2", "Bob", "u2@example.com", validPassword)
	h.addUser(t, "u3", "Carol", "u3@example.com", validPassword)
	h.addUser(t, "u4", "Dave", "u4@example.com", validPassword)
	chat := h.seedChat(t, &social.Chat{
		Name: "Gang", GroupChat: true, GroupAdmin: "u1",
		GroupMembers: []string{"u1", "u2", "u3", "u4"},
	})

	rec := h.do(t, http.MethodPut, "/api/chat/group/remove", "u1", map[string]any{
		"chatId": chat.ID, "userId": "u4",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	updated, err := h.chats.ByID(t.Context(), chat.ID)
	require.NoError(t, err)
	assert.NotContains(t, updated.GroupMembers, "u4")

	// The group cannot shrink below the minimum.
	again := h.do(t, http.MethodPut, "/api/chat/group/remove", "u1", map[string]any{
		"chatId": chat.ID, "userId": "u3",
	})
	require.Equal(t, http.StatusBadRequest, again.Code)
}

func TestLeaveGroup(t *testing.T) {
	h := newAPIHarness(t)
	h.addUser(t, "u1", "Alice", "u1@example.com", validPassword)
	h.addUser(t, "u2", "Bob", "u2@example.com", validPassword)
	h.addUser(t, "u3", "Carol", "u3@example.com", validPassword)
	h.addUser(t, "u4", "Dave", "u4@example.com", validPassword)
	chat := h.seedChat(t, &social.Chat{
		Name: "Gang", GroupChat: true, GroupAdmin: "u1",
		GroupMembers: []string{"u1", "u2", "u3", "u4"},
	})

	// The admin cannot leave.
	admin := h.do(t, http.MethodDelete, "/api/chat/group/leave/"+chat.ID, "u1", nil)
	require.Equal(t, http.StatusBadRequest, admin.Code)

	rec := h.do(t, http.MethodDelete, "/api/chat/group/leave/"+chat.ID, "u4", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	updated, err := h.chats.ByID(t.Context(), chat.ID)
	require.NoError(t, err)
	assert.NotContains(t, updated.GroupMembers, "u4")
}

func TestSendAttachments(t *testing.T) {
	h := newAPIHarness(t)
	h.addUser(t, "u1", "Alice", "u1@example.com", validPassword)
	h.addUser(t, "u2", "Bob", "u2@example.com", validPassword)
	chat := h.seedChat(t, &social.Chat{Name: "Alice-Bob", GroupMembers: []string{"u1", "u2"}})

	rec := h.doMultipart(t, http.MethodPost, "/api/chat/files", "u1",
		map[string]string{"chatId": chat.ID},
		map[string][]byte{"photo.png": []byte("fake image bytes")},
	)
	require.Equal(t, http.StatusCreated, rec.Code)

	var resp struct {
		Message realtime.MessageView `json:"message"`
	}
	decode(t, rec, &resp)
	require.Len(t, resp.Message.Attachments, 1)

	// The message is durable with the same ID before the handler returns.
	stored, err := h.msgs.ByID(t.Context(), resp.Message.ID)
	require.NoError(t, err)
	assert.Equal(t, "u1", stored.Sender)
	require.Len(t, stored.Attachments, 1)

	// Members get the full message event sequence.
	for _, event := range []string{realtime.EventNewMessage, realtime.EventNewMessageNotify, realtime.EventLastMessage} {
		emitted := h.emitter.ByName(event)
		require.Len(t, emitted, 1, event)
		assert.ElementsMatch(t, []string{"u1", "u2"}, emitted[0].Users)
	}

	// Non-members cannot send.
	h.addUser(t, "u3", "Eve", "u3@example.com", validPassword)
	forbidden := h.doMultipart(t, http.MethodPost, "/api/chat/files", "u3",
		map[string]string{"chatId": chat.ID},
		map[string][]byte{"photo.png": []byte("x")},
	)
	require.Equal(t, http.StatusForbidden, forbidden.Code)
}

func TestChatDetails(t *testing.T) {
	h := newAPIHarness(t)
	h.addUser(t, "u1", "Alice", "u1@example.com", validPassword)
	h.addUser(t, "u2", "Bob", "u2@example.com", validPassword)
	chat := h.seedChat(t, &social.Chat{Name: "Alice-Bob", GroupMembers: []string{"u1", "u2"}})

	rec := h.do(t, http.MethodGet, "/api/chat/"+chat.ID+"?populate=true", "u1", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Chat struct {
			GroupMembers []social.UserRef `json:"groupMembers"`
		} `json:"chat"`
	}
	decode(t, rec, &resp)
	require.Len(t, resp.Chat.GroupMembers, 2)

	// Outsiders cannot read chats.
	h.addUser(t, "u3", "Eve", "u3@example.com", validPassword)
	forbidden := h.do(t, http.MethodGet, "/api/chat/"+chat.ID, "u3", nil)
	require.Equal(t, http.StatusForbidden, forbidden.Code)
}

func TestRenameGroup(t *testing.T) {
	h := newAPIHarness(t)
	h.addUser(t, "u1", "Alice", "u1@example.com", validPassword)
	h.addUser(t, "u2", "Bob", "u2@example.com", validPassword)
	h.addUser(t, "u3", "Carol", "u3@example.com", validPassword)
	chat := h.seedChat(t, &social.Chat{
		Name: "Gang", GroupChat: true, GroupAdmin: "u1",
		GroupMembers: []string{"u1", "u2", "u3"},
	})

	forbidden := h.do(t, http.MethodPut, "/api/chat/"+chat.ID, "u2", map[string]string{"name": "Nope"})
	require.Equal(t, http.StatusForbidden, forbidden.Code)

	rec := h.do(t, http.MethodPut, "/api/chat/"+chat.ID, "u1", map[string]string{"name": "New Gang"})
	require.Equal(t, http.StatusOK, rec.Code)

	updated, err := h.chats.ByID(t.Context(), chat.ID)
	require.NoError(t, err)
	assert.Equal(t, "New Gang", updated.Name)
}

func TestDeleteChat_RemovesMessagesAndMedia(t *testing.T) {
	h := newAPIHarness(t)
	h.addUser(t, "u1", "Alice", "u1@example.com", validPassword)
	h.addUser(t, "u2", "Bob", "u2@example.com", validPassword)
	chat := h.seedChat(t, &social.Chat{Name: "Alice-Bob", GroupMembers: []string{"u1", "u2"}})

	require.NoError(t, h.msgs.Create(t.Context(), &social.Message{
		Sender: "u1", ChatID: chat.ID, Content: "hi", CreatedAt: time.Now().UTC(),
	}))
	require.NoError(t, h.msgs.Create(t.Context(), &social.Message{
		Sender: "u2", ChatID: chat.ID, CreatedAt: time.Now().UTC(),
		Attachments: []social.Attachment{{PublicID: "file-1", URL: "https://media.invalid/file-1"}},
	}))

	rec := h.do(t, http.MethodDelete, "/api/chat/"+chat.ID, "u1", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	_, err := h.chats.ByID(t.Context(), chat.ID)
	assert.ErrorIs(t, err, social.ErrNotFound)
	_, total, err := h.msgs.ByChat(t.Context(), chat.ID, 0, 0)
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Equal(t, []string{"file-1"}, h.media.Deleted())
}

func TestChatMessages_Pagination(t *testing.T) {
	h := newAPIHarness(t)
	h.addUser(t, "u1", "Alice", "u1@example.com", validPassword)
	h.addUser(t, "u2", "Bob", "u2@example.com", validPassword)
	chat := h.seedChat(t, &social.Chat{Name: "Alice-Bob", GroupMembers: []string{"u1", "u2"}})

	base := time.Now().UTC().Add(-time.Hour)
	for i := 0; i < 25; i++ {
		require.NoError(t, h.msgs.Create(t.Context(), &social.Message{
			Sender: "u1", ChatID: chat.ID,
			Content:   fmt.Sprintf("msg-%02d", i),
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}))
	}

	rec := h.do(t, http.MethodGet, "/api/chat/message/"+chat.ID+"?page=1", "u2", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Messages   []realtime.MessageView `json:"messages"`
		TotalPages int                    `json:"totalPages"`
	}
	decode(t, rec, &resp)
	require.Len(t, resp.Messages, messagesPerPage)
	assert.Equal(t, 2, resp.TotalPages)
	// Page one holds the newest messages, oldest-first within the page.
	assert.Equal(t, "msg-05", resp.Messages[0].Content)
	assert.Equal(t, "msg-24", resp.Messages[len(resp.Messages)-1].Content)
	assert.Equal(t, "Alice", resp.Messages[0].Sender.Name)

	rec = h.do(t, http.MethodGet, "/api/chat/message/"+chat.ID+"?page=2", "u2", nil)
	decode(t, rec, &resp)
	require.Len(t, resp.Messages, 5)
	assert.Equal(t, "msg-00", resp.Messages[0].Content)
}

func TestUnsendMessage(t *testing.T) {
	h := newAPIHarness(t)
	h.addUser(t, "u1", "Alice", "u1@example.com", validPassword)
	h.addUser(t, "u2", "Bob", "u2@example.com", validPassword)
	chat := h.seedChat(t, &social.Chat{Name: "Alice-Bob", GroupMembers: []string{"u1", "u2"}})

	older := &social.Message{
		Sender: "u1", ChatID: chat.ID, Content: "older",
		CreatedAt: time.Now().UTC().Add(-time.Minute),
	}
	require.NoError(t, h.msgs.Create(t.Context(), older))
	target := &social.Message{
		Sender: "u1", ChatID: chat.ID, CreatedAt: time.Now().UTC(),
		Attachments: []social.Attachment{{PublicID: "file-1", URL: "https://media.invalid/file-1"}},
	}
	require.NoError(t, h.msgs.Create(t.Context(), target))

	// Only the sender can unsend.
	forbidden := h.do(t, http.MethodDelete, "/api/chat/message/"+target.ID, "u2", nil)
	require.Equal(t, http.StatusForbidden, forbidden.Code)

	rec := h.do(t, http.MethodDelete, "/api/chat/message/"+target.ID, "u1", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	_, err := h.msgs.ByID(t.Context(), target.ID)
	assert.ErrorIs(t, err, social.ErrNotFound)
	assert.Equal(t, []string{"file-1"}, h.media.Deleted())

	deleted := h.emitter.ByName(realtime.EventDeleteMessage)
	require.Len(t, deleted, 1)
	assert.ElementsMatch(t, []string{"u1", "u2"}, deleted[0].Users)

	// The preview falls back to the surviving message.
	last := h.emitter.ByName(realtime.EventLastMessage)
	require.Len(t, last, 1)
	payload, ok := last[0].Payload.(realtime.ChatMessagePayload)
	require.True(t, ok)
	view, ok := payload.Message.(realtime.MessageView)
	require.True(t, ok)
	assert.Equal(t, "older", view.Content)
}
