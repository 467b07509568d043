package server

import (
	"context"
	"encoding/json"
	"fmt"

	"parley/protocol"
)

// dispatch decodes the payload for the inbound event type and invokes
// the matching service operation. Every failure goes back to this
// connection as a structured response or an error event; nothing here
// broadcasts.
func (c *Client) dispatch(ctx context.Context, event protocol.Event) {
	switch event.Type {
	case protocol.TypeRegister:
		c.handleRegister(ctx, event.Payload)
	case protocol.TypeLogin:
		c.handleLogin(ctx, event.Payload)
	case protocol.TypeCreateRoom:
		c.handleCreateRoom(ctx, event.Payload)
	case protocol.TypeDeleteRoom:
		c.handleDeleteRoom(ctx, event.Payload)
	case protocol.TypeJoinRoom:
		c.handleJoinRoom(ctx, event.Payload, false)
	case protocol.TypeJoinProtectedRoom:
		c.handleJoinRoom(ctx, event.Payload, true)
	case protocol.TypeChatMessage:
		c.handleChatMessage(ctx, event.Payload)
	case protocol.TypeDeleteMessage:
		c.handleDeleteMessage(ctx, event.Payload)
	case protocol.TypeAddReaction:
		c.handleReaction(ctx, event.Payload, true)
	case protocol.TypeRemoveReaction:
		c.handleReaction(ctx, event.Payload, false)
	case protocol.TypeUpdateAvatar:
		c.handleUpdateAvatar(ctx, event.Payload)
	case protocol.TypePromoteAdmin:
		c.handlePromoteAdmin(ctx, event.Payload)
	default:
		c.replyError(ctx, fmt.Errorf("unknown event type %q", event.Type))
	}
}

func decode[T any](raw json.RawMessage) (T, error) {
	var req T
	if len(raw) == 0 {
		return req, fmt.Errorf("missing payload")
	}
	if err := json.Unmarshal(raw, &req); err != nil {
		return req, fmt.Errorf("bad payload: %w", err)
	}
	return req, nil
}

func (c *Client) handleRegister(ctx context.Context, raw json.RawMessage) {
	req, err := decode[protocol.RegisterRequest](raw)
	if err != nil {
		c.replyError(ctx, err)
		return
	}
	if err := c.svc.Register(req); err != nil {
		c.reply(ctx, protocol.TypeRegisterResponse, protocol.Ack{Success: false, Message: err.Error()})
		return
	}
	c.reply(ctx, protocol.TypeRegisterResponse, protocol.Ack{Success: true, Message: "registered"})
}

func (c *Client) handleLogin(ctx context.Context, raw json.RawMessage) {
	req, err := decode[protocol.LoginRequest](raw)
	if err != nil {
		c.replyError(ctx, err)
		return
	}
	resp, err := c.svc.Login(ctx, c.sess, req)
	if err != nil {
		c.reply(ctx, protocol.TypeLoginResponse, protocol.LoginResponse{Success: false, Message: err.Error()})
		return
	}
	c.reply(ctx, protocol.TypeLoginResponse, resp)
}

func (c *Client) handleCreateRoom(ctx context.Context, raw json.RawMessage) {
	req, err := decode[protocol.CreateRoomRequest](raw)
	if err != nil {
		c.replyError(ctx, err)
		return
	}
	view, err := c.svc.CreateRoom(ctx, c.sess, req)
	if err != nil {
		c.reply(ctx, protocol.TypeRoomCreated, protocol.RoomCreatedResponse{Success: false, Message: err.Error()})
		return
	}
	c.reply(ctx, protocol.TypeRoomCreated, protocol.RoomCreatedResponse{Success: true, Room: &view})
}

func (c *Client) handleDeleteRoom(ctx context.Context, raw json.RawMessage) {
	req, err := decode[protocol.DeleteRoomRequest](raw)
	if err != nil {
		c.replyError(ctx, err)
		return
	}
	if err := c.svc.DeleteRoom(ctx, c.sess, req.RoomID); err != nil {
		c.reply(ctx, protocol.TypeRoomDeleted, protocol.RoomDeletedResponse{
			Success: false, Message: err.Error(), RoomID: req.RoomID,
		})
		return
	}
	c.reply(ctx, protocol.TypeRoomDeleted, protocol.RoomDeletedResponse{Success: true, RoomID: req.RoomID})
}

func (c *Client) handleJoinRoom(ctx context.Context, raw json.RawMessage, protected bool) {
	req, err := decode[protocol.JoinRoomRequest](raw)
	if err != nil {
		c.replyError(ctx, err)
		return
	}
	resp, err := c.svc.JoinRoom(ctx, c.sess, req)
	if protected {
		if err != nil {
			c.reply(ctx, protocol.TypeJoinProtectedResponse, protocol.Ack{Success: false, Message: err.Error()})
			return
		}
		c.reply(ctx, protocol.TypeJoinProtectedResponse, protocol.Ack{Success: true})
	} else if err != nil {
		c.replyError(ctx, err)
		return
	}
	if err == nil {
		c.reply(ctx, protocol.TypeRoomMessages, resp)
	}
}

func (c *Client) handleChatMessage(ctx context.Context, raw json.RawMessage) {
	req, err := decode[protocol.ChatMessageRequest](raw)
	if err != nil {
		c.replyError(ctx, err)
		return
	}
	if err := c.svc.SendMessage(ctx, c.sess, req); err != nil {
		c.replyError(ctx, err)
	}
}

func (c *Client) handleDeleteMessage(ctx context.Context, raw json.RawMessage) {
	req, err := decode[protocol.DeleteMessageRequest](raw)
	if err != nil {
		c.replyError(ctx, err)
		return
	}
	if err := c.svc.DeleteMessage(ctx, c.sess, req); err != nil {
		c.replyError(ctx, err)
	}
}

func (c *Client) handleReaction(ctx context.Context, raw json.RawMessage, add bool) {
	req, err := decode[protocol.ReactionRequest](raw)
	if err != nil {
		c.replyError(ctx, err)
		return
	}
	if add {
		err = c.svc.AddReaction(ctx, c.sess, req)
	} else {
		err = c.svc.RemoveReaction(ctx, c.sess, req)
	}
	if err != nil {
		c.replyError(ctx, err)
	}
}

func (c *Client) handleUpdateAvatar(ctx context.Context, raw json.RawMessage) {
	req, err := decode[protocol.UpdateAvatarRequest](raw)
	if err != nil {
		c.replyError(ctx, err)
		return
	}
	resp, err := c.svc.UpdateAvatar(ctx, c.sess, req)
	if err != nil {
		c.reply(ctx, protocol.TypeAvatarUpdateResponse, protocol.AvatarUpdateResponse{Success: false, Message: err.Error()})
		return
	}
	c.reply(ctx, protocol.TypeAvatarUpdateResponse, resp)
}

func (c *Client) handlePromoteAdmin(ctx context.Context, raw json.RawMessage) {
	req, err := decode[protocol.PromoteAdminRequest](raw)
	if err != nil {
		c.replyError(ctx, err)
		return
	}
	if err := c.svc.PromoteAdmin(ctx, c.sess, req.Username); err != nil {
		c.reply(ctx, protocol.TypePromoteAdminResponse, protocol.Ack{Success: false, Message: err.Error()})
		return
	}
	c.reply(ctx, protocol.TypePromoteAdminResponse, protocol.Ack{Success: true})
}
