package http

import (
	"encoding/json"

	"github.com/echoroom/echoroom-server/internal/core"
	"github.com/echoroom/echoroom-server/internal/proto"
	"github.com/echoroom/echoroom-server/internal/store"
)

func inboundToCommand(inbound proto.Inbound) (*core.Command, *proto.Error, error) {
	switch inbound.Type {
	case proto.InboundTypeJoin:
		var join proto.JoinData
		if err := json.Unmarshal(inbound.Data, &join); err != nil {
			return nil, nil, err
		}
		if join.RoomID == 0 {
			return nil, &proto.Error{Code: core.ErrCodeBadRequest, Msg: "room_id is required"}, nil
		}
		if join.UserID == "" {
			return nil, &proto.Error{Code: core.ErrCodeBadRequest, Msg: "user_id is required"}, nil
		}
		return &core.Command{
			Kind:     core.CommandJoinRoom,
			RoomID:   join.RoomID,
			UserID:   join.UserID,
			UserName: join.UserName,
			Avatar:   join.Avatar,
			Mood:     join.Mood,
		}, nil, nil

	case proto.InboundTypeLeave:
		var leave proto.LeaveData
		if err := json.Unmarshal(inbound.Data, &leave); err != nil {
			return nil, nil, err
		}
		return &core.Command{
			Kind:   core.CommandLeaveRoom,
			RoomID: leave.RoomID,
			UserID: leave.UserID,
		}, nil, nil

	case proto.InboundTypeMsg:
		var msg proto.MsgData
		if err := json.Unmarshal(inbound.Data, &msg); err != nil {
			return nil, nil, err
		}
		if msg.Text == "" {
			return nil, &proto.Error{Code: core.ErrCodeBadRequest, Msg: "text is required"}, nil
		}
		return &core.Command{
			Kind:     core.CommandSendMessage,
			RoomID:   msg.RoomID,
			UserID:   msg.UserID,
			UserName: msg.UserName,
			Text:     msg.Text,
			MsgType:  store.MessageType(msg.MsgType),
			Token:    msg.Token,
		}, nil, nil

	case proto.InboundTypeTypingStart:
		var typing proto.TypingData
		if err := json.Unmarshal(inbound.Data, &typing); err != nil {
			return nil, nil, err
		}
		return &core.Command{
			Kind:     core.CommandTypingStart,
			RoomID:   typing.RoomID,
			UserID:   typing.UserID,
			UserName: typing.UserName,
		}, nil, nil

	case proto.InboundTypeTypingStop:
		var typing proto.TypingData
		if err := json.Unmarshal(inbound.Data, &typing); err != nil {
			return nil, nil, err
		}
		return &core.Command{
			Kind:   core.CommandTypingStop,
			RoomID: typing.RoomID,
			UserID: typing.UserID,
		}, nil, nil

	case proto.InboundTypeVoiceStatus:
		var voice proto.VoiceStatusData
		if err := json.Unmarshal(inbound.Data, &voice); err != nil {
			return nil, nil, err
		}
		return &core.Command{
			Kind:     core.CommandVoiceStatus,
			UserID:   voice.UserID,
			Speaking: voice.Speaking,
			Muted:    voice.Muted,
		}, nil, nil

	case proto.InboundTypeReaction:
		var reaction proto.ReactionData
		if err := json.Unmarshal(inbound.Data, &reaction); err != nil {
			return nil, nil, err
		}
		if reaction.MessageID == 0 || reaction.Emoji == "" {
			return nil, &proto.Error{Code: core.ErrCodeBadRequest, Msg: "message_id and emoji are required"}, nil
		}
		return &core.Command{
			Kind:      core.CommandReaction,
			MessageID: reaction.MessageID,
			Emoji:     reaction.Emoji,
			UserID:    reaction.UserID,
		}, nil, nil

	default:
		return nil, &proto.Error{Code: "invalid_message", Msg: "unknown message type"}, nil
	}
}

func outboundFromEvent(event *core.Event) proto.Outbound {
	switch event.Kind {
	case core.EventRoomJoined:
		return proto.Outbound{
			Type:  proto.OutboundTypeEvent,
			Event: proto.EventNameRoomJoined,
			Data: proto.EventRoomJoined{
				Room:         roomPayload(event.Room),
				Participants: participantPayloads(event.Participants),
				Messages:     messagePayloads(event.History),
			},
		}
	case core.EventUserJoined:
		return proto.Outbound{
			Type:  proto.OutboundTypeEvent,
			Event: proto.EventNameUserJoined,
			Data: proto.EventUserJoined{
				Participant: participantPayload(event.Participant),
			},
		}
	case core.EventUserLeft:
		return proto.Outbound{
			Type:  proto.OutboundTypeEvent,
			Event: proto.EventNameUserLeft,
			Data: proto.EventUserLeft{
				RoomID: event.RoomID,
				UserID: event.UserID,
			},
		}
	case core.EventMessage:
		return proto.Outbound{
			Type:  proto.OutboundTypeEvent,
			Event: proto.EventNameMessage,
			Data:  messagePayload(event.Message),
		}
	case core.EventTypingStart:
		return proto.Outbound{
			Type:  proto.OutboundTypeEvent,
			Event: proto.EventNameTypingStart,
			Data: proto.EventTyping{
				RoomID:   event.RoomID,
				UserID:   event.UserID,
				UserName: event.UserName,
			},
		}
	case core.EventTypingStop:
		return proto.Outbound{
			Type:  proto.OutboundTypeEvent,
			Event: proto.EventNameTypingStop,
			Data: proto.EventTyping{
				RoomID: event.RoomID,
				UserID: event.UserID,
			},
		}
	case core.EventVoiceStatus:
		return proto.Outbound{
			Type:  proto.OutboundTypeEvent,
			Event: proto.EventNameVoiceStatus,
			Data: proto.EventVoiceStatus{
				RoomID:   event.RoomID,
				UserID:   event.Participant.UserID,
				Speaking: event.Participant.Speaking,
				Muted:    event.Participant.Muted,
			},
		}
	case core.EventReaction:
		return proto.Outbound{
			Type:  proto.OutboundTypeEvent,
			Event: proto.EventNameReaction,
			Data: proto.EventReaction{
				RoomID:    event.RoomID,
				MessageID: event.MessageID,
				UserID:    event.UserID,
				Reaction:  reactionPayload(event.Reaction),
			},
		}
	case core.EventError:
		if event.Error == nil {
			return proto.Outbound{Type: proto.OutboundTypeError, Error: &proto.Error{Code: "unknown", Msg: "unknown error"}}
		}
		return proto.Outbound{
			Type:  proto.OutboundTypeError,
			Error: &proto.Error{Code: event.Error.Code, Msg: event.Error.Message},
		}
	default:
		return proto.Outbound{Type: proto.OutboundTypeEvent}
	}
}

func roomPayload(room *store.Room) proto.RoomPayload {
	if room == nil {
		return proto.RoomPayload{}
	}
	return proto.RoomPayload{
		ID:        room.ID,
		Mood:      room.Mood,
		CreatedAt: room.CreatedAt.Unix(),
	}
}

func participantPayload(p *store.Participant) proto.ParticipantPayload {
	if p == nil {
		return proto.ParticipantPayload{}
	}
	return proto.ParticipantPayload{
		UserID:   p.UserID,
		RoomID:   p.RoomID,
		Name:     p.Name,
		Avatar:   p.Avatar,
		Mood:     p.Mood,
		Speaking: p.Speaking,
		Muted:    p.Muted,
		JoinedAt: p.JoinedAt.Unix(),
	}
}

func participantPayloads(participants []*store.Participant) []proto.ParticipantPayload {
	out := make([]proto.ParticipantPayload, 0, len(participants))
	for _, p := range participants {
		out = append(out, participantPayload(p))
	}
	return out
}

func reactionPayload(r *store.Reaction) proto.ReactionPayload {
	if r == nil {
		return proto.ReactionPayload{}
	}
	return proto.ReactionPayload{
		Emoji:   r.Emoji,
		UserIDs: r.UserIDs,
		Count:   r.Count,
	}
}

func messagePayload(msg *store.Message) proto.MessagePayload {
	if msg == nil {
		return proto.MessagePayload{}
	}
	reactions := make([]proto.ReactionPayload, 0, len(msg.Reactions))
	for i := range msg.Reactions {
		reactions = append(reactions, reactionPayload(&msg.Reactions[i]))
	}
	if len(reactions) == 0 {
		reactions = nil
	}
	return proto.MessagePayload{
		ID:        msg.ID,
		RoomID:    msg.RoomID,
		UserID:    msg.SenderID,
		User:      msg.SenderName,
		Text:      msg.Body,
		MsgType:   string(msg.Type),
		Token:     msg.Token,
		TS:        msg.CreatedAt.Unix(),
		Reactions: reactions,
	}
}

func messagePayloads(messages []*store.Message) []proto.MessagePayload {
	if len(messages) == 0 {
		return nil
	}
	out := make([]proto.MessagePayload, 0, len(messages))
	for _, msg := range messages {
		out = append(out, messagePayload(msg))
	}
	return out
}
