package rpcserver

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/Globidev/globibot-rs/internal/wire"
)

func decodeArgs[T any](raw json.RawMessage) (T, error) {
	var args T
	if len(raw) == 0 {
		return args, nil
	}
	if err := json.Unmarshal(raw, &args); err != nil {
		return args, fmt.Errorf("decoding arguments: %w", err)
	}
	return args, nil
}

func defaultHandlers() map[wire.Method]handlerFunc {
	return map[wire.Method]handlerFunc{
		wire.MethodCurrentUser: func(ctx context.Context, s *Server, _ json.RawMessage) (any, error) {
			return s.platform.CurrentUser(ctx)
		},

		wire.MethodGetUser: func(ctx context.Context, s *Server, raw json.RawMessage) (any, error) {
			args, err := decodeArgs[wire.GetUserArgs](raw)
			if err != nil {
				return nil, err
			}
			return s.platform.GetUser(ctx, args.ID)
		},

		wire.MethodGetChannel: func(ctx context.Context, s *Server, raw json.RawMessage) (any, error) {
			args, err := decodeArgs[wire.GetChannelArgs](raw)
			if err != nil {
				return nil, err
			}
			return s.platform.GetChannel(ctx, args.ID)
		},

		wire.MethodSendMessage: func(ctx context.Context, s *Server, raw json.RawMessage) (any, error) {
			args, err := decodeArgs[wire.SendMessageArgs](raw)
			if err != nil {
				return nil, err
			}
			return s.platform.SendMessage(ctx, args.ChannelID, args.Content)
		},

		wire.MethodSendReply: func(ctx context.Context, s *Server, raw json.RawMessage) (any, error) {
			args, err := decodeArgs[wire.SendReplyArgs](raw)
			if err != nil {
				return nil, err
			}
			return s.platform.SendReply(ctx, args.ChannelID, args.Content, args.ReferenceID)
		},

		wire.MethodEditMessage: func(ctx context.Context, s *Server, raw json.RawMessage) (any, error) {
			args, err := decodeArgs[wire.EditMessageArgs](raw)
			if err != nil {
				return nil, err
			}
			return s.platform.EditMessage(ctx, args.ChannelID, args.MessageID, args.NewContent)
		},

		wire.MethodDeleteMessage: func(ctx context.Context, s *Server, raw json.RawMessage) (any, error) {
			args, err := decodeArgs[wire.DeleteMessageArgs](raw)
			if err != nil {
				return nil, err
			}
			if err := s.platform.DeleteMessage(ctx, args.ChannelID, args.MessageID); err != nil {
				return nil, err
			}
			return wire.Empty{}, nil
		},

		wire.MethodSendFile: func(ctx context.Context, s *Server, raw json.RawMessage) (any, error) {
			args, err := decodeArgs[wire.SendFileArgs](raw)
			if err != nil {
				return nil, err
			}
			return s.platform.SendFile(ctx, args.ChannelID, args.Bytes, args.Name)
		},

		wire.MethodContentSafe: func(ctx context.Context, s *Server, raw json.RawMessage) (any, error) {
			args, err := decodeArgs[wire.ContentSafeArgs](raw)
			if err != nil {
				return nil, err
			}
			text, err := s.platform.ContentSafe(ctx, args.Text, args.GuildID)
			if err != nil {
				return nil, err
			}
			return wire.ContentSafeResult{Text: text}, nil
		},

		wire.MethodStartTyping: func(ctx context.Context, s *Server, raw json.RawMessage) (any, error) {
			args, err := decodeArgs[wire.StartTypingArgs](raw)
			if err != nil {
				return nil, err
			}
			stop, err := s.platform.StartTyping(ctx, args.ChannelID)
			if err != nil {
				return nil, err
			}
			key := s.typing.Start(func(wire.TypingKey) {
				_ = stop(context.Background())
			})
			return wire.StartTypingResult{Key: key}, nil
		},

		wire.MethodStopTyping: func(ctx context.Context, s *Server, raw json.RawMessage) (any, error) {
			args, err := decodeArgs[wire.StopTypingArgs](raw)
			if err != nil {
				return nil, err
			}
			s.typing.Stop(args.Key)
			return wire.Empty{}, nil
		},

		wire.MethodCreateGlobalCommand: func(ctx context.Context, s *Server, raw json.RawMessage) (any, error) {
			args, err := decodeArgs[wire.CreateGlobalCommandArgs](raw)
			if err != nil {
				return nil, err
			}
			return s.platform.CreateGlobalCommand(ctx, args.Body)
		},

		wire.MethodEditGlobalCommand: func(ctx context.Context, s *Server, raw json.RawMessage) (any, error) {
			args, err := decodeArgs[wire.EditGlobalCommandArgs](raw)
			if err != nil {
				return nil, err
			}
			return s.platform.EditGlobalCommand(ctx, args.ID, args.Body)
		},

		wire.MethodUpsertGlobalCommand: func(ctx context.Context, s *Server, raw json.RawMessage) (any, error) {
			args, err := decodeArgs[wire.UpsertGlobalCommandArgs](raw)
			if err != nil {
				return nil, err
			}
			existing, err := s.platform.GlobalCommands(ctx)
			if err != nil {
				return nil, err
			}
			return runUpsert(args.Body, existing, func(body json.RawMessage) (wire.Command, error) {
				return s.platform.CreateGlobalCommand(ctx, body)
			}, func(id string, body json.RawMessage) (wire.Command, error) {
				return s.platform.EditGlobalCommand(ctx, id, body)
			})
		},

		wire.MethodCreateGuildCommand: func(ctx context.Context, s *Server, raw json.RawMessage) (any, error) {
			args, err := decodeArgs[wire.CreateGuildCommandArgs](raw)
			if err != nil {
				return nil, err
			}
			return s.platform.CreateGuildCommand(ctx, args.GuildID, args.Body)
		},

		wire.MethodEditGuildCommand: func(ctx context.Context, s *Server, raw json.RawMessage) (any, error) {
			args, err := decodeArgs[wire.EditGuildCommandArgs](raw)
			if err != nil {
				return nil, err
			}
			return s.platform.EditGuildCommand(ctx, args.GuildID, args.ID, args.Body)
		},

		wire.MethodUpsertGuildCommand: func(ctx context.Context, s *Server, raw json.RawMessage) (any, error) {
			args, err := decodeArgs[wire.UpsertGuildCommandArgs](raw)
			if err != nil {
				return nil, err
			}
			existing, err := s.platform.GuildCommands(ctx, args.GuildID)
			if err != nil {
				return nil, err
			}
			return runUpsert(args.Body, existing, func(body json.RawMessage) (wire.Command, error) {
				return s.platform.CreateGuildCommand(ctx, args.GuildID, body)
			}, func(id string, body json.RawMessage) (wire.Command, error) {
				return s.platform.EditGuildCommand(ctx, args.GuildID, id, body)
			})
		},

		wire.MethodApplicationCommands: func(ctx context.Context, s *Server, _ json.RawMessage) (any, error) {
			return s.platform.GlobalCommands(ctx)
		},

		wire.MethodCreateInteractionResponse: func(ctx context.Context, s *Server, raw json.RawMessage) (any, error) {
			args, err := decodeArgs[wire.CreateInteractionResponseArgs](raw)
			if err != nil {
				return nil, err
			}
			if err := s.platform.CreateInteractionResponse(ctx, args.InteractionID, args.Token, args.Body); err != nil {
				return nil, err
			}
			return wire.Empty{}, nil
		},

		wire.MethodEditInteractionResponse: func(ctx context.Context, s *Server, raw json.RawMessage) (any, error) {
			args, err := decodeArgs[wire.EditInteractionResponseArgs](raw)
			if err != nil {
				return nil, err
			}
			return s.platform.EditInteractionResponse(ctx, args.Token, args.Body)
		},

		wire.MethodCreateReaction: func(ctx context.Context, s *Server, raw json.RawMessage) (any, error) {
			args, err := decodeArgs[wire.CreateReactionArgs](raw)
			if err != nil {
				return nil, err
			}
			if err := s.platform.CreateReaction(ctx, args.ChannelID, args.MessageID, args.Reaction); err != nil {
				return nil, err
			}
			return wire.Empty{}, nil
		},
	}
}
