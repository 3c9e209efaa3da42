package cmds

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/go-go-golems/streamq/pkg/chat"
	"github.com/go-go-golems/streamq/pkg/events"
	"github.com/go-go-golems/streamq/pkg/persistence/transcript"
)

type chatFlags struct {
	conversationID  string
	parentMessageID string
	tap             bool
	record          bool
	collect         bool
}

func (a *App) newChatCommand() *cobra.Command {
	var f chatFlags
	cmd := &cobra.Command{
		Use:   "chat QUERY...",
		Short: "Send one query and print the reply as it streams",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runChat(cmd.Context(), cmd.OutOrStdout(), cmd.ErrOrStderr(), strings.Join(args, " "), f)
		},
	}
	cmd.Flags().StringVar(&f.conversationID, "conversation-id", "", "Continue an existing conversation")
	cmd.Flags().StringVar(&f.parentMessageID, "parent-message-id", "", "Message the query replies to")
	cmd.Flags().BoolVar(&f.tap, "tap", false, "Print every published envelope to stderr (implies events.enabled)")
	cmd.Flags().BoolVar(&f.record, "record", false, "Record outputs in the transcript database")
	cmd.Flags().BoolVar(&f.collect, "collect", false, "Print the whole reply once the stream ends")
	return cmd
}

func (a *App) runChat(ctx context.Context, w io.Writer, errW io.Writer, query string, f chatFlags) error {
	if err := a.Settings.ValidateChat(); err != nil {
		return err
	}

	client, err := a.newClient(ctx, a.Settings.AWS)
	if err != nil {
		return err
	}

	var sinks []chat.EventSink

	var bus *events.Bus
	if a.Settings.Events.Enabled || f.tap {
		bus, err = events.BuildBus(ctx, a.Settings.Events, events.NewZerologAdapter(log.Logger))
		if err != nil {
			return err
		}
		defer func() { _ = bus.Close() }()
		sinks = append(sinks, events.NewOutputSink(bus.Publisher, bus.Topic))
	}

	if f.record {
		if a.Settings.Transcript.DSN == "" {
			return errors.New("--record needs transcript.dsn")
		}
		store, err := transcript.NewSQLiteStore(a.Settings.Transcript.DSN)
		if err != nil {
			return err
		}
		defer func() { _ = store.Close() }()
		sinks = append(sinks, transcript.NewSink(store))
	}

	session, err := chat.NewSession(client, a.Settings.ApplicationID, chat.WithEventSinks(sinks...))
	if err != nil {
		return err
	}

	var opts []chat.ChatOption
	if f.conversationID != "" {
		opts = append(opts, chat.WithConversationID(f.conversationID))
	}
	if f.parentMessageID != "" {
		opts = append(opts, chat.WithParentMessageID(f.parentMessageID))
	}

	g, gctx := errgroup.WithContext(ctx)
	tapCtx, stopTap := context.WithCancel(gctx)
	defer stopTap()

	if f.tap {
		// subscribe before the first publish so nothing is missed
		ch, err := bus.Subscriber.Subscribe(tapCtx, bus.Topic)
		if err != nil {
			return errors.Wrap(err, "tap subscribe")
		}
		g.Go(func() error {
			return events.Drain(tapCtx, bus.Topic, ch, func(env events.Envelope) {
				out, err := env.Output()
				if err != nil {
					log.Warn().Err(err).Str("request_id", env.RequestID).Msg("tap: unknown envelope")
					return
				}
				_, _ = fmt.Fprintf(errW, "[tap] request=%s seq=%d %s\n", env.RequestID, env.Seq, out)
			})
		})
	}

	stream, err := session.Chat(gctx, query, opts...)
	if err != nil {
		stopTap()
		_ = g.Wait()
		return err
	}
	defer func() { _ = stream.Close() }()

	g.Go(func() error {
		defer stopTap()
		if f.collect {
			reply, err := chat.Collect(gctx, stream)
			if err != nil {
				return err
			}
			return printReply(w, reply)
		}
		for out, err := range stream.All(gctx) {
			if err != nil {
				return err
			}
			if _, err := fmt.Fprintln(w, out); err != nil {
				return err
			}
		}
		return nil
	})

	return g.Wait()
}

func printReply(w io.Writer, reply chat.Reply) error {
	if _, err := fmt.Fprintln(w, reply.Text); err != nil {
		return err
	}
	if reply.Metadata != nil {
		_, err := fmt.Fprintln(w, *reply.Metadata)
		return err
	}
	return nil
}
