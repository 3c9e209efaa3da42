// Package qbusiness implements chat.Client on top of the Amazon Q Business API.
package qbusiness

import (
	"context"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	sdk "github.com/aws/aws-sdk-go-v2/service/qbusiness"
	"github.com/aws/aws-sdk-go-v2/service/qbusiness/types"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/go-go-golems/streamq/pkg/chat"
)

// Settings selects the AWS account and endpoint the client talks to. Empty
// fields fall back to the default credential and region chain.
type Settings struct {
	Region   string `yaml:"region"`
	Profile  string `yaml:"profile"`
	Endpoint string `yaml:"endpoint"`
}

// eventStream is the subset of *sdk.ChatEventStream the client uses.
type eventStream interface {
	Send(ctx context.Context, event types.ChatInputStream) error
	Events() <-chan types.ChatOutputStream
	Close() error
	Err() error
}

type openFunc func(ctx context.Context, params *sdk.ChatInput) (eventStream, error)

// Client talks to Amazon Q Business.
type Client struct {
	open openFunc
	apps sdk.ListApplicationsAPIClient
}

var _ chat.Client = &Client{}

// NewClient loads the AWS configuration and builds a client from it.
func NewClient(ctx context.Context, s Settings) (*Client, error) {
	var opts []func(*config.LoadOptions) error
	if s.Region != "" {
		opts = append(opts, config.WithRegion(s.Region))
	}
	if s.Profile != "" {
		opts = append(opts, config.WithSharedConfigProfile(s.Profile))
	}
	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, errors.Wrap(err, "load aws config")
	}

	api := sdk.NewFromConfig(cfg, func(o *sdk.Options) {
		if endpoint := strings.TrimSpace(s.Endpoint); endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
	})
	log.Debug().Str("component", "qbusiness").Str("region", cfg.Region).Msg("created q business client")
	return NewFromAPI(api), nil
}

// NewFromAPI wraps an already configured SDK client.
func NewFromAPI(api *sdk.Client) *Client {
	return &Client{
		open: func(ctx context.Context, params *sdk.ChatInput) (eventStream, error) {
			out, err := api.Chat(ctx, params)
			if err != nil {
				return nil, err
			}
			return out.GetStream(), nil
		},
		apps: api,
	}
}

// Chat opens the event stream, sends the input events and returns the
// receiving half. If any input fails to send the stream is closed and only the
// error is returned.
func (c *Client) Chat(ctx context.Context, req chat.ChatRequest, inputs []chat.InputEvent) (chat.InboundStream, error) {
	params := &sdk.ChatInput{
		ApplicationId:   aws.String(req.ApplicationID),
		ConversationId:  req.ConversationID,
		ParentMessageId: req.ParentMessageID,
	}
	if req.ClientToken != "" {
		params.ClientToken = aws.String(req.ClientToken)
	}

	es, err := c.open(ctx, params)
	if err != nil {
		return nil, err
	}
	for _, in := range inputs {
		ev, err := toSDKInput(in)
		if err == nil {
			err = es.Send(ctx, ev)
		}
		if err != nil {
			if cerr := es.Close(); cerr != nil {
				log.Warn().Err(cerr).Str("component", "qbusiness").Msg("close after failed send")
			}
			return nil, errors.Wrap(err, "send chat input")
		}
	}
	return newInboundStream(es), nil
}

// ListApplications returns every application page by page.
func (c *Client) ListApplications(ctx context.Context) ([]chat.ApplicationSummary, error) {
	p := sdk.NewListApplicationsPaginator(c.apps, &sdk.ListApplicationsInput{})
	var out []chat.ApplicationSummary
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, app := range page.Applications {
			out = append(out, chat.ApplicationSummary{
				ID:          app.ApplicationId,
				DisplayName: aws.ToString(app.DisplayName),
			})
		}
	}
	return out, nil
}
