package fetcher

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"google.golang.org/api/option"
	youtube "google.golang.org/api/youtube/v3"
)

// ChannelsOptions parameterise the channel lister.
type ChannelsOptions struct {
	ClientOptions []option.ClientOption
	Timeout       time.Duration
}

// Channels enumerates channels accessible to the authenticated account via
// the Data API.
type Channels struct {
	opts   ChannelsOptions
	logger zerolog.Logger

	mu  sync.Mutex
	svc *youtube.Service
}

// NewChannels constructs a channel lister.
func NewChannels(opts ChannelsOptions, logger zerolog.Logger) *Channels {
	return &Channels{
		opts:   opts,
		logger: logger.With().Str("component", "channel_lister").Logger(),
	}
}

// ListAccessible returns the channels owned by or delegated to the caller.
func (c *Channels) ListAccessible(ctx context.Context) ([]Channel, error) {
	timeout := c.opts.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	var cancel context.CancelFunc
	ctx, cancel = context.WithTimeout(ctx, timeout)
	defer cancel()

	svc, err := c.getService(ctx)
	if err != nil {
		return nil, err
	}

	resp, err := svc.Channels.List([]string{"id", "snippet"}).
		Mine(true).
		MaxResults(50).
		Context(ctx).
		Do()
	if err != nil {
		return nil, err
	}

	channels := make([]Channel, 0, len(resp.Items))
	for _, item := range resp.Items {
		ch := Channel{ID: item.Id}
		if item.Snippet != nil {
			ch.Title = item.Snippet.Title
		}
		channels = append(channels, ch)
	}

	c.logger.Debug().Int("channels", len(channels)).Msg("accessible channels listed")
	return channels, nil
}

func (c *Channels) getService(ctx context.Context) (*youtube.Service, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.svc != nil {
		return c.svc, nil
	}

	svc, err := youtube.NewService(ctx, c.opts.ClientOptions...)
	if err != nil {
		return nil, err
	}
	c.svc = svc
	return svc, nil
}

var _ ChannelLister = (*Channels)(nil)
