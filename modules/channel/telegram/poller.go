package telegram

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/flemzord/majlis/pkg/message"
)

const (
	maxConsecutivePollingErrors = 5
	errorPauseDuration          = 30 * time.Second
	mediaDownloadTimeout        = 60 * time.Second
)

// Poller implements long-polling for receiving Telegram updates.
type Poller struct {
	client      *Client
	inbox       func(message.InboundMessage) error
	logger      *slog.Logger
	channelName string
	config      Config
	errorPause  time.Duration

	cancel   context.CancelFunc
	done     chan struct{}
	stopOnce sync.Once
}

// NewPoller creates a new Poller.
func NewPoller(client *Client, inbox func(message.InboundMessage) error, logger *slog.Logger, channelName string, config Config) *Poller {
	return &Poller{
		client:      client,
		inbox:       inbox,
		logger:      logger,
		channelName: channelName,
		config:      config,
		errorPause:  errorPauseDuration,
		done:        make(chan struct{}),
	}
}

// Start launches the polling loop in a goroutine.
func (p *Poller) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	go p.loop(ctx)
}

// Stop signals the polling loop to stop and waits for it to finish.
// It is safe to call Stop multiple times.
func (p *Poller) Stop() {
	p.stopOnce.Do(func() {
		if p.cancel == nil {
			close(p.done)
			return
		}
		p.cancel()
	})
	<-p.done
}

// loop runs the long-polling loop until ctx is cancelled.
func (p *Poller) loop(ctx context.Context) {
	defer close(p.done)

	var offset int
	var consecutiveErrors int

	for ctx.Err() == nil {
		updates, err := p.client.GetUpdates(ctx, GetUpdatesRequest{
			Offset:         offset,
			Timeout:        p.config.PollingTimeout,
			AllowedUpdates: p.config.AllowedUpdates,
		})
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			consecutiveErrors++
			p.logger.Error("telegram: getUpdates failed",
				"error", err,
				"consecutive_errors", consecutiveErrors,
			)

			if consecutiveErrors >= maxConsecutivePollingErrors {
				p.logger.Warn("telegram: polling paused after consecutive errors", "pause", p.errorPause)
				select {
				case <-ctx.Done():
					return
				case <-time.After(p.errorPause):
				}
				consecutiveErrors = 0
			}
			continue
		}

		consecutiveErrors = 0

		for i := range updates {
			offset = updates[i].UpdateID + 1
			p.handleUpdate(ctx, &updates[i])
		}
	}
}

// handleUpdate converts one update, downloads its media and pushes it to
// the inbox.
func (p *Poller) handleUpdate(ctx context.Context, update *Update) {
	msg, err := convertInbound(update, p.channelName)
	if err != nil {
		p.logger.Debug("telegram: skipping update", "update_id", update.UpdateID, "reason", err)
		return
	}

	if !p.config.chatAllowed(msg.Chat.ID) {
		p.logger.Debug("telegram: update from chat not in allow_chats",
			"update_id", update.UpdateID,
			"chat", msg.Chat.ID,
		)
		return
	}

	if _, ok := msg.Media(); ok {
		dctx, cancel := context.WithTimeout(ctx, mediaDownloadTimeout)
		err := downloadMedia(dctx, p.client, &msg, p.config.MaxDownloadBytes)
		cancel()
		if err != nil {
			p.logger.Warn("telegram: media download failed",
				"update_id", update.UpdateID,
				"error", err,
			)
			return
		}
	}

	if err := p.inbox(msg); err != nil {
		p.logger.Error("telegram: failed to deliver update to inbox",
			"update_id", update.UpdateID,
			"error", err,
		)
	}
}
