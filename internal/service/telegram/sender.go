package telegram

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"

	"SignalDesk/internal/domain/models"
	"SignalDesk/pkg/config"
	xhttp "SignalDesk/pkg/http"

	"github.com/mymmrac/telego"
)

// maxCachedBots caps the per-token bot cache.
const maxCachedBots = 64

// Sender delivers Markdown messages through the Telegram Bot API.
type Sender struct {
	apiServer  string
	httpClient *http.Client

	mu   sync.Mutex
	bots map[string]*telego.Bot
}

// New builds a Sender. Bots are created lazily per token and cached only
// after a token has delivered a message.
func New(cfg config.TelegramConfig) *Sender {
	client := xhttp.NewClient(xhttp.WithTimeout(cfg.Timeout), xhttp.WithUserAgent("signaldesk"))
	return &Sender{
		apiServer:  strings.TrimRight(cfg.APIServer, "/"),
		httpClient: client.HTTPClient(),
		bots:       make(map[string]*telego.Bot),
	}
}

// Send posts text to cred.ChatID with Markdown parse mode and link previews disabled.
func (s *Sender) Send(ctx context.Context, cred models.Credential, text string) error {
	token := strings.TrimSpace(cred.Token)
	bot, cached, err := s.bot(token)
	if err != nil {
		return err
	}

	_, err = bot.SendMessage(ctx, &telego.SendMessageParams{
		ChatID:             ParseChatID(cred.ChatID),
		Text:               text,
		ParseMode:          telego.ModeMarkdown,
		LinkPreviewOptions: &telego.LinkPreviewOptions{IsDisabled: true},
	})
	if err != nil {
		return fmt.Errorf("telegram send: %w", err)
	}
	if !cached {
		s.remember(token, bot)
	}
	return nil
}

func (s *Sender) bot(token string) (*telego.Bot, bool, error) {
	s.mu.Lock()
	b, ok := s.bots[token]
	s.mu.Unlock()
	if ok {
		return b, true, nil
	}

	opts := []telego.BotOption{telego.WithDiscardLogger(), telego.WithHTTPClient(s.httpClient)}
	if s.apiServer != "" {
		opts = append(opts, telego.WithAPIServer(s.apiServer))
	}
	b, err := telego.NewBot(token, opts...)
	if err != nil {
		return nil, false, fmt.Errorf("telegram bot: %w", err)
	}
	return b, false, nil
}

func (s *Sender) remember(token string, b *telego.Bot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.bots[token]; ok || len(s.bots) >= maxCachedBots {
		return
	}
	s.bots[token] = b
}

// ParseChatID maps numeric ids to ChatID.ID and anything else (e.g. "@channel") to ChatID.Username.
func ParseChatID(raw string) telego.ChatID {
	raw = strings.TrimSpace(raw)
	if id, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return telego.ChatID{ID: id}
	}
	return telego.ChatID{Username: raw}
}
