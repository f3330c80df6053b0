package bot

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/richard-senior/football-analyzer/internal/logger"
	"github.com/richard-senior/football-analyzer/pkg/analyzer"
	"github.com/richard-senior/football-analyzer/pkg/render"
	"github.com/richard-senior/football-analyzer/pkg/transport"
)

// pollTimeout is the long polling timeout in seconds
const pollTimeout = 60

// API is the part of *tgbotapi.BotAPI the bot uses
type API interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	GetFileDirectURL(fileID string) (string, error)
}

// Analyzer answers "Home vs Away, League" requests
type Analyzer interface {
	AnalyzeText(ctx context.Context, text string) (*analyzer.Analysis, error)
}

// OddsReader describes a screenshot of bookmaker odds
type OddsReader interface {
	AnalyzeOddsImage(ctx context.Context, jpeg []byte) (string, error)
}

// Bot routes Telegram updates to the analyzer
type Bot struct {
	api      API
	analyzer Analyzer
	odds     OddsReader
	timeout  time.Duration
	// download fetches a Telegram file, replaced in tests
	download func(ctx context.Context, url string) ([]byte, error)
}

// New creates a bot. odds may be nil, in which case photos are refused.
func New(api API, a Analyzer, odds OddsReader, timeout time.Duration) *Bot {
	return &Bot{
		api:      api,
		analyzer: a,
		odds:     odds,
		timeout:  timeout,
		download: transport.GetBytes,
	}
}

// Connect logs in to Telegram with the given token
func Connect(token string) (*tgbotapi.BotAPI, error) {
	// long polling outlives the shared client's timeout, so only its transport is reused
	client := &http.Client{Transport: transport.GetCustomHTTPClient().Transport}
	api, err := tgbotapi.NewBotAPIWithClient(token, tgbotapi.APIEndpoint, client)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to telegram: %w", err)
	}
	logger.Info("Authorized on account", api.Self.UserName)
	return api, nil
}

// Run long polls for updates until ctx is cancelled.
// Each update is handled in its own goroutine; Run waits for them before returning.
func Run(ctx context.Context, api *tgbotapi.BotAPI, b *Bot) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = pollTimeout
	updates := api.GetUpdatesChan(u)

	var wg sync.WaitGroup
	defer wg.Wait()
	for {
		select {
		case <-ctx.Done():
			api.StopReceivingUpdates()
			logger.Info("Bot stopped")
			return nil
		case update, ok := <-updates:
			if !ok {
				return errors.New("telegram update channel closed")
			}
			wg.Add(1)
			go func() {
				defer wg.Done()
				b.HandleUpdate(ctx, update)
			}()
		}
	}
}

// HandleUpdate answers a single update
func (b *Bot) HandleUpdate(ctx context.Context, update tgbotapi.Update) {
	msg := update.Message
	if msg == nil {
		return
	}

	switch {
	case msg.IsCommand():
		b.handleCommand(msg)
	case len(msg.Photo) > 0:
		b.handlePhoto(ctx, msg)
	case msg.Text != "":
		b.handleText(ctx, msg)
	}
}

func (b *Bot) handleCommand(msg *tgbotapi.Message) {
	switch msg.Command() {
	case "start":
		b.reply(msg, render.Welcome(), true)
	case "help":
		b.reply(msg, render.Help(), true)
	default:
		logger.Debug("ignoring command", msg.Command())
	}
}

func (b *Bot) handleText(ctx context.Context, msg *tgbotapi.Message) {
	logger.Info("Text request from chat", msg.Chat.ID, msg.Text)
	b.reply(msg, render.Progress(), false)

	ctx, cancel := b.withTimeout(ctx)
	defer cancel()
	a, err := b.analyzer.AnalyzeText(ctx, msg.Text)
	if errors.Is(err, analyzer.ErrUnparseableRequest) {
		b.reply(msg, render.Usage(), true)
		return
	}
	if err != nil {
		logger.Error("Analysis failed:", err)
		b.reply(msg, render.Failure(err), false)
		return
	}
	b.replyChunked(msg, render.Analysis(a))
}

func (b *Bot) handlePhoto(ctx context.Context, msg *tgbotapi.Message) {
	logger.Info("Photo request from chat", msg.Chat.ID)
	if b.odds == nil {
		b.reply(msg, render.Failure(errors.New("odds screenshots need a Gemini API key")), false)
		return
	}
	b.reply(msg, render.PhotoProgress(), false)

	ctx, cancel := b.withTimeout(ctx)
	defer cancel()
	text, err := b.readOdds(ctx, msg.Photo)
	if err != nil {
		logger.Error("Odds analysis failed:", err)
		b.reply(msg, render.Failure(err), false)
		return
	}
	b.replyChunked(msg, text)
}

// readOdds downloads the largest size of the photo and describes it
func (b *Bot) readOdds(ctx context.Context, sizes []tgbotapi.PhotoSize) (string, error) {
	largest := sizes[0]
	for _, p := range sizes[1:] {
		if p.Width*p.Height > largest.Width*largest.Height {
			largest = p
		}
	}
	url, err := b.api.GetFileDirectURL(largest.FileID)
	if err != nil {
		return "", fmt.Errorf("failed to locate photo: %w", err)
	}
	jpeg, err := b.download(ctx, url)
	if err != nil {
		return "", fmt.Errorf("failed to download photo: %w", err)
	}
	return b.odds.AnalyzeOddsImage(ctx, jpeg)
}

func (b *Bot) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if b.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, b.timeout)
}

func (b *Bot) replyChunked(msg *tgbotapi.Message, text string) {
	for _, chunk := range render.Split(text, render.MaxMessageRunes) {
		b.reply(msg, chunk, true)
	}
}

// reply sends text to the chat of msg. Markdown that Telegram rejects is resent as plain text.
func (b *Bot) reply(msg *tgbotapi.Message, text string, markdown bool) {
	out := tgbotapi.NewMessage(msg.Chat.ID, text)
	out.ReplyToMessageID = msg.MessageID
	if markdown {
		out.ParseMode = tgbotapi.ModeMarkdown
	}
	_, err := b.api.Send(out)
	if err != nil && markdown {
		logger.Warn("Markdown reply rejected, resending as plain text:", err)
		out.ParseMode = ""
		_, err = b.api.Send(out)
	}
	if err != nil {
		logger.Error("Failed to send reply:", err)
	}
}
