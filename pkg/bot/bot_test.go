package bot

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/richard-senior/football-analyzer/pkg/analyzer"
	"github.com/richard-senior/football-analyzer/pkg/league"
	"github.com/richard-senior/football-analyzer/pkg/poisson"
	"github.com/richard-senior/football-analyzer/pkg/render"
	"github.com/richard-senior/football-analyzer/pkg/stats"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAPI struct {
	mu       sync.Mutex
	sent     []tgbotapi.MessageConfig
	rejectMD bool
	files    map[string]string
}

func (f *fakeAPI) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m := c.(tgbotapi.MessageConfig)
	if f.rejectMD && m.ParseMode != "" {
		return tgbotapi.Message{}, errors.New("Bad Request: can't parse entities")
	}
	f.sent = append(f.sent, m)
	return tgbotapi.Message{MessageID: len(f.sent)}, nil
}

func (f *fakeAPI) GetFileDirectURL(fileID string) (string, error) {
	url, ok := f.files[fileID]
	if !ok {
		return "", errors.New("file not found")
	}
	return url, nil
}

func (f *fakeAPI) texts() []string {
	var out []string
	for _, m := range f.sent {
		out = append(out, m.Text)
	}
	return out
}

type fakeOdds struct {
	got   []byte
	reply string
}

func (o *fakeOdds) AnalyzeOddsImage(_ context.Context, jpeg []byte) (string, error) {
	o.got = jpeg
	return o.reply, nil
}

func premierLeagueStats(context.Context, string, string, string, poisson.LeagueBaseline) (*stats.TeamMatchStats, error) {
	return &stats.TeamMatchStats{HomeScored: 1.5, HomeConceded: 1.0, AwayScored: 1.2, AwayConceded: 1.4, HomeForm: "WWDLW", AwayForm: "LDWWL"}, nil
}

func textUpdate(text string) tgbotapi.Update {
	msg := &tgbotapi.Message{MessageID: 7, Chat: &tgbotapi.Chat{ID: 42}, Text: text}
	if strings.HasPrefix(text, "/") {
		msg.Entities = []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: len(text)}}
	}
	return tgbotapi.Update{Message: msg}
}

func newTestBot(api *fakeAPI, odds OddsReader) *Bot {
	return New(api, analyzer.New(league.DefaultTable(), premierLeagueStats), odds, 0)
}

func TestCommands(t *testing.T) {
	api := &fakeAPI{}
	b := newTestBot(api, nil)
	b.HandleUpdate(context.Background(), textUpdate("/start"))
	b.HandleUpdate(context.Background(), textUpdate("/help"))
	b.HandleUpdate(context.Background(), textUpdate("/unknown"))

	require.Len(t, api.sent, 2)
	assert.Equal(t, render.Welcome(), api.sent[0].Text)
	assert.Equal(t, tgbotapi.ModeMarkdown, api.sent[0].ParseMode)
	assert.Equal(t, int64(42), api.sent[0].ChatID)
	assert.Equal(t, 7, api.sent[0].ReplyToMessageID)
	assert.Equal(t, render.Help(), api.sent[1].Text)
}

func TestTextAnalysis(t *testing.T) {
	api := &fakeAPI{}
	b := newTestBot(api, nil)
	b.HandleUpdate(context.Background(), textUpdate("Man City vs Newcastle"))

	require.Len(t, api.sent, 2)
	assert.Equal(t, render.Progress(), api.sent[0].Text)
	assert.Empty(t, api.sent[0].ParseMode)
	assert.Contains(t, api.sent[1].Text, "⚽ *Man City vs Newcastle*")
	assert.Contains(t, api.sent[1].Text, "▶️ Result: *1* (44.4%)")
	assert.Equal(t, tgbotapi.ModeMarkdown, api.sent[1].ParseMode)
}

func TestTextUsage(t *testing.T) {
	api := &fakeAPI{}
	b := newTestBot(api, nil)
	b.HandleUpdate(context.Background(), textUpdate("who wins tonight?"))
	assert.Equal(t, []string{render.Progress(), render.Usage()}, api.texts())
}

func TestPhoto(t *testing.T) {
	api := &fakeAPI{files: map[string]string{"big": "https://files.example/big.jpg"}}
	odds := &fakeOdds{reply: "Home 1.80, Draw 3.60, Away 4.50"}
	b := newTestBot(api, odds)
	var downloaded string
	b.download = func(_ context.Context, url string) ([]byte, error) {
		downloaded = url
		return []byte("jpeg"), nil
	}

	msg := &tgbotapi.Message{MessageID: 3, Chat: &tgbotapi.Chat{ID: 1}, Photo: []tgbotapi.PhotoSize{
		{FileID: "small", Width: 90, Height: 60},
		{FileID: "big", Width: 1280, Height: 853},
		{FileID: "medium", Width: 320, Height: 213},
	}}
	b.HandleUpdate(context.Background(), tgbotapi.Update{Message: msg})

	assert.Equal(t, "https://files.example/big.jpg", downloaded)
	assert.Equal(t, []byte("jpeg"), odds.got)
	assert.Equal(t, []string{render.PhotoProgress(), odds.reply}, api.texts())
}

func TestPhotoFailure(t *testing.T) {
	api := &fakeAPI{files: map[string]string{}}
	b := newTestBot(api, &fakeOdds{})
	msg := &tgbotapi.Message{Chat: &tgbotapi.Chat{ID: 1}, Photo: []tgbotapi.PhotoSize{{FileID: "gone"}}}
	b.HandleUpdate(context.Background(), tgbotapi.Update{Message: msg})

	require.Len(t, api.sent, 2)
	assert.True(t, strings.HasPrefix(api.sent[1].Text, "❌ Error: failed to locate photo"))
}

func TestPhotoWithoutReader(t *testing.T) {
	api := &fakeAPI{}
	b := newTestBot(api, nil)
	msg := &tgbotapi.Message{Chat: &tgbotapi.Chat{ID: 1}, Photo: []tgbotapi.PhotoSize{{FileID: "x"}}}
	b.HandleUpdate(context.Background(), tgbotapi.Update{Message: msg})
	require.Len(t, api.sent, 1)
	assert.Contains(t, api.sent[0].Text, "gemini")
}

func TestRejectedMarkdownIsResentPlain(t *testing.T) {
	api := &fakeAPI{rejectMD: true}
	b := newTestBot(api, nil)
	b.HandleUpdate(context.Background(), textUpdate("/start"))
	require.Len(t, api.sent, 1)
	assert.Equal(t, render.Welcome(), api.sent[0].Text)
	assert.Empty(t, api.sent[0].ParseMode)
}

func TestLongRepliesAreSplit(t *testing.T) {
	api := &fakeAPI{files: map[string]string{"f": "u"}}
	odds := &fakeOdds{reply: strings.Repeat("odds line\n", 900)}
	b := newTestBot(api, odds)
	b.download = func(context.Context, string) ([]byte, error) { return nil, nil }
	b.HandleUpdate(context.Background(), tgbotapi.Update{Message: &tgbotapi.Message{Chat: &tgbotapi.Chat{ID: 1}, Photo: []tgbotapi.PhotoSize{{FileID: "f"}}}})

	require.Len(t, api.sent, 4)
	assert.Equal(t, odds.reply, api.sent[1].Text+api.sent[2].Text+api.sent[3].Text)
}

func TestIgnoresNonMessages(t *testing.T) {
	api := &fakeAPI{}
	newTestBot(api, nil).HandleUpdate(context.Background(), tgbotapi.Update{})
	assert.Empty(t, api.sent)
}
