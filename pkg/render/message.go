package render

import (
	"fmt"
	"strings"

	"github.com/richard-senior/football-analyzer/pkg/analyzer"
	"github.com/richard-senior/football-analyzer/pkg/poisson"
)

// MaxMessageRunes is the chunk size used for chat replies (Telegram allows 4096)
const MaxMessageRunes = 4000

// maxErrorRunes bounds the error detail shown to a chat user
const maxErrorRunes = 200

var markdownEscaper = strings.NewReplacer("_", `\_`, "*", `\*`, "`", "\\`", "[", `\[`)

// Escape makes user supplied text safe inside a legacy Markdown message
func Escape(s string) string {
	return markdownEscaper.Replace(s)
}

func pct(p float64) string {
	return fmt.Sprintf("%.1f%%", p*100)
}

// Analysis renders an analysis as a Markdown chat message
func Analysis(a *analyzer.Analysis) string {
	home, away := Escape(a.Home), Escape(a.Away)
	s, d := a.Summary, a.Decision

	var b strings.Builder
	fmt.Fprintf(&b, "⚽ *%s vs %s*\n", home, away)
	fmt.Fprintf(&b, "🏆 %s\n", Escape(a.League))
	if a.Stats.Context != "" {
		fmt.Fprintf(&b, "\n📌 _%s_\n", Escape(a.Stats.Context))
	}

	b.WriteString("\n📊 *Stats:*\n")
	fmt.Fprintf(&b, "🏠 %s: %.2f scored | %.2f conceded | %s\n", home, a.Stats.HomeScored, a.Stats.HomeConceded, Escape(a.Stats.HomeForm))
	fmt.Fprintf(&b, "✈️ %s: %.2f scored | %.2f conceded | %s\n", away, a.Stats.AwayScored, a.Stats.AwayConceded, Escape(a.Stats.AwayForm))
	if a.StatsSource == analyzer.SourceDefaults {
		b.WriteString("_No current stats found, league averages used._\n")
	}

	fmt.Fprintf(&b, "\n🎯 *xG: %s %.2f - %s %.2f*\n", home, a.Rates.Home, away, a.Rates.Away)

	b.WriteString("\n📈 *Poisson probabilities:*\n")
	fmt.Fprintf(&b, "1️⃣ %s: *%s*\n", home, pct(s.Home))
	fmt.Fprintf(&b, "🤝 Draw: *%s*\n", pct(s.Draw))
	fmt.Fprintf(&b, "2️⃣ %s: *%s*\n", away, pct(s.Away))
	fmt.Fprintf(&b, "⚽ Over 2.5: *%s*\n", pct(s.Over25))
	fmt.Fprintf(&b, "🔒 Under 2.5: *%s*\n", pct(s.Under25))
	fmt.Fprintf(&b, "🔄 BTTS: *%s*\n", pct(s.BTTS))

	b.WriteString("\n🏆 *Most likely scores:*\n")
	for _, sc := range s.Top {
		fmt.Fprintf(&b, "  %d-%d  %s\n", sc.Home, sc.Away, pct(sc.Prob))
	}

	b.WriteString("\n🔮 *Prediction:*\n")
	fmt.Fprintf(&b, "▶️ Result: *%s* (%s)\n", d.Result.Label, pct(d.Result.Prob))
	fmt.Fprintf(&b, "▶️ Goals: *%s* (%s)\n", d.Goals.Label, pct(d.Goals.Prob))
	fmt.Fprintf(&b, "▶️ BTTS: *%s* (%s)\n", bttsLabel(d.BTTS), pct(d.BTTS.Prob))

	b.WriteString("\n⚠️ _Mathematical analysis only, no guarantee of profit._")
	return b.String()
}

func bttsLabel(p poisson.Pick) string {
	if p.Label == "Yes" {
		return "Yes ✅"
	}
	return "No ❌"
}

// Welcome is the reply to /start
func Welcome() string {
	return "⚽ *Football Value Analyzer*\n\n" +
		"Send me:\n" +
		"📝 `Man City vs Newcastle`\n" +
		"📝 `Juventus vs Como, Serie A`\n" +
		"📸 A screenshot of bookmaker odds\n\n" +
		"I use Poisson + Google Search 🎯"
}

// Help is the reply to /help
func Help() string {
	return "📖 *How to use:*\n\n" +
		"`Team A vs Team B`\n" +
		"`Team A vs Team B, League`\n" +
		"📸 A photo of the odds\n\n" +
		"⏱ ~15-20 seconds per analysis"
}

// Progress is sent while a fixture is being analysed
func Progress() string {
	return "🔍 Looking up stats... (~20 sec)"
}

// PhotoProgress is sent while an odds screenshot is being read
func PhotoProgress() string {
	return "📸 Analysing odds... (~20 sec)"
}

// Usage is the reply to text that does not name a fixture
func Usage() string {
	return "❌ Send e.g.: `Man City vs Newcastle`"
}

// Failure is the reply when a request fails. It is plain text.
func Failure(err error) string {
	msg := []rune(err.Error())
	if len(msg) > maxErrorRunes {
		msg = msg[:maxErrorRunes]
	}
	return "❌ Error: " + string(msg)
}

// Split cuts text into chunks of at most limit runes, preferring to break
// after a newline in the second half of a chunk. Joining the chunks gives back text.
func Split(text string, limit int) []string {
	if limit <= 0 {
		limit = MaxMessageRunes
	}
	runes := []rune(text)
	if len(runes) == 0 {
		return nil
	}

	var chunks []string
	for len(runes) > limit {
		cut := limit
		for i := limit; i > limit/2; i-- {
			if runes[i-1] == '\n' {
				cut = i
				break
			}
		}
		chunks = append(chunks, string(runes[:cut]))
		runes = runes[cut:]
	}
	return append(chunks, string(runes))
}
