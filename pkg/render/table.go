package render

import (
	"fmt"
	"io"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/richard-senior/football-analyzer/pkg/poisson"
	"github.com/richard-senior/football-analyzer/pkg/store"
)

// PredictionTable writes the probabilities and picks for a fixture
func PredictionTable(w io.Writer, home, away string, rates poisson.ExpectedGoalRates, s *poisson.Summary, d poisson.Decision) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetTitle(fmt.Sprintf("%s vs %s  (xG %.2f - %.2f)", home, away, rates.Home, rates.Away))
	t.AppendHeader(table.Row{"Market", "Selection", "Prob.", "Pick"})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, AutoMerge: true},
		{Number: 3, Align: text.AlignRight},
	})

	mark := func(label, pick string) string {
		if label == pick {
			return "◀"
		}
		return ""
	}
	t.AppendRow(table.Row{"1X2", "1 " + home, pct(s.Home), mark("1", d.Result.Label)})
	t.AppendRow(table.Row{"1X2", "X Draw", pct(s.Draw), mark("X", d.Result.Label)})
	t.AppendRow(table.Row{"1X2", "2 " + away, pct(s.Away), mark("2", d.Result.Label)})
	t.AppendSeparator()
	t.AppendRow(table.Row{"Goals", "Over 2.5", pct(s.Over25), mark("Over 2.5", d.Goals.Label)})
	t.AppendRow(table.Row{"Goals", "Under 2.5", pct(s.Under25), mark("Under 2.5", d.Goals.Label)})
	t.AppendSeparator()
	t.AppendRow(table.Row{"BTTS", "Yes", pct(s.BTTS), mark("Yes", d.BTTS.Label)})
	t.AppendSeparator()
	for i, sc := range s.Top {
		likeliest := ""
		if i == 0 {
			likeliest = "◀"
		}
		t.AppendRow(table.Row{"Score", fmt.Sprintf("%d-%d", sc.Home, sc.Away), pct(sc.Prob), likeliest})
	}

	t.SetStyle(table.StyleLight)
	t.Render()
}

// GridTable writes P(home=h, away=a) for h, a up to maxShown goals
func GridTable(w io.Writer, dist *poisson.Distribution, maxShown int) {
	if maxShown <= 0 || maxShown > dist.MaxGoals {
		maxShown = dist.MaxGoals
	}
	t := table.NewWriter()
	t.SetOutputMirror(w)

	header := table.Row{"Home \\ Away"}
	for a := 0; a <= maxShown; a++ {
		header = append(header, a)
	}
	t.AppendHeader(header)
	for h := 0; h <= maxShown; h++ {
		row := table.Row{h}
		for a := 0; a <= maxShown; a++ {
			row = append(row, fmt.Sprintf("%.1f", dist.At(h, a)*100))
		}
		t.AppendRow(row)
	}
	t.SetStyle(table.StyleLight)
	t.Render()
}

// HistoryTable writes stored predictions, newest first
func HistoryTable(w io.Writer, records []*store.PredictionRecord) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.AppendHeader(table.Row{"When", "Fixture", "League", "xG", "1X2", "Goals", "BTTS", "Top score"})
	for _, r := range records {
		t.AppendRow(table.Row{
			r.Created().Format(time.DateTime),
			r.Home + " vs " + r.Away,
			r.League,
			fmt.Sprintf("%.2f-%.2f", r.LambdaHome, r.LambdaAway),
			r.ResultPick,
			r.GoalsPick,
			r.BTTSPick,
			r.TopScore,
		})
	}
	t.SetStyle(table.StyleLight)
	t.Render()
}
