package poisson

const (
	// OverThreshold is the over 2.5 probability that must be exceeded to call "Over 2.5"
	OverThreshold = 0.55
	// BTTSThreshold is the both-teams-to-score probability that must be exceeded to call "Yes"
	BTTSThreshold = 0.52
)

// Pick is a recommended selection and the probability backing it
type Pick struct {
	Label string  `json:"label"`
	Prob  float64 `json:"prob"`
}

// Decision is the headline recommendation derived from a Summary
type Decision struct {
	Result Pick `json:"result"` // "1", "X" or "2"
	Goals  Pick `json:"goals"`  // "Over 2.5" or "Under 2.5"
	BTTS   Pick `json:"btts"`   // "Yes" or "No"
}

// Decide derives the recommendation for a Summary.
//
// The result pick is the most likely of home/draw/away, with exact ties going to the
// first listed ("1" before "X" before "2"). The goals and BTTS calls need more than an
// even chance to go to the "Over"/"Yes" side.
func Decide(s *Summary) Decision {
	outcomes := []Pick{
		{Label: "1", Prob: s.Home},
		{Label: "X", Prob: s.Draw},
		{Label: "2", Prob: s.Away},
	}
	best := outcomes[0]
	for _, o := range outcomes[1:] {
		if o.Prob > best.Prob {
			best = o
		}
	}

	goals := Pick{Label: "Under 2.5", Prob: s.Under25}
	if s.Over25 > OverThreshold {
		goals = Pick{Label: "Over 2.5", Prob: s.Over25}
	}

	btts := Pick{Label: "No", Prob: s.BTTS}
	if s.BTTS > BTTSThreshold {
		btts.Label = "Yes"
	}

	return Decision{Result: best, Goals: goals, BTTS: btts}
}
