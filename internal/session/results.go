package session

import "encoding/json"

// FlexibleID is a player identifier that unmarshals from either a JSON number
// or a JSON string, canonicalized to its string form.
type FlexibleID string

// UnmarshalJSON implements json.Unmarshaler
func (f *FlexibleID) UnmarshalJSON(b []byte) error {
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = FlexibleID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*f = FlexibleID(n.String())
	return nil
}

// PlayerResult is one player's line in a hand's results
type PlayerResult struct {
	UserID        FlexibleID `json:"user_id"`
	Username      string     `json:"username"`
	HoleCards     []Card     `json:"hole_cards"`
	HandRank      string     `json:"hand_rank"`
	HandRankValue int        `json:"hand_rank_value"`
	HandStrength  []int      `json:"hand_strength"`
	WinAmount     int        `json:"win_amount"`
	FinalChips    int        `json:"final_chips"`
	Rank          int        `json:"rank"`
}

// GameResults is the showdown record for a completed hand. It arrives whole
// in a single game_results frame and replaces any prior record; it is cleared
// explicitly when the user leaves the table.
type GameResults struct {
	PotAmount int            `json:"pot_amount"`
	WinnerID  FlexibleID     `json:"winner_id"`
	Results   []PlayerResult `json:"results"`
}

// Clone returns a deep copy
func (r *GameResults) Clone() *GameResults {
	if r == nil {
		return nil
	}
	out := *r
	out.Results = make([]PlayerResult, len(r.Results))
	for i, pr := range r.Results {
		cp := pr
		cp.HoleCards = append([]Card(nil), pr.HoleCards...)
		cp.HandStrength = append([]int(nil), pr.HandStrength...)
		out.Results[i] = cp
	}
	return &out
}
