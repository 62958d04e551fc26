package server

import (
	"github.com/tcgsim/tcgsim-go/internal/game"
	"github.com/tcgsim/tcgsim-go/internal/game/card"
	"github.com/tcgsim/tcgsim-go/internal/game/creature"
	"github.com/tcgsim/tcgsim-go/internal/game/tappable"
	"github.com/tcgsim/tcgsim-go/internal/game/watchers"
)

// CardView is the client-facing rendering of one card.
type CardView struct {
	Index     int      `json:"index"`
	Name      string   `json:"name"`
	Cost      int      `json:"cost"`
	Types     []string `json:"types"`
	Power     int      `json:"power,omitempty"`
	Toughness int      `json:"toughness,omitempty"`
	Tapped    bool     `json:"tapped,omitempty"`
	Sick      bool     `json:"sick,omitempty"`
	Attacking bool     `json:"attacking,omitempty"`
	Blocking  *int     `json:"blocking,omitempty"`
}

// PlayerView shows counts for hidden zones and full cards for hand and battlefield.
type PlayerView struct {
	Name        string     `json:"name"`
	Life        int        `json:"life"`
	Library     int        `json:"library"`
	Graveyard   int        `json:"graveyard"`
	Hand        []CardView `json:"hand"`
	Battlefield []CardView `json:"battlefield"`
}

// View is the match state pushed to HTTP, websocket and gRPC clients.
type View struct {
	MatchID       string                 `json:"match_id"`
	Turn          int                    `json:"turn"`
	Phase         string                 `json:"phase"`
	CurrentPlayer int                    `json:"current_player"`
	GameOver      bool                   `json:"game_over"`
	Loser         int                    `json:"loser"`
	AutoPlay      bool                   `json:"auto_play"`
	MainPending   bool                   `json:"main_pending"`
	AttackPending bool                   `json:"attack_pending"`
	BlockPending  bool                   `json:"block_pending"`
	LandPlayed    bool                   `json:"land_played"`
	Players       []PlayerView           `json:"players"`
	Stats         []watchers.PlayerStats `json:"stats,omitempty"`
	Description   string                 `json:"description"`
}

func newView(m *game.Match, stats *watchers.Standard) View {
	v := View{
		MatchID:       m.ID,
		Turn:          m.Turn,
		Phase:         m.Phase.String(),
		CurrentPlayer: m.CurrentPlayer,
		GameOver:      m.IsGameOver(),
		Loser:         m.Loser,
		AutoPlay:      m.AutoPlay,
		MainPending:   m.MainPending,
		AttackPending: m.AttackPending,
		BlockPending:  m.BlockPending,
		LandPlayed:    m.LandPlayed,
		Players:       make([]PlayerView, len(m.Players)),
		Description:   m.Describe(true),
	}

	attacking := make(map[int]bool, len(m.Attackers))
	for _, a := range m.Attackers {
		attacking[a] = true
	}

	names := make([]string, len(m.Players))
	for i, p := range m.Players {
		names[i] = p.Name
		pv := PlayerView{
			Name:        p.Name,
			Life:        p.Life,
			Library:     p.Count(game.ZoneLibrary),
			Graveyard:   p.Count(game.ZoneGraveyard),
			Hand:        cardViews(p.Hand()),
			Battlefield: cardViews(p.Battlefield()),
		}
		if i == m.CurrentPlayer {
			for j := range pv.Battlefield {
				pv.Battlefield[j].Attacking = attacking[j]
				if target, ok := m.Blocking[j]; ok {
					pv.Battlefield[j].Blocking = &target
				}
			}
		}
		v.Players[i] = pv
	}
	if stats != nil {
		v.Stats = stats.Stats(names)
	}
	return v
}

func cardViews(cards []*card.Card) []CardView {
	out := make([]CardView, len(cards))
	for i, c := range cards {
		cv := CardView{Index: i, Name: c.Name, Cost: c.Cost}
		for _, t := range c.Types() {
			cv.Types = append(cv.Types, t.String())
		}
		if creature.IsCreature(c) {
			cv.Power = creature.Power(c)
			cv.Toughness = creature.Toughness(c)
			cv.Sick = creature.HasSummoningSickness(c)
		}
		cv.Tapped = tappable.IsTapped(c)
		out[i] = cv
	}
	return out
}
