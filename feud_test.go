/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"testing"
	"time"

	"github.com/Seednode/feudbox/games/feud"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRounds() []feud.Round {
	return []feud.Round{
		{
			Question: "Name something people bring to a picnic",
			Answers: []feud.Answer{
				{Label: "Sandwiches", Points: 10},
				{Label: "Blanket", Points: 8},
				{Label: "Basket", Points: 5},
			},
		},
		{
			Question: "Name a breakfast food",
			Answers: []feud.Answer{
				{Label: "Eggs", Points: 40},
				{Label: "Toast", Points: 20},
			},
		},
	}
}

func testConfig() *Config {
	return &Config{
		port:       8080,
		stealDelay: 200 * time.Millisecond,
	}
}

func startHub(t *testing.T) (*Config, *Hub) {
	t.Helper()

	cfg := testConfig()

	h, err := newHub(cfg, "testgame", testRounds())
	require.NoError(t, err)

	go h.run(cfg)
	t.Cleanup(h.closeAll)

	return cfg, h
}

func connect(h *Hub, playerID string) *Client {
	c := &Client{
		send:     make(chan any, 64),
		playerID: playerID,
	}
	h.register <- c

	return c
}

func expect[T any](t *testing.T, c *Client) T {
	t.Helper()

	timeout := time.After(2 * time.Second)
	for {
		select {
		case msg, ok := <-c.send:
			require.True(t, ok, "client channel closed")
			if m, ok := msg.(T); ok {
				return m
			}
		case <-timeout:
			var zero T
			t.Fatalf("timed out waiting for %T", zero)
		}
	}
}

func send(h *Hub, c *Client, msg ClientMessage) {
	h.commands <- commandRequest{client: c, msg: msg}
}

func index(i int) *int {
	return &i
}

// play sends msg and returns the state the moderator sees afterwards.
func play(t *testing.T, h *Hub, mod *Client, msg ClientMessage) feud.View {
	t.Helper()

	send(h, mod, msg)

	return expect[GameStateMessage](t, mod).State
}

func TestHubRoles(t *testing.T) {
	_, h := startHub(t)

	mod := connect(h, "moderator")
	info := expect[SessionInfoMessage](t, mod)
	assert.True(t, info.IsModerator)
	assert.Equal(t, "testgame", info.GameID)

	state := expect[GameStateMessage](t, mod).State
	assert.True(t, state.Moderator)
	assert.Equal(t, "Sandwiches", state.Slots[0].Label)

	display := connect(h, "display")
	info = expect[SessionInfoMessage](t, display)
	assert.False(t, info.IsModerator)

	state = expect[GameStateMessage](t, display).State
	assert.False(t, state.Moderator)
	assert.Empty(t, state.Slots[0].Label)

	send(h, display, ClientMessage{Type: "face_off", Team: "a"})
	rejected := expect[RejectedMessage](t, display)
	assert.Equal(t, "face_off", rejected.Command)
	assert.Equal(t, errNotModerator.Error(), rejected.Message)
}

func TestHubNormalRound(t *testing.T) {
	_, h := startHub(t)

	mod := connect(h, "moderator")
	expect[GameStateMessage](t, mod)

	display := connect(h, "display")
	expect[GameStateMessage](t, display)

	play(t, h, mod, ClientMessage{Type: "face_off", Team: "a"})
	state := play(t, h, mod, ClientMessage{Type: "decide", Choice: "play"})
	assert.Equal(t, feud.PhasePlaying, state.Phase)
	assert.Equal(t, feud.TeamA, state.Controlling)

	play(t, h, mod, ClientMessage{Type: "reveal", Index: index(0)})
	state = play(t, h, mod, ClientMessage{Type: "reveal", Index: index(1)})
	assert.Equal(t, 18, state.Visible)

	state = play(t, h, mod, ClientMessage{Type: "end_round", Team: "a"})
	assert.Equal(t, 2, state.Round)
	assert.Equal(t, feud.Scores{A: 18}, state.Scores)
	assert.Equal(t, feud.PhaseFaceOff, state.Phase)

	// The display saw every step; its last view matches.
	var last feud.View
	for i := 0; i < 5; i++ {
		last = expect[GameStateMessage](t, display).State
	}
	assert.Equal(t, feud.Scores{A: 18}, last.Scores)
}

func TestHubSteal(t *testing.T) {
	_, h := startHub(t)

	mod := connect(h, "moderator")
	expect[GameStateMessage](t, mod)

	display := connect(h, "display")
	expect[GameStateMessage](t, display)

	for _, msg := range []ClientMessage{
		{Type: "face_off", Team: "a"},
		{Type: "decide", Choice: "play"},
		{Type: "reveal", Index: index(0)},
		{Type: "strike"},
		{Type: "strike"},
	} {
		play(t, h, mod, msg)
	}

	state := play(t, h, mod, ClientMessage{Type: "strike"})
	assert.Equal(t, feud.PhaseRobbing, state.Phase)
	assert.Equal(t, feud.TeamB, state.Controlling)

	send(h, mod, ClientMessage{Type: "confirm_steal", Team: "b"})
	rejected := expect[RejectedMessage](t, mod)
	assert.Equal(t, "confirm_steal", rejected.Command)

	state = play(t, h, mod, ClientMessage{Type: "reveal", Index: index(1)})
	assert.True(t, state.Slots[1].Selected)
	assert.False(t, state.Slots[1].Revealed)

	state = play(t, h, mod, ClientMessage{Type: "confirm_steal", Team: "b"})
	require.NotNil(t, state.Pending)
	assert.Equal(t, 18, state.Pending.Points)
	assert.Equal(t, 200*time.Millisecond, state.Pending.Delay)

	send(h, mod, ClientMessage{Type: "strike"})
	rejected = expect[RejectedMessage](t, mod)
	assert.Contains(t, rejected.Message, feud.ErrAdvancePending.Error())

	// The advance fires on its own after the steal delay.
	state = expect[GameStateMessage](t, mod).State
	assert.Equal(t, 2, state.Round)
	assert.Equal(t, feud.Scores{B: 18}, state.Scores)
	assert.Nil(t, state.Pending)

	// Displays never saw the steal pick before it was confirmed.
	for {
		view := expect[GameStateMessage](t, display).State
		for _, s := range view.Slots {
			assert.False(t, s.Selected)
		}
		if view.Pending != nil {
			break
		}
		if !view.Slots[1].Revealed {
			assert.Empty(t, view.Slots[1].Label)
		}
	}
}

func TestHubNewGameCancelsPendingAdvance(t *testing.T) {
	_, h := startHub(t)

	mod := connect(h, "moderator")
	expect[GameStateMessage](t, mod)

	for _, msg := range []ClientMessage{
		{Type: "face_off", Team: "b"},
		{Type: "decide", Choice: "pass"},
		{Type: "reveal", Index: index(2)},
		{Type: "strike"},
		{Type: "strike"},
		{Type: "strike"},
		{Type: "fail_steal"},
	} {
		play(t, h, mod, msg)
	}

	state := play(t, h, mod, ClientMessage{Type: "new_game"})
	assert.Equal(t, 1, state.Round)
	assert.Nil(t, state.Pending)

	time.Sleep(400 * time.Millisecond)

	select {
	case msg := <-mod.send:
		t.Fatalf("unexpected message after new game: %#v", msg)
	default:
	}
}

func TestHubGameOver(t *testing.T) {
	_, h := startHub(t)

	mod := connect(h, "moderator")
	expect[GameStateMessage](t, mod)

	for _, msg := range []ClientMessage{
		{Type: "face_off", Team: "a"},
		{Type: "decide", Choice: "play"},
		{Type: "reveal", Index: index(0)},
		{Type: "end_round", Team: "a"},
		{Type: "skip_round"},
	} {
		play(t, h, mod, msg)
	}

	over := expect[GameOverMessage](t, mod)
	assert.Equal(t, feud.Scores{A: 10}, over.Scores)
	assert.Equal(t, feud.TeamA, over.Winner)

	send(h, mod, ClientMessage{Type: "face_off", Team: "a"})
	rejected := expect[RejectedMessage](t, mod)
	assert.Equal(t, feud.ErrGameOver.Error(), rejected.Message)

	late := connect(h, "late")
	expect[GameOverMessage](t, late)
}

func TestHubGuess(t *testing.T) {
	_, h := startHub(t)

	mod := connect(h, "moderator")
	expect[GameStateMessage](t, mod)

	send(h, mod, ClientMessage{Type: "guess", Text: "blankit"})
	suggestion := expect[SuggestionMessage](t, mod)
	assert.True(t, suggestion.Found)
	assert.Equal(t, 1, suggestion.Index)
	assert.Equal(t, "Blanket", suggestion.Label)

	send(h, mod, ClientMessage{Type: "guess", Text: "umbrella"})
	suggestion = expect[SuggestionMessage](t, mod)
	assert.False(t, suggestion.Found)
}

func TestParseCommand(t *testing.T) {
	tests := []struct {
		name    string
		msg     ClientMessage
		want    feud.Command
		wantErr bool
	}{
		{"face off", ClientMessage{Type: "face_off", Team: "b"}, feud.DeclareFaceOffWinner{Team: feud.TeamB}, false},
		{"face off bad team", ClientMessage{Type: "face_off", Team: "c"}, nil, true},
		{"decide", ClientMessage{Type: "decide", Choice: "PASS"}, feud.DecideControl{Choice: feud.ChoicePass}, false},
		{"reveal", ClientMessage{Type: "reveal", Index: index(2)}, feud.RevealAnswer{Index: 2}, false},
		{"reveal without index", ClientMessage{Type: "reveal"}, nil, true},
		{"strike", ClientMessage{Type: "strike"}, feud.RecordStrike{}, false},
		{"select steal", ClientMessage{Type: "select_steal", Index: index(0)}, feud.SelectStealCandidate{Index: 0}, false},
		{"confirm steal", ClientMessage{Type: "confirm_steal", Team: "a"}, feud.ConfirmSteal{Team: feud.TeamA}, false},
		{"fail steal", ClientMessage{Type: "fail_steal"}, feud.FailSteal{}, false},
		{"end round", ClientMessage{Type: "end_round", Team: "team_b"}, feud.EndRound{Team: feud.TeamB}, false},
		{"skip round", ClientMessage{Type: "skip_round"}, feud.SkipRound{}, false},
		{"unknown", ClientMessage{Type: "dance"}, nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseCommand(tt.msg)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestGameManager(t *testing.T) {
	cfg := testConfig()
	gm := newGameManager(testRounds(), 0)

	a, err := gm.getHub(cfg, "abc")
	require.NoError(t, err)

	b, err := gm.getHub(cfg, "abc")
	require.NoError(t, err)
	assert.Same(t, a, b)

	id := gm.newGameID()
	assert.Len(t, id, 8)
	assert.NotEqual(t, "abc", id)

	gm.reap(time.Now().Add(time.Minute))

	gm.mu.Lock()
	assert.Empty(t, gm.hubs)
	gm.mu.Unlock()
}
