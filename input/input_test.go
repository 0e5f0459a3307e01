package input

import (
	"image"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

type recordedControls struct {
	moves   []image.Point
	resizes []int
	confirm int
	pauses  int
	resets  int
	quit    bool
}

func (c *recordedControls) MovePointer(dx, dy int)    { c.moves = append(c.moves, image.Pt(dx, dy)) }
func (c *recordedControls) SetPointer(image.Point)    {}
func (c *recordedControls) ResizeSelection(delta int) { c.resizes = append(c.resizes, delta) }
func (c *recordedControls) ConfirmSelection()         { c.confirm++ }
func (c *recordedControls) TogglePause()              { c.pauses++ }
func (c *recordedControls) ResetTracking()            { c.resets++ }
func (c *recordedControls) Quit()                     { c.quit = true }

type keyQueue struct {
	keys   []int
	delays []int
}

func (q *keyQueue) WaitKey(delay int) int {
	q.delays = append(q.delays, delay)
	if len(q.keys) == 0 {
		return -1
	}
	k := q.keys[0]
	q.keys = q.keys[1:]
	return k
}

type toggleCounter struct {
	recording int
	debug     int
}

func (t *toggleCounter) ToggleRecording() { t.recording++ }
func (t *toggleCounter) ToggleDebug()     { t.debug++ }

func TestKeyboardMovesPointer(t *testing.T) {
	keys := &keyQueue{keys: []int{keyUp, keyDownGTK, 'j', 'l'}}
	kb := NewKeyboard(DefaultConfig(), keys, nil, zerolog.Nop())
	c := &recordedControls{}

	for i := 0; i < 4; i++ {
		kb.Poll(c, time.Millisecond)
	}
	assert.Equal(t, []image.Point{{0, -10}, {0, 10}, {-10, 0}, {10, 0}}, c.moves)
}

func TestKeyboardCommands(t *testing.T) {
	tests := []struct {
		name  string
		key   int
		check func(t *testing.T, c *recordedControls, tg *toggleCounter)
	}{
		{"enter confirms", keyEnter, func(t *testing.T, c *recordedControls, _ *toggleCounter) { assert.Equal(t, 1, c.confirm) }},
		{"p pauses", 'p', func(t *testing.T, c *recordedControls, _ *toggleCounter) { assert.Equal(t, 1, c.pauses) }},
		{"space pauses", keySpace, func(t *testing.T, c *recordedControls, _ *toggleCounter) { assert.Equal(t, 1, c.pauses) }},
		{"r resets", 'r', func(t *testing.T, c *recordedControls, _ *toggleCounter) { assert.Equal(t, 1, c.resets) }},
		{"plus grows", '+', func(t *testing.T, c *recordedControls, _ *toggleCounter) { assert.Equal(t, []int{20}, c.resizes) }},
		{"minus shrinks", '-', func(t *testing.T, c *recordedControls, _ *toggleCounter) { assert.Equal(t, []int{-20}, c.resizes) }},
		{"q quits", 'q', func(t *testing.T, c *recordedControls, _ *toggleCounter) { assert.True(t, c.quit) }},
		{"esc quits", keyEsc, func(t *testing.T, c *recordedControls, _ *toggleCounter) { assert.True(t, c.quit) }},
		{"v records", 'v', func(t *testing.T, _ *recordedControls, tg *toggleCounter) { assert.Equal(t, 1, tg.recording) }},
		{"d debugs", 'd', func(t *testing.T, _ *recordedControls, tg *toggleCounter) { assert.Equal(t, 1, tg.debug) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tg := &toggleCounter{}
			kb := NewKeyboard(DefaultConfig(), &keyQueue{keys: []int{tt.key}}, tg, zerolog.Nop())
			c := &recordedControls{}
			kb.Poll(c, 5*time.Millisecond)
			tt.check(t, c, tg)
		})
	}
}

func TestKeyboardNoKeyIsNoop(t *testing.T) {
	keys := &keyQueue{}
	kb := NewKeyboard(DefaultConfig(), keys, nil, zerolog.Nop())
	c := &recordedControls{}

	kb.Poll(c, 0)
	kb.Poll(c, 25*time.Millisecond)

	assert.Equal(t, []int{1, 25}, keys.delays)
	assert.Empty(t, c.moves)
	assert.False(t, c.quit)
}

func TestKeyboardTogglesOptional(t *testing.T) {
	kb := NewKeyboard(Config{}, &keyQueue{keys: []int{'v', 'd'}}, nil, zerolog.Nop())
	c := &recordedControls{}
	assert.NotPanics(t, func() {
		kb.Poll(c, time.Millisecond)
		kb.Poll(c, time.Millisecond)
	})
}
