package main

import "github.com/gdamore/tcell/v2"

// Action is a viewer command bound to a key.
type Action uint8

const (
	ActionNone Action = iota
	ActionPanN
	ActionPanS
	ActionPanE
	ActionPanW
	ActionLayerUp
	ActionLayerDown
	ActionStep
	ActionStepTen
	ActionCenter
	ActionQuit
)

func keyToAction(ev *tcell.EventKey) Action {
	switch ev.Key() {
	case tcell.KeyUp:
		return ActionPanN
	case tcell.KeyDown:
		return ActionPanS
	case tcell.KeyRight:
		return ActionPanE
	case tcell.KeyLeft:
		return ActionPanW
	case tcell.KeyPgUp:
		return ActionLayerUp
	case tcell.KeyPgDn:
		return ActionLayerDown
	case tcell.KeyEscape:
		return ActionQuit
	}

	switch ev.Rune() {
	case 'k', 'K':
		return ActionPanN
	case 'j', 'J':
		return ActionPanS
	case 'l', 'L':
		return ActionPanE
	case 'h', 'H':
		return ActionPanW
	case '+', '>':
		return ActionLayerUp
	case '-', '<':
		return ActionLayerDown
	case 'n', ' ':
		return ActionStep
	case 'N':
		return ActionStepTen
	case 'c', 'C':
		return ActionCenter
	case 'q', 'Q':
		return ActionQuit
	}
	return ActionNone
}

// panDelta returns the camera move in world cells for a pan action.
func panDelta(a Action) (dx, dz int) {
	switch a {
	case ActionPanN:
		return 0, -1
	case ActionPanS:
		return 0, 1
	case ActionPanE:
		return 1, 0
	case ActionPanW:
		return -1, 0
	}
	return 0, 0
}
