package engine

import "errors"

// Rule violations are sentinel errors so adapters can map them to
// user-facing rejections. The engine never panics on bad input.
var (
	ErrNotStarted     = errors.New("game has not started")
	ErrAlreadyStarted = errors.New("game already started")
	ErrFinished       = errors.New("game is finished")
	ErrNotEnoughTiles = errors.New("not enough tiles for this configuration")

	ErrNotYourTurn           = errors.New("not your turn")
	ErrTileNotInHand         = errors.New("tile is not in your hand")
	ErrIllegalMove           = errors.New("tile does not match either open end")
	ErrMustPlayIfAble        = errors.New("a legal move exists; you must play")
	ErrAmbiguousSideRequired = errors.New("tile matches both ends; choose a side")
	ErrNoPendingSide         = errors.New("no tile awaiting a side choice")
)
