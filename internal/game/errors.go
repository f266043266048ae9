package game

import "errors"

// Rule violations. All of these reject the attempted action without mutating
// state; they are surfaced to the acting participant, never fatal.
var (
	// ErrNotYourTurn rejects an action from a player who does not hold the
	// turn.
	ErrNotYourTurn = errors.New("not your turn")
	// ErrInvalidCardIndex rejects a play whose card index is out of range
	// of the acting player's hand.
	ErrInvalidCardIndex = errors.New("invalid card index")
	// ErrIllegalCard rejects a card that fails the play-legality predicate
	// against the current table state.
	ErrIllegalCard = errors.New("card is not playable")
	// ErrMissingColorChoice rejects a wild card played without a
	// replacement color.
	ErrMissingColorChoice = errors.New("wild card requires a color choice")
	// ErrSwapPending rejects any action while a rank-7 hand swap awaits
	// its target choice.
	ErrSwapPending = errors.New("hand swap pending")
	// ErrNoSwapPending rejects a swap resolution when none is outstanding.
	ErrNoSwapPending = errors.New("no hand swap pending")
	// ErrInvalidSwapTarget rejects a swap against an unknown player or
	// against the swapping player themselves.
	ErrInvalidSwapTarget = errors.New("invalid swap target")
	// ErrDeclareNotAllowed rejects a low-hand declaration from a player
	// holding more or fewer than one card.
	ErrDeclareNotAllowed = errors.New("declaration requires exactly one card in hand")
	// ErrUnknownPlayer rejects actions from a player not seated at the
	// table.
	ErrUnknownPlayer = errors.New("unknown player")
)

// Lifecycle errors.
var (
	// ErrGameNotStarted rejects play actions while the room is still
	// waiting.
	ErrGameNotStarted = errors.New("game has not started")
	// ErrGameFinished rejects any further transition once a player has
	// won. A new game must be started instead.
	ErrGameFinished = errors.New("game is finished")
	// ErrNotEnoughPlayers rejects starting a game with fewer than two
	// seats filled.
	ErrNotEnoughPlayers = errors.New("not enough players")
)

// IsRuleViolation reports whether err is a recoverable rule violation, as
// opposed to a lifecycle or infrastructure error.
func IsRuleViolation(err error) bool {
	for _, v := range []error{
		ErrNotYourTurn,
		ErrInvalidCardIndex,
		ErrIllegalCard,
		ErrMissingColorChoice,
		ErrSwapPending,
		ErrNoSwapPending,
		ErrInvalidSwapTarget,
		ErrDeclareNotAllowed,
		ErrUnknownPlayer,
	} {
		if errors.Is(err, v) {
			return true
		}
	}
	return false
}
