package apperror

import "errors"

// validation errors
var (
	ErrOutOfBounds  = errors.New("cell is out of bounds")
	ErrCellOccupied = errors.New("cell is already occupied")
	ErrNotYourTurn  = errors.New("it's not your turn")
	ErrGameOver     = errors.New("game is already finished")
	ErrInvalidInput = errors.New("invalid input")
)

// authorization errors
var (
	ErrNotParticipant = errors.New("player is not a participant of the game")
	ErrForbidden      = errors.New("access to the game is forbidden")
	ErrInviteTaken    = errors.New("invite was already used by another player")
)

// conflict errors
var (
	ErrAlreadyQueued   = errors.New("player is already queued")
	ErrAlreadyMatched  = errors.New("player is already matched")
	ErrAlreadyInGame   = errors.New("player is already in a game")
	ErrNotQueued       = errors.New("player is not queued")
	ErrNoRematch       = errors.New("no pending rematch request")
	ErrOwnRematch      = errors.New("requester cannot accept own rematch request")
	ErrGameInProgress  = errors.New("game is still in progress")
	ErrConcurrentWrite = errors.New("concurrent modification detected")
)

var (
	ErrNotFound      = errors.New("not found")
	ErrInviteExpired = errors.New("invite has expired")
)

type Kind string

const (
	KindValidation    Kind = "validation_error"
	KindAuthorization Kind = "authorization_error"
	KindConflict      Kind = "conflict_error"
	KindNotFound      Kind = "not_found"
	KindInternal      Kind = "internal_error"
)

type classified struct {
	err  error
	kind Kind
	code string
}

var taxonomy = []classified{
	{ErrOutOfBounds, KindValidation, "out_of_bounds"},
	{ErrCellOccupied, KindValidation, "cell_occupied"},
	{ErrNotYourTurn, KindValidation, "not_your_turn"},
	{ErrGameOver, KindValidation, "game_over"},
	{ErrInvalidInput, KindValidation, "invalid_input"},
	{ErrNotParticipant, KindAuthorization, "not_participant"},
	{ErrForbidden, KindAuthorization, "forbidden"},
	{ErrInviteTaken, KindAuthorization, "invite_taken"},
	{ErrAlreadyQueued, KindConflict, "already_queued"},
	{ErrAlreadyMatched, KindConflict, "already_matched"},
	{ErrAlreadyInGame, KindConflict, "already_in_game"},
	{ErrNotQueued, KindConflict, "not_queued"},
	{ErrNoRematch, KindConflict, "no_rematch"},
	{ErrOwnRematch, KindConflict, "own_rematch"},
	{ErrGameInProgress, KindConflict, "game_in_progress"},
	{ErrNotFound, KindNotFound, "not_found"},
	{ErrInviteExpired, KindNotFound, "invite_expired"},
}

func lookup(err error) (classified, bool) {
	for _, c := range taxonomy {
		if errors.Is(err, c.err) {
			return c, true
		}
	}
	return classified{}, false
}

// KindOf classifies err. Anything outside the taxonomy, including storage and
// transport failures, is internal.
func KindOf(err error) Kind {
	if c, ok := lookup(err); ok {
		return c.kind
	}
	return KindInternal
}

// Code returns the stable reason string reported to clients.
func Code(err error) string {
	if c, ok := lookup(err); ok {
		return c.code
	}
	return "internal_error"
}

// Message is safe to show a client: internal errors are replaced by a
// generic text.
func Message(err error) string {
	if c, ok := lookup(err); ok {
		return c.err.Error()
	}
	return "internal server error"
}
