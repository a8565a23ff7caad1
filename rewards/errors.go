package rewards

import (
	"errors"
	"fmt"

	"github.com/warp/recognition-engine/generic"
)

// =============================================================================
// PRECONDITION VIOLATIONS - operation refused, state unchanged
// =============================================================================

var (
	ErrActionsLocked       = errors.New("action logging is locked")
	ErrPrizesLocked        = errors.New("prize redemption is locked")
	ErrInsufficientPoints  = errors.New("insufficient points")
	ErrAlreadyResolved     = errors.New("already in a terminal state")
	ErrMissionNotClaimable = errors.New("mission is not claimable")
	ErrNotAdmin            = errors.New("admin role required")
	ErrInvalidDecision     = errors.New("invalid decision")
	ErrNothingPending      = errors.New("no pending logs")
	ErrInUse               = errors.New("still referenced")
	ErrSelfDelete          = errors.New("admins cannot delete themselves")
	ErrInvalidCatalog      = errors.New("invalid catalog entry")
	ErrUsernameTaken       = errors.New("username already taken")
	ErrBadCredentials      = errors.New("invalid username or password")
)

// =============================================================================
// NOT FOUND
// =============================================================================

var (
	ErrUserNotFound       = errors.New("user not found")
	ErrActionNotFound     = errors.New("action not found")
	ErrPrizeNotFound      = errors.New("prize not found")
	ErrMissionNotFound    = errors.New("mission not found")
	ErrLogNotFound        = errors.New("logged action not found")
	ErrRedemptionNotFound = errors.New("redemption not found")
	ErrEventNotFound      = errors.New("special event not found")
)

// =============================================================================
// STRUCTURED ERRORS
// =============================================================================

// InsufficientPointsError reports a redemption the balance cannot cover.
type InsufficientPointsError struct {
	UserID    UserID
	Available int64
	Cost      int64
}

func (e *InsufficientPointsError) Error() string {
	return fmt.Sprintf("insufficient points: user %d has %d, prize costs %d", e.UserID, e.Available, e.Cost)
}

func (e *InsufficientPointsError) Unwrap() error { return ErrInsufficientPoints }

// TransitionError reports an attempt to move an entity out of a terminal
// or otherwise wrong state.
type TransitionError struct {
	Entity string
	ID     int64
	From   string
	To     string
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("%s %d: cannot move from %s to %s", e.Entity, e.ID, e.From, e.To)
}

func (e *TransitionError) Unwrap() error { return ErrAlreadyResolved }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsPrecondition reports refused operations the caller may retry with
// corrected input.
func IsPrecondition(err error) bool {
	for _, target := range []error{
		ErrActionsLocked, ErrPrizesLocked, ErrInsufficientPoints, ErrAlreadyResolved,
		ErrMissionNotClaimable, ErrNotAdmin, ErrInvalidDecision, ErrNothingPending,
		ErrInUse, ErrSelfDelete, ErrInvalidCatalog, ErrUsernameTaken, ErrBadCredentials,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return generic.IsClientError(err)
}

// IsNotFound reports a reference to a missing entity.
func IsNotFound(err error) bool {
	for _, target := range []error{
		ErrUserNotFound, ErrActionNotFound, ErrPrizeNotFound, ErrMissionNotFound,
		ErrLogNotFound, ErrRedemptionNotFound, ErrEventNotFound,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return generic.IsNotFound(err)
}
