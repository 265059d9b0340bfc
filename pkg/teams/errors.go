package teams

import "errors"

var (
	// ErrInviteInvalid covers unknown, wrong-kind and already-consumed
	// invite codes. Callers get no hint which; an invite code is a
	// shared secret and the error must not leak its state.
	ErrInviteInvalid = errors.New("invite code is invalid or already used")

	// ErrAlreadyMember is returned when adding a user who already holds
	// an active membership in the team
	ErrAlreadyMember = errors.New("user is already a team member")

	// ErrNotMember is returned when acting on a user with no active
	// membership in the team
	ErrNotMember = errors.New("user is not a team member")

	// ErrCodeGeneration is returned when code generation keeps
	// colliding with existing codes
	ErrCodeGeneration = errors.New("could not generate a unique invite code")
)
