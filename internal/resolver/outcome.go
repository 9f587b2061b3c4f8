package resolver

import "github.com/dukerupert/kinkeeper/internal/model"

// SignInOutcome is the result of a sign-in attempt. It is one of Success,
// AccountConflict, PopupBlocked or OtherFailure.
type SignInOutcome interface {
	signInOutcome()
}

type Success struct {
	User *model.User
	// Created is set when this sign-in provisioned the user.
	Created bool
}

// AccountConflict means the email is registered with other sign-in methods.
type AccountConflict struct {
	Email           string
	ExistingMethods []string
}

// PopupBlocked means the provider flow never completed in the browser.
type PopupBlocked struct{}

type OtherFailure struct {
	Err error
}

func (Success) signInOutcome()         {}
func (AccountConflict) signInOutcome() {}
func (PopupBlocked) signInOutcome()    {}
func (OtherFailure) signInOutcome()    {}
