package manager

import "errors"

var (
	// ErrNotPDF is returned when an upload isn't application/pdf.
	ErrNotPDF = errors.New("manager: file was not a pdf")

	// ErrTooLarge is returned when an upload exceeds MaxResumeSize.
	ErrTooLarge = errors.New("manager: file size exceeded 2 MB")

	// ErrNoStorage is returned before the server has granted storage
	// credentials for this session.
	ErrNoStorage = errors.New("manager: storage not available")

	// ErrNoUnverifiedEmail is returned by Resend when there is nothing
	// to verify.
	ErrNoUnverifiedEmail = errors.New("manager: no unverified email")

	// ErrEmptyEmail is returned by Change with an empty address.
	ErrEmptyEmail = errors.New("manager: email not entered")

	// ErrNotLoggedIn is returned by operations that need a session.
	ErrNotLoggedIn = errors.New("manager: not logged in")
)
