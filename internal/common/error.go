package common

import (
	"errors"
	"fmt"
)

const (
	ErrorCodeNotLicensed = 3001
)

var (
	ErrSessionNotOpen       = fmt.Errorf("transfer session is not open")
	ErrAlreadyOpen          = fmt.Errorf("transfer session is already open")
	ErrSessionFinished      = fmt.Errorf("transfer session is finished")
	ErrMissingTrackingID    = fmt.Errorf("no tracking id found in location")
	ErrInvalidTrackingID    = fmt.Errorf("invalid tracking id")
	ErrMissingFileID        = fmt.Errorf("no file id found in location")
	ErrFileNotAnnounced     = fmt.Errorf("file upload is not announced")
	ErrFileAlreadyAnnounced = fmt.Errorf("file is already announced")
	ErrFileNotFound         = fmt.Errorf("file not found in transfer session")
	ErrMissingSender        = fmt.Errorf("sender is required")
	ErrInvalidSecurityMode  = fmt.Errorf("invalid security mode")
	ErrInvalidRecipient     = fmt.Errorf("invalid recipient email")
	ErrInvalidEmail         = fmt.Errorf("invalid email")
	ErrInvalidServerURL     = fmt.Errorf("invalid server url")
	ErrInvalidTransferID    = fmt.Errorf("invalid transfer id")

	ErrVerificationRequired     = fmt.Errorf("sender verification required")
	ErrVerificationFailed       = fmt.Errorf("sender verification failed")
	ErrInvalidVerificationCode  = fmt.Errorf("invalid verification code")
	ErrSecurityModeNotAllowed   = fmt.Errorf("security mode is not allowed by transfer policy")
	ErrNoFiles                  = fmt.Errorf("no files to transfer")
	ErrNoRecipients             = fmt.Errorf("no recipients")
	ErrInvalidSubject           = fmt.Errorf("invalid subject")
	ErrUntrustedLocation        = fmt.Errorf("location is not on the configured server")
	ErrUnexpectedResponseFormat = fmt.Errorf("unexpected response format")
	ErrTokenNotFound            = fmt.Errorf("verification token not found")
	ErrClientIDNotFound         = fmt.Errorf("client id not found")

	ErrRemote      = errors.New("remote service rejected request")
	ErrNotLicensed = errors.New("rest api is not licensed on this server")
	ErrForbidden   = errors.New("forbidden")
)

// RemoteError is a non-success answer of the remote service.
type RemoteError struct {
	Status  int
	Code    int
	Message string
}

func (e *RemoteError) Error() string {
	if e.Code == 0 && e.Message == "" {
		return fmt.Sprintf("remote error: status %d", e.Status)
	}

	return fmt.Sprintf("remote error: status %d, code %d: %s", e.Status, e.Code, e.Message)
}

func (e *RemoteError) Is(target error) bool {
	switch target {
	case ErrRemote:
		return true
	case ErrForbidden:
		return e.Status == 403
	case ErrNotLicensed:
		return e.Status == 403 && e.Code == ErrorCodeNotLicensed
	}

	return false
}
