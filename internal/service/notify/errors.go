package notify

import "errors"

// Sentinel errors for the notify service layer.
var (
	ErrAlreadySent     = errors.New("already sent today")
	ErrInFlight        = errors.New("send already in progress")
	ErrChannelDisabled = errors.New("channel disabled")
	ErrTicketClosed    = errors.New("ticket already recorded")
)
