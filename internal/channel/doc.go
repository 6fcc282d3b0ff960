// Package channel implements the email and SMS transports: Amazon SES v2
// and the Gmail REST API for email, Twilio for SMS.
//
// Transports report every provider or network failure in the returned
// domain.SendResult instead of an error, and honor the caller's context
// deadline.
package channel
