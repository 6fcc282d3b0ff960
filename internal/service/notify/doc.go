// Package notify sends the daily birthday and reminder notifications.
//
// Every send goes through the Gate: a recipient gets at most one attempt
// per channel, category and local calendar day. Failed attempts count, so
// a provider outage is not retried automatically the same day. The birthday
// email path accepts force to resend by hand. The check and the log append
// run under a named lock so two senders cannot both pass the check for the
// same key.
//
// Recipients are processed one at a time. A failure for one recipient is
// logged and the batch moves on.
package notify
