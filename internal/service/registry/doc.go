// Package registry implements the family roster service.
//
// Creates and identity-changing updates are screened for duplicates before
// they reach the store: an existing person with the same normalized name
// and the same birthday is an exact duplicate, and a name whose trigram
// similarity reaches the threshold is a similar name. Either rejects the
// write unless the caller forces it.
//
// The service layer depends on the Repository interface defined in
// repository.go. It never imports net/http or database/sql directly.
package registry
