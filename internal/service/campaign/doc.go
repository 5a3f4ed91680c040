// Package campaign implements campaign lifecycle management and the
// campaign-to-mailbox links the execution gate counts capacity over.
//
// The service layer depends on repository interfaces defined in this package
// and should never import from api/.
//
// Repository implementations live in repository/postgres/ and repository/memory/.
package campaign
