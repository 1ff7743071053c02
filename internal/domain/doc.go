// Package domain holds the types shared by the session, connection and
// notification components: session snapshots and events, connection states,
// wire messages, notification records, toasts and leave requests.
//
// The interfaces adapters implement (CredentialStore, Alerter, Navigator)
// live here too, so components depend on this package only.
package domain
