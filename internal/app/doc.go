// Package app wires the session manager, connection manager, notification
// dispatcher and leave request cache onto one event loop.
//
// Session changes drive everything else: an opened session connects and
// refreshes the cache, a closed one tears both down and may redirect home.
// Adapters (CLI, status API) talk to the App, never to the components.
package app
