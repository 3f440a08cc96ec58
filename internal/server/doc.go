// Package server implements the HTTP layer of the submission intake
// service: the /api list and submit routes, /login, health probes, metrics
// and static files. It wires the session manager, upload pipeline and
// submission store together and provides lifecycle helpers used by tests
// and the production binary.
package server
