// Package api contains the public types of the virta workflow engine:
// graph specifications, runs and their logs, the tool function contract,
// the Engine interface, and the Observer hooks.
//
// Most applications import the root virta package instead, which re-exports
// everything here and adds engine constructors and the GraphBuilder.
package api
