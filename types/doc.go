// Package types defines the shared data model of the turn-taking
// coordination core: participants, turn requests, the turn lifecycle state
// machine, allocation decisions, lifecycle events, and the unified
// structured error type used across the framework.
package types
