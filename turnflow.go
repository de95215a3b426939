// Package turnflow provides a top-level convenience entry point for creating
// turn coordinators with minimal boilerplate.
//
// Usage:
//
//	import "github.com/BaSui01/turnflow"
//
//	c, err := turnflow.New("conv-42")
//	c, err := turnflow.NewWithConfig("conv-42", cfg)
//	a, err := turnflow.NewArena(config.Default())
//
// This is a thin wrapper around [coordinator.New]; both produce identical
// results. Use this package when you prefer the shorter import path.
package turnflow

import (
	"github.com/BaSui01/turnflow/config"
	"github.com/BaSui01/turnflow/coordinator"
)

// Option configures the coordinator created by [New].
type Option = coordinator.Option

// New creates a [coordinator.Coordinator] for one conversation with the
// default sequential configuration.
func New(conversationID string, opts ...Option) (*coordinator.Coordinator, error) {
	return coordinator.New(conversationID, config.Default(), opts...)
}

// NewWithConfig creates a coordinator with an explicit configuration.
func NewWithConfig(conversationID string, cfg *config.Config, opts ...Option) (*coordinator.Coordinator, error) {
	return coordinator.New(conversationID, cfg, opts...)
}

// NewArena creates a [coordinator.Arena] managing one coordinator per
// conversation.
func NewArena(cfg *config.Config, opts ...Option) (*coordinator.Arena, error) {
	return coordinator.NewArena(cfg, opts...)
}

// Re-export coordinator options so callers never need to import coordinator/.

// WithClock substitutes the time source.
var WithClock = coordinator.WithClock

// WithLogger sets a custom zap logger.
var WithLogger = coordinator.WithLogger

// WithCollector sets the metrics collector.
var WithCollector = coordinator.WithCollector

// WithSnapshotStore overrides the configured snapshot store.
var WithSnapshotStore = coordinator.WithSnapshotStore
