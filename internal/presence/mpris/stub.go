//go:build !linux

package mpris

import (
	"context"
	"log/slog"

	"github.com/llehouerou/rpcbridge/internal/presence"
)

// Host is unavailable on non-Linux platforms; Connect always fails.
type Host struct{}

// New returns a host that reports the session bus as missing.
func New(_ *slog.Logger) *Host {
	return &Host{}
}

func (h *Host) Name() string { return "MPRIS" }

func (h *Host) Connect(_ context.Context) error {
	return presence.ErrHostNotFound
}

func (h *Host) Update(_ context.Context, _ presence.Payload) error {
	return presence.ErrNotConnected
}

func (h *Host) Clear(_ context.Context) error {
	return presence.ErrNotConnected
}

func (h *Host) Close() error {
	return nil
}
