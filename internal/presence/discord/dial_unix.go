//go:build !windows

package discord

import (
	"context"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"

	"github.com/adrg/xdg"

	"github.com/llehouerou/rpcbridge/internal/presence"
)

// socketDirs lists where Discord may place its IPC socket, in lookup order.
// Flatpak and Snap builds use a sub-directory of the runtime dir.
func socketDirs() []string {
	var bases []string
	if xdg.RuntimeDir != "" {
		bases = append(bases, xdg.RuntimeDir)
	}
	for _, env := range []string{"TMPDIR", "TMP", "TEMP"} {
		if v := os.Getenv(env); v != "" {
			bases = append(bases, v)
		}
	}
	bases = append(bases, "/tmp")

	var dirs []string
	for _, base := range bases {
		dirs = append(dirs,
			base,
			filepath.Join(base, "app", "com.discordapp.Discord"),
			filepath.Join(base, "snap.discord"),
		)
	}
	return dirs
}

func dialIPC(ctx context.Context) (io.ReadWriteCloser, error) {
	var d net.Dialer
	for _, dir := range socketDirs() {
		for i := range 10 {
			path := filepath.Join(dir, fmt.Sprintf("discord-ipc-%d", i))
			if _, err := os.Stat(path); err != nil {
				continue
			}
			conn, err := d.DialContext(ctx, "unix", path)
			if err == nil {
				return conn, nil
			}
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
		}
	}
	return nil, presence.ErrHostNotFound
}
