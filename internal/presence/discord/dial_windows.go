//go:build windows

package discord

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/llehouerou/rpcbridge/internal/presence"
)

func dialIPC(ctx context.Context) (io.ReadWriteCloser, error) {
	for i := range 10 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		pipe, err := os.OpenFile(fmt.Sprintf(`\\.\pipe\discord-ipc-%d`, i), os.O_RDWR, 0)
		if err == nil {
			return pipe, nil
		}
	}
	return nil, presence.ErrHostNotFound
}
