//go:build windows

package discordipc

import (
	"context"
	"fmt"
	"io"
	"os"
)

// Dial opens the first discord-ipc-N named pipe that exists.
func Dial(ctx context.Context) (io.ReadWriteCloser, error) {
	for i := 0; i < 10; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		f, err := os.OpenFile(fmt.Sprintf(`\\.\pipe\discord-ipc-%d`, i), os.O_RDWR, 0)
		if err == nil {
			return f, nil
		}
	}
	return nil, ErrNoSocket
}
