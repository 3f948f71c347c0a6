//go:build !windows

package discordipc

import (
	"context"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
)

// flatpak and snap installs put the socket one directory down
var socketSubdirs = []string{"", "app/com.discordapp.Discord", "snap.discord"}

func socketDirs() []string {
	var dirs []string
	for _, key := range []string{"XDG_RUNTIME_DIR", "TMPDIR", "TMP", "TEMP"} {
		if v := os.Getenv(key); v != "" {
			dirs = append(dirs, v)
		}
	}
	return append(dirs, "/tmp")
}

// Dial connects to the first discord-ipc-N socket that accepts.
func Dial(ctx context.Context) (io.ReadWriteCloser, error) {
	var d net.Dialer
	for _, dir := range socketDirs() {
		for _, sub := range socketSubdirs {
			for i := 0; i < 10; i++ {
				path := filepath.Join(dir, sub, fmt.Sprintf("discord-ipc-%d", i))
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
	}
	return nil, ErrNoSocket
}
