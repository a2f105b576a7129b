// Command climp is the climpd client: it connects to the per-user
// control socket, transfers this process's stdio and argv, and relays
// the daemon's status reply back as an exit code.
//
// Grounded directly on original_source/src/climp/main.c: refuse to run
// as root, connect to /tmp/.climpd-<uid>.sock, and on ENOENT/
// ECONNREFUSED unlink the stale socket, spawn climpd, and retry the
// connect for up to ~10s at 10ms intervals before giving up.
package main

import (
	"fmt"
	"net"
	"os"
	"os/exec"
	"syscall"

	"github.com/climp/climpd/internal/daemon"
	"github.com/climp/climpd/internal/ipc"
)

func main() {
	if os.Getuid() == 0 {
		fmt.Fprintln(os.Stderr, "climp: cannot run as root")
		os.Exit(1)
	}

	sockPath := daemon.SockPath()
	conn, err := net.DialUnix("unix", nil, &net.UnixAddr{Name: sockPath, Net: "unix"})
	if err != nil {
		if !daemon.IsConnectFailure(err) {
			fmt.Fprintf(os.Stderr, "climp: failed to connect to server: %v\n", err)
			os.Exit(1)
		}

		daemonPath, lookErr := exec.LookPath("climpd")
		if lookErr != nil {
			daemonPath = "/usr/local/bin/climpd"
		}
		conn, err = daemon.Autospawn(sockPath, daemonPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "climp: failed to connect to daemon: %v\n", err)
			os.Exit(1)
		}
	}
	defer conn.Close()

	cwd, err := os.Getwd()
	if err != nil {
		cwd = os.Getenv("PWD")
	}

	setup := ipc.Setup{Stdin: os.Stdin, Stdout: os.Stdout, Stderr: os.Stderr, Cwd: cwd}
	if err := ipc.WriteSetup(conn, setup); err != nil {
		fmt.Fprintf(os.Stderr, "climp: failed to send environment: %v\n", err)
		os.Exit(1)
	}

	if err := ipc.WriteArgv(conn, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "climp: failed to send commands: %v\n", err)
		os.Exit(1)
	}

	status, err := ipc.ReadStatus(conn)
	if err != nil {
		fmt.Fprintf(os.Stderr, "climp: failed to receive response: %v\n", err)
		os.Exit(1)
	}
	if status != 0 {
		fmt.Fprintf(os.Stderr, "climp: server sent error: %s\n", syscall.Errno(-status).Error())
		os.Exit(1)
	}
}
