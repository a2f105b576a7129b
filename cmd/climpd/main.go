// Command climpd is the climp daemon: it owns the playlist, the audio
// engine, and the control socket clients send commands over.
//
// Grounded directly on original_source/src/climpd/main.c's main(): the
// uid-0 refusal, the per-user config/playlist/socket/log paths under
// $HOME and /tmp, the daemonize-unless---no-daemon flag, and the
// load-playlist-then-register-commands-then-serve-then-persist-on-exit
// sequence.
package main

import (
	"fmt"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"runtime/debug"

	"github.com/climp/climpd/internal/commands"
	"github.com/climp/climpd/internal/config"
	"github.com/climp/climpd/internal/daemon"
	"github.com/climp/climpd/internal/dispatch"
	"github.com/climp/climpd/internal/engine"
	"github.com/climp/climpd/internal/ipc"
	"github.com/climp/climpd/internal/loader"
	"github.com/climp/climpd/internal/logsink"
	"github.com/climp/climpd/internal/media"
	"github.com/climp/climpd/internal/playlist"
	"github.com/climp/climpd/internal/socket"
	"github.com/climp/climpd/internal/status"
)

func main() {
	if os.Getuid() == 0 {
		fmt.Fprintln(os.Stderr, "climpd: cannot run as root")
		os.Exit(1)
	}

	noDaemon := false
	for _, a := range os.Args[1:] {
		if a == "--no-daemon" || a == "-n" {
			noDaemon = true
		}
	}

	if !noDaemon {
		final, err := daemon.Detach()
		if err != nil {
			fmt.Fprintf(os.Stderr, "climpd: failed to daemonize: %v\n", err)
			os.Exit(1)
		}
		if !final {
			return
		}
	}

	home, ok := os.LookupEnv("HOME")
	if !ok {
		fmt.Fprintln(os.Stderr, "climpd: failed to locate home directory")
		os.Exit(1)
	}

	logPath := filepath.Join(os.TempDir(), fmt.Sprintf("climpd-%d.log", os.Getuid()))
	sink, err := logsink.Open(logPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "climpd: failed to initialize log file: %v\n", err)
		os.Exit(1)
	}
	defer sink.Close()
	log := sink.Logger()
	slog.SetDefault(log)

	log.Info("starting initialization")

	confDir := filepath.Join(home, ".config", "climp")
	confPath := filepath.Join(confDir, "climpd.conf")
	playlistDir := filepath.Join(confDir, "playlists")
	playlistPath := filepath.Join(playlistDir, "__playlist.m3u")

	if err := os.MkdirAll(playlistDir, 0o755); err != nil {
		log.Error("failed to create playlist directory", "error", err)
		os.Exit(1)
	}

	cfg, err := config.Load(confPath)
	if err != nil {
		log.Error("failed to load configuration file", "error", err)
		os.Exit(1)
	}

	pl := playlist.New()
	if _, err := os.Stat(playlistPath); err == nil {
		if err := pl.Load(playlistPath); err != nil {
			log.Warn("failed to load last playlist, continuing", "error", err)
		}
	}
	pl.SetRepeat(cfg.Repeat)
	pl.SetShuffle(cfg.Shuffle)

	eng := engine.New(log, pl)
	eng.SetVolume(cfg.Volume)
	eng.SetPitch(cfg.Pitch)
	eng.SetSpeed(cfg.Speed)

	scanner := media.NewScanner(log)
	for _, m := range pl.Items() {
		scanner.Submit(m)
	}

	l := loader.New()
	l.AddDir(playlistDir)
	l.SetScanner(scanner)

	sigs := daemon.WatchSignals()
	defer sigs.Stop()

	quit := make(chan struct{})
	quitOnce := func() {
		select {
		case <-quit:
		default:
			close(quit)
		}
	}

	cmds := commands.New(eng, pl, cfg, confPath, l, sink, quitOnce)
	d := dispatch.New()
	cmds.Register(d)
	d.SetDefaultHandler(func(token string) error {
		log.Warn("ignoring invalid argument", "argument", token)
		return nil
	})

	sockPath := daemon.SockPath()
	srv := socket.New(sockPath, log, func(conn *net.UnixConn) error {
		return handleConnection(cmds, d, conn, log)
	})
	if err := srv.Start(); err != nil {
		log.Error("failed to initialize server socket", "error", err)
		os.Exit(1)
	}
	defer srv.Close()

	serveErr := make(chan error, 1)
	go func() { serveErr <- srv.Serve() }()

	log.Info("initialization successful")

	select {
	case <-quit:
	case sig := <-sigs.Quit:
		log.Info("shutdown signal received", "signal", sig.String())
	case sig := <-sigs.Fatal:
		daemon.LogFatalSignal(log, sig, string(debug.Stack()))
		os.Exit(1)
	case err := <-serveErr:
		if err != nil {
			log.Error("socket server exited", "error", err)
		}
	}

	if err := pl.Save(playlistPath); err != nil {
		log.Warn("failed to save playlist, continuing shutdown", "error", err)
	}
	if cfg.KeepChanges {
		if err := cfg.Save(confPath); err != nil {
			log.Warn("failed to save config, continuing shutdown", "error", err)
		}
	}
}

// handleConnection implements the per-connection protocol of §4.H: setup,
// then argv, then a status reply, mirroring the original's
// handle_connection (recv setup, recv argv, chdir to the client's cwd,
// run the argument parser, chdir back, send status).
func handleConnection(cmds *commands.Commands, d *dispatch.Dispatcher, conn *net.UnixConn, log *slog.Logger) error {
	setup, err := ipc.ReadSetup(conn)
	if err != nil {
		log.Error("receiving client's fds failed", "error", err)
		return err
	}
	defer setup.Stdin.Close()
	defer setup.Stdout.Close()
	defer setup.Stderr.Close()

	argv, err := ipc.ReadArgv(conn)
	if err != nil {
		log.Error("receiving arguments failed", "error", err)
		return err
	}

	prevWd, _ := os.Getwd()
	if err := os.Chdir(setup.Cwd); err != nil {
		log.Warn("chdir to client cwd failed", "cwd", setup.Cwd, "error", err)
	}

	cmds.SetIO(setup.Stdin, setup.Stdout, setup.Stderr)
	runErr := d.Run(argv)

	if err := os.Chdir("/"); err != nil && prevWd != "" {
		os.Chdir(prevWd)
	}
	if runErr != nil {
		log.Error("handling arguments failed", "error", runErr)
	}

	code := status.FromError(runErr)
	if err := ipc.WriteStatus(conn, code); err != nil {
		log.Error("sending response failed", "error", err)
		return err
	}
	return nil
}
