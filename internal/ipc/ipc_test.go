package ipc

import (
	"net"
	"os"
	"path/filepath"
	"testing"
)

func pipePair(t *testing.T) (client, server *net.UnixConn) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ipc.sock")
	ln, err := net.ListenUnix("unix", &net.UnixAddr{Name: path, Net: "unix"})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { ln.Close() })

	serverCh := make(chan *net.UnixConn, 1)
	errCh := make(chan error, 1)
	go func() {
		c, err := ln.AcceptUnix()
		if err != nil {
			errCh <- err
			return
		}
		serverCh <- c
	}()

	c, err := net.DialUnix("unix", nil, &net.UnixAddr{Name: path, Net: "unix"})
	if err != nil {
		t.Fatal(err)
	}
	select {
	case s := <-serverCh:
		t.Cleanup(func() { c.Close(); s.Close() })
		return c, s
	case err := <-errCh:
		t.Fatal(err)
	}
	return nil, nil
}

func TestArgvRoundTrip(t *testing.T) {
	client, server := pipePair(t)
	argv := []string{"play", "/tmp/a.mp3", "volume", "50"}

	done := make(chan error, 1)
	go func() { done <- WriteArgv(client, argv) }()

	got, err := ReadArgv(server)
	if err != nil {
		t.Fatalf("ReadArgv: %v", err)
	}
	if err := <-done; err != nil {
		t.Fatalf("WriteArgv: %v", err)
	}
	if len(got) != len(argv) {
		t.Fatalf("argv = %v, want %v", got, argv)
	}
	for i := range argv {
		if got[i] != argv[i] {
			t.Errorf("argv[%d] = %q, want %q", i, got[i], argv[i])
		}
	}
}

func TestStatusRoundTrip(t *testing.T) {
	client, server := pipePair(t)
	done := make(chan error, 1)
	go func() { done <- WriteStatus(client, -2) }()

	got, err := ReadStatus(server)
	if err != nil {
		t.Fatalf("ReadStatus: %v", err)
	}
	if err := <-done; err != nil {
		t.Fatalf("WriteStatus: %v", err)
	}
	if got != -2 {
		t.Errorf("status = %d, want -2", got)
	}
}

func TestGoodbyeRecordKind(t *testing.T) {
	client, server := pipePair(t)
	done := make(chan error, 1)
	go func() { done <- WriteGoodbye(client) }()

	kind, _, err := ReadKind(server)
	if err != nil {
		t.Fatalf("ReadKind: %v", err)
	}
	if err := <-done; err != nil {
		t.Fatalf("WriteGoodbye: %v", err)
	}
	if kind != KindGoodbye {
		t.Errorf("kind = %v, want goodbye", kind)
	}
}

func TestSetupRoundTripTransfersDescriptorsAndCwd(t *testing.T) {
	client, server := pipePair(t)

	inR, inW, err := os.Pipe()
	if err != nil {
		t.Fatal(err)
	}
	defer inR.Close()
	defer inW.Close()
	outR, outW, err := os.Pipe()
	if err != nil {
		t.Fatal(err)
	}
	defer outR.Close()
	defer outW.Close()
	errR, errW, err := os.Pipe()
	if err != nil {
		t.Fatal(err)
	}
	defer errR.Close()
	defer errW.Close()

	setup := Setup{Stdin: inR, Stdout: outW, Stderr: errW, Cwd: "/home/user"}
	done := make(chan error, 1)
	go func() { done <- WriteSetup(client, setup) }()

	got, err := ReadSetup(server)
	if err != nil {
		t.Fatalf("ReadSetup: %v", err)
	}
	if err := <-done; err != nil {
		t.Fatalf("WriteSetup: %v", err)
	}
	defer got.Stdin.Close()
	defer got.Stdout.Close()
	defer got.Stderr.Close()

	if got.Cwd != "/home/user" {
		t.Errorf("cwd = %q, want /home/user", got.Cwd)
	}

	msg := []byte("hello")
	if _, err := inW.Write(msg); err != nil {
		t.Fatal(err)
	}
	buf := make([]byte, len(msg))
	if _, err := got.Stdin.Read(buf); err != nil {
		t.Fatalf("read via transferred stdin: %v", err)
	}
	if string(buf) != "hello" {
		t.Errorf("transferred stdin read = %q, want %q", buf, "hello")
	}
}

func TestArgvRejectsOverlongArgument(t *testing.T) {
	client, _ := pipePair(t)
	huge := make([]byte, maxPayload+1)
	err := WriteArgv(client, []string{string(huge)})
	if err == nil {
		t.Fatal("expected error for over-long argument")
	}
}
