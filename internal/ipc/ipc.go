// Package ipc implements the wire framing climpd and climp speak over the
// control socket (spec §4.H): a fixed header, optional ancillary file
// descriptors carried out-of-band with the setup record, and a payload of
// either length-prefixed strings (argv), a single length-prefixed string
// (cwd), or a signed 32-bit status code.
//
// Grounded on original_source/src/climpd/ipc/socket-server.c and
// src/climp_player.c (the client side of the same handshake: send setup,
// send argv, read a status reply, optionally send goodbye), generalized
// from the original's raw sendmsg/recvmsg calls to net.UnixConn's
// ReadMsgUnix/WriteMsgUnix plus golang.org/x/sys/unix for building and
// parsing the SCM_RIGHTS control message.
package ipc

import (
	"encoding/binary"
	"errors"
	"fmt"
	"net"
	"os"

	"golang.org/x/sys/unix"
)

// Kind identifies the record type of a message header.
type Kind uint8

const (
	KindSetup Kind = iota + 1
	KindArgv
	KindStatus
	KindGoodbye
)

func (k Kind) String() string {
	switch k {
	case KindSetup:
		return "setup"
	case KindArgv:
		return "argv"
	case KindStatus:
		return "status"
	case KindGoodbye:
		return "goodbye"
	default:
		return "unknown"
	}
}

// ErrProtocol is returned for any malformed or over-long record.
var ErrProtocol = errors.New("ipc: protocol error")

// maxPayload bounds a single string/argv payload so a misbehaving or
// malicious peer cannot force an unbounded allocation (§4.H: "bounded
// string payloads").
const maxPayload = 1 << 20 // 1 MiB

// header is the fixed leading portion of every record: a kind byte and a
// 32-bit payload length. Ancillary fds (when present) ride in the same
// datagram's out-of-band data, not in this length.
type header struct {
	Kind   Kind
	Length uint32
}

const headerSize = 1 + 4

func (h header) encode() []byte {
	buf := make([]byte, headerSize)
	buf[0] = byte(h.Kind)
	binary.BigEndian.PutUint32(buf[1:], h.Length)
	return buf
}

func decodeHeader(buf []byte) (header, error) {
	if len(buf) < headerSize {
		return header{}, fmt.Errorf("%w: short header", ErrProtocol)
	}
	return header{
		Kind:   Kind(buf[0]),
		Length: binary.BigEndian.Uint32(buf[1:]),
	}, nil
}

// Setup carries the client's transferred stdio descriptors and working
// directory, per §4.H's setup record.
type Setup struct {
	Stdin, Stdout, Stderr *os.File
	Cwd                   string
}

// WriteSetup sends a setup record: header, then the three descriptors as
// an SCM_RIGHTS ancillary message alongside the cwd string payload.
func WriteSetup(conn *net.UnixConn, s Setup) error {
	if len(s.Cwd) > maxPayload {
		return fmt.Errorf("%w: cwd too long", ErrProtocol)
	}
	payload := encodeString(s.Cwd)
	h := header{Kind: KindSetup, Length: uint32(len(payload))}
	buf := append(h.encode(), payload...)

	rights := unix.UnixRights(
		int(s.Stdin.Fd()), int(s.Stdout.Fd()), int(s.Stderr.Fd()),
	)
	_, _, err := conn.WriteMsgUnix(buf, rights, nil)
	if err != nil {
		return fmt.Errorf("ipc: write setup: %w", err)
	}
	return nil
}

// ReadSetup reads a setup record, extracting the three ancillary
// descriptors and the cwd string.
func ReadSetup(conn *net.UnixConn) (Setup, error) {
	buf := make([]byte, headerSize+maxPayload)
	oob := make([]byte, unix.CmsgSpace(3*4))

	n, oobn, _, _, err := conn.ReadMsgUnix(buf, oob)
	if err != nil {
		return Setup{}, fmt.Errorf("ipc: read setup: %w", err)
	}
	h, err := decodeHeader(buf[:n])
	if err != nil {
		return Setup{}, err
	}
	if h.Kind != KindSetup {
		return Setup{}, fmt.Errorf("%w: expected setup, got %s", ErrProtocol, h.Kind)
	}

	cwd, _, err := takeString(buf[headerSize:n])
	if err != nil {
		return Setup{}, err
	}

	scms, err := unix.ParseSocketControlMessage(oob[:oobn])
	if err != nil {
		return Setup{}, fmt.Errorf("ipc: parse control message: %w", err)
	}
	var fds []int
	for _, scm := range scms {
		parsed, err := unix.ParseUnixRights(&scm)
		if err != nil {
			continue
		}
		fds = append(fds, parsed...)
	}
	if len(fds) != 3 {
		for _, fd := range fds {
			unix.Close(fd)
		}
		return Setup{}, fmt.Errorf("%w: expected 3 descriptors, got %d", ErrProtocol, len(fds))
	}

	return Setup{
		Stdin:  os.NewFile(uintptr(fds[0]), "stdin"),
		Stdout: os.NewFile(uintptr(fds[1]), "stdout"),
		Stderr: os.NewFile(uintptr(fds[2]), "stderr"),
		Cwd:    cwd,
	}, nil
}

// WriteArgv sends the command line as a sequence of length-prefixed
// strings preceded by a 32-bit count.
func WriteArgv(conn *net.UnixConn, argv []string) error {
	payload := make([]byte, 4)
	binary.BigEndian.PutUint32(payload, uint32(len(argv)))
	for _, a := range argv {
		if len(a) > maxPayload {
			return fmt.Errorf("%w: argument too long", ErrProtocol)
		}
		payload = append(payload, encodeString(a)...)
	}
	if len(payload) > maxPayload {
		return fmt.Errorf("%w: argv too long", ErrProtocol)
	}
	h := header{Kind: KindArgv, Length: uint32(len(payload))}
	buf := append(h.encode(), payload...)
	_, err := conn.Write(buf)
	if err != nil {
		return fmt.Errorf("ipc: write argv: %w", err)
	}
	return nil
}

// ReadArgv reads an argv record.
func ReadArgv(conn *net.UnixConn) ([]string, error) {
	h, body, err := readRecord(conn)
	if err != nil {
		return nil, err
	}
	if h.Kind != KindArgv {
		return nil, fmt.Errorf("%w: expected argv, got %s", ErrProtocol, h.Kind)
	}
	if len(body) < 4 {
		return nil, fmt.Errorf("%w: truncated argv count", ErrProtocol)
	}
	count := binary.BigEndian.Uint32(body[:4])
	body = body[4:]
	argv := make([]string, 0, count)
	for i := uint32(0); i < count; i++ {
		s, rest, err := takeString(body)
		if err != nil {
			return nil, err
		}
		argv = append(argv, s)
		body = rest
	}
	return argv, nil
}

// WriteStatus sends a status-reply record: 0 for success, a negated
// POSIX errno otherwise (see internal/status).
func WriteStatus(conn *net.UnixConn, code int32) error {
	payload := make([]byte, 4)
	binary.BigEndian.PutUint32(payload, uint32(code))
	h := header{Kind: KindStatus, Length: uint32(len(payload))}
	buf := append(h.encode(), payload...)
	_, err := conn.Write(buf)
	if err != nil {
		return fmt.Errorf("ipc: write status: %w", err)
	}
	return nil
}

// ReadStatus reads a status-reply record.
func ReadStatus(conn *net.UnixConn) (int32, error) {
	h, body, err := readRecord(conn)
	if err != nil {
		return 0, err
	}
	if h.Kind != KindStatus {
		return 0, fmt.Errorf("%w: expected status, got %s", ErrProtocol, h.Kind)
	}
	if len(body) != 4 {
		return 0, fmt.Errorf("%w: malformed status payload", ErrProtocol)
	}
	return int32(binary.BigEndian.Uint32(body)), nil
}

// WriteGoodbye sends the optional connection-teardown record.
func WriteGoodbye(conn *net.UnixConn) error {
	h := header{Kind: KindGoodbye}
	_, err := conn.Write(h.encode())
	if err != nil {
		return fmt.Errorf("ipc: write goodbye: %w", err)
	}
	return nil
}

// ReadKind reads the next record in full (header and payload) and returns
// its kind and payload bytes. It receives no ancillary descriptors, so it
// cannot stand in for ReadSetup.
func ReadKind(conn *net.UnixConn) (Kind, []byte, error) {
	h, body, err := readRecord(conn)
	if err != nil {
		return 0, nil, err
	}
	return h.Kind, body, nil
}

func readRecord(conn *net.UnixConn) (header, []byte, error) {
	hbuf := make([]byte, headerSize)
	if _, err := readFull(conn, hbuf); err != nil {
		return header{}, nil, fmt.Errorf("ipc: read header: %w", err)
	}
	h, err := decodeHeader(hbuf)
	if err != nil {
		return header{}, nil, err
	}
	if h.Length > maxPayload {
		return header{}, nil, fmt.Errorf("%w: payload too long (%d)", ErrProtocol, h.Length)
	}
	body := make([]byte, h.Length)
	if h.Length > 0 {
		if _, err := readFull(conn, body); err != nil {
			return header{}, nil, fmt.Errorf("ipc: read body: %w", err)
		}
	}
	return h, body, nil
}

func readFull(conn *net.UnixConn, buf []byte) (int, error) {
	total := 0
	for total < len(buf) {
		n, err := conn.Read(buf[total:])
		if err != nil {
			return total, err
		}
		total += n
	}
	return total, nil
}

func encodeString(s string) []byte {
	buf := make([]byte, 4+len(s))
	binary.BigEndian.PutUint32(buf, uint32(len(s)))
	copy(buf[4:], s)
	return buf
}

func takeString(buf []byte) (string, []byte, error) {
	if len(buf) < 4 {
		return "", nil, fmt.Errorf("%w: truncated string length", ErrProtocol)
	}
	length := binary.BigEndian.Uint32(buf)
	if length > maxPayload {
		return "", nil, fmt.Errorf("%w: string too long", ErrProtocol)
	}
	buf = buf[4:]
	if uint32(len(buf)) < length {
		return "", nil, fmt.Errorf("%w: truncated string", ErrProtocol)
	}
	return string(buf[:length]), buf[length:], nil
}
