package protocol

import (
	"bufio"
	"errors"
	"strconv"
	"strings"
)

func parsePort(s string) (uint16, error) {
	port, err := strconv.ParseUint(s, 10, 16)
	if err != nil {
		return 0, &ParseError{Field: "port", Value: s, Err: err}
	}
	if port == 0 {
		return 0, &ParseError{Field: "port", Value: s}
	}
	return uint16(port), nil
}

// parseSize parses an unsigned byte count or offset that must fit into int64.
func parseSize(field, s string) (int64, error) {
	n, err := strconv.ParseUint(s, 10, 63)
	if err != nil {
		return 0, &ParseError{Field: field, Value: s, Err: err}
	}
	return int64(n), nil
}

// ValidFilename reports whether name can be requested from a shared folder.
func ValidFilename(name string) bool {
	if name == "" || name == "." || name == ".." {
		return false
	}
	return !strings.ContainsAny(name, "/\\\x00")
}

// Announceable reports whether name survives the announcement encoding.
func Announceable(name string) bool {
	return ValidFilename(name) && !strings.ContainsAny(name, " \t\r\n,:")
}

// ReadLine reads one newline-terminated line. The line must fit into the
// reader's buffer, otherwise ErrLineTooLong is returned.
func ReadLine(r *bufio.Reader) (string, error) {
	line, err := r.ReadSlice('\n')
	if errors.Is(err, bufio.ErrBufferFull) {
		return "", ErrLineTooLong
	}
	if err != nil {
		return "", err
	}
	return strings.TrimRight(string(line), "\r\n"), nil
}
