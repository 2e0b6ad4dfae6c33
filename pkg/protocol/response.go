package protocol

import (
	"fmt"
	"io"
	"strings"
)

const (
	replyOK      = "OK"
	replyErr     = "ERR"
	reasonNoFile = "nofile"
)

// MaxHeaderLine bounds the response header a client is willing to buffer.
const MaxHeaderLine = 64

// WriteOK announces that exactly n bytes of body follow.
func WriteOK(w io.Writer, n int64) error {
	_, err := fmt.Fprintf(w, "%s %d\n", replyOK, n)
	return err
}

func WriteNoFile(w io.Writer) error {
	_, err := io.WriteString(w, replyErr+" "+reasonNoFile+"\n")
	return err
}

func WriteError(w io.Writer) error {
	_, err := io.WriteString(w, replyErr+"\n")
	return err
}

// ParseResponseHeader returns the announced body length of an OK header,
// ErrNoFile or ErrRejected for error replies, or a *ParseError.
func ParseResponseHeader(line string) (int64, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return 0, &ParseError{Field: "response header", Value: line}
	}
	switch fields[0] {
	case replyOK:
		if len(fields) != 2 {
			return 0, &ParseError{Field: "response header", Value: line}
		}
		return parseSize("byte count", fields[1])
	case replyErr:
		if len(fields) > 1 && fields[1] == reasonNoFile {
			return 0, ErrNoFile
		}
		return 0, ErrRejected
	default:
		return 0, &ParseError{Field: "response header", Value: line}
	}
}
