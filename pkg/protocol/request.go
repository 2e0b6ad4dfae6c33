package protocol

import (
	"fmt"
	"strings"
)

const cmdGet = "GET"

// MaxRequestLine bounds the request line a server is willing to buffer.
const MaxRequestLine = 4 << 10

// Request asks for the half-open byte range [Start, End) of Filename.
// End == 0 means "to the end of the file".
type Request struct {
	Filename string
	Start    int64
	End      int64
}

func (r *Request) Encode() []byte {
	return []byte(fmt.Sprintf("%s %s %d %d\n", cmdGet, r.Filename, r.Start, r.End))
}

// Clamp resolves the request against the actual file size. ok is false
// when the effective range is empty.
func (r *Request) Clamp(size int64) (start, end int64, ok bool) {
	start, end = r.Start, r.End
	if end == 0 || end > size {
		end = size
	}
	return start, end, start < end
}

// ParseRequest parses "GET <filename> [<start> [<end>]]". Omitted offsets
// default to the whole file.
func ParseRequest(line string) (*Request, error) {
	fields := strings.Fields(line)
	if len(fields) < 2 || len(fields) > 4 {
		return nil, &ParseError{Field: "request", Value: line}
	}
	if fields[0] != cmdGet {
		return nil, &ParseError{Field: "command", Value: fields[0]}
	}
	if !ValidFilename(fields[1]) {
		return nil, &ParseError{Field: "filename", Value: fields[1]}
	}
	req := &Request{Filename: fields[1]}
	var err error
	if len(fields) > 2 {
		if req.Start, err = parseSize("start", fields[2]); err != nil {
			return nil, err
		}
	}
	if len(fields) > 3 {
		if req.End, err = parseSize("end", fields[3]); err != nil {
			return nil, err
		}
	}
	return req, nil
}
