package protocol

import (
	"sort"
	"strconv"
	"strings"
)

const AnnouncePrefix = "PEER "

// Announcement advertises a node's TCP serving port and its shared files:
//
//	PEER <tcp_port> <name1>:<size1>,<name2>:<size2>,...\n
type Announcement struct {
	Port  uint16
	Files map[string]int64
}

// Encode renders the announcement. Files that cannot be represented
// (see Announceable) are left out.
func (a *Announcement) Encode() []byte {
	names := make([]string, 0, len(a.Files))
	for name := range a.Files {
		if Announceable(name) {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	var b strings.Builder
	b.WriteString(AnnouncePrefix)
	b.WriteString(strconv.FormatUint(uint64(a.Port), 10))
	b.WriteByte(' ')
	for i, name := range names {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(name)
		b.WriteByte(':')
		b.WriteString(strconv.FormatInt(a.Files[name], 10))
	}
	b.WriteByte('\n')
	return []byte(b.String())
}

// ParseAnnouncement decodes a discovery datagram. Malformed file entries do
// not fail the announcement; they are dropped and reported in skipped.
func ParseAnnouncement(payload []byte) (a *Announcement, skipped []error, err error) {
	msg := string(payload)
	if !strings.HasPrefix(msg, AnnouncePrefix) {
		return nil, nil, ErrNotAnnouncement
	}
	msg = strings.TrimRight(msg[len(AnnouncePrefix):], "\r\n\x00")
	portField, list, _ := strings.Cut(msg, " ")
	port, err := parsePort(portField)
	if err != nil {
		return nil, nil, err
	}

	a = &Announcement{Port: port, Files: make(map[string]int64)}
	for _, item := range strings.Split(list, ",") {
		if item == "" {
			continue
		}
		kv := strings.Split(item, ":")
		if len(kv) != 2 || !Announceable(kv[0]) {
			skipped = append(skipped, &ParseError{Field: "file entry", Value: item})
			continue
		}
		size, err := parseSize("file size", kv[1])
		if err != nil {
			skipped = append(skipped, err)
			continue
		}
		a.Files[kv[0]] = size
	}
	return a, skipped, nil
}
