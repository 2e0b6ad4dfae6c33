package peer

import (
	"maps"
	"net"
	"strconv"
)

// Key identifies a remote node. Port is the node's TCP serving port,
// not the UDP source port its announcements arrive from.
type Key struct {
	Address string
	Port    uint16
}

func (k Key) String() string {
	return net.JoinHostPort(k.Address, strconv.Itoa(int(k.Port)))
}

// Info is a remote node together with the files it announced last.
type Info struct {
	Address string
	Port    uint16
	Files   map[string]int64
}

func (p *Info) Key() Key {
	return Key{Address: p.Address, Port: p.Port}
}

func (p *Info) Endpoint() string {
	return p.Key().String()
}

func (p *Info) clone() Info {
	c := *p
	c.Files = maps.Clone(p.Files)
	if c.Files == nil {
		c.Files = make(map[string]int64)
	}
	return c
}

type Peers []Info

// FindFile returns the first peer that shares filename.
func (ps Peers) FindFile(filename string) (Info, int64, bool) {
	for _, p := range ps {
		if size, ok := p.Files[filename]; ok {
			return p, size, true
		}
	}
	return Info{}, 0, false
}
