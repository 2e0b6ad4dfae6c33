package protocol

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAnnouncement_Encode(t *testing.T) {
	tests := map[string]struct {
		a        *Announcement
		expected string
	}{
		"files sorted": {
			a:        &Announcement{Port: 12000, Files: map[string]int64{"b.bin": 2048, "a.txt": 11}},
			expected: "PEER 12000 a.txt:11,b.bin:2048\n",
		},
		"no files": {
			a:        &Announcement{Port: 12000},
			expected: "PEER 12000 \n",
		},
		"unrepresentable names dropped": {
			a:        &Announcement{Port: 1, Files: map[string]int64{"with space": 1, "a:b": 2, "c,d": 3, "ok": 4}},
			expected: "PEER 1 ok:4\n",
		},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tt.expected, string(tt.a.Encode()))
		})
	}
}

func TestParseAnnouncement(t *testing.T) {
	tests := map[string]struct {
		payload string
		port    uint16
		files   map[string]int64
		skipped int
	}{
		"valid": {
			payload: "PEER 12000 a.txt:11,b.bin:2048\n",
			port:    12000,
			files:   map[string]int64{"a.txt": 11, "b.bin": 2048},
		},
		"trailing comma": {
			payload: "PEER 12000 a.txt:11,\n",
			port:    12000,
			files:   map[string]int64{"a.txt": 11},
		},
		"empty list": {
			payload: "PEER 12000 \n",
			port:    12000,
			files:   map[string]int64{},
		},
		"empty list without separator": {
			payload: "PEER 12000",
			port:    12000,
			files:   map[string]int64{},
		},
		"malformed entries skipped": {
			payload: "PEER 12000 a.txt:11,badname:notanumber,nosize,x:1:2,:5,b.bin:2\n",
			port:    12000,
			files:   map[string]int64{"a.txt": 11, "b.bin": 2},
			skipped: 4,
		},
		"names a request cannot carry skipped": {
			payload: "PEER 12000 a b:1,c:2,d\te:3\n",
			port:    12000,
			files:   map[string]int64{"c": 2},
			skipped: 2,
		},
		"negative size": {
			payload: "PEER 12000 a.txt:-1\n",
			port:    12000,
			files:   map[string]int64{},
			skipped: 1,
		},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			a, skipped, err := ParseAnnouncement([]byte(tt.payload))
			require.NoError(t, err)
			assert.Equal(t, tt.port, a.Port)
			assert.Equal(t, tt.files, a.Files)
			assert.Len(t, skipped, tt.skipped)
			for _, err := range skipped {
				assert.ErrorIs(t, err, ErrMalformed)
			}
		})
	}
}

func TestParseAnnouncement_Rejected(t *testing.T) {
	_, _, err := ParseAnnouncement([]byte("P2P|12000|a.txt:11"))
	assert.ErrorIs(t, err, ErrNotAnnouncement)
	_, _, err = ParseAnnouncement([]byte(""))
	assert.ErrorIs(t, err, ErrNotAnnouncement)

	for _, payload := range []string{"PEER x a:1\n", "PEER 0 a:1\n", "PEER 70000 a:1\n", "PEER \n"} {
		_, _, err = ParseAnnouncement([]byte(payload))
		var parseErr *ParseError
		assert.ErrorAs(t, err, &parseErr, payload)
		assert.ErrorIs(t, err, ErrMalformed, payload)
	}
}

func TestAnnouncement_EncodeParse(t *testing.T) {
	a := &Announcement{Port: 4242, Files: map[string]int64{"movie.mkv": 1 << 40, "empty": 0}}
	parsed, skipped, err := ParseAnnouncement(a.Encode())
	require.NoError(t, err)
	assert.Empty(t, skipped)
	assert.Equal(t, a, parsed)
}
