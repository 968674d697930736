package email

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeHeader(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Plain subject", "Plain subject"},
		{"=?UTF-8?B?SGVsbG8=?= =?UTF-8?B?IFdvcmxk?=", "Hello World"},
		{"Re: =?ISO-8859-1?Q?caf=E9?= tomorrow", "Re: café tomorrow"},
		{"=?UTF-8?Q?Jos=C3=A9?= <jose@example.com>", "José <jose@example.com>"},
		{"  spaced   out  ", "spaced out"},
		{"=?bogus", "=?bogus"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, DecodeHeader(tt.in))
		})
	}
}

func TestSummaryFromRaw(t *testing.T) {
	raw := RawHeader{
		UID:    "31",
		Header: []byte("Subject: Quarterly numbers\r\nFrom: Alice <alice@example.com>\r\nDate:  Tue, 4 Mar 2025 09:15:00 +0000 \r\n\r\n"),
		Flags:  []string{`\seen`, `\Flagged`},
	}

	s, err := summaryFromRaw(raw)
	require.NoError(t, err)
	assert.Equal(t, "31", s.UID)
	assert.Equal(t, "Quarterly numbers", s.Subject)
	assert.Equal(t, "Alice <alice@example.com>", s.Sender)
	assert.Equal(t, "Tue, 4 Mar 2025 09:15:00 +0000", s.Date)
	assert.True(t, s.IsRead)
}

func TestSummaryFromRawMissingFields(t *testing.T) {
	s, err := summaryFromRaw(RawHeader{UID: "2", Header: []byte{}})
	require.NoError(t, err)
	assert.Equal(t, noSubject, s.Subject)
	assert.Equal(t, "", s.Sender)
	assert.False(t, s.IsRead)
}
