package email

import (
	"bufio"
	"bytes"
	"fmt"
	"mime"
	"strings"

	"github.com/emersion/go-message/charset"
	"github.com/emersion/go-message/textproto"

	"github.com/brandon/mail-agent/pkg/types"
)

const noSubject = "(No Subject)"

var wordDecoder = &mime.WordDecoder{CharsetReader: charset.Reader}

// DecodeHeader decodes RFC 2047 encoded words in a header value. Adjacent
// encoded words collapse into one part, runs of plain words form another,
// and the parts are joined with a single space.
func DecodeHeader(value string) string {
	var parts []string
	var encoded strings.Builder
	var plain []string

	flushEncoded := func() {
		if encoded.Len() > 0 {
			parts = append(parts, encoded.String())
			encoded.Reset()
		}
	}
	flushPlain := func() {
		if len(plain) > 0 {
			parts = append(parts, strings.Join(plain, " "))
			plain = plain[:0]
		}
	}

	for _, word := range strings.Fields(value) {
		if strings.Contains(word, "=?") {
			if decoded, err := wordDecoder.DecodeHeader(word); err == nil && decoded != word {
				flushPlain()
				encoded.WriteString(decoded)
				continue
			}
		}
		flushEncoded()
		plain = append(plain, word)
	}
	flushEncoded()
	flushPlain()

	return strings.Join(parts, " ")
}

// summaryFromRaw turns a fetched header block into a list-view summary.
func summaryFromRaw(raw RawHeader) (types.MessageSummary, error) {
	block := raw.Header
	if !bytes.HasSuffix(block, []byte("\r\n\r\n")) && !bytes.HasSuffix(block, []byte("\n\n")) {
		block = append(append([]byte{}, block...), "\r\n\r\n"...)
	}

	h, err := textproto.ReadHeader(bufio.NewReader(bytes.NewReader(block)))
	if err != nil {
		return types.MessageSummary{}, fmt.Errorf("failed to parse headers of UID %s: %w", raw.UID, err)
	}

	subject := noSubject
	if h.Has("Subject") {
		subject = DecodeHeader(h.Get("Subject"))
	}

	return types.MessageSummary{
		UID:     raw.UID,
		Subject: subject,
		Sender:  DecodeHeader(h.Get("From")),
		Date:    strings.TrimSpace(h.Get("Date")),
		IsRead:  hasFlag(raw.Flags, `\Seen`),
	}, nil
}

func hasFlag(flags []string, want string) bool {
	for _, f := range flags {
		if strings.EqualFold(f, want) {
			return true
		}
	}
	return false
}
