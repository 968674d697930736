package email

import (
	"bytes"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/jhillyerd/enmime"

	"github.com/brandon/mail-agent/pkg/types"
)

// ParseMessage decodes a raw RFC 5322 message into a ParsedEmail.
func ParseMessage(uid string, raw []byte, flags []string) (*types.ParsedEmail, error) {
	env, err := enmime.ReadEnvelope(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("failed to parse message UID %s: %w", uid, err)
	}

	subject := env.GetHeader("Subject")
	if subject == "" {
		subject = noSubject
	}

	parsed := &types.ParsedEmail{
		UID:         uid,
		Subject:     subject,
		Sender:      env.GetHeader("From"),
		To:          addressList(env, "To"),
		Cc:          addressList(env, "Cc"),
		Date:        normalizeDate(env.GetHeader("Date")),
		BodyPlain:   env.Text,
		BodyHTML:    env.HTML,
		Attachments: []types.Attachment{},
		Flags:       flags,
	}
	if parsed.Flags == nil {
		parsed.Flags = []string{}
	}

	for _, part := range env.Attachments {
		name := part.FileName
		if name == "" {
			name = "untitled"
		}
		parsed.Attachments = append(parsed.Attachments, types.Attachment{
			Filename:    name,
			ContentType: part.ContentType,
			Size:        len(part.Content),
		})
	}

	return parsed, nil
}

func addressList(env *enmime.Envelope, key string) []string {
	out := []string{}

	addrs, err := env.AddressList(key)
	if err != nil {
		for _, a := range strings.Split(env.GetHeader(key), ",") {
			if a = strings.TrimSpace(a); a != "" {
				out = append(out, a)
			}
		}
		return out
	}

	for _, a := range addrs {
		if a.Name != "" {
			out = append(out, fmt.Sprintf("%s <%s>", a.Name, a.Address))
		} else {
			out = append(out, a.Address)
		}
	}
	return out
}

// normalizeDate renders a Date header as RFC 3339, or returns it unchanged
// when it does not parse.
func normalizeDate(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return ""
	}
	t, err := mail.ParseDate(value)
	if err != nil {
		return value
	}
	return t.Format(time.RFC3339)
}
