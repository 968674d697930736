package email

import (
	"bytes"
	"io"
	"mime"
	"net/mail"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func renderMessage(t *testing.T, s *SMTPSender, msg *OutgoingMessage) (*mail.Message, string) {
	t.Helper()
	to, err := parseRecipients(msg.To)
	require.NoError(t, err)
	raw, err := s.createMessage(s.Config(), msg, to)
	require.NoError(t, err)

	parsed, err := mail.ReadMessage(bytes.NewReader(raw))
	require.NoError(t, err)
	body, err := io.ReadAll(parsed.Body)
	require.NoError(t, err)
	return parsed, string(body)
}

func TestCreateMessage(t *testing.T) {
	s := NewSMTPSender(SMTPConfig{Host: "smtp.example.com", Port: 587, Username: "bob@example.com"}, quietLogger())
	s.now = func() time.Time { return time.Date(2025, 3, 4, 9, 0, 0, 0, time.UTC) }

	msg, body := renderMessage(t, s, &OutgoingMessage{
		To:        []string{"alice@example.com", "Carol <carol@example.com>"},
		Subject:   "Re: Budget",
		Body:      "Looks good.",
		InReplyTo: "<abc@example.com>",
	})

	assert.Equal(t, "<bob@example.com>", msg.Header.Get("From"))
	to, err := msg.Header.AddressList("To")
	require.NoError(t, err)
	require.Len(t, to, 2)
	assert.Equal(t, "alice@example.com", to[0].Address)
	assert.Equal(t, "Carol", to[1].Name)
	assert.Equal(t, "Re: Budget", msg.Header.Get("Subject"))
	assert.Equal(t, "Tue, 04 Mar 2025 09:00:00 +0000", msg.Header.Get("Date"))
	assert.Equal(t, "<abc@example.com>", msg.Header.Get("In-Reply-To"))
	assert.Equal(t, "<abc@example.com>", msg.Header.Get("References"))
	assert.Equal(t, "1.0", msg.Header.Get("Mime-Version"))
	assert.Contains(t, msg.Header.Get("Content-Type"), "text/plain")
	assert.Equal(t, "Looks good.", body)
}

func TestCreateMessageWithoutReply(t *testing.T) {
	s := NewSMTPSender(SMTPConfig{Username: "bob@example.com"}, quietLogger())
	msg, _ := renderMessage(t, s, &OutgoingMessage{To: []string{"a@example.com"}, Subject: "Hi", Body: "x"})
	assert.Empty(t, msg.Header.Get("In-Reply-To"))
	assert.Empty(t, msg.Header.Get("References"))
}

func TestCreateMessageKeepsSubjectOnOneHeader(t *testing.T) {
	s := NewSMTPSender(SMTPConfig{Username: "bob@example.com"}, quietLogger())
	msg, _ := renderMessage(t, s, &OutgoingMessage{
		To:      []string{"alice@example.com"},
		Subject: "Re: Café\r\nBcc: attacker@evil.example",
		Body:    "x",
	})

	assert.Empty(t, msg.Header.Get("Bcc"))
	raw := msg.Header.Get("Subject")
	assert.True(t, strings.HasPrefix(raw, "=?utf-8?"), raw)

	subject, err := new(mime.WordDecoder).DecodeHeader(raw)
	require.NoError(t, err)
	assert.Equal(t, "Re: Café Bcc: attacker@evil.example", subject)
}

func TestCreateMessageRejectsMalformedHeaders(t *testing.T) {
	_, err := parseRecipients([]string{"alice@example.com\r\nBcc: attacker@evil.example"})
	assert.ErrorContains(t, err, "invalid recipient")
	_, err = parseRecipients([]string{"not an address"})
	assert.Error(t, err)

	s := NewSMTPSender(SMTPConfig{Username: "bob@example.com"}, quietLogger())
	to, err := parseRecipients([]string{"alice@example.com"})
	require.NoError(t, err)
	_, err = s.createMessage(s.Config(), &OutgoingMessage{
		To:        []string{"alice@example.com"},
		Subject:   "Re: x",
		InReplyTo: "<abc@example.com>\r\nBcc: attacker@evil.example",
	}, to)
	assert.ErrorContains(t, err, "invalid In-Reply-To")

	id, err := parseMsgID(" abc@example.com ")
	require.NoError(t, err)
	assert.Equal(t, "abc@example.com", id)
}

func TestSendValidatesBeforeDialing(t *testing.T) {
	s := NewSMTPSender(SMTPConfig{}, quietLogger())
	err := s.Send(&OutgoingMessage{To: []string{"a@example.com"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not configured")

	s.Reconfigure(SMTPConfig{Host: "smtp.example.com", Port: 587})
	err = s.Send(&OutgoingMessage{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "recipient")
}
