package email

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const multipartMessage = "From: Alice <alice@example.com>\r\n" +
	"To: Bob <bob@example.com>, carol@example.com\r\n" +
	"Cc: dave@example.com\r\n" +
	"Subject: =?UTF-8?Q?Budget_r=C3=A9view?=\r\n" +
	"Date: Tue, 4 Mar 2025 09:15:00 +0000\r\n" +
	"MIME-Version: 1.0\r\n" +
	"Content-Type: multipart/mixed; boundary=\"XYZ\"\r\n" +
	"\r\n" +
	"--XYZ\r\n" +
	"Content-Type: text/plain; charset=utf-8\r\n" +
	"\r\n" +
	"Please review the attached numbers.\r\n" +
	"--XYZ\r\n" +
	"Content-Type: application/pdf\r\n" +
	"Content-Disposition: attachment; filename=\"q1.pdf\"\r\n" +
	"Content-Transfer-Encoding: base64\r\n" +
	"\r\n" +
	"JVBERi0xLjQK\r\n" +
	"--XYZ--\r\n"

func TestParseMessageMultipart(t *testing.T) {
	parsed, err := ParseMessage("44", []byte(multipartMessage), []string{`\Seen`})
	require.NoError(t, err)

	assert.Equal(t, "44", parsed.UID)
	assert.Equal(t, "Budget réview", parsed.Subject)
	assert.Equal(t, "Alice <alice@example.com>", parsed.Sender)
	assert.Equal(t, []string{"Bob <bob@example.com>", "carol@example.com"}, parsed.To)
	assert.Equal(t, []string{"dave@example.com"}, parsed.Cc)
	assert.Equal(t, "2025-03-04T09:15:00Z", parsed.Date)
	assert.Contains(t, parsed.BodyPlain, "Please review the attached numbers.")
	assert.Equal(t, []string{`\Seen`}, parsed.Flags)

	require.Len(t, parsed.Attachments, 1)
	assert.Equal(t, "q1.pdf", parsed.Attachments[0].Filename)
	assert.Equal(t, "application/pdf", parsed.Attachments[0].ContentType)
	assert.Greater(t, parsed.Attachments[0].Size, 0)
}

func TestParseMessagePlainDefaults(t *testing.T) {
	raw := "From: someone@example.com\r\nDate: not a date\r\n\r\nhello\r\n"

	parsed, err := ParseMessage("1", []byte(raw), nil)
	require.NoError(t, err)
	assert.Equal(t, noSubject, parsed.Subject)
	assert.Equal(t, "not a date", parsed.Date)
	assert.Equal(t, "hello", strings.TrimSpace(parsed.BodyPlain))
	assert.Empty(t, parsed.To)
	assert.NotNil(t, parsed.To)
	assert.NotNil(t, parsed.Flags)
	assert.NotNil(t, parsed.Attachments)
}
