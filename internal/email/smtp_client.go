package email

import (
	"bytes"
	"crypto/tls"
	"fmt"
	"io"
	"net/smtp"
	"strings"
	"sync"
	"time"

	"github.com/emersion/go-message/mail"
	"github.com/sirupsen/logrus"
)

// SMTPConfig holds the outbound server settings.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
}

// OutgoingMessage is a plain-text message to send.
type OutgoingMessage struct {
	To        []string
	Subject   string
	Body      string
	InReplyTo string
}

// SMTPSender sends mail through one configurable SMTP account.
type SMTPSender struct {
	mu     sync.Mutex
	config SMTPConfig
	logger *logrus.Logger
	now    func() time.Time
}

// NewSMTPSender creates a sender.
func NewSMTPSender(cfg SMTPConfig, logger *logrus.Logger) *SMTPSender {
	if logger == nil {
		logger = logrus.New()
	}
	return &SMTPSender{config: cfg, logger: logger, now: time.Now}
}

// Reconfigure swaps the account used by later sends.
func (s *SMTPSender) Reconfigure(cfg SMTPConfig) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.config = cfg
}

// Config returns the current settings.
func (s *SMTPSender) Config() SMTPConfig {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.config
}

// Send delivers msg. Port 465 uses implicit TLS, anything else STARTTLS.
func (s *SMTPSender) Send(msg *OutgoingMessage) error {
	cfg := s.Config()
	if cfg.Host == "" {
		return fmt.Errorf("SMTP host is not configured")
	}
	if len(msg.To) == 0 {
		return fmt.Errorf("at least one recipient is required")
	}

	to, err := parseRecipients(msg.To)
	if err != nil {
		return err
	}
	emailBytes, err := s.createMessage(cfg, msg, to)
	if err != nil {
		return err
	}
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)

	var client *smtp.Client
	if cfg.Port == 465 {
		conn, err := tls.Dial("tcp", addr, &tls.Config{ServerName: cfg.Host})
		if err != nil {
			return fmt.Errorf("failed to connect to SMTP server: %w", err)
		}
		client, err = smtp.NewClient(conn, cfg.Host)
		if err != nil {
			conn.Close()
			return fmt.Errorf("failed to create SMTP client: %w", err)
		}
	} else {
		client, err = smtp.Dial(addr)
		if err != nil {
			return fmt.Errorf("failed to connect to SMTP server: %w", err)
		}
		if err := client.StartTLS(&tls.Config{ServerName: cfg.Host}); err != nil {
			client.Close()
			return fmt.Errorf("failed to start TLS: %w", err)
		}
	}
	defer client.Close()

	if cfg.Password != "" {
		auth := smtp.PlainAuth("", cfg.Username, cfg.Password, cfg.Host)
		if err := client.Auth(auth); err != nil {
			return fmt.Errorf("failed to authenticate: %w", err)
		}
	}

	if err := client.Mail(cfg.Username); err != nil {
		return fmt.Errorf("failed to set sender: %w", err)
	}
	for _, rcpt := range to {
		if err := client.Rcpt(rcpt.Address); err != nil {
			return fmt.Errorf("failed to set recipient %s: %w", rcpt.Address, err)
		}
	}

	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("failed to send data command: %w", err)
	}
	if _, err := w.Write(emailBytes); err != nil {
		return fmt.Errorf("failed to write message: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("failed to close data writer: %w", err)
	}

	s.logger.WithField("recipients", len(msg.To)).Info("Email sent")
	return client.Quit()
}

// createMessage renders msg as a single text/plain part. Header values
// are encoded by go-message, which refuses CR or LF in any of them.
func (s *SMTPSender) createMessage(cfg SMTPConfig, msg *OutgoingMessage, to []*mail.Address) ([]byte, error) {
	var h mail.Header
	h.SetAddressList("From", []*mail.Address{{Address: cfg.Username}})
	h.SetAddressList("To", to)
	h.SetSubject(singleLine(msg.Subject))
	h.SetDate(s.now())
	if msg.InReplyTo != "" {
		id, err := parseMsgID(msg.InReplyTo)
		if err != nil {
			return nil, err
		}
		h.SetMsgIDList("In-Reply-To", []string{id})
		h.SetMsgIDList("References", []string{id})
	}
	h.SetContentType("text/plain", map[string]string{"charset": "utf-8"})

	var buf bytes.Buffer
	w, err := mail.CreateSingleInlineWriter(&buf, h)
	if err != nil {
		return nil, fmt.Errorf("failed to write headers: %w", err)
	}
	if _, err := io.WriteString(w, msg.Body); err != nil {
		return nil, fmt.Errorf("failed to write body: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("failed to write body: %w", err)
	}
	return buf.Bytes(), nil
}

// parseRecipients parses each entry of to as one RFC 5322 address.
func parseRecipients(to []string) ([]*mail.Address, error) {
	addrs := make([]*mail.Address, 0, len(to))
	for _, raw := range to {
		addr, err := mail.ParseAddress(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid recipient %q: %w", raw, err)
		}
		addrs = append(addrs, addr)
	}
	return addrs, nil
}

// parseMsgID strips the angle brackets of a message id and rejects ids
// that cannot be written back as one.
func parseMsgID(raw string) (string, error) {
	id := strings.TrimSuffix(strings.TrimPrefix(strings.TrimSpace(raw), "<"), ">")
	if id == "" || strings.ContainsAny(id, "<> \t\r\n") {
		return "", fmt.Errorf("invalid In-Reply-To %q", raw)
	}
	return id, nil
}

var lineBreaks = strings.NewReplacer("\r\n", " ", "\r", " ", "\n", " ")

func singleLine(s string) string {
	return lineBreaks.Replace(s)
}
