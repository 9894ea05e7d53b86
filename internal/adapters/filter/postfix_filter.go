// Package filter integrates the classifier with a mail pipeline as a
// Postfix after-queue content filter: messages arrive over SMTP, get
// classified, have classification headers injected, and are re-delivered.
package filter

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net"
	"net/mail"
	"os"
	"strings"
	"time"

	"github.com/emersion/go-smtp"
	"go.uber.org/zap"

	"github.com/mikey/email-classifier/internal/core"
)

// PostfixFilter implements a Postfix content filter backed by the
// classification service.
type PostfixFilter struct {
	service          *core.ClassificationService
	logger           *zap.Logger
	listenAddr       string
	server           *smtp.Server
	spamLabel        string
	blockSpam        bool
	classHeader      string
	confidenceHeader string
	schemaHeader     string
	postfixAddr      string
	postfixPort      int
	postfixEnabled   bool
	subjectPrefix    string
	modifySubject    bool
}

// NewPostfixFilter creates a new Postfix content filter
func NewPostfixFilter(
	service *core.ClassificationService,
	logger *zap.Logger,
	listenAddr string,
	spamLabel string,
	blockSpam bool,
	classHeader string,
	confidenceHeader string,
	schemaHeader string,
	postfixAddr string,
	postfixPort int,
	postfixEnabled bool,
	subjectPrefix string,
	modifySubject bool,
) *PostfixFilter {
	if subjectPrefix == "" && modifySubject {
		subjectPrefix = "[**SPAM**] "
	}

	return &PostfixFilter{
		service:          service,
		logger:           logger,
		listenAddr:       listenAddr,
		spamLabel:        spamLabel,
		blockSpam:        blockSpam,
		classHeader:      classHeader,
		confidenceHeader: confidenceHeader,
		schemaHeader:     schemaHeader,
		postfixAddr:      postfixAddr,
		postfixPort:      postfixPort,
		postfixEnabled:   postfixEnabled,
		subjectPrefix:    subjectPrefix,
		modifySubject:    modifySubject,
	}
}

// Start starts the Postfix filter service
func (f *PostfixFilter) Start() error {
	f.server = smtp.NewServer(&smtpBackend{filter: f})

	f.server.Addr = f.listenAddr
	f.server.Domain = "localhost"
	f.server.ReadTimeout = 30 * time.Second
	f.server.WriteTimeout = 30 * time.Second
	f.server.MaxMessageBytes = 30 * 1024 * 1024 // 30MB
	f.server.MaxRecipients = 50
	f.server.AllowInsecureAuth = true

	f.logger.Info("Postfix filter starting", zap.String("address", f.listenAddr))

	go func() {
		if err := f.server.ListenAndServe(); err != nil {
			if err != smtp.ErrServerClosed {
				f.logger.Error("SMTP server error", zap.Error(err))
			}
		}
	}()

	return nil
}

// Stop stops the Postfix filter service
func (f *PostfixFilter) Stop() error {
	if f.server != nil {
		return f.server.Close()
	}
	return nil
}

// ProcessEmail classifies an email directly, bypassing SMTP. Used for
// testing and direct calls.
func (f *PostfixFilter) ProcessEmail(ctx context.Context, email *core.RawEmail) (*core.Prediction, error) {
	return f.service.Classify(ctx, email)
}

// sendToPostfix re-delivers the annotated message to Postfix on the
// configured re-injection port.
func (f *PostfixFilter) sendToPostfix(sender string, recipients []string, emailData []byte) error {
	postfixAddr := fmt.Sprintf("%s:%d", f.postfixAddr, f.postfixPort)

	hostname, err := os.Hostname()
	if err != nil {
		hostname = "localhost"
	}

	conn, err := net.DialTimeout("tcp", postfixAddr, 10*time.Second)
	if err != nil {
		return fmt.Errorf("failed to connect to Postfix: %w", err)
	}

	if err := conn.SetDeadline(time.Now().Add(30 * time.Second)); err != nil {
		conn.Close()
		return fmt.Errorf("failed to set connection deadline: %w", err)
	}

	c := smtp.NewClient(conn)
	defer c.Close()

	if err := c.Hello(hostname); err != nil {
		return fmt.Errorf("EHLO failed: %w", err)
	}

	if err := c.Mail(sender, nil); err != nil {
		return fmt.Errorf("MAIL FROM failed: %w", err)
	}

	recipientOK := false
	for _, recipient := range recipients {
		if err := c.Rcpt(recipient, nil); err != nil {
			f.logger.Warn("RCPT TO failed for recipient",
				zap.String("recipient", recipient),
				zap.Error(err))
		} else {
			recipientOK = true
		}
	}
	if !recipientOK {
		return fmt.Errorf("all recipients were rejected")
	}

	wc, err := c.Data()
	if err != nil {
		return fmt.Errorf("DATA command failed: %w", err)
	}

	if _, err := wc.Write(emailData); err != nil {
		wc.Close()
		return fmt.Errorf("failed to send email data: %w", err)
	}
	if err := wc.Close(); err != nil {
		return fmt.Errorf("failed to close data writer: %w", err)
	}

	if err := c.Quit(); err != nil {
		f.logger.Warn("QUIT command failed", zap.Error(err))
	}

	return nil
}

// annotateMessage injects classification headers (and the optional spam
// subject prefix) at the top of the raw message.
func (f *PostfixFilter) annotateMessage(rawData []byte, pred *core.Prediction) []byte {
	var headers bytes.Buffer
	fmt.Fprintf(&headers, "%s: %s\r\n", f.classHeader, pred.Label)
	fmt.Fprintf(&headers, "%s: %.4f\r\n", f.confidenceHeader, pred.Confidence)
	fmt.Fprintf(&headers, "%s: %s\r\n", f.schemaHeader, pred.SchemaVersion)

	annotated := append(headers.Bytes(), rawData...)

	if f.modifySubject && pred.Label == f.spamLabel {
		annotated = prefixSubject(annotated, f.subjectPrefix)
	}
	return annotated
}

// prefixSubject rewrites the first Subject header line with the prefix.
func prefixSubject(rawData []byte, prefix string) []byte {
	lines := bytes.SplitN(rawData, []byte("\r\n\r\n"), 2)
	headerBlock := lines[0]

	out := bytes.Buffer{}
	for _, line := range bytes.Split(headerBlock, []byte("\r\n")) {
		if bytes.HasPrefix(bytes.ToLower(line), []byte("subject:")) {
			subject := strings.TrimSpace(string(line[len("subject:"):]))
			if !strings.HasPrefix(subject, prefix) {
				line = []byte("Subject: " + prefix + subject)
			}
		}
		out.Write(line)
		out.WriteString("\r\n")
	}
	if len(lines) == 2 {
		out.WriteString("\r\n")
		out.Write(lines[1])
	}
	return out.Bytes()
}

// smtpBackend implements the go-smtp Backend interface
type smtpBackend struct {
	filter *PostfixFilter
}

// NewSession creates a new SMTP session
func (b *smtpBackend) NewSession(_ *smtp.Conn) (smtp.Session, error) {
	return &smtpSession{
		filter:     b.filter,
		recipients: make([]string, 0),
	}, nil
}

// smtpSession implements the go-smtp Session interface
type smtpSession struct {
	filter     *PostfixFilter
	sender     string
	recipients []string
}

// Reset resets the session state
func (s *smtpSession) Reset() {
	s.sender = ""
	s.recipients = make([]string, 0)
}

// AuthPlain handles PLAIN authentication (not needed for our filter)
func (s *smtpSession) AuthPlain(_, _ string) error {
	return smtp.ErrAuthUnsupported
}

// Mail sets the sender address
func (s *smtpSession) Mail(from string, _ *smtp.MailOptions) error {
	s.sender = from
	return nil
}

// Rcpt adds a recipient
func (s *smtpSession) Rcpt(to string, _ *smtp.RcptOptions) error {
	s.recipients = append(s.recipients, to)
	return nil
}

// Logout handles session teardown
func (s *smtpSession) Logout() error {
	return nil
}

// Data handles the email data
func (s *smtpSession) Data(r io.Reader) error {
	rawData, err := io.ReadAll(r)
	if err != nil {
		s.filter.logger.Error("Failed to read message data", zap.Error(err))
		return err
	}

	msg, err := mail.ReadMessage(bytes.NewReader(rawData))
	if err != nil {
		s.filter.logger.Error("Failed to parse email message", zap.Error(err))
		return err
	}

	textContent, err := extractTextFromMessage(msg)
	if err != nil {
		s.filter.logger.Error("Failed to extract text content", zap.Error(err))
		return err
	}

	email := &core.RawEmail{
		From:       s.sender,
		To:         s.recipients,
		Body:       textContent,
		Headers:    make(map[string]string),
		ReceivedAt: time.Now(),
	}
	for key, values := range msg.Header {
		if len(values) > 0 {
			email.Headers[key] = values[0]
		}
	}
	email.Subject = msg.Header.Get("Subject")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pred, err := s.filter.service.Classify(ctx, email)
	if err != nil {
		// A per-request failure must not lose mail; pass the message
		// through unclassified and let the caller's logs surface it.
		s.filter.logger.Error("Failed to classify email",
			zap.Error(err),
			zap.String("sender", email.From))
		return s.deliver(rawData)
	}

	s.filter.logger.Info("Email classified",
		zap.String("sender", email.From),
		zap.String("label", pred.Label),
		zap.Float64("confidence", pred.Confidence))

	if pred.Label == s.filter.spamLabel && s.filter.blockSpam {
		s.filter.logger.Info("Rejecting spam email",
			zap.String("from", email.From),
			zap.Float64("confidence", pred.Confidence))
		return fmt.Errorf("550 Rejected as spam (confidence: %.2f)", pred.Confidence)
	}

	return s.deliver(s.filter.annotateMessage(rawData, pred))
}

// deliver hands the message back to Postfix when re-injection is enabled.
func (s *smtpSession) deliver(data []byte) error {
	if !s.filter.postfixEnabled {
		return nil
	}
	if err := s.filter.sendToPostfix(s.sender, s.recipients, data); err != nil {
		s.filter.logger.Error("Failed to re-deliver message to Postfix", zap.Error(err))
		return err
	}
	return nil
}
