package filter

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net"
	"net/textproto"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/emersion/go-smtp"
	"github.com/mikey/inbox-classifier/internal/config"
	"github.com/mikey/inbox-classifier/internal/core"
	"github.com/mikey/inbox-classifier/internal/utils"
	"go.uber.org/zap"
)

const (
	errorHeader     = "X-Classifier-Error"
	analysisTimeout = 30 * time.Second
	reinjectTimeout = 30 * time.Second
)

// PostfixFilter implements a Postfix after-queue content filter. It
// receives mail over SMTP, stamps classification headers and reinjects the
// message into Postfix.
type PostfixFilter struct {
	service *core.ClassificationService
	text    *utils.TextProcessor
	logger  *zap.Logger
	cfg     config.ServerConfig

	mu       sync.Mutex
	server   *smtp.Server
	listener net.Listener
}

// NewPostfixFilter creates a new Postfix content filter
func NewPostfixFilter(service *core.ClassificationService, text *utils.TextProcessor, cfg config.ServerConfig, logger *zap.Logger) *PostfixFilter {
	return &PostfixFilter{
		service: service,
		text:    text,
		logger:  logger,
		cfg:     cfg,
	}
}

// Start binds the listen address and serves SMTP in the background
func (f *PostfixFilter) Start() error {
	l, err := net.Listen("tcp", f.cfg.ListenAddress)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", f.cfg.ListenAddress, err)
	}

	hostname, err := os.Hostname()
	if err != nil {
		hostname = "localhost"
	}

	server := smtp.NewServer(&smtpBackend{filter: f})
	server.Addr = l.Addr().String()
	server.Domain = hostname
	server.ReadTimeout = 30 * time.Second
	server.WriteTimeout = 30 * time.Second
	server.MaxMessageBytes = f.cfg.MaxMessageBytes
	server.MaxRecipients = 50

	f.mu.Lock()
	f.server = server
	f.listener = l
	f.mu.Unlock()

	f.logger.Info("Postfix filter starting", zap.String("address", l.Addr().String()))

	go func() {
		if err := server.Serve(l); err != nil && !errors.Is(err, smtp.ErrServerClosed) {
			f.logger.Error("SMTP server error", zap.Error(err))
		}
	}()

	return nil
}

// Stop stops the Postfix filter service
func (f *PostfixFilter) Stop() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.server != nil {
		return f.server.Close()
	}
	return nil
}

// Addr returns the bound listen address once started
func (f *PostfixFilter) Addr() net.Addr {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listener == nil {
		return nil
	}
	return f.listener.Addr()
}

// ProcessEmail classifies a single message
func (f *PostfixFilter) ProcessEmail(ctx context.Context, email *core.EmailRecord) (*core.AnalysisResult, error) {
	return f.service.Analyze(ctx, email)
}

// FilterMessage classifies a raw message and returns it with the
// classification headers prepended. Likely spam is refused with an SMTP
// 550 error when blocking is enabled. Messages that cannot be classified
// pass through with an error header rather than being dropped.
func (f *PostfixFilter) FilterMessage(ctx context.Context, sender string, recipients []string, raw []byte) ([]byte, *core.AnalysisResult, error) {
	headers := f.cfg.Headers
	drop := map[string]bool{}
	for _, name := range []string{headers.Category, headers.Spam, headers.Score, headers.Priority, errorHeader} {
		if name != "" {
			drop[textproto.CanonicalMIMEHeaderKey(name)] = true
		}
	}

	record, err := ParseMessage(raw, sender, recipients, f.text)
	var result *core.AnalysisResult
	if err == nil {
		result, err = f.service.Analyze(ctx, record)
	}
	if err != nil {
		f.logger.Error("Failed to analyze email", zap.Error(err), zap.String("sender", sender))
		stamps := []string{errorHeader + ": " + sanitizeHeaderValue(err.Error())}
		return rewriteHeaders(raw, drop, stamps), nil, nil
	}

	if result.IsSpam && f.cfg.BlockSpam {
		f.logger.Info("Rejecting spam email",
			zap.String("sender", record.From),
			zap.Int("spam_score", result.SpamScore),
			zap.String("processing_id", result.ProcessingID))
		return nil, result, &smtp.SMTPError{
			Code:         550,
			EnhancedCode: smtp.EnhancedCode{5, 7, 1},
			Message:      fmt.Sprintf("Rejected as spam (score: %d)", result.SpamScore),
		}
	}

	var stamps []string
	add := func(name, value string) {
		if name != "" {
			stamps = append(stamps, name+": "+value)
		}
	}
	add(headers.Category, string(result.Category))
	add(headers.Spam, yesNo(result.IsSpam))
	add(headers.Score, strconv.Itoa(result.SpamScore))
	if result.Insights != nil {
		add(headers.Priority, string(result.Insights.Priority))
	}

	prefix := f.cfg.SubjectPrefix
	if result.IsSpam && prefix != "" && !strings.HasPrefix(record.Subject, prefix) {
		drop["Subject"] = true
		stamps = append(stamps, "Subject: "+mime.QEncoding.Encode("utf-8", prefix+record.Subject))
	}

	f.logger.Info("Processed email",
		zap.String("sender", record.From),
		zap.String("category", string(result.Category)),
		zap.Bool("is_spam", result.IsSpam),
		zap.Int("spam_score", result.SpamScore),
		zap.String("processing_id", result.ProcessingID))

	return rewriteHeaders(raw, drop, stamps), result, nil
}

// sendToPostfix reinjects a message into Postfix over SMTP
func (f *PostfixFilter) sendToPostfix(sender string, recipients []string, data []byte) error {
	addr := net.JoinHostPort(f.cfg.PostfixAddress, strconv.Itoa(f.cfg.PostfixPort))

	hostname, err := os.Hostname()
	if err != nil {
		hostname = "localhost"
	}

	conn, err := net.DialTimeout("tcp", addr, 10*time.Second)
	if err != nil {
		return fmt.Errorf("failed to connect to Postfix: %w", err)
	}
	if err := conn.SetDeadline(time.Now().Add(reinjectTimeout)); err != nil {
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

	accepted := 0
	for _, rcpt := range recipients {
		if err := c.Rcpt(rcpt, nil); err != nil {
			f.logger.Warn("RCPT TO failed for recipient", zap.String("recipient", rcpt), zap.Error(err))
			continue
		}
		accepted++
	}
	if accepted == 0 {
		return errors.New("all recipients were rejected")
	}

	wc, err := c.Data()
	if err != nil {
		return fmt.Errorf("DATA command failed: %w", err)
	}
	if _, err := wc.Write(data); err != nil {
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

// rewriteHeaders prepends stamps to the header block and removes any
// existing header whose canonical name is in drop. The body is untouched.
func rewriteHeaders(raw []byte, drop map[string]bool, stamps []string) []byte {
	header, body, nl := splitMessage(raw)

	var out bytes.Buffer
	for _, s := range stamps {
		out.WriteString(s)
		out.WriteString(nl)
	}

	skipping := false
	for _, line := range bytes.SplitAfter(header, []byte("\n")) {
		if len(line) == 0 {
			continue
		}
		if line[0] == ' ' || line[0] == '\t' {
			if !skipping {
				out.Write(line)
			}
			continue
		}
		name := line
		if i := bytes.IndexByte(line, ':'); i >= 0 {
			name = line[:i]
		}
		skipping = drop[textproto.CanonicalMIMEHeaderKey(string(bytes.TrimSpace(name)))]
		if !skipping {
			out.Write(line)
		}
	}
	if out.Len() > 0 && !bytes.HasSuffix(out.Bytes(), []byte("\n")) {
		out.WriteString(nl)
	}

	out.WriteString(nl)
	out.Write(body)
	return out.Bytes()
}

// splitMessage separates the header block (with its final line ending)
// from the body and reports the line ending in use
func splitMessage(raw []byte) (header, body []byte, nl string) {
	if i := bytes.Index(raw, []byte("\r\n\r\n")); i >= 0 {
		return raw[:i+2], raw[i+4:], "\r\n"
	}
	if i := bytes.Index(raw, []byte("\n\n")); i >= 0 {
		return raw[:i+1], raw[i+2:], "\n"
	}
	return raw, nil, "\r\n"
}

func sanitizeHeaderValue(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func yesNo(b bool) string {
	if b {
		return "Yes"
	}
	return "No"
}

// smtpBackend implements the go-smtp Backend interface
type smtpBackend struct {
	filter *PostfixFilter
}

// NewSession creates a new SMTP session
func (b *smtpBackend) NewSession(c *smtp.Conn) (smtp.Session, error) {
	return &smtpSession{filter: b.filter}, nil
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
	s.recipients = nil
}

// Logout handles SMTP logout
func (s *smtpSession) Logout() error {
	return nil
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

// Data classifies the message and reinjects it
func (s *smtpSession) Data(r io.Reader) error {
	raw, err := io.ReadAll(r)
	if err != nil {
		s.filter.logger.Error("Failed to read message data", zap.Error(err))
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), analysisTimeout)
	defer cancel()

	out, _, err := s.filter.FilterMessage(ctx, s.sender, s.recipients, raw)
	if err != nil {
		return err
	}

	if !s.filter.cfg.PostfixEnabled {
		s.filter.logger.Warn("Postfix forwarding disabled, message not reinjected",
			zap.String("sender", s.sender))
		return nil
	}

	if err := s.filter.sendToPostfix(s.sender, s.recipients, out); err != nil {
		s.filter.logger.Error("Failed to send email back to Postfix",
			zap.Error(err),
			zap.String("sender", s.sender))
		return &smtp.SMTPError{
			Code:         451,
			EnhancedCode: smtp.EnhancedCode{4, 3, 0},
			Message:      "Temporary failure reinjecting message",
		}
	}
	return nil
}
