package mailcode

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"

	"github.com/Korbielowski/AutoApply/internal/logger"
)

const maxMessages = 20

// IMAPSource reads recent messages from one mailbox without marking them
// seen.
type IMAPSource struct {
	Addr     string
	Username string
	Password string
	Mailbox  string
	TLS      *tls.Config
	Log      logger.Logger
}

// IMAPAddr joins host and port, defaulting to 993.
func IMAPAddr(host string, port int) string {
	if strings.Contains(host, ":") {
		return host
	}
	if port == 0 {
		port = 993
	}
	return fmt.Sprintf("%s:%d", host, port)
}

func (s *IMAPSource) dial(ctx context.Context) (*imapclient.Client, error) {
	if s.Addr == "" {
		return nil, errors.New("imap addr is required")
	}
	if s.Username == "" || s.Password == "" {
		return nil, errors.New("imap username/password is required")
	}
	tlsCfg := s.TLS
	if tlsCfg == nil {
		host, _, _ := strings.Cut(s.Addr, ":")
		tlsCfg = &tls.Config{MinVersion: tls.VersionTLS12, ServerName: host}
	}

	c, err := imapclient.DialTLS(s.Addr, &imapclient.Options{TLSConfig: tlsCfg})
	if err != nil {
		return nil, fmt.Errorf("imap dial tls: %w", err)
	}
	stop := context.AfterFunc(ctx, func() { _ = c.Close() })
	if err := c.Login(s.Username, s.Password).Wait(); err != nil {
		stop()
		_ = c.Close()
		return nil, fmt.Errorf("imap login: %w", err)
	}
	return c, nil
}

// Recent returns up to maxMessages messages received at or after since,
// newest first.
func (s *IMAPSource) Recent(ctx context.Context, since time.Time) ([]Message, error) {
	log := logger.OrNop(s.Log)
	c, err := s.dial(ctx)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := c.Logout().Wait(); err != nil {
			log.Debug("imap logout", logger.Error(err))
		}
		_ = c.Close()
	}()

	mailbox := s.Mailbox
	if mailbox == "" {
		mailbox = "INBOX"
	}
	if _, err := c.Select(mailbox, &imap.SelectOptions{ReadOnly: true}).Wait(); err != nil {
		return nil, fmt.Errorf("imap select %q: %w", mailbox, err)
	}

	// SINCE has day granularity; exact filtering happens below.
	found, err := c.UIDSearch(&imap.SearchCriteria{Since: since.Add(-24 * time.Hour)}, nil).Wait()
	if err != nil {
		return nil, fmt.Errorf("imap uid search: %w", err)
	}
	uids := found.AllUIDs()
	if len(uids) == 0 {
		return nil, nil
	}
	if len(uids) > maxMessages {
		uids = uids[len(uids)-maxMessages:]
	}

	body := &imap.FetchItemBodySection{Specifier: imap.PartSpecifierNone, Peek: true}
	cmd := c.Fetch(imap.UIDSetNum(uids...), &imap.FetchOptions{
		UID:          true,
		Envelope:     true,
		InternalDate: true,
		BodySection:  []*imap.FetchItemBodySection{body},
	})
	defer func() { _ = cmd.Close() }()

	var out []Message
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		data := cmd.Next()
		if data == nil {
			break
		}
		buf, err := data.Collect()
		if err != nil {
			return nil, fmt.Errorf("imap fetch collect: %w", err)
		}

		m := Message{Date: buf.InternalDate}
		if buf.Envelope != nil {
			m.Subject = buf.Envelope.Subject
			if len(buf.Envelope.From) > 0 {
				m.From = buf.Envelope.From[0].Addr()
			}
			if m.Date.IsZero() {
				m.Date = buf.Envelope.Date
			}
		}
		if raw := buf.FindBodySection(body); raw != nil {
			subj, text := ParseMessage(raw)
			if m.Subject == "" {
				m.Subject = subj
			}
			m.Body = text
		}
		if !m.Date.IsZero() && m.Date.Before(since) {
			continue
		}
		out = append(out, m)
	}
	if err := cmd.Close(); err != nil {
		return nil, fmt.Errorf("imap fetch close: %w", err)
	}

	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}
