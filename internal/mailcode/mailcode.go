// Package mailcode waits for one-time login codes sent by e-mail.
package mailcode

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/Korbielowski/AutoApply/internal/logger"
)

var ErrNoCode = errors.New("no verification code received")

type Message struct {
	From    string
	Subject string
	Date    time.Time
	Body    string
}

// Source lists messages received at or after since, newest first.
type Source interface {
	Recent(ctx context.Context, since time.Time) ([]Message, error)
}

var (
	reKeyword = regexp.MustCompile(`(?i)(code|kod|pin|otp|verif)`)
	reCode    = regexp.MustCompile(`\b([0-9]{4,8}|[A-Z0-9]{6})\b`)
	reDigits  = regexp.MustCompile(`[0-9]`)
)

// ExtractCode finds a one-time code in a message. Tokens on a line that
// mentions a code win; otherwise a lone 6-digit token is accepted.
func ExtractCode(subject, body string) (string, bool) {
	lines := append([]string{subject}, strings.Split(body, "\n")...)
	for _, line := range lines {
		if !reKeyword.MatchString(line) {
			continue
		}
		for _, tok := range reCode.FindAllString(line, -1) {
			if reDigits.MatchString(tok) {
				return tok, true
			}
		}
	}
	var sixes []string
	for _, line := range lines {
		for _, tok := range reCode.FindAllString(line, -1) {
			if len(tok) == 6 && !strings.ContainsFunc(tok, func(r rune) bool { return r < '0' || r > '9' }) {
				sixes = append(sixes, tok)
			}
		}
	}
	if len(sixes) == 1 {
		return sixes[0], true
	}
	return "", false
}

// Fetcher polls a Source until a code arrives or Timeout passes.
type Fetcher struct {
	Source  Source
	Poll    time.Duration
	Timeout time.Duration
	Log     logger.Logger
}

// Code returns the newest code from a message received after since.
func (f *Fetcher) Code(ctx context.Context, since time.Time) (string, error) {
	log := logger.OrNop(f.Log)
	poll := f.Poll
	if poll <= 0 {
		poll = 5 * time.Second
	}
	if f.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.Timeout)
		defer cancel()
	}

	t := time.NewTicker(poll)
	defer t.Stop()
	for {
		msgs, err := f.Source.Recent(ctx, since)
		if err != nil && ctx.Err() == nil {
			log.Warn("mailbox poll failed", logger.Error(err))
		}
		for _, m := range msgs {
			if code, ok := ExtractCode(m.Subject, m.Body); ok {
				log.Info("verification code received", logger.String("from", m.From))
				return code, nil
			}
		}

		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return "", fmt.Errorf("%w within %s", ErrNoCode, f.Timeout)
			}
			return "", ctx.Err()
		case <-t.C:
		}
	}
}
