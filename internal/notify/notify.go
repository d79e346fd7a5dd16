// Package notify tells moderators about new confessions.
package notify

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	"github.com/sujalbistaa/confessly/internal/config"
	"github.com/sujalbistaa/confessly/internal/models"
)

// Notifier announces a newly posted confession.
type Notifier interface {
	NotifyConfession(ctx context.Context, c models.Confession) error
}

// New returns an SMTP notifier when SMTP is configured and a no-op otherwise.
func New(cfg config.SMTPConfig, publicBaseURL string) Notifier {
	if !cfg.Enabled() {
		log.Println("notify: SMTP not configured, new confession emails disabled")
		return Nop{}
	}
	return &SMTP{cfg: cfg, baseURL: publicBaseURL, send: smtp.SendMail}
}

// Nop drops every notification.
type Nop struct{}

func (Nop) NotifyConfession(context.Context, models.Confession) error { return nil }

type sendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// SMTP mails a short summary and link to every configured recipient.
type SMTP struct {
	cfg     config.SMTPConfig
	baseURL string
	send    sendFunc
}

func (n *SMTP) NotifyConfession(ctx context.Context, c models.Confession) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	addr := net.JoinHostPort(n.cfg.Host, strconv.Itoa(n.cfg.Port))
	var auth smtp.Auth
	if n.cfg.User != "" {
		auth = smtp.PlainAuth("", n.cfg.User, n.cfg.Password, n.cfg.Host)
	}
	if err := n.send(addr, auth, n.cfg.From, n.cfg.To, n.message(c)); err != nil {
		return fmt.Errorf("send notification for %s: %w", c.ID, err)
	}
	return nil
}

func (n *SMTP) message(c models.Confession) []byte {
	var b bytes.Buffer
	fmt.Fprintf(&b, "From: %s\r\n", n.cfg.From)
	fmt.Fprintf(&b, "To: %s\r\n", strings.Join(n.cfg.To, ", "))
	fmt.Fprintf(&b, "Subject: New %s confession: %s\r\n", c.Category, headerSafe(c.Title))
	fmt.Fprintf(&b, "Date: %s\r\n", c.CreatedAt.UTC().Format(time.RFC1123Z))
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=UTF-8\r\n\r\n")
	fmt.Fprintf(&b, "%s\r\n\r\n%s\r\n\r\n", c.Title, c.Body)
	fmt.Fprintf(&b, "%s/c/%s\r\n", n.baseURL, c.Slug)
	return b.Bytes()
}

// headerSafe keeps user text from injecting extra headers.
func headerSafe(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
