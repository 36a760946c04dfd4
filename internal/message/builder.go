// Package message renders validated requests into RFC 5322 / MIME messages.
package message

import (
	"bytes"
	"fmt"
	"mime"
	"path/filepath"
	"strings"
	"time"

	"github.com/emersion/go-message/mail"

	"mailservice/internal/model"
	"mailservice/internal/validation"
)

// Builder renders messages from a fixed sender identity.
type Builder struct {
	fromName  string
	fromEmail string
	domain    string
	now       func() time.Time
}

func NewBuilder(fromName, fromEmail string) *Builder {
	domain := "localhost"
	if at := strings.LastIndex(fromEmail, "@"); at >= 0 && at < len(fromEmail)-1 {
		domain = fromEmail[at+1:]
	}
	return &Builder{
		fromName:  fromName,
		fromEmail: fromEmail,
		domain:    domain,
		now:       time.Now,
	}
}

// From returns the envelope sender.
func (b *Builder) From() string {
	return b.fromEmail
}

// MessageIDHeader returns the Message-ID value (without angle brackets) for id.
func (b *Builder) MessageIDHeader(id string) string {
	return id + "@" + b.domain
}

// Build renders a multipart/mixed message: one inline body part followed by
// one part per attachment. Bcc recipients never appear in the headers.
func (b *Builder) Build(req *model.EmailRequest, messageID string, atts []validation.Attachment) ([]byte, error) {
	var h mail.Header
	h.SetDate(b.now())
	h.SetAddressList("From", []*mail.Address{{Name: b.fromName, Address: b.fromEmail}})
	h.SetAddressList("To", toAddresses(req.To))
	if len(req.Cc) > 0 {
		h.SetAddressList("Cc", toAddresses(req.Cc))
	}
	h.SetSubject(req.Subject)
	h.SetMessageID(b.MessageIDHeader(messageID))

	var buf bytes.Buffer
	mw, err := mail.CreateWriter(&buf, h)
	if err != nil {
		return nil, fmt.Errorf("failed to create message writer: %w", err)
	}

	var bh mail.InlineHeader
	if req.IsHTML {
		bh.SetContentType("text/html", map[string]string{"charset": "utf-8"})
	} else {
		bh.SetContentType("text/plain", map[string]string{"charset": "utf-8"})
	}
	// base64 keeps the body byte-for-byte; quoted-printable would normalize line endings
	bh.Set("Content-Transfer-Encoding", "base64")
	bw, err := mw.CreateSingleInline(bh)
	if err != nil {
		return nil, fmt.Errorf("failed to create body part: %w", err)
	}
	if _, err := bw.Write([]byte(req.Body)); err != nil {
		return nil, fmt.Errorf("failed to write body: %w", err)
	}
	if err := bw.Close(); err != nil {
		return nil, fmt.Errorf("failed to close body part: %w", err)
	}

	for _, att := range atts {
		if err := writeAttachment(mw, att); err != nil {
			return nil, err
		}
	}

	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("failed to close message: %w", err)
	}
	return buf.Bytes(), nil
}

func writeAttachment(mw *mail.Writer, att validation.Attachment) error {
	var ah mail.AttachmentHeader
	ah.SetContentType(contentTypeFor(att.Filename), nil)
	ah.SetFilename(att.Filename)
	ah.Set("Content-Transfer-Encoding", "base64")

	w, err := mw.CreateAttachment(ah)
	if err != nil {
		return fmt.Errorf("failed to create attachment part %s: %w", att.Filename, err)
	}
	if _, err := w.Write(att.Content); err != nil {
		return fmt.Errorf("failed to write attachment %s: %w", att.Filename, err)
	}
	return w.Close()
}

func contentTypeFor(filename string) string {
	t := mime.TypeByExtension(strings.ToLower(filepath.Ext(filename)))
	if t == "" {
		return "application/octet-stream"
	}
	mediaType, _, err := mime.ParseMediaType(t)
	if err != nil {
		return "application/octet-stream"
	}
	return mediaType
}

func toAddresses(addrs []string) []*mail.Address {
	out := make([]*mail.Address, 0, len(addrs))
	for _, a := range addrs {
		out = append(out, &mail.Address{Address: a})
	}
	return out
}
