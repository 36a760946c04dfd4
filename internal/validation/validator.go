// Package validation checks outbound email requests before anything touches the relay.
package validation

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/mail"
	"os"
	"path/filepath"
	"strings"

	"mailservice/internal/model"
)

const (
	// MaxAttachmentSize is the largest accepted attachment, inclusive.
	MaxAttachmentSize = 10 * 1024 * 1024
	MaxSubjectLength  = 200
)

var allowedExtensions = map[string]struct{}{
	".pdf": {}, ".doc": {}, ".docx": {}, ".xls": {}, ".xlsx": {}, ".ppt": {}, ".pptx": {},
	".odt": {}, ".ods": {}, ".rtf": {},
	".txt": {}, ".csv": {}, ".md": {}, ".json": {}, ".xml": {},
	".png": {}, ".jpg": {}, ".jpeg": {}, ".gif": {}, ".bmp": {}, ".webp": {}, ".svg": {},
	".zip": {},
}

// Kind tags every validation issue so callers never inspect message text.
type Kind int

const (
	MissingField Kind = iota + 1
	EmptyField
	FieldTooLong
	NoRecipients
	InvalidAddress
	AttachmentNotFound
	AttachmentTooLarge
	UnsupportedAttachmentType
	AttachmentUnreadable
	InvalidField
)

func (k Kind) String() string {
	switch k {
	case MissingField:
		return "missing_field"
	case EmptyField:
		return "empty_field"
	case FieldTooLong:
		return "field_too_long"
	case NoRecipients:
		return "no_recipients"
	case InvalidAddress:
		return "invalid_address"
	case AttachmentNotFound:
		return "attachment_not_found"
	case AttachmentTooLarge:
		return "attachment_too_large"
	case UnsupportedAttachmentType:
		return "unsupported_attachment_type"
	case AttachmentUnreadable:
		return "attachment_unreadable"
	case InvalidField:
		return "invalid_field"
	default:
		return "unknown"
	}
}

// Issue is a single failed check.
type Issue struct {
	Kind    Kind   `json:"-"`
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Error is returned when a request fails validation. Issues keep check order.
type Error struct {
	Issues []Issue
}

func (e *Error) Error() string {
	msgs := make([]string, 0, len(e.Issues))
	for _, is := range e.Issues {
		msgs = append(msgs, is.Message)
	}
	return "validation failed: " + strings.Join(msgs, "; ")
}

// Kind reports the kind of the first issue, which decides the response status.
func (e *Error) Kind() Kind {
	if len(e.Issues) == 0 {
		return 0
	}
	return e.Issues[0].Kind
}

// Details groups issue messages by kind for the error body.
func (e *Error) Details() map[string][]string {
	out := make(map[string][]string)
	for _, is := range e.Issues {
		out[is.Kind.String()] = append(out[is.Kind.String()], is.Message)
	}
	return out
}

// AsError extracts a *Error from err.
func AsError(err error) (*Error, bool) {
	var verr *Error
	if errors.As(err, &verr) {
		return verr, true
	}
	return nil, false
}

// DecodeError turns a request body decoding failure into a validation error.
// Type mismatches name the offending field; anything else is charged to the body.
func DecodeError(err error) *Error {
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		field := typeErr.Field
		if field == "" {
			field = "body"
		}
		return &Error{Issues: []Issue{{
			Kind:    InvalidField,
			Field:   field,
			Message: fmt.Sprintf("%s: expected %s, got %s", field, typeErr.Type, typeErr.Value),
		}}}
	}
	return &Error{Issues: []Issue{{
		Kind:    InvalidField,
		Field:   "body",
		Message: fmt.Sprintf("malformed request body: %v", err),
	}}}
}

// Attachment is a file that passed validation, loaded once so the message
// builder never goes back to disk.
type Attachment struct {
	Path     string
	Filename string
	Content  []byte
}

// Validator runs structural, address and attachment checks in that order.
// Each stage accumulates all of its issues; a failing stage stops the later ones.
type Validator struct {
	maxAttachmentSize int64
}

func NewValidator() *Validator {
	return &Validator{maxAttachmentSize: MaxAttachmentSize}
}

// Validate checks req and returns the loaded attachments when it is valid.
func (v *Validator) Validate(req *model.EmailRequest) ([]Attachment, error) {
	if issues := checkStructure(req); len(issues) > 0 {
		return nil, &Error{Issues: issues}
	}
	if issues := checkAddresses(req); len(issues) > 0 {
		return nil, &Error{Issues: issues}
	}
	if len(req.Attachments) == 0 {
		return nil, nil
	}
	atts, issues := v.loadAttachments(req.Attachments)
	if len(issues) > 0 {
		return nil, &Error{Issues: issues}
	}
	return atts, nil
}

func checkStructure(req *model.EmailRequest) []Issue {
	var issues []Issue
	if req.To == nil {
		issues = append(issues, Issue{Kind: MissingField, Field: "to", Message: "field required: to"})
	} else if len(req.To) == 0 {
		issues = append(issues, Issue{Kind: NoRecipients, Field: "to", Message: "at least one recipient must be provided"})
	}

	subject := strings.TrimSpace(req.Subject)
	switch {
	case subject == "":
		issues = append(issues, Issue{Kind: EmptyField, Field: "subject", Message: "subject cannot be empty"})
	case len([]rune(subject)) > MaxSubjectLength:
		issues = append(issues, Issue{
			Kind:    FieldTooLong,
			Field:   "subject",
			Message: fmt.Sprintf("subject exceeds %d characters", MaxSubjectLength),
		})
	}

	if strings.TrimSpace(req.Body) == "" {
		issues = append(issues, Issue{Kind: EmptyField, Field: "body", Message: "body cannot be empty"})
	}
	return issues
}

func checkAddresses(req *model.EmailRequest) []Issue {
	var issues []Issue
	lists := []struct {
		field string
		addrs []string
	}{
		{"to", req.To},
		{"cc", req.Cc},
		{"bcc", req.Bcc},
	}
	for _, l := range lists {
		for i, addr := range l.addrs {
			if err := ValidateAddress(addr); err != nil {
				issues = append(issues, Issue{
					Kind:    InvalidAddress,
					Field:   fmt.Sprintf("%s[%d]", l.field, i),
					Message: fmt.Sprintf("invalid email at %s[%d]: %q: %v", l.field, i, addr, err),
				})
			}
		}
	}
	return issues
}

// ValidateAddress accepts a bare addr-spec with a dotted domain. Display names
// are rejected. No DNS or deliverability check is made.
func ValidateAddress(addr string) error {
	if addr == "" {
		return errors.New("empty address")
	}
	parsed, err := mail.ParseAddress(addr)
	if err != nil {
		return err
	}
	if parsed.Name != "" || parsed.Address != addr {
		return errors.New("display names and surrounding text are not allowed")
	}
	at := strings.LastIndex(parsed.Address, "@")
	domain := parsed.Address[at+1:]
	if !strings.Contains(domain, ".") || strings.HasPrefix(domain, ".") || strings.HasSuffix(domain, ".") {
		return fmt.Errorf("domain %q is not fully qualified", domain)
	}
	return nil
}

func (v *Validator) loadAttachments(paths []string) ([]Attachment, []Issue) {
	var (
		atts   []Attachment
		issues []Issue
	)
	for i, p := range paths {
		field := fmt.Sprintf("attachments[%d]", i)
		info, err := os.Stat(p)
		if err != nil || info.IsDir() {
			issues = append(issues, Issue{Kind: AttachmentNotFound, Field: field, Message: fmt.Sprintf("attachment not found: %s", p)})
			continue
		}
		if info.Size() > v.maxAttachmentSize {
			issues = append(issues, Issue{
				Kind:    AttachmentTooLarge,
				Field:   field,
				Message: fmt.Sprintf("attachment too large: %s (%d bytes, max %d)", p, info.Size(), v.maxAttachmentSize),
			})
			continue
		}
		ext := strings.ToLower(filepath.Ext(p))
		if _, ok := allowedExtensions[ext]; !ok {
			issues = append(issues, Issue{Kind: UnsupportedAttachmentType, Field: field, Message: fmt.Sprintf("unsupported file type: %s", p)})
			continue
		}
		content, err := readLimited(p, v.maxAttachmentSize)
		if err != nil {
			issues = append(issues, Issue{Kind: AttachmentUnreadable, Field: field, Message: fmt.Sprintf("attachment unreadable: %s: %v", p, err)})
			continue
		}
		atts = append(atts, Attachment{Path: p, Filename: filepath.Base(p), Content: content})
	}
	return atts, issues
}

// readLimited guards against a file growing between Stat and read.
func readLimited(path string, limit int64) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > limit {
		return nil, fmt.Errorf("file grew beyond %d bytes", limit)
	}
	return data, nil
}
