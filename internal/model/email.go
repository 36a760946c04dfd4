package model

import "time"

type EmailStatus string

const (
	StatusPending   EmailStatus = "pending"
	StatusSent      EmailStatus = "sent"
	StatusFailed    EmailStatus = "failed"
	StatusDelivered EmailStatus = "delivered" // no delivery receipts exist, never produced
)

// EmailRequest is the inbound body of POST /send.
type EmailRequest struct {
	To          []string `json:"to"`
	Cc          []string `json:"cc,omitempty"`
	Bcc         []string `json:"bcc,omitempty"`
	Subject     string   `json:"subject"`
	Body        string   `json:"body"`
	IsHTML      bool     `json:"is_html"`
	Attachments []string `json:"attachments,omitempty"`
}

// Recipients flattens to, cc and bcc in that order.
func (r *EmailRequest) Recipients() []string {
	all := make([]string, 0, len(r.To)+len(r.Cc)+len(r.Bcc))
	all = append(all, r.To...)
	all = append(all, r.Cc...)
	all = append(all, r.Bcc...)
	return all
}

type EmailResponse struct {
	MessageID    string      `json:"message_id"`
	Status       EmailStatus `json:"status"`
	To           []string    `json:"to"`
	Subject      string      `json:"subject"`
	SentAt       *time.Time  `json:"sent_at"`
	ErrorMessage *string     `json:"error_message"`
}

type EmailHistory struct {
	MessageID    string      `json:"message_id"`
	Status       EmailStatus `json:"status"`
	To           []string    `json:"to"`
	Cc           []string    `json:"cc"`
	Bcc          []string    `json:"bcc"`
	Subject      string      `json:"subject"`
	Body         string      `json:"body"`
	IsHTML       bool        `json:"is_html"`
	SentAt       *time.Time  `json:"sent_at"`
	ErrorMessage *string     `json:"error_message"`
	CreatedAt    time.Time   `json:"created_at"`
}

// Clone returns a deep copy so callers never share slices or pointers with the store.
func (h *EmailHistory) Clone() *EmailHistory {
	c := *h
	c.To = cloneStrings(h.To)
	c.Cc = cloneStrings(h.Cc)
	c.Bcc = cloneStrings(h.Bcc)
	if h.SentAt != nil {
		t := *h.SentAt
		c.SentAt = &t
	}
	if h.ErrorMessage != nil {
		msg := *h.ErrorMessage
		c.ErrorMessage = &msg
	}
	return &c
}

func cloneStrings(in []string) []string {
	if in == nil {
		return nil
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}
