// Package admission holds the pre-flight checks that run before any remote call:
// anti-forgery token, size ceiling and MIME allow-list. Nothing here performs I/O.
package admission

import (
	"crypto/subtle"
	"fmt"
	"mime"
	"strings"
)

// Reason identifies why a request was rejected.
type Reason string

const (
	IntegrityMismatch Reason = "IntegrityMismatch"
	TooLarge          Reason = "TooLarge"
	UnsupportedType   Reason = "UnsupportedType"
)

// Rejection is returned for every request the policy refuses.
type Rejection struct {
	Reason Reason
	Detail string
}

func (r *Rejection) Error() string {
	if r.Detail == "" {
		return string(r.Reason)
	}
	return fmt.Sprintf("%s: %s", r.Reason, r.Detail)
}

// Is matches any *Rejection carrying the same Reason, so callers can test
// errors.Is(err, &admission.Rejection{Reason: admission.TooLarge}).
func (r *Rejection) Is(target error) bool {
	t, ok := target.(*Rejection)
	return ok && t.Reason == r.Reason
}

// Policy is immutable after construction and safe for concurrent use.
type Policy struct {
	maxBytes int64
	allowed  map[string]struct{}
}

// NewPolicy builds a Policy with the given size ceiling and MIME allow-list.
func NewPolicy(maxBytes int64, allowedTypes []string) *Policy {
	allowed := make(map[string]struct{}, len(allowedTypes))
	for _, t := range allowedTypes {
		allowed[baseType(t)] = struct{}{}
	}
	return &Policy{maxBytes: maxBytes, allowed: allowed}
}

// MaxBytes returns the configured size ceiling.
func (p *Policy) MaxBytes() int64 { return p.maxBytes }

// CheckIntegrity compares the submitted anti-forgery token with the session's token
// in constant time. An empty session token never matches.
func (p *Policy) CheckIntegrity(submitted, session string) error {
	if session == "" || subtle.ConstantTimeCompare([]byte(submitted), []byte(session)) != 1 {
		return &Rejection{Reason: IntegrityMismatch, Detail: "invalid request, please try again"}
	}
	return nil
}

// Admit runs the full upload check: token first, then size, then type.
func (p *Policy) Admit(submitted, session string, size int64, mimeType string) error {
	if err := p.CheckIntegrity(submitted, session); err != nil {
		return err
	}
	if size < 0 || size > p.maxBytes {
		return &Rejection{
			Reason: TooLarge,
			Detail: fmt.Sprintf("file size %d exceeds the %d byte limit", size, p.maxBytes),
		}
	}
	if _, ok := p.allowed[baseType(mimeType)]; !ok {
		return &Rejection{
			Reason: UnsupportedType,
			Detail: fmt.Sprintf("file type %q not allowed; allowed: images, PDF, text, and ZIP files", mimeType),
		}
	}
	return nil
}

// baseType drops parameters such as "; charset=utf-8" and lowercases the media type.
func baseType(t string) string {
	if mt, _, err := mime.ParseMediaType(t); err == nil {
		return mt
	}
	return strings.ToLower(strings.TrimSpace(t))
}
