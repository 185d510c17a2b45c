// Package contact validates and stores inquiries from the contact form.
package contact

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ivlev/elasticcanvas/internal/logging"
)

const (
	MinNameLength    = 2
	MinMessageLength = 10
)

var ErrInvalid = errors.New("contact: invalid form")

// Form is the raw submission.
type Form struct {
	Name    string
	Email   string
	Message string
}

// FieldErrors maps a form field to the dictionary key of its message.
type FieldErrors map[string]string

func (f FieldErrors) Error() string {
	parts := make([]string, 0, len(f))
	for _, field := range []string{"name", "email", "message"} {
		if key, ok := f[field]; ok {
			parts = append(parts, field+": "+key)
		}
	}
	return "invalid " + strings.Join(parts, ", ")
}

func (f FieldErrors) Unwrap() error { return ErrInvalid }

// Validate trims the form and checks every field.
func (f *Form) Validate() error {
	f.Name = strings.TrimSpace(f.Name)
	f.Email = strings.TrimSpace(f.Email)
	f.Message = strings.TrimSpace(f.Message)

	errs := FieldErrors{}
	if utf8.RuneCountInString(f.Name) < MinNameLength {
		errs["name"] = "contact.name_invalid"
	}
	if !validEmail(f.Email) {
		errs["email"] = "contact.email_invalid"
	}
	if utf8.RuneCountInString(f.Message) < MinMessageLength {
		errs["message"] = "contact.message_invalid"
	}
	if len(errs) > 0 {
		return errs
	}
	return nil
}

// validEmail accepts a bare address with a dotted domain.
func validEmail(s string) bool {
	addr, err := mail.ParseAddress(s)
	if err != nil || addr.Address != s {
		return false
	}
	at := strings.LastIndex(s, "@")
	domain := s[at+1:]
	return strings.Contains(domain, ".") && !strings.HasPrefix(domain, ".") && !strings.HasSuffix(domain, ".")
}

// Inquiry is a validated, stored submission.
type Inquiry struct {
	ID        string    `json:"id"`
	Locale    string    `json:"locale"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}

type Store interface {
	Save(ctx context.Context, inq Inquiry) error
	Close() error
}

// Service turns form submissions into stored inquiries.
type Service struct {
	store  Store
	logger *zap.Logger
	now    func() time.Time
}

func NewService(store Store, logger *zap.Logger) *Service {
	return &Service{store: store, logger: logging.OrNop(logger), now: time.Now}
}

// Submit validates f and saves it. Validation failures come back as FieldErrors.
func (s *Service) Submit(ctx context.Context, locale string, f Form) (Inquiry, error) {
	if err := f.Validate(); err != nil {
		return Inquiry{}, err
	}

	inq := Inquiry{
		ID:        uuid.NewString(),
		Locale:    locale,
		Name:      f.Name,
		Email:     f.Email,
		Message:   f.Message,
		CreatedAt: s.now().UTC(),
	}
	if err := s.store.Save(ctx, inq); err != nil {
		s.logger.Error("inquiry not saved", zap.String("id", inq.ID), zap.Error(err))
		return Inquiry{}, fmt.Errorf("save inquiry: %w", err)
	}
	s.logger.Info("new inquiry", zap.String("id", inq.ID), zap.String("locale", locale))
	return inq, nil
}
