package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"classbook/internal/model"
)

const formspreeBaseURL = "https://formspree.io/f/"

// HTTPError is a non-2xx response from the forms endpoint.
type HTTPError struct {
	StatusCode int
	Message    string
}

func (e *HTTPError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("formspree error: http %d", e.StatusCode)
	}
	return fmt.Sprintf("formspree error: http %d: %s", e.StatusCode, e.Message)
}

// FormspreeSender posts emails to a Formspree form.
type FormspreeSender struct {
	endpoint   string
	fromEmail  string
	httpClient *http.Client
}

type formspreePayload struct {
	ReplyTo       string `json:"_replyto"`
	Subject       string `json:"_subject"`
	Email         string `json:"email"`
	Name          string `json:"name"`
	Message       string `json:"message"`
	BookingType   string `json:"booking_type"`
	TeacherName   string `json:"teacher_name"`
	Classroom     string `json:"classroom"`
	SubjectTaught string `json:"subject_taught"`
	Date          string `json:"date"`
	Time          string `json:"time"`
	CC            string `json:"_cc,omitempty"`
}

// NewFormspreeSender builds a sender for form, which is either a form id or a full URL.
func NewFormspreeSender(form, fromEmail string) (*FormspreeSender, error) {
	form = strings.TrimSpace(form)
	if form == "" || form == "YOUR_FORMSPREE_FORM_ID" {
		return nil, ErrNotConfigured
	}
	endpoint := form
	if !strings.Contains(form, "://") {
		endpoint = formspreeBaseURL + form
	}
	return &FormspreeSender{
		endpoint:   endpoint,
		fromEmail:  fromEmail,
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}, nil
}

// WithHTTPClient overrides the HTTP client.
func (s *FormspreeSender) WithHTTPClient(c *http.Client) *FormspreeSender {
	s.httpClient = c
	return s
}

// Endpoint returns the resolved form URL.
func (s *FormspreeSender) Endpoint() string {
	return s.endpoint
}

// Send implements Sender.
func (s *FormspreeSender) Send(ctx context.Context, e Email) error {
	payload := formspreePayload{
		ReplyTo:       s.fromEmail,
		Subject:       e.Subject,
		Email:         e.To,
		Name:          model.EmailLocalPart(e.To),
		Message:       e.Body,
		BookingType:   e.Notice.BookingType(),
		TeacherName:   e.Notice.TeacherName,
		Classroom:     e.Notice.Classroom,
		SubjectTaught: e.Notice.Subject,
		Date:          e.Notice.When(),
		Time:          e.Notice.Time,
		CC:            s.fromEmail,
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	var body struct {
		Error string `json:"error"`
	}
	_ = json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&body)
	msg := body.Error
	if msg == "" {
		msg = http.StatusText(resp.StatusCode)
	}
	return &HTTPError{StatusCode: resp.StatusCode, Message: msg}
}

var _ Sender = (*FormspreeSender)(nil)
