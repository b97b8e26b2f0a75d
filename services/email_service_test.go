package services

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/gomail.v2"

	"raceday-api/config"
	"raceday-api/models"
)

type fakeDialer struct {
	messages []*gomail.Message
	err      error
}

func (d *fakeDialer) DialAndSend(m ...*gomail.Message) error {
	d.messages = append(d.messages, m...)
	return d.err
}

func TestEmailService_SendRegistrationConfirmation(t *testing.T) {
	dialer := &fakeDialer{}
	es := NewEmailService(&config.Config{FromEmail: "noreply@raceday.test", FromName: "Raceday"})
	es.dialer = dialer

	reg := &models.Registration{ID: 3, Name: "Ana", Surname: "Petrović", Email: "ana@example.com", StartNumber: 17}
	event := &models.Event{
		ID:         1,
		EventName:  "Tour <Lovćen>",
		EventTime:  time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC),
		EventStart: strPtr("Cetinje"),
	}

	require.NoError(t, es.SendRegistrationConfirmation(reg, event))
	require.Len(t, dialer.messages, 1)

	m := dialer.messages[0]
	assert.Equal(t, []string{"Tour <Lovćen> - start number 17"}, m.GetHeader("Subject"))

	var buf bytes.Buffer
	_, err := m.WriteTo(&buf)
	require.NoError(t, err)
	body := buf.String()
	assert.Contains(t, body, "ana@example.com")
	assert.Contains(t, body, "&lt;")
	assert.Contains(t, body, "17")
}

func TestEmailService_SendFailure(t *testing.T) {
	es := NewEmailService(&config.Config{FromEmail: "noreply@raceday.test"})
	es.dialer = &fakeDialer{err: errors.New("connection refused")}

	err := es.SendRegistrationConfirmation(&models.Registration{Email: "a@example.com"}, &models.Event{EventName: "x"})
	assert.ErrorContains(t, err, "connection refused")
}
