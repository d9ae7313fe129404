package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRedactEmail(t *testing.T) {
	assert.Equal(t, "jo***@example.com", RedactEmail("john.doe@example.com"))
	assert.Equal(t, "***@example.com", RedactEmail("ab@example.com"))
	assert.Equal(t, "***@***", RedactEmail("not-an-email"))
	assert.Equal(t, "***@***", RedactEmail("a@b@c"))
}

func TestRedactPIIValueByKey(t *testing.T) {
	assert.Equal(t, "ja***@example.com", redactPIIValue("email", "jane.doe@example.com"))
	assert.Equal(t, "ja***@example.com", redactPIIValue("recipient", "jane.doe@example.com"))
	assert.Equal(t, "ja***@example.com", redactPIIValue("rcpt_to", "jane.doe@example.com"))
}

func TestRedactPIIValueEmbeddedAddress(t *testing.T) {
	got := redactPIIValue("reason", "550 mailbox jane.doe@example.com unavailable")
	assert.Equal(t, "550 mailbox ja***@example.com unavailable", got)
}

func TestRedactPIIValuePlainField(t *testing.T) {
	assert.Equal(t, "acme", redactPIIValue("tenant", "acme"))
}
