package email

import (
	"html"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderLeadHandoff(t *testing.T) {
	subject, body, err := RenderLeadHandoff(LeadHandoff{
		Name:   "Ana <script>",
		Phone:  "+5491123456789",
		Score:  85,
		Action: "immediate_handoff",
		CallID: "call-1",
	})
	require.NoError(t, err)

	assert.Equal(t, "HOT lead ready for handoff: Ana <script> (+5491123456789)", subject)
	assert.Contains(t, body, "<strong>85</strong>")
	assert.Contains(t, body, "tel:&#43;5491123456789")
	assert.Contains(t, html.UnescapeString(body), "+5491123456789")
	assert.Contains(t, body, "call-1")
	assert.Contains(t, body, "Ana &lt;script&gt;")
	assert.NotContains(t, body, "<script>")
}

func TestRenderCallbackReminderWithoutName(t *testing.T) {
	subject, body, err := RenderCallbackReminder(CallbackReminder{
		Phone:         "+5491123456789",
		PreferredTime: "tomorrow 10am",
	})
	require.NoError(t, err)

	assert.Equal(t, "Callback due: +5491123456789", subject)
	assert.Contains(t, body, "tomorrow 10am")
	assert.NotContains(t, body, "Scheduled")
	assert.NotContains(t, body, "Reason")
}

func TestNilSenderIsNotConfigured(t *testing.T) {
	var s *SMTPSender
	_, err := s.Send(t.Context(), "desk@example.com", "subject", "<p>x</p>")
	assert.ErrorIs(t, err, ErrNotConfigured)
}
