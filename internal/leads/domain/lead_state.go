package domain

// terminalStatuses are lead statuses where no automated outreach should occur.
var terminalStatuses = map[Status]bool{
	StatusConverted: true,
	StatusLost:      true,
}

// IsTerminal reports whether the lead is closed. Follow-ups and reminders
// must not be sent to a terminal lead.
func (s Status) IsTerminal() bool {
	return terminalStatuses[s]
}

// IsTerminal reports whether the callback no longer needs a reminder.
func (s CallbackStatus) IsTerminal() bool {
	return s == CallbackCompleted || s == CallbackCancelled
}
