package email

const (
	subjectLeadHandoffFmt      = "HOT lead ready for handoff: %s"
	subjectCallbackReminderFmt = "Callback due: %s"
)
