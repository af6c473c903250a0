package scheduler

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const TaskCallbackReminder = "callbacks.reminder"

const TaskLeadFollowUp = "leads.followup"

type CallbackReminderPayload struct {
	CallbackID  string `json:"callbackId"`
	ScheduledAt int64  `json:"scheduledAt"`
}

type LeadFollowUpPayload struct {
	Phone string `json:"phone"`
}

func NewCallbackReminderTask(payload CallbackReminderPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskCallbackReminder, data), nil
}

func ParseCallbackReminderPayload(task *asynq.Task) (CallbackReminderPayload, error) {
	var payload CallbackReminderPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return CallbackReminderPayload{}, err
	}
	return payload, nil
}

func NewLeadFollowUpTask(payload LeadFollowUpPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskLeadFollowUp, data), nil
}

func ParseLeadFollowUpPayload(task *asynq.Task) (LeadFollowUpPayload, error) {
	var payload LeadFollowUpPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return LeadFollowUpPayload{}, err
	}
	return payload, nil
}
