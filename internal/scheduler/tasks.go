package scheduler

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const TaskMailboxFetch = "mailbox.fetch"

const TaskSequenceSweep = "sequences.sweep"

const TaskDailySummary = "engagement.daily_summary"

type MailboxFetchPayload struct {
	Limit int `json:"limit"`
}

type SequenceSweepPayload struct {
	RequestedAt string `json:"requestedAt"`
}

type DailySummaryPayload struct {
	Date string `json:"date"`
}

func NewMailboxFetchTask(payload MailboxFetchPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskMailboxFetch, data), nil
}

func ParseMailboxFetchPayload(task *asynq.Task) (MailboxFetchPayload, error) {
	var payload MailboxFetchPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return MailboxFetchPayload{}, err
	}
	return payload, nil
}

func NewSequenceSweepTask(payload SequenceSweepPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskSequenceSweep, data), nil
}

func ParseSequenceSweepPayload(task *asynq.Task) (SequenceSweepPayload, error) {
	var payload SequenceSweepPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return SequenceSweepPayload{}, err
	}
	return payload, nil
}

func NewDailySummaryTask(payload DailySummaryPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskDailySummary, data), nil
}

func ParseDailySummaryPayload(task *asynq.Task) (DailySummaryPayload, error) {
	var payload DailySummaryPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return DailySummaryPayload{}, err
	}
	return payload, nil
}
