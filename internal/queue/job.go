package queue

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

const JobNameSendMessage = "send-message"

// Job is the broker envelope. Data stays raw until a handler has checked Name.
type Job struct {
	// ID travels as the AMQP message id, not in the body.
	ID   string          `json:"-"`
	Name string          `json:"name"`
	Data json.RawMessage `json:"data"`

	// Attempt is read from HeaderDeliveryAttempt on consume.
	Attempt int `json:"-"`
}

type SendMessageData struct {
	MessageID string `json:"messageId"`
}

func NewSendMessageJob(messageID string) (Job, error) {
	data, err := json.Marshal(SendMessageData{MessageID: messageID})
	if err != nil {
		return Job{}, fmt.Errorf("failed to marshal job data: %w", err)
	}

	return Job{
		ID:      uuid.NewString(),
		Name:    JobNameSendMessage,
		Data:    data,
		Attempt: 1,
	}, nil
}

// DecodeSendMessage parses the data of a send-message job.
func DecodeSendMessage(job Job) (SendMessageData, error) {
	var data SendMessageData
	if len(job.Data) == 0 {
		return data, errors.New("job data is empty")
	}
	if err := json.Unmarshal(job.Data, &data); err != nil {
		return data, fmt.Errorf("invalid job data: %w", err)
	}
	if _, err := uuid.Parse(data.MessageID); err != nil {
		return data, fmt.Errorf("invalid messageId %q: %w", data.MessageID, err)
	}
	return data, nil
}

func decodeJob(body []byte) (Job, error) {
	var job Job
	if err := json.Unmarshal(body, &job); err != nil {
		return Job{}, err
	}
	return job, nil
}
