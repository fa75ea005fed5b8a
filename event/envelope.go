package event

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

const SpecVersion = "1.0"

// Event types published and consumed by this service. Consumers route on
// these values and ignore anything they do not recognise.
const (
	TypePaymentRequested    = "payment.requested.v1"
	TypePaymentLinkCreated  = "payment.link.created.v1"
	TypePaymentConfirmed    = "payment.confirmed.v1"
	TypeParticipantSelected = "selection.participant.selected.v1"
	TypeEmailSent           = "notification.email.sent.v1"
	TypeEmailFailed         = "notification.email.failed.v1"
)

var ErrEmptyPayload = errors.New("event: envelope payload is empty")

// Envelope is the versioned wire format wrapping a domain event payload.
// It is constructed once at enqueue time and never mutated afterwards.
type Envelope struct {
	Id          string          `json:"id"`
	Type        string          `json:"type"`
	Source      string          `json:"source"`
	Time        time.Time       `json:"time"`
	TraceId     string          `json:"traceId"`
	SpecVersion string          `json:"specversion"`
	Data        json.RawMessage `json:"data"`
}

// New builds an envelope for the given payload. The envelope id is always
// generated here; a trace id is generated when the caller supplies none.
func New(eventType, source string, data interface{}, traceId string) (Envelope, error) {
	payload, err := json.Marshal(data)
	if err != nil {
		return Envelope{}, errors.Wrapf(err, "event: unable to serialize payload for %s", eventType)
	}

	if traceId == "" {
		traceId = uuid.New().String()
	}

	return Envelope{
		Id:          uuid.New().String(),
		Type:        eventType,
		Source:      source,
		Time:        time.Now().In(time.UTC),
		TraceId:     traceId,
		SpecVersion: SpecVersion,
		Data:        payload,
	}, nil
}

// Unmarshal decodes a serialized envelope. An empty or syntactically invalid
// body is reported as an error so consumers can drop it instead of retrying.
func Unmarshal(body []byte) (Envelope, error) {
	if len(body) == 0 {
		return Envelope{}, ErrEmptyPayload
	}

	var e Envelope
	if err := json.Unmarshal(body, &e); err != nil {
		return Envelope{}, errors.Wrap(err, "event: malformed envelope")
	}

	if e.Type == "" || len(e.Data) == 0 {
		return Envelope{}, ErrEmptyPayload
	}

	return e, nil
}

func (e Envelope) Marshal() ([]byte, error) {
	b, err := json.Marshal(e)
	if err != nil {
		return nil, errors.Wrapf(err, "event: unable to serialize envelope %s", e.Id)
	}

	return b, nil
}

// DecodeData unmarshals the envelope payload into the given typed value.
func (e Envelope) DecodeData(v interface{}) error {
	if err := json.Unmarshal(e.Data, v); err != nil {
		return errors.Wrapf(err, "event: unable to decode %s payload", e.Type)
	}

	return nil
}
