package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"

	"controlling_dehumidifier/internal/logger"
	"controlling_dehumidifier/internal/models"
)

// Topics, relative to the client prefix.
const (
	TopicState        = "dehumidifier/state"
	TopicAvailability = "dehumidifier/availability"
	topicFieldRoot    = "dehumidifier/"

	PayloadOnline  = "online"
	PayloadOffline = "offline"
)

type topicPublisher interface {
	PublishWithQoS(topic string, qos byte, retained bool, payload interface{}) error
}

// Publisher implements service.StatePublisher on top of a Client.
type Publisher struct {
	client topicPublisher
	log    *logger.Logger
}

func NewPublisher(client topicPublisher, log *logger.Logger) *Publisher {
	if log == nil {
		log = logger.Nop()
	}
	return &Publisher{client: client, log: log}
}

// PublishState sends the retained JSON snapshot, then one retained
// message per field. Field failures are logged and joined.
func (p *Publisher) PublishState(ctx context.Context, snap models.DeviceSnapshot) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	payload, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	if err := p.client.PublishWithQoS(TopicState, 1, true, payload); err != nil {
		return err
	}

	var errs []error
	for _, f := range fieldPayloads(snap.DeviceState) {
		if err := p.client.PublishWithQoS(topicFieldRoot+f.field, 0, true, f.value); err != nil {
			p.log.Warnw("mqtt_field_publish_failed", "field", f.field, "err", err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// SetAvailability publishes the retained online/offline marker.
func (p *Publisher) SetAvailability(online bool) error {
	payload := PayloadOffline
	if online {
		payload = PayloadOnline
	}
	return p.client.PublishWithQoS(TopicAvailability, 1, true, payload)
}

type fieldPayload struct {
	field string
	value string
}

func fieldPayloads(st models.DeviceState) []fieldPayload {
	power := "OFF"
	if st.PowerOn {
		power = "ON"
	}
	return []fieldPayload{
		{models.FieldPowerOn, power},
		{models.FieldMode, st.Mode.String()},
		{models.FieldFanSpeed, st.FanSpeed.String()},
		{models.FieldHumiditySetpoint, strconv.Itoa(int(st.HumiditySetpoint))},
		{models.FieldCurrentHumidity, strconv.Itoa(int(st.CurrentHumidity))},
		{models.FieldErrorCode, strconv.Itoa(int(st.ErrorCode))},
	}
}
