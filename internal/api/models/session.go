package models

// Request bodies of the pairing endpoints. Field names match what devices
// send.
type (
	CheckDeviceRequest struct {
		DeviceToken string `json:"deviceToken"`
	}

	RegisterRequest struct {
		SessionCode string `json:"sessionCode"`
		DeviceToken string `json:"deviceToken"`
	}

	RemoveDeviceRequest struct {
		DeviceToken string `json:"deviceToken"`
	}

	TriggerAlertRequest struct {
		SessionCode string `json:"sessionCode"`
		SenderToken string `json:"senderToken"`
	}
)

// CheckDeviceResponse reports the sessions a device belongs to, most
// recently joined first.
type CheckDeviceResponse struct {
	Connected    bool     `json:"connected"`
	SessionCodes []string `json:"sessionCodes"`
}

// Ack acknowledges a pairing request. Devices treat it as opaque.
type Ack struct {
	Message     string `json:"message"`
	SessionCode string `json:"sessionCode,omitempty"`
}

// RemoveDeviceResponse acknowledges a device removal.
type RemoveDeviceResponse struct {
	Ack
	RemovedSessions int `json:"removedSessions"`
}

// TriggerAlertResponse acknowledges an alert fan-out.
type TriggerAlertResponse struct {
	Ack
	Recipients int `json:"recipients"`
	Delivered  int `json:"delivered"`
	Failed     int `json:"failed"`
}
