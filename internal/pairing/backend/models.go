package backend

// Endpoint paths on the pairing backend.
const (
	EndpointCheckDevice  = "/check-device"
	EndpointRegister     = "/register"
	EndpointRemoveDevice = "/remove-device"
	EndpointTriggerAlert = "/trigger-alert"
)

// CheckDeviceRequest is the body of POST /check-device.
type CheckDeviceRequest struct {
	DeviceToken string `json:"deviceToken"`
}

// CheckDeviceResponse reports whether a device is paired and with which
// sessions. Only the first code is meaningful to the client.
type CheckDeviceResponse struct {
	Connected    bool     `json:"connected"`
	SessionCodes []string `json:"sessionCodes"`
}

// FirstSessionCode returns sessionCodes[0], or "" when the list is empty.
func (r *CheckDeviceResponse) FirstSessionCode() string {
	if len(r.SessionCodes) == 0 {
		return ""
	}
	return r.SessionCodes[0]
}

// RegisterRequest is the body of POST /register.
type RegisterRequest struct {
	SessionCode string `json:"sessionCode"`
	DeviceToken string `json:"deviceToken"`
}

// RemoveDeviceRequest is the body of POST /remove-device.
type RemoveDeviceRequest struct {
	DeviceToken string `json:"deviceToken"`
}

// TriggerAlertRequest is the body of POST /trigger-alert.
type TriggerAlertRequest struct {
	SessionCode string `json:"sessionCode"`
	SenderToken string `json:"senderToken"`
}
