package dto

type StartSessionRequest struct {
	AgentID string `json:"agentId"`
}

type UtteranceRequest struct {
	Text string `json:"text"`
}

type ContextUpdateRequest struct {
	Text string `json:"text"`
}

type VolumeRequest struct {
	Volume float64 `json:"volume"`
}

type MicRequest struct {
	Muted bool `json:"muted"`
}

type AutoMuteRequest struct {
	Enabled bool `json:"enabled"`
}

type SessionResponse struct {
	SessionID string         `json:"sessionId"`
	AgentID   string         `json:"agentId"`
	State     string         `json:"state"`
	Volume    float64        `json:"volume"`
	MicMuted  bool           `json:"micMuted"`
	AutoMute  bool           `json:"autoMute"`
	LastError *ErrorResponse `json:"lastError,omitempty"`
}

type ErrorResponse struct {
	Kind           string `json:"kind"`
	Message        string `json:"message"`
	OccurredDuring string `json:"occurredDuring"`
}

type AckResponse struct {
	OK bool `json:"ok"`
}
