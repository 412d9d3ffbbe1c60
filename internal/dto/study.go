package dto

type AnalyzePageRequest struct {
	URL string `json:"url,omitempty"`
}

type SectionResponse struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	Summary string `json:"summary"`
}

type AnalysisResponse struct {
	URL       string            `json:"url"`
	Summary   string            `json:"summary"`
	Topics    []string          `json:"topics"`
	Sections  []SectionResponse `json:"sections"`
	Truncated bool              `json:"truncated"`
}

type TurnResponse struct {
	Role string `json:"role"`
	Text string `json:"text"`
}

type QAResponse struct {
	Question string `json:"q"`
	Answer   string `json:"a"`
}

type QuizResponse struct {
	Question      string `json:"question"`
	UserAnswer    string `json:"userAnswer"`
	CorrectAnswer string `json:"correctAnswer"`
	Explanation   string `json:"explanation"`
}

type NotesResponse struct {
	URL       string         `json:"url"`
	Summary   string         `json:"summary"`
	Questions []string       `json:"questions"`
	Turns     []TurnResponse `json:"turns"`
	QA        []QAResponse   `json:"qa"`
	Quizzes   []QuizResponse `json:"quizzes"`
	UpdatedAt string         `json:"updatedAt"`
}

type SettingsResponse struct {
	SessionID       string  `json:"sessionId"`
	AgentID         string  `json:"agentId"`
	BackendURL      string  `json:"backendUrl"`
	AutoMuteEnabled bool    `json:"autoMuteEnabled"`
	Volume          float64 `json:"volume"`
}

type UpdateSettingsRequest struct {
	AgentID         *string  `json:"agentId,omitempty"`
	BackendURL      *string  `json:"backendUrl,omitempty"`
	AutoMuteEnabled *bool    `json:"autoMuteEnabled,omitempty"`
	Volume          *float64 `json:"volume,omitempty"`
}

type ModuleResolution struct {
	Requested string `json:"requested"`
	Resolved  string `json:"resolved"`
	Ephemeral bool   `json:"ephemeral"`
}

type HealthResponse struct {
	OK bool `json:"ok"`
}
