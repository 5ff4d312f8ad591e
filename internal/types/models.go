package types

import "time"

// AnalysisRecord is one stored observation produced by the video analysis path.
type AnalysisRecord struct {
	ID       string    `json:"id"`
	SentAt   time.Time `json:"sentAt"`
	Filename string    `json:"filename,omitempty"`
	Filesize string    `json:"filesize,omitempty"`
	Duration string    `json:"duration,omitempty"`
	Analysis Analysis  `json:"analysis"`
}

// Analysis holds the structured fields extracted from a recording. Every field
// may be empty.
type Analysis struct {
	Summary     string           `json:"summary,omitempty"`
	Actions     []string         `json:"actions,omitempty"`
	Objects     []string         `json:"objects,omitempty"`
	Locations   []string         `json:"locations,omitempty"`
	Tags        []string         `json:"tags,omitempty"`
	Context     *AnalysisContext `json:"context,omitempty"`
	Confidence  float64          `json:"confidence,omitempty"`
	RawResponse string           `json:"raw_response,omitempty"`
}

type AnalysisContext struct {
	Before string `json:"before,omitempty"`
	After  string `json:"after,omitempty"`
}

// SearchParameters is derived per query and consumed once by the matcher.
type SearchParameters struct {
	TargetAction   *string  `json:"target_action"`
	TargetObjects  []string `json:"target_objects"`
	TargetLocation *string  `json:"target_location"`
	TimeContext    string   `json:"time_context,omitempty"`
}

// Action returns the target action or "" when unset.
func (p SearchParameters) Action() string {
	if p.TargetAction == nil {
		return ""
	}
	return *p.TargetAction
}

// Location returns the target location or "" when unset.
func (p SearchParameters) Location() string {
	if p.TargetLocation == nil {
		return ""
	}
	return *p.TargetLocation
}

type ScoredMatch struct {
	Record        AnalysisRecord `json:"record"`
	Score         int            `json:"score"`
	MatchedFields []string       `json:"matchedFields"`
}

type TopicCategory string

const (
	TopicMemoryQuery TopicCategory = "memory_query"
	TopicLostObject  TopicCategory = "lost_object"
	TopicPastAction  TopicCategory = "past_action"
	TopicEventRecall TopicCategory = "event_recall"
	TopicOffTopic    TopicCategory = "off_topic"
	TopicUnknown     TopicCategory = "unknown"
)

// TranscriptionResult is the output of the transcription stage. FileRef names
// the remote upload the caller must release.
type TranscriptionResult struct {
	Transcription string        `json:"transcription"`
	IsRelevant    bool          `json:"is_relevant"`
	TopicCategory TopicCategory `json:"topic_category"`
	FileRef       string        `json:"-"`
}

// OffTopic reports whether the query should skip the search stages.
func (r TranscriptionResult) OffTopic() bool {
	return !r.IsRelevant || r.TopicCategory == TopicOffTopic
}

type DayPart string

const (
	Morning   DayPart = "morning"
	Afternoon DayPart = "afternoon"
	Evening   DayPart = "evening"
	Night     DayPart = "night"
)

type TimeContext struct {
	Date    string  `json:"date"`
	Time    string  `json:"time"`
	DayPart DayPart `json:"dayPart"`
}

type ResponseType string

const (
	ResponseFound    ResponseType = "found"
	ResponseNotFound ResponseType = "not_found"
	ResponseOffTopic ResponseType = "off_topic"
)

// QueryResult is the payload of the response event.
type QueryResult struct {
	Success      bool              `json:"success"`
	Duration     string            `json:"duration"`
	Timestamp    time.Time         `json:"timestamp"`
	UserQuery    string            `json:"userQuery"`
	SearchParams *SearchParameters `json:"searchParams,omitempty"`
	MatchCount   *int              `json:"matchCount,omitempty"`
	Response     AssistantResponse `json:"response"`
	Conversation Conversation      `json:"conversation"`
}

type AssistantResponse struct {
	Text  string       `json:"text"`
	Type  ResponseType `json:"type"`
	Audio []byte       `json:"audio"`
}

type Conversation struct {
	User      ConversationTurn `json:"user"`
	Assistant ConversationTurn `json:"assistant"`
}

type ConversationTurn struct {
	Text      string       `json:"text"`
	Type      ResponseType `json:"type,omitempty"`
	Timestamp time.Time    `json:"timestamp"`
}

// TranscriptionEvent is streamed as soon as the audio has been transcribed.
type TranscriptionEvent struct {
	Success       bool          `json:"success"`
	UserQuery     string        `json:"userQuery"`
	TopicCategory TopicCategory `json:"topicCategory"`
	IsRelevant    bool          `json:"isRelevant"`
	Timestamp     time.Time     `json:"timestamp"`
}

type ErrorEvent struct {
	Success   bool      `json:"success"`
	Error     string    `json:"error"`
	Timestamp time.Time `json:"timestamp"`
}
