package domain

// ExplainRequest is the phrase a learner asked about and its context.
type ExplainRequest struct {
	Text     string `json:"text"`
	Sentence string `json:"sentence"`
}

// Explanation is the model's answer for an ExplainRequest.
type Explanation struct {
	Translate         string          `json:"translate"`
	IPA               string          `json:"IPA"`
	GrammarAnalysis   GrammarAnalysis `json:"grammarAnalysis"`
	KeyWords          []string        `json:"keyWords"`
	ExpandWords       []string        `json:"expandWords"`
	DurationInSeconds float32         `json:"durationInSeconds,omitempty"`
}

type GrammarAnalysis struct {
	Tense     Tense     `json:"tense"`
	Structure Structure `json:"structure"`
}

type Tense struct {
	Type       string `json:"type"`
	Identifier string `json:"identifier"`
}

type Structure struct {
	Type      string `json:"type"`
	Structure string `json:"structure"`
	For       string `json:"for"`
}

// ExplainLog records one served explanation. UserID is the internal id when
// the caller was resolved and the subject id otherwise.
type ExplainLog struct {
	ID        string         `json:"id"`
	UserID    string         `json:"userId"`
	SubjectID string         `json:"subjectId"`
	Request   ExplainRequest `json:"request"`
	Response  Explanation    `json:"response"`
	CreatedAt int64          `json:"createdAt"`
	// GetCount is how many times the log was handed out for review.
	GetCount int `json:"getCount"`
}

const (
	GetExplainLog      RequestType = "GET_EXPLAIN_LOG"
	GetExplainLogBatch RequestType = "GET_EXPLAIN_LOG_BATCH"
)

// Pagination selects a page of explain logs. Next is the continuation token
// returned with the previous page; empty means the first page.
type Pagination struct {
	Limit int    `json:"limit"`
	Next  string `json:"next,omitempty"`
}

// GetExplainLogRequest asks the collect function for a user's explain logs.
type GetExplainLogRequest struct {
	Type    RequestType          `json:"type"`
	Payload GetExplainLogPayload `json:"payload"`
}

type GetExplainLogPayload struct {
	UserID     string      `json:"userId"`
	Pagination *Pagination `json:"paginationInfo,omitempty"`
}

// ExplainLogBatch is one page of a user's explain logs. Pagination.Next is
// empty on the last page.
type ExplainLogBatch struct {
	Logs       []ExplainLog `json:"explainsLog"`
	Pagination Pagination   `json:"paginationInfo"`
}
