package domain

// SentimentLabel values produced by the external classifier.
const (
	SentimentPositive = "positive"
	SentimentNeutral  = "neutral"
	SentimentNegative = "negative"
)

// SentimentResult is the classifier output for one batch of texts.
// Labels is parallel to the input text list.
type SentimentResult struct {
	Labels []string       `json:"labels"`
	Counts map[string]int `json:"counts"`
}

// Topic is one cross-comment topic cluster.
type Topic struct {
	TopicID  int      `json:"topicId"`
	Title    string   `json:"title"`
	Keywords []string `json:"keywords"`
	Size     int      `json:"size"`
	Example  string   `json:"example"`
}

// AnalyzedResult is an IngestResult with the analysis stage output
// attached. This is the record the persistence layer stores.
type AnalyzedResult struct {
	IngestResult
	Sentiment map[string]int `json:"sentiment"`
	Topics    []Topic        `json:"topics"`
}
