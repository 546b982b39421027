package entity

const (
	DefaultLanguage = "en"
)

// NotificationMessage is the text recipients get with a transfer. Language is only
// metadata for the settings, it is not part of the serialized message.
type NotificationMessage struct {
	Body     string `json:"body"`
	Subject  string `json:"subject"`
	Language string `json:"-"`
}

type LanguageProbability struct {
	Language    string
	Probability float64
}
