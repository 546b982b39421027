package notification

import (
	"log/slog"
	"math"
	"strings"
	"unicode/utf8"

	"github.com/jgivc/csclient/internal/entity"
)

const (
	serviceName = "notification"

	minDetectionLength = 10
	minProbability     = 0.8
)

// LanguageDetector ranks candidate languages for a text, most probable first.
type LanguageDetector interface {
	Detect(text string) ([]entity.LanguageProbability, error)
}

type notificationService struct {
	detector  LanguageDetector
	supported []string
	log       *slog.Logger
}

// NewNotificationService takes the server locales (e.g. "de-DE"). With no locales
// every detected language is accepted.
func NewNotificationService(detector LanguageDetector, supported []string, log *slog.Logger) *notificationService {
	return &notificationService{
		detector:  detector,
		supported: primaryTags(supported),
		log:       log.With(slog.String("service", serviceName)),
	}
}

// NewMessage uses language as given, and detects it from the text otherwise.
func (n *notificationService) NewMessage(body, subject, language string) *entity.NotificationMessage {
	msg := &entity.NotificationMessage{
		Body:     body,
		Subject:  subject,
		Language: language,
	}

	if msg.Language == "" {
		msg.Language = entity.DefaultLanguage
		if body != "" || subject != "" {
			msg.Language = n.DetectLanguage(body, subject)
		}
	}

	return msg
}

// DetectLanguage never fails, every problem ends in the default language.
func (n *notificationService) DetectLanguage(body, subject string) string {
	text := body + " " + subject
	if utf8.RuneCountInString(text) < minDetectionLength {
		n.log.Debug("Text too short for language detection", slog.String("default", entity.DefaultLanguage))

		return entity.DefaultLanguage
	}

	if n.detector == nil {
		return entity.DefaultLanguage
	}

	ranked, err := n.detector.Detect(text)
	if err != nil {
		n.log.Debug("Cannot detect language", slog.Any("error", err))

		return entity.DefaultLanguage
	}

	if len(ranked) == 0 {
		return entity.DefaultLanguage
	}

	top := ranked[0]
	lang := strings.ToLower(top.Language)

	if math.IsNaN(top.Probability) || top.Probability < 0 || top.Probability > 1 {
		n.log.Debug("Malformed language probability", slog.String("language", lang), slog.Float64("probability", top.Probability))

		return entity.DefaultLanguage
	}

	if top.Probability <= minProbability {
		n.log.Debug("Language probability too low", slog.String("language", lang), slog.Float64("probability", top.Probability))

		return entity.DefaultLanguage
	}

	if lang == "" || !n.isSupported(lang) {
		n.log.Debug("Language is not supported", slog.String("language", lang))

		return entity.DefaultLanguage
	}

	n.log.Info("Detected recipient language", slog.String("language", lang), slog.Float64("probability", top.Probability))

	return lang
}

func (n *notificationService) isSupported(lang string) bool {
	if len(n.supported) == 0 {
		return true
	}

	for _, tag := range n.supported {
		if tag == lang {
			return true
		}
	}

	return false
}

func primaryTags(locales []string) []string {
	tags := make([]string, 0, len(locales))
	for _, locale := range locales {
		tag, _, _ := strings.Cut(strings.ToLower(strings.TrimSpace(locale)), "-")
		if tag != "" {
			tags = append(tags, tag)
		}
	}

	return tags
}
