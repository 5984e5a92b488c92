package orchestrator

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"stargen/internal/domain"
)

type failureReason string

const (
	reasonSubmission failureReason = "submission"
	reasonProvider   failureReason = "provider"
	reasonTimeout    failureReason = "timeout"
	reasonInternal   failureReason = "internal"
)

var supportedLocales = language.NewMatcher([]language.Tag{
	language.English, // first entry is the fallback
	language.Russian,
	language.Indonesian,
})

var failureMessages = map[string]map[failureReason]string{
	"en": {
		reasonSubmission: "Sorry, your %KIND% request was rejected. Please adjust the prompt and try again.",
		reasonProvider:   "Sorry, %KIND% generation failed. You have not been charged.",
		reasonTimeout:    "Sorry, %KIND% generation took too long and was stopped. You have not been charged.",
		reasonInternal:   "Something went wrong while processing your %KIND% request. You have not been charged.",
	},
	"ru": {
		reasonSubmission: "К сожалению, запрос на %KIND% был отклонён. Измените описание и попробуйте ещё раз.",
		reasonProvider:   "К сожалению, генерация %KIND% не удалась. Средства не списаны.",
		reasonTimeout:    "Генерация %KIND% заняла слишком много времени и была остановлена. Средства не списаны.",
		reasonInternal:   "Произошла ошибка при обработке запроса на %KIND%. Средства не списаны.",
	},
	"id": {
		reasonSubmission: "Maaf, permintaan %KIND% Anda ditolak. Ubah prompt dan coba lagi.",
		reasonProvider:   "Maaf, pembuatan %KIND% gagal. Saldo Anda tidak dipotong.",
		reasonTimeout:    "Pembuatan %KIND% terlalu lama dan dihentikan. Saldo Anda tidak dipotong.",
		reasonInternal:   "Terjadi kesalahan saat memproses permintaan %KIND% Anda. Saldo Anda tidak dipotong.",
	},
}

var kindLabels = map[string]map[domain.JobKind]string{
	"en": {domain.JobKindVideo: "video", domain.JobKindMusic: "music"},
	"ru": {domain.JobKindVideo: "видео", domain.JobKindMusic: "музыки"},
	"id": {domain.JobKindVideo: "video", domain.JobKindMusic: "musik"},
}

// NormalizeLocale maps an arbitrary locale string (Telegram
// language_code, Accept-Language entry) onto a supported locale.
func NormalizeLocale(locale string) string {
	if strings.TrimSpace(locale) == "" {
		return "en"
	}
	tag, _ := language.MatchStrings(supportedLocales, locale)
	base, _ := tag.Base()
	switch base.String() {
	case "ru":
		return "ru"
	case "id":
		return "id"
	default:
		return "en"
	}
}

func failureMessage(locale string, kind domain.JobKind, reason failureReason) string {
	loc := NormalizeLocale(locale)
	msg := failureMessages[loc][reason]
	if msg == "" {
		msg = failureMessages["en"][reason]
	}
	return strings.ReplaceAll(msg, "%KIND%", kindLabels[loc][kind])
}

// buildCaption produces the delivery caption: the kind label followed by
// a trimmed excerpt of the prompt.
func buildCaption(kind domain.JobKind, prompt string) string {
	label := cases.Title(language.English).String(string(kind))
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return label
	}
	const maxCaption = 200
	if runes := []rune(prompt); len(runes) > maxCaption {
		prompt = string(runes[:maxCaption]) + "…"
	}
	return label + ": " + prompt
}
