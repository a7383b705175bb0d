package assistant

import "strings"

var fallbacks = map[string]string{
	"en": "I can't reach the assistant right now. Take a slow breath and try again in a moment.",
	"pt": "Não consegui falar com o assistente agora. Respire fundo e tente novamente em instantes.",
	"es": "No puedo contactar al asistente ahora. Respira hondo e inténtalo de nuevo en un momento.",
}

// Fallback returns the canned message shown when the model cannot answer.
// locale is a BCP 47 tag such as "pt-BR"; unknown languages get English.
func Fallback(locale string) string {
	lang := strings.ToLower(locale)
	if i := strings.IndexAny(lang, "-_"); i >= 0 {
		lang = lang[:i]
	}
	if msg, ok := fallbacks[lang]; ok {
		return msg
	}
	return fallbacks["en"]
}
