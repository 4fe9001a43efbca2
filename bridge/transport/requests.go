package transport

// TranslateRequest is the body of POST /api/translate
type TranslateRequest struct {
	// Text: required, the text to translate
	Text string `json:"text" binding:"required"`
	// TargetLanguage: optional language code, defaults to "es"
	TargetLanguage string `json:"targetLanguage,omitempty" binding:"omitempty,langcode"`
}

type TranslateResponse struct {
	Translated string `json:"translated"`
}
