package pipeline

import "github.com/arogyahq/arogya/types"

// disclaimers holds the standard medical disclaimer per supported language,
// each in the language's native script.
var disclaimers = map[types.LanguageCode]string{
	types.LangEnglish:   "This is general health information, not medical advice. Please consult a doctor for diagnosis and treatment.",
	types.LangHindi:     "यह सामान्य स्वास्थ्य जानकारी है, चिकित्सीय सलाह नहीं। निदान और उपचार के लिए कृपया डॉक्टर से परामर्श करें।",
	types.LangTamil:     "இது பொதுவான சுகாதாரத் தகவல் மட்டுமே, மருத்துவ ஆலோசனை அல்ல. நோயறிதலுக்கும் சிகிச்சைக்கும் மருத்துவரை அணுகவும்.",
	types.LangTelugu:    "ఇది సాధారణ ఆరోగ్య సమాచారం మాత్రమే, వైద్య సలహా కాదు. నిర్ధారణ మరియు చికిత్స కోసం దయచేసి వైద్యుడిని సంప్రదించండి.",
	types.LangKannada:   "ಇದು ಸಾಮಾನ್ಯ ಆರೋಗ್ಯ ಮಾಹಿತಿ ಮಾತ್ರ, ವೈದ್ಯಕೀಯ ಸಲಹೆ ಅಲ್ಲ. ರೋಗನಿರ್ಣಯ ಮತ್ತು ಚಿಕಿತ್ಸೆಗೆ ದಯವಿಟ್ಟು ವೈದ್ಯರನ್ನು ಸಂಪರ್ಕಿಸಿ.",
	types.LangMalayalam: "ഇത് പൊതുവായ ആരോഗ്യ വിവരം മാത്രമാണ്, വൈദ്യോപദേശമല്ല. രോഗനിർണയത്തിനും ചികിത്സയ്ക്കും ദയവായി ഒരു ഡോക്ടറെ സമീപിക്കുക.",
}

// Disclaimer returns the standard disclaimer for lang, defaulting to English
// for unknown codes.
func Disclaimer(lang types.LanguageCode) string {
	if d, ok := disclaimers[lang]; ok {
		return d
	}
	return disclaimers[types.LangEnglish]
}

// ApplyDisclaimer appends the localized disclaimer unless the request hit a
// red flag, where emergency guidance replaces boilerplate.
func ApplyDisclaimer(answer string, lang types.LanguageCode, redFlag bool) string {
	if redFlag || answer == "" {
		return answer
	}
	return answer + "\n\n" + Disclaimer(lang)
}
