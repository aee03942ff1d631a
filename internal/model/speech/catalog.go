package speech

import (
	"strings"

	"golang.org/x/text/language"
)

// Language 可选的对话语言
type Language struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

// Voice 可选的合成音色
type Voice struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

const (
	DefaultVoiceID  = "CJsvtXkl6ObQJrCz44le"
	FallbackVoiceID = "jsCqWAovK2LkecY7zXl4"
	DefaultLanguage = "en"
)

// Languages 按界面展示顺序列出支持的语言
var Languages = []Language{
	{Code: "en", Name: "English"},
	{Code: "en-pidgin", Name: "Nigerian Pidgin"},
	{Code: "yo", Name: "Yoruba"},
	{Code: "ig", Name: "Igbo"},
	{Code: "ha", Name: "Hausa"},
	{Code: "fr", Name: "French"},
	{Code: "es", Name: "Spanish"},
}

// LanguageVoices 每种语言的推荐音色
var LanguageVoices = map[string]Voice{
	"en":        {ID: "EXAVITQu4vr4xnSDxMaL", Name: "Rachel", Description: "Clear English voice"},
	"en-pidgin": {ID: FallbackVoiceID, Name: "African", Description: "Perfect for Nigerian Pidgin"},
	"yo":        {ID: FallbackVoiceID, Name: "African", Description: "Yoruba approximation"},
	"ig":        {ID: FallbackVoiceID, Name: "African", Description: "Igbo approximation"},
	"ha":        {ID: FallbackVoiceID, Name: "African", Description: "Hausa approximation"},
	"fr":        {ID: "t0jbNlBVZ17f02VDIeMI", Name: "Rémi", Description: "French voice"},
	"es":        {ID: "ErXwobaYiN019PkySvjV", Name: "Antoni", Description: "Spanish voice"},
}

// PopularVoices 音色选择列表
var PopularVoices = []Voice{
	{ID: DefaultVoiceID, Name: "Tapfuma Makina", Description: "Nigerian accent (Premium)"},
	{ID: FallbackVoiceID, Name: "African", Description: "Warm Nigerian accent"},
	{ID: "EXAVITQu4vr4xnSDxMaL", Name: "Rachel", Description: "Clear English female voice"},
	{ID: "TxGEqnHWrfWFTfGW9XjX", Name: "Josh", Description: "Natural male voice"},
	{ID: "ThT5KcBeYPX3keUQqHPh", Name: "Bella", Description: "Warm female voice"},
	{ID: "t0jbNlBVZ17f02VDIeMI", Name: "Rémi", Description: "French male voice"},
	{ID: "ErXwobaYiN019PkySvjV", Name: "Antoni", Description: "Spanish male voice"},
	{ID: "c4YYXKgQZYTxcBUj9baM", Name: "Gigi", Description: "American female voice"},
	{ID: "SOYHLrjzK2X1ezoPC6cr", Name: "Thomas", Description: "British male voice"},
}

// WelcomeMessages 各语言的默认欢迎语
var WelcomeMessages = map[string]string{
	"en":        "Hello, I'm your EleraAI healthcare assistant. How can I help you today?",
	"en-pidgin": "Hello! I be your EleraAI healthcare assistant. How I fit help you today?",
	"yo":        "Bawo ni, Emi ni iranlowo ilera EleraAI re. Bawo ni mo se le ran o lowo loni?",
	"ig":        "Kedu, abụ m onye nkwado ahụike EleraAI gị. Kedu ka m ga-esi nyere gị aka taa?",
	"ha":        "Sannu, ni ne mai'aikacin kula da lafiya na EleraAI. Yaya zan iya taimake ka yau?",
	"fr":        "Bonjour, je suis votre assistant de santé EleraAI. Comment puis-je vous aider aujourd'hui?",
	"es":        "Hola, soy su asistente de salud EleraAI. ¿Cómo puedo ayudarle hoy?",
}

// HealthcareWelcomeMessage 控制台语音会话使用的欢迎语
const HealthcareWelcomeMessage = "Welcome to EleraAI Healthcare Assistant. I'm here to help with medical information, symptom assessment, and healthcare advice. Please note I'm an AI assistant and not a replacement for professional medical care. How can I assist with your health concerns today?"

// IsSupportedLanguage 判断语言代码是否可用：目录内的代码，或合法的 BCP 47 标签。
func IsSupportedLanguage(code string) bool {
	code = strings.TrimSpace(code)
	if code == "" {
		return false
	}
	for _, l := range Languages {
		if l.Code == code {
			return true
		}
	}
	_, err := language.Parse(code)
	return err == nil
}

// BaseLanguage 返回语言代码的主语言部分，如 "en-pidgin" 返回 "en"。
func BaseLanguage(code string) string {
	tag, err := language.Parse(code)
	if err != nil {
		if i := strings.IndexByte(code, '-'); i > 0 {
			return strings.ToLower(code[:i])
		}
		return strings.ToLower(code)
	}
	base, _ := tag.Base()
	return base.String()
}
