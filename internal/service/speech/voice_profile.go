package speech

import (
	"strings"

	"github.com/zhouzirui/elera-assistant/console/internal/config"
	speechmodel "github.com/zhouzirui/elera-assistant/console/internal/model/speech"
)

// Catalog 语言、音色与欢迎语的合并视图：内置目录叠加配置文件中的覆盖项。
type Catalog struct {
	Languages      []speechmodel.Language       `json:"languages"`
	Voices         []speechmodel.Voice          `json:"voices"`
	LanguageVoices map[string]speechmodel.Voice `json:"language_voices"`

	custom   string
	welcomes map[string]string
}

// NewCatalog 根据语音配置构建目录。控制台面向医疗场景，英文欢迎语使用医疗版本。
func NewCatalog(cfg config.VoiceConfig) *Catalog {
	welcomes := make(map[string]string, len(speechmodel.WelcomeMessages)+len(cfg.WelcomeMessages))
	for lang, msg := range speechmodel.WelcomeMessages {
		welcomes[lang] = msg
	}
	welcomes[speechmodel.DefaultLanguage] = speechmodel.HealthcareWelcomeMessage
	for lang, msg := range cfg.WelcomeMessages {
		if msg = strings.TrimSpace(msg); msg != "" {
			welcomes[lang] = msg
		}
	}

	voices := append([]speechmodel.Voice(nil), speechmodel.PopularVoices...)
	seen := make(map[string]struct{}, len(voices))
	for _, v := range voices {
		seen[v.ID] = struct{}{}
	}
	for _, opt := range cfg.Voices {
		id := strings.TrimSpace(opt.ID)
		if id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		voices = append(voices, speechmodel.Voice{ID: id, Name: opt.Name, Description: opt.Description})
	}

	byLanguage := make(map[string]speechmodel.Voice, len(speechmodel.LanguageVoices))
	for lang, v := range speechmodel.LanguageVoices {
		byLanguage[lang] = v
	}

	return &Catalog{
		Languages:      append([]speechmodel.Language(nil), speechmodel.Languages...),
		Voices:         voices,
		LanguageVoices: byLanguage,
		custom:         strings.TrimSpace(cfg.WelcomeMessage),
		welcomes:       welcomes,
	}
}

// Welcome 欢迎语优先级：自定义 > 语言 > 主语言 > 英文。
func (c *Catalog) Welcome(language string) string {
	if c.custom != "" {
		return c.custom
	}
	if msg, ok := c.welcomes[language]; ok {
		return msg
	}
	if msg, ok := c.welcomes[speechmodel.BaseLanguage(language)]; ok {
		return msg
	}
	return c.welcomes[speechmodel.DefaultLanguage]
}

// WelcomeMessages 返回各语言欢迎语的副本。
func (c *Catalog) WelcomeMessages() map[string]string {
	out := make(map[string]string, len(c.welcomes))
	for k, v := range c.welcomes {
		out[k] = v
	}
	return out
}

// DefaultVoice 返回语言对应的推荐音色，未知语言按主语言查找。
func (c *Catalog) DefaultVoice(language string) (speechmodel.Voice, bool) {
	if v, ok := c.LanguageVoices[language]; ok {
		return v, true
	}
	v, ok := c.LanguageVoices[speechmodel.BaseLanguage(language)]
	return v, ok
}
