package speech

import "testing"

func TestEveryLanguageHasVoiceAndWelcome(t *testing.T) {
	for _, l := range Languages {
		if _, ok := LanguageVoices[l.Code]; !ok {
			t.Errorf("language %s has no default voice", l.Code)
		}
		if WelcomeMessages[l.Code] == "" {
			t.Errorf("language %s has no welcome message", l.Code)
		}
	}
}

func TestIsSupportedLanguage(t *testing.T) {
	cases := map[string]bool{
		"en":        true,
		"en-pidgin": true,
		"yo":        true,
		"de":        true,
		"":          false,
		"  ":        false,
		"not valid": false,
	}
	for code, want := range cases {
		if got := IsSupportedLanguage(code); got != want {
			t.Errorf("IsSupportedLanguage(%q) = %v, want %v", code, got, want)
		}
	}
}

func TestBaseLanguage(t *testing.T) {
	cases := map[string]string{
		"en-pidgin": "en",
		"fr":        "fr",
		"es-MX":     "es",
	}
	for code, want := range cases {
		if got := BaseLanguage(code); got != want {
			t.Errorf("BaseLanguage(%q) = %q, want %q", code, got, want)
		}
	}
}
