package services

import (
	"strings"
	"sync"

	"github.com/pemistahl/lingua-go"
	"github.com/rs/zerolog/log"
	"github.com/samber/lo"
	"github.com/spf13/viper"
)

var defaultDetectLanguages = []string{"en", "zh", "es", "fr", "de", "ja"}

var (
	detectorOnce sync.Once
	detector     lingua.LanguageDetector
)

func buildDetector() lingua.LanguageDetector {
	codes := viper.GetStringSlice("language.detect")
	if len(codes) == 0 {
		codes = defaultDetectLanguages
	}

	languages := lo.Filter(lingua.AllLanguages(), func(item lingua.Language, _ int) bool {
		return lo.ContainsBy(codes, func(code string) bool {
			return strings.EqualFold(item.IsoCode639_1().String(), code)
		})
	})
	if len(languages) < 2 {
		log.Warn().Strs("codes", codes).Msg("Language detection needs at least two known languages, falling back to defaults...")
		languages = lo.Filter(lingua.AllLanguages(), func(item lingua.Language, _ int) bool {
			return lo.ContainsBy(defaultDetectLanguages, func(code string) bool {
				return strings.EqualFold(item.IsoCode639_1().String(), code)
			})
		})
	}

	return lingua.NewLanguageDetectorBuilder().
		FromLanguages(languages...).
		WithLowAccuracyMode().
		Build()
}

// DetectLanguage returns the ISO 639-1 code of content, or an empty string
// when detection is disabled or the detector is unsure.
func DetectLanguage(content string) string {
	if !viper.GetBool("language.enabled") || len(strings.TrimSpace(content)) == 0 {
		return ""
	}

	detectorOnce.Do(func() {
		detector = buildDetector()
	})

	language, ok := detector.DetectLanguageOf(content)
	if !ok {
		return ""
	}
	return strings.ToLower(language.IsoCode639_1().String())
}
