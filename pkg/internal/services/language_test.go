package services

import (
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
)

func TestDetectLanguage(t *testing.T) {
	viper.Set("language.enabled", false)
	assert.Empty(t, DetectLanguage("This sentence is clearly written in English."))

	viper.Set("language.enabled", true)
	viper.Set("language.detect", []string{"en", "de"})
	t.Cleanup(func() {
		viper.Set("language.enabled", false)
	})

	assert.Equal(t, "en", DetectLanguage("I secretly ate my roommate's birthday cake and blamed the dog."))
	assert.Equal(t, "de", DetectLanguage("Ich habe heimlich den Geburtstagskuchen meines Mitbewohners gegessen."))
	assert.Empty(t, DetectLanguage("   "))
}
