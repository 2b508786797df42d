package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassifyTier(t *testing.T) {
	tests := []struct {
		name      string
		tierType  string
		synthetic bool
		want      TierKind
	}{
		{"jvm", TierTypeJVM, false, TierJVM},
		{"clr", TierTypeCLR, false, TierCLR},
		{"other supported type", "Node.js Server", false, TierBase},
		{"synthetic overrides tier type", TierTypeJVM, true, TierSynthetic},
		{"synthetic without tier", "", true, TierSynthetic},
		{"empty tier type", "", false, TierBase},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ClassifyTier(tt.tierType, tt.synthetic))
		})
	}
}

func TestTemplateSets_TemplatesFor(t *testing.T) {
	sets := TemplateSets{
		BaseHealthRules:      []string{"base.json"},
		JVMHealthRules:       []string{"jvm.json"},
		CLRHealthRules:       []string{"clr.json"},
		SyntheticHealthRules: []string{"synthetic.json"},
	}

	assert.Equal(t, []string{"base.json"}, sets.TemplatesFor(TierBase))
	assert.Equal(t, []string{"jvm.json"}, sets.TemplatesFor(TierJVM))
	assert.Equal(t, []string{"clr.json"}, sets.TemplatesFor(TierCLR))
	assert.Equal(t, []string{"synthetic.json"}, sets.TemplatesFor(TierSynthetic))
}

func TestConfig_TierSupported(t *testing.T) {
	cfg := Config{SupportedTierTypes: []string{TierTypeJVM, TierTypeCLR}}

	assert.True(t, cfg.TierSupported(TierTypeJVM))
	assert.True(t, cfg.TierSupported(TierTypeCLR))
	assert.False(t, cfg.TierSupported("PHP Application Server"))
	assert.False(t, cfg.TierSupported(""))
}
