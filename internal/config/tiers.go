package config

// Controller tier types with dedicated health-rule template sets.
const (
	TierTypeJVM = "Application Server"
	TierTypeCLR = ".NET Application Server"
)

// TierKind selects which health-rule template set applies to a tier.
type TierKind string

const (
	// TierBase is any supported tier type without a dedicated template set.
	TierBase TierKind = "base"

	// TierJVM is a Java application server tier.
	TierJVM TierKind = "jvm"

	// TierCLR is a .NET application server tier.
	TierCLR TierKind = "clr"

	// TierSynthetic is synthetic monitoring; it has no controller tier at
	// all and overrides whatever tier type the application reports.
	TierSynthetic TierKind = "synthetic"
)

// ClassifyTier maps a controller tier type to a template set kind. Synthetic
// runs win unconditionally.
func ClassifyTier(tierType string, synthetic bool) TierKind {
	if synthetic {
		return TierSynthetic
	}
	switch tierType {
	case TierTypeJVM:
		return TierJVM
	case TierTypeCLR:
		return TierCLR
	default:
		return TierBase
	}
}

// TemplatesFor returns the health-rule template set for a tier kind.
func (t TemplateSets) TemplatesFor(kind TierKind) []string {
	switch kind {
	case TierSynthetic:
		return t.SyntheticHealthRules
	case TierJVM:
		return t.JVMHealthRules
	case TierCLR:
		return t.CLRHealthRules
	default:
		return t.BaseHealthRules
	}
}

// TierSupported reports whether a controller tier type is eligible for
// onboarding.
func (c Config) TierSupported(tierType string) bool {
	for _, t := range c.SupportedTierTypes {
		if t == tierType {
			return true
		}
	}
	return false
}
