package linking

import "go_domainlink/internal/model"

// Mode describes a linking strategy for the mode picker
type Mode struct {
	Key                model.LinkingStrategy `json:"key"`
	Name               string                `json:"name"`
	Description        string                `json:"description"`
	EstimatedTime      string                `json:"estimated_time"`
	Difficulty         string                `json:"difficulty"`
	RequiresUserAction bool                  `json:"requires_user_action"`
}

// Modes returns the catalogue of linking strategies
func Modes() []Mode {
	return []Mode{
		{
			Key:                model.StrategySmartMode,
			Name:               "Smart Mode",
			Description:        "Automatic nameserver changes with guided setup",
			EstimatedTime:      "5-15 minutes",
			Difficulty:         "easy",
			RequiresUserAction: true,
		},
		{
			Key:                model.StrategyManualDNS,
			Name:               "Manual DNS",
			Description:        "Keep current nameservers with manual DNS configuration",
			EstimatedTime:      "10-30 minutes",
			Difficulty:         "medium",
			RequiresUserAction: true,
		},
		{
			Key:                model.StrategyAlreadyLinked,
			Name:               "Already Linked",
			Description:        "Domain already using platform nameservers",
			EstimatedTime:      "1-2 minutes",
			Difficulty:         "none",
			RequiresUserAction: false,
		},
	}
}
