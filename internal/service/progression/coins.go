package progression

import "github.com/hundredk/challenge-tracker/internal/models"

// Coin values per action type.
const (
	DeepWorkCoins         = 10
	DeepWorkExtendedCoins = 15
	SocialPostCoins       = 5
	PushCoins             = 15
	StreakBonusCoins      = 5

	// ExtendedDeepWorkMinutes is the session length that earns the higher rate.
	ExtendedDeepWorkMinutes = 150

	// DailyCoinCap is the most coins one day of actions can earn.
	DailyCoinCap = DeepWorkExtendedCoins + SocialPostCoins + PushCoins + StreakBonusCoins
)

// ActionTypes lists every action type in display order.
var ActionTypes = []string{
	models.ActionDeepWork,
	models.ActionSocialPost,
	models.ActionPush,
	models.ActionStreakBonus,
}

// IsActionType reports whether t is a known action type.
func IsActionType(t string) bool {
	for _, known := range ActionTypes {
		if t == known {
			return true
		}
	}
	return false
}

// NormalizeActionType maps input aliases onto their stored action type.
func NormalizeActionType(t string) string {
	if t == models.ActionManualEarning {
		return models.ActionPush
	}
	return t
}

// CoinsFor returns the coins awarded for an action. durationMinutes is only
// consulted for deep work; nil counts as a short session.
func CoinsFor(actionType string, durationMinutes *int) int {
	switch actionType {
	case models.ActionDeepWork:
		if durationMinutes != nil && *durationMinutes >= ExtendedDeepWorkMinutes {
			return DeepWorkExtendedCoins
		}
		return DeepWorkCoins
	case models.ActionSocialPost:
		return SocialPostCoins
	case models.ActionPush:
		return PushCoins
	case models.ActionStreakBonus:
		return StreakBonusCoins
	default:
		return 0
	}
}

// CoinsEarned sums the coins of completed actions.
func CoinsEarned(actions []models.Action) int {
	total := 0
	for _, a := range actions {
		if a.Completed {
			total += a.CoinsEarned
		}
	}
	return total
}
