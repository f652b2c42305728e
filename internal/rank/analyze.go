package rank

import "fmt"

// Direction classifies a rank transition between two checks.
type Direction string

const (
	DirectionNew  Direction = "new"
	DirectionLost Direction = "lost"
	DirectionUp   Direction = "up"
	DirectionDown Direction = "down"
	DirectionSame Direction = "same"
)

// Change is the outcome of comparing a previous and a current rank. Change
// carries positions moved: positive for both up and down transitions, zero
// for new, lost and same.
type Change struct {
	Direction Direction `json:"direction"`
	Change    int       `json:"change"`
	Emoji     string    `json:"emoji"`
	Message   string    `json:"message"`
}

// AnalyzeChange classifies the transition from previousRank to currentRank.
// Either side may be nil, meaning the target was not ranked at that check.
// A numerically smaller rank is better.
func AnalyzeChange(previousRank, currentRank *int) Change {
	switch {
	case previousRank == nil && currentRank == nil:
		return Change{Direction: DirectionNew, Emoji: "🆕", Message: "추적을 시작했습니다"}
	case previousRank == nil:
		return Change{
			Direction: DirectionNew,
			Emoji:     "🆕",
			Message:   fmt.Sprintf("%d위에 새로 진입했습니다", *currentRank),
		}
	case currentRank == nil:
		return Change{Direction: DirectionLost, Emoji: "📉", Message: "순위권에서 이탈했습니다"}
	case *previousRank == *currentRank:
		return Change{Direction: DirectionSame, Emoji: "➖", Message: "순위 변동이 없습니다"}
	case *currentRank < *previousRank:
		diff := *previousRank - *currentRank
		return Change{
			Direction: DirectionUp,
			Change:    diff,
			Emoji:     "📈",
			Message:   fmt.Sprintf("%d계단 상승했습니다", diff),
		}
	default:
		diff := *currentRank - *previousRank
		return Change{
			Direction: DirectionDown,
			Change:    diff,
			Emoji:     "📉",
			Message:   fmt.Sprintf("%d계단 하락했습니다", diff),
		}
	}
}
