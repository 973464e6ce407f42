package quiz

import (
	"context"
	"fmt"
	"time"

	"github.com/sparkvibe/sparkvibe/internal/api"
	"github.com/sparkvibe/sparkvibe/internal/connectivity"
	"github.com/sparkvibe/sparkvibe/internal/logger"
	"github.com/sparkvibe/sparkvibe/internal/resource"
)

const (
	QuizMasterBadge       = "Quiz Master"
	QuizMasterDescription = "Answer 10 questions correctly"
	QuizMasterTarget      = 10
)

type Result struct {
	Correct     bool         `json:"correct"`
	Progress    api.Progress `json:"progress"`
	BadgeEarned bool         `json:"badgeEarned"`
}

// Recorder saves quiz attempts and awards badges.
type Recorder struct {
	res *resource.Client
	now func() time.Time
}

func NewRecorder(res *resource.Client) *Recorder {
	return &Recorder{res: res, now: time.Now}
}

// Record checks answer, saves the attempt and, on a correct answer, awards
// the Quiz Master badge once the user has enough correct answers.
func (r *Recorder) Record(ctx context.Context, userID string, card api.Flashcard, answer string) (Result, error) {
	correct, err := CheckAnswer(card, answer)
	if err != nil {
		return Result{}, err
	}

	saved, err := r.res.Progress.Create(ctx, api.Progress{
		FlashcardID: card.ID,
		UserID:      userID,
		Category:    card.Category,
		Correct:     correct,
		Timestamp:   r.now().UTC().Format(TimestampLayout),
	})
	if err != nil {
		return Result{}, fmt.Errorf("saving progress: %w", err)
	}

	result := Result{Correct: correct, Progress: saved}
	if !correct {
		return result, nil
	}

	earned, err := r.awardQuizMaster(ctx, userID)
	if err != nil {
		return result, fmt.Errorf("awarding badge: %w", err)
	}
	result.BadgeEarned = earned
	return result, nil
}

// awardQuizMaster reports true only when this call earned the badge.
func (r *Recorder) awardQuizMaster(ctx context.Context, userID string) (bool, error) {
	return resource.Do(ctx, r.res, func(state connectivity.State) (bool, error) {
		progress, err := r.res.Progress.Pin(state).List(ctx, userID)
		if err != nil {
			return false, err
		}
		correct := 0
		for _, p := range progress {
			if p.Correct {
				correct++
			}
		}
		if correct < QuizMasterTarget {
			return false, nil
		}

		badges := r.res.Badges.Pin(state)
		owned, err := badges.List(ctx, userID)
		if err != nil {
			return false, err
		}
		for _, b := range owned {
			if b.Name != QuizMasterBadge {
				continue
			}
			if b.Earned {
				return false, nil
			}
			if _, err := badges.Update(ctx, b.ID, resource.Patch{"earned": true}); err != nil {
				return false, err
			}
			logger.InfoWithUser(userID, "badge_earned", map[string]interface{}{"badge": QuizMasterBadge})
			return true, nil
		}

		_, err = badges.Create(ctx, api.Badge{
			UserID:      userID,
			Name:        QuizMasterBadge,
			Description: QuizMasterDescription,
			Earned:      true,
		})
		if err != nil {
			return false, err
		}
		logger.InfoWithUser(userID, "badge_earned", map[string]interface{}{"badge": QuizMasterBadge})
		return true, nil
	})
}
