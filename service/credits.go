package service

import (
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/jitenkr2030/video-shiksha/models"
)

// Credits gates stage execution on the user's balance. All mutations go
// through the store's atomic debit/credit, so two stages debiting the same
// user concurrently can never overdraw.
type Credits struct {
	store   models.Store
	pricing *Pricing
}

func NewCredits(store models.Store, pricing *Pricing) *Credits {
	return &Credits{store: store, pricing: pricing}
}

// Sufficiency is the pre-flight answer for one stage invocation.
type Sufficiency struct {
	Sufficient bool  `json:"sufficient"`
	Required   int64 `json:"required"`
	Available  int64 `json:"available"`
}

func (c *Credits) CheckSufficient(userID, stage string, quantity int) (Sufficiency, error) {
	required := c.pricing.Cost(stage) * int64(quantity)
	available, err := c.store.Balance(userID)
	if err != nil {
		return Sufficiency{}, err
	}
	return Sufficiency{
		Sufficient: available >= required,
		Required:   required,
		Available:  available,
	}, nil
}

// CheckSlideChain is the per-slide pre-flight: can this user afford the
// slide's script and TTS stages together.
func (c *Credits) CheckSlideChain(userID string) (Sufficiency, error) {
	required := c.pricing.SlideChainCost()
	available, err := c.store.Balance(userID)
	if err != nil {
		return Sufficiency{}, err
	}
	return Sufficiency{
		Sufficient: available >= required,
		Required:   required,
		Available:  available,
	}, nil
}

// Debit charges one stage invocation, keyed on the job id. A second call for
// the same job is a no-op returning the current balance. Returns
// ErrInsufficientCredits when the balance would go negative.
func (c *Credits) Debit(userID, stage, jobID string, quantity int) (int64, error) {
	amount := c.pricing.Cost(stage) * int64(quantity)
	if amount == 0 {
		bal, err := c.store.Balance(userID)
		return bal, err
	}
	reason := fmt.Sprintf("%s stage", stage)
	newBalance, applied, err := c.store.Debit(userID, amount, stage, jobID, reason)
	if err != nil {
		return newBalance, err
	}
	if !applied {
		log.Debug().Str("job_id", jobID).Str("stage", stage).Msg("duplicate debit ignored")
	}
	return newBalance, nil
}

// Credit adds to a balance (top-ups, manual refunds). Never debits.
func (c *Credits) Credit(userID string, amount int64, reason string) (int64, error) {
	if amount <= 0 {
		return 0, fmt.Errorf("%w: credit amount must be positive", ErrValidation)
	}
	return c.store.AddCredit(userID, amount, reason)
}

func (c *Credits) Balance(userID string) (int64, error) {
	return c.store.Balance(userID)
}
