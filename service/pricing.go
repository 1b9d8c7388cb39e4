package service

import "github.com/jitenkr2030/video-shiksha/config"

// Pricing is the single cost table. The pre-flight estimator and the debit
// path both go through it; there is deliberately no second copy of these
// numbers anywhere.
type Pricing struct {
	cfg config.CreditsConfig
}

func NewPricing(cfg config.CreditsConfig) *Pricing {
	return &Pricing{cfg: cfg}
}

// Cost returns the credit cost of running one job of the given stage.
func (p *Pricing) Cost(stage string) int64 {
	switch stage {
	case "PARSE":
		return p.cfg.ParseCost
	case "SCRIPT_GENERATE":
		return p.cfg.ScriptCost
	case "TTS_GENERATE":
		return p.cfg.TTSCost
	case "VIDEO_RENDER":
		return p.cfg.RenderCost
	case "SUBTITLE_GENERATE":
		return p.cfg.SubtitleCost
	}
	return 0
}

// SlideChainCost is what one slide's remaining chain (script then TTS) will
// debit. The per-slide pre-flight gate checks this amount so a chain is never
// started that is known to stall halfway.
func (p *Pricing) SlideChainCost() int64 {
	return p.cfg.ScriptCost + p.cfg.TTSCost
}

// EstimateProject prices a full run for a deck with slideCount slides.
func (p *Pricing) EstimateProject(slideCount int, subtitles bool) int64 {
	n := int64(slideCount)
	total := p.cfg.ParseCost +
		n*p.cfg.ScriptCost +
		n*p.cfg.TTSCost +
		p.cfg.RenderCost
	if subtitles {
		total += p.cfg.SubtitleCost
	}
	return total
}
