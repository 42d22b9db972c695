// Package chain assembles the ordered stage list for a pipeline run from
// configuration. Stage order is fixed by construction: rule-based correction
// precedes or follows the model stage depending on the configured mode, and
// speech normalization always runs last.
package chain

import (
	"github.com/hebbihebb/satcn/internal/config"
	"github.com/hebbihebb/satcn/internal/pipeline"
	"github.com/hebbihebb/satcn/internal/stages/grammar"
	"github.com/hebbihebb/satcn/internal/stages/model"
	"github.com/hebbihebb/satcn/internal/stages/spelling"
	"github.com/hebbihebb/satcn/internal/stages/ttsnorm"
)

// Build returns the stage chain for cfg in execution order.
//
// Without the model stage the chain is spelling, grammar, ttsnorm. With the
// model stage enabled its mode decides the layout:
//
//	replace:    model only
//	hybrid:     model, then spelling and grammar clean up after it
//	supplement: spelling and grammar first, model afterwards
//
// Disabled stages are omitted; ttsnorm always closes the chain when enabled.
func Build(cfg *config.Config) []pipeline.Stage {
	var ruleStages []pipeline.Stage
	if cfg.Spelling.Enabled {
		ruleStages = append(ruleStages, spelling.New(cfg.Spelling.ExtraWords))
	}
	if cfg.Grammar.Enabled {
		ruleStages = append(ruleStages, grammar.New(
			cfg.Grammar.Endpoint, cfg.Grammar.Language, cfg.Grammar.TimeoutDuration()))
	}

	var stages []pipeline.Stage
	if cfg.Model.Enabled {
		modelStage := model.New(model.Options{
			Endpoint:    cfg.Model.Endpoint,
			Model:       cfg.Model.Name,
			Temperature: cfg.Model.Temperature,
			Concurrency: cfg.Model.Concurrency,
			Timeout:     cfg.Model.TimeoutDuration(),
		})
		switch config.NormalizeModelMode(cfg.Model.Mode) {
		case config.ModeHybrid:
			stages = append(stages, modelStage)
			stages = append(stages, ruleStages...)
		case config.ModeSupplement:
			stages = append(stages, ruleStages...)
			stages = append(stages, modelStage)
		default:
			stages = append(stages, modelStage)
		}
	} else {
		stages = append(stages, ruleStages...)
	}

	if cfg.TTS.Enabled {
		stages = append(stages, ttsnorm.New())
	}
	return stages
}
