package engine

import (
	"go.uber.org/fx"

	"github.com/tigerroll/gapfill/pkg/impute/engine/gap"
	"github.com/tigerroll/gapfill/pkg/impute/engine/predict"
	"github.com/tigerroll/gapfill/pkg/impute/engine/train"
	"github.com/tigerroll/gapfill/pkg/impute/engine/validate"
	"github.com/tigerroll/gapfill/pkg/impute/engine/window"
)

// Module is an Fx module that provides the full engine: detector, window
// builder, trainer, predictor, validator and the facade itself.
var Module = fx.Options(
	gap.Module,
	window.Module,
	train.Module,
	predict.Module,
	validate.Module,
	fx.Provide(NewEngine),
)
