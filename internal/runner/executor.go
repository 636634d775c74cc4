package runner

import (
	"context"

	"bot-builder-go/internal/program"
	"go.uber.org/zap"
)

// Executor runs a compiled program one tick at a time.
type Executor interface {
	// Tick executes one cycle of prog. Returning done ends the run as
	// completed; an error ends it as failed.
	Tick(ctx context.Context, prog *program.Graph, tick int) (done bool, err error)
}

// DryRunExecutor walks the purchase blocks of the program and logs the
// contracts it would buy. No order ever leaves the process.
type DryRunExecutor struct {
	logger *zap.Logger
}

// NewDryRunExecutor creates a logging executor.
func NewDryRunExecutor(logger *zap.Logger) *DryRunExecutor {
	return &DryRunExecutor{logger: logger.Named("dry-run")}
}

// Tick logs one simulated purchase per purchase block. A program without
// purchase blocks has nothing to do and completes.
func (d *DryRunExecutor) Tick(_ context.Context, prog *program.Graph, tick int) (bool, error) {
	symbol := ""
	for b := range prog.Blocks() {
		if b.Type == "trade_definition_market" {
			symbol, _ = b.Field("SYMBOL_LIST")
			break
		}
	}
	purchases := 0
	for b := range prog.Blocks() {
		if b.Type == "purchase" {
			purchases++
			contract, _ := b.Field("PURCHASE_LIST")
			d.logger.Info("Dry run purchase",
				zap.Int("tick", tick),
				zap.String("block", b.ID),
				zap.String("contract", contract),
				zap.String("symbol", symbol))
		}
	}
	if purchases == 0 {
		d.logger.Info("Program has no purchase blocks, completing run")
		return true, nil
	}
	return false, nil
}
