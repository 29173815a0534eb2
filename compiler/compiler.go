package compiler

import (
	"context"

	"tlog.app/go/errors"
	"tlog.app/go/tlog"

	"github.com/vexlang/vex/src/compiler/ir"
	"github.com/vexlang/vex/src/compiler/vect"
)

// AnalyzeLoop runs the auto-vectorization analysis over one counted loop
// and returns the validated analysis bundle. Failure reasons are typed
// vect.Failure values wrapped with the loop context.
func AnalyzeLoop(ctx context.Context, loop *ir.Loop, plat vect.Platform) (*vect.VLoopAnalyzer, error) {
	tr := tlog.SpanFromContext(ctx)
	tr.Printw("analyze loop", "func", loop.Func().Name, "head", loop.Head())

	a := vect.NewVLoopAnalyzer(ctx, loop, plat, false)

	err := a.Analyze()
	if err != nil {
		return nil, errors.Wrap(err, "loop %v", loop.Head().ID)
	}

	return a, nil
}
