package main

import (
	"context"
	"fmt"
	"os"

	"nikand.dev/go/cli"
	"tlog.app/go/errors"
	"tlog.app/go/tlog"

	"github.com/vexlang/vex/src/compiler"
	"github.com/vexlang/vex/src/compiler/ir"
	"github.com/vexlang/vex/src/compiler/tp"
	"github.com/vexlang/vex/src/compiler/vect"
	"github.com/vexlang/vex/src/compiler/vect/vectest"
)

func main() {
	analyzeCmd := &cli.Command{
		Name:        "analyze",
		Description: "run the vectorization analysis over the built-in demo loops",
		Action:      analyzeAct,
		Args:        cli.Args{},
	}

	app := &cli.Command{
		Name:        "vex",
		Description: "vex is the development harness of the vex jit vectorizer",
		Commands: []*cli.Command{
			analyzeCmd,
		},
	}

	cli.RunAndExit(app, os.Args, os.Environ())
}

type demo struct {
	name  string
	build func() (*ir.Loop, *ir.Node)
}

func demos() []demo {
	return []demo{
		{name: "copy_add", build: func() (*ir.Loop, *ir.Node) {
			// for (i = 0; i < N; i++) a[i] = b[i] + 1
			b := vectest.NewLoop(vectest.Config{Stride: 8, Main: true, Unroll: 8})
			dst := b.NewArray(tp.KindInt)
			src := b.NewArray(tp.KindInt)

			ld := b.Load(src, b.IV, 0)
			sum := b.DataNode(ir.AddI, tp.KindInt, ld, b.F.ConstI(1))
			st := b.Store(dst, b.IV, 0, sum)

			return b.Done(), st
		}},
		{name: "shift_store", build: func() (*ir.Loop, *ir.Node) {
			// for (i = 0; i < N; i++) s[i] = (short)(b[i] >> 3)
			b := vectest.NewLoop(vectest.Config{Stride: 16, Main: true, Unroll: 16})
			dst := b.NewArray(tp.KindShort)
			src := b.NewArray(tp.KindShort)

			ld := b.Load(src, b.IV, 0)
			sh := b.DataNode(ir.RShiftI, tp.KindInt, ld, b.F.ConstI(3))
			st := b.Store(dst, b.IV, 0, sh)

			return b.Done(), st
		}},
		{name: "reduction", build: func() (*ir.Loop, *ir.Node) {
			// for (i = 0; i < N; i++) sum += a[i]
			b := vectest.NewLoop(vectest.Config{Stride: 1, Main: true, Unroll: 8})
			src := b.NewArray(tp.KindInt)

			sum := b.DataNode(ir.Phi, tp.KindInt, b.CL, b.F.ConstI(0), nil)
			ld := b.Load(src, b.IV, 0)
			add := b.DataNode(ir.AddI, tp.KindInt, sum, ld)
			b.F.SetIn(sum, ir.PhiBack, add)

			return b.Done(), ld
		}},
	}
}

func analyzeAct(c *cli.Command) (err error) {
	ctx := context.Background()
	ctx = tlog.ContextWithSpan(ctx, tlog.Root())

	plat := vect.DefaultPlatform()

	for _, d := range demos() {
		loop, memRef := d.build()

		a, err := compiler.AnalyzeLoop(ctx, loop, plat)
		if err != nil {
			return errors.Wrap(err, "analyze %v", d.name)
		}

		var b []byte
		b = append(b, "# "...)
		b = append(b, d.name...)
		b = append(b, '\n')
		b = a.AppendDump(b)

		sol := a.SolveAlignment(memRef, plat.VectorWidth/memRef.MemorySize())

		b = append(b, "alignment: "...)
		b = vect.AppendSolution(b, sol)
		b = append(b, '\n', '\n')

		fmt.Printf("%s", b)
	}

	return nil
}
