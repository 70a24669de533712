package interpreter

import (
	"genie/pkg/tree"
)

// call evaluates the procedure and its arguments left to right. Holes make
// it a partial parametrisation: the result is a new procedure whose locale
// carries the arguments given so far.
func (rt *Runtime) call(n *tree.Node) error {
	primary := n.Children[0]
	args := n.Children[1:]

	sp := rt.sp
	if err := rt.Evaluate(primary); err != nil {
		return err
	}
	depth := rt.hold(sp, primary.Mode)

	partial := false
	for _, a := range args {
		if a.Attr == tree.Hole {
			partial = true
			continue
		}
		at := rt.sp
		if err := rt.Evaluate(a); err != nil {
			rt.release(depth)
			return err
		}
		rt.hold(at, a.Mode)
	}

	pv := rt.stack[sp]
	if !pv.Valid || pv.Proc == nil {
		rt.release(depth)
		return faultf(FaultUninitialised, "procedure is uninitialised")
	}
	proc := pv.Proc

	supplied := make([][]Value, len(args))
	off := sp + 1
	for i, a := range args {
		if a.Attr == tree.Hole {
			continue
		}
		size := a.Mode.Size()
		supplied[i] = append([]Value(nil), rt.stack[off:off+size]...)
		off += size
	}
	// nothing below allocates before the arguments reach their new home
	rt.release(depth)

	if proc.Standard != "" {
		rt.sp = sp
		return rt.standard(proc.Standard, supplied, args)
	}

	bound := proc.Bind(supplied)
	if partial {
		for i, arg := range bound.Locale {
			if arg != nil {
				bound.Scope = max(bound.Scope, rt.scopeOf(arg, bound.Mode.Params[i]))
			}
		}
		rt.sp = sp
		return rt.push(newProc(bound))
	}
	return rt.invoke(proc, bound.Locale, sp)
}

// invoke opens the routine's frame under its environ, binds the parameters
// and evaluates the body. The result may not refer to the routine's frame or
// anything younger.
func (rt *Runtime) invoke(proc *Procedure, args [][]Value, sp int) error {
	routine := proc.Routine
	env := proc.Env.Index
	if !rt.alive(proc.Env) {
		// the body only reaches names at or below its home frame, so that
		// frame can stand in for the environ
		switch {
		case proc.Home.Index < 0:
			env = -1
		case rt.alive(proc.Home):
			env = proc.Home.Index
		default:
			return faultf(FaultScope, "procedure called after its environ was left")
		}
	}

	frame, err := rt.openFrame(routine, env)
	if err != nil {
		return err
	}
	defer rt.CloseFrame()

	for i, p := range routine.Params {
		copy(rt.slot(p), args[i])
	}
	rt.sp = sp

	if err := rt.Evaluate(routine.Children[0]); err != nil {
		return err
	}
	result := routine.Mode.Sub
	if result.IsVoid() {
		rt.sp = sp
		return nil
	}
	value := rt.top(result.Size())
	return rt.checkScope(value, result, rt.records[frame].DynamicScope-1, "result")
}
