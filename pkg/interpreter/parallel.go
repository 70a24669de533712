package interpreter

import (
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"genie/pkg/tree"
)

// parallelClause runs each unit on its own goroutine. The goroutines take
// the runtime lock for the whole of their unit, so units never interleave
// inside the core; only their order is unspecified. The first failure
// cancels the units that have not started. Nested clauses, and clauses
// evaluated outside Run, run their units in order.
func (rt *Runtime) parallelClause(n *tree.Node) error {
	if rt.parallel || !rt.running {
		for _, u := range n.Children {
			sp := rt.sp
			if err := rt.Evaluate(u); err != nil {
				return err
			}
			rt.sp = sp
		}
		return nil
	}

	rt.parallel = true
	outer := rt.ctx
	g, ctx := errgroup.WithContext(outer)
	for _, u := range n.Children {
		u := u
		g.Go(func() (err error) {
			rt.mu.Lock()
			defer rt.mu.Unlock()
			defer func() {
				if r := recover(); r != nil {
					ie, ok := r.(*InternalError)
					if !ok {
						panic(r)
					}
					err = ie
				}
			}()
			if err := ctx.Err(); err != nil {
				return err
			}

			id := uuid.New()
			rt.logger.Debug("parallel unit", "id", id, "line", u.Line, "frames", len(rt.records))
			rt.ctx = ctx
			sp := rt.sp
			err = rt.Evaluate(u)
			rt.sp = sp
			rt.ctx = outer
			if err != nil {
				rt.logger.Debug("parallel unit failed", "id", id, "err", err)
			}
			return err
		})
	}

	rt.mu.Unlock()
	err := g.Wait()
	rt.mu.Lock()
	rt.parallel = false
	return err
}
