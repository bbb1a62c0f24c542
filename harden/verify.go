package harden

import (
	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/types"

	"github.com/pkg/errors"
)

// VerifyFunc checks the structural invariants a rewrite must preserve:
// every block terminates, conditional branches take an i1, phi nodes stay
// grouped at the top of their block with one incoming per predecessor, and
// the entry block has no phis.  It returns one error per violation; an empty
// result means the function is structurally sound.
func VerifyFunc(f *ir.Func) []error {
	var errs []error

	preds := make(map[*ir.Block][]*ir.Block)
	for _, b := range f.Blocks {
		if b.Term == nil {
			errs = append(errs, errors.Errorf("block %q has no terminator", b.Name()))
			continue
		}
		for _, succ := range b.Term.Succs() {
			preds[succ] = append(preds[succ], b)
		}
	}

	for i, b := range f.Blocks {
		if cb, ok := b.Term.(*ir.TermCondBr); ok {
			if !isIntWidth(cb.Cond.Type(), 1) {
				errs = append(errs, errors.Errorf("block %q: branch condition is %v, want i1", b.Name(), cb.Cond.Type()))
			}
		}

		inPhiGroup := true
		for _, inst := range b.Insts {
			phi, ok := inst.(*ir.InstPhi)
			if !ok {
				inPhiGroup = false
				continue
			}

			if !inPhiGroup {
				errs = append(errs, errors.Errorf("block %q: phi after non-phi instruction", b.Name()))
			}
			if i == 0 {
				errs = append(errs, errors.Errorf("entry block %q has a phi", b.Name()))
			}

			if err := verifyPhi(b, phi, preds[b]); err != nil {
				errs = append(errs, err)
			}
		}
	}

	return errs
}

// verifyPhi checks one phi's incoming edges against the block's actual
// predecessors.
func verifyPhi(b *ir.Block, phi *ir.InstPhi, preds []*ir.Block) error {
	if len(phi.Incs) != len(preds) {
		return errors.Errorf("block %q: phi %q has %d incomings for %d predecessors",
			b.Name(), phi.Name(), len(phi.Incs), len(preds))
	}

	for _, inc := range phi.Incs {
		pred, ok := inc.Pred.(*ir.Block)
		if !ok {
			return errors.Errorf("block %q: phi %q has a non-block predecessor", b.Name(), phi.Name())
		}

		found := false
		for _, pb := range preds {
			if pb == pred {
				found = true
				break
			}
		}
		if !found {
			return errors.Errorf("block %q: phi %q names %q which is not a predecessor",
				b.Name(), phi.Name(), pred.Name())
		}

		if !types.Equal(inc.X.Type(), phi.Type()) {
			return errors.Errorf("block %q: phi %q incoming from %q has type %v, want %v",
				b.Name(), phi.Name(), pred.Name(), inc.X.Type(), phi.Type())
		}
	}

	return nil
}
