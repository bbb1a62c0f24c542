package harden

import (
	"github.com/llir/llvm/ir"

	"github.com/Prajwal-kp-18/llvm-fihardening/report"
)

// hardenCriticalVariable gives a critical stack variable a shadow copy.  A
// variable counts as critical when a value loaded from it feeds a comparison
// or a return.  Every store to the original is mirrored into the shadow
// allocation, so a later consistency pass or debugger has an independent
// copy to compare against.
func (p *Pass) hardenCriticalVariable(f *ir.Func, alloca *ir.InstAlloca) {
	if p.cfg.Level < 2 {
		return
	}

	b := blockOf(f, alloca)
	if b == nil {
		return
	}

	critical := false
	for _, load := range loadsOf(f, alloca) {
		if feedsCmpOrRet(f, load) {
			critical = true
			break
		}
	}
	if !critical {
		return
	}

	shadow := ir.NewAlloca(alloca.ElemType)
	shadow.Align = alloca.Align
	shadow.SetName(p.name("shadow"))
	p.insertAfter(b, alloca, shadow)

	// Mirror every store so the shadow tracks the original.
	for _, site := range storesTo(f, alloca) {
		mirror := ir.NewStore(site.store.Src, shadow)
		mirror.Align = site.store.Align
		p.insertAfter(site.block, site.store, mirror)
	}

	p.stats.CriticalVariablesProtected++
	report.ReportTransform("protected critical variable in '%s'", f.Name())
}
