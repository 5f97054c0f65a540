package modules

import "github.com/yaraeng/yarago/vm"

// Time implements the "time" module: a single time.now() function,
// grounded on r-yara-modules/src/time.rs. Unlike the Rust original
// (which reads the wall clock directly), yarago's VM is meant to be
// deterministic within one scan — scanning the same target twice must
// yield equal outputs — so Now is a scan-time value injected by the
// caller (scanner.ScanOptions.Timestamp) rather than a live SystemTime::now()
// read, per SPEC_FULL.md's supplemented-feature note on this module.
type Time struct {
	Now int64 // Unix seconds, set once per scan by the caller
}

// Call dispatches a qualified "time.*" function call.
func (t Time) Call(name string, args []vm.Value) (vm.Value, bool) {
	if name == "now" && len(args) == 0 {
		return vm.IntVal(t.Now), true
	}
	return vm.Undefined(), false
}
