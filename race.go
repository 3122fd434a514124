// © nanokern authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

//go:build race

package nanokern

// RaceEnabled is true when the race detector is active. Tests use it to
// skip scenarios that spawn many goroutines pounding a shared Kernel, where the extra instrumentation overhead turns a
// sub-second test into a multi-second one.
const RaceEnabled = true
