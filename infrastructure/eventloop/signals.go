package eventloop

import (
	"os"
	"syscall"
)

// TerminationSignals is the set of signals that trigger graceful exit
// (spec §6: "SIGTERM, SIGINT -> graceful exit"), named the way the
// retrieval pack's process-supervision code names its own termination
// set rather than inlined at each signal.Notify call site.
var TerminationSignals = []os.Signal{syscall.SIGINT, syscall.SIGTERM}
