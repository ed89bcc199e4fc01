package application

import "time"

// DPDMonitor is the contract for spec §4.3's dead-peer-detection.
// infrastructure/dpdmonitor drives it off the Session's activity
// timestamps once per periodic check.
type DPDMonitor interface {
	// Check runs one periodic-check pass at time now. It returns
	// sendTCPProbe/sendUDPProbe when a DPD_OUT must be emitted on the
	// respective channel, and tornDown=true when the whole session
	// must exit (reliable channel exceeded 3*dpd with no activity).
	Check(now time.Time) (sendTCPProbe, sendUDPProbe, tornDown bool)
}
