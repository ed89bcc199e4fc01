package session

// CipherSuite describes one entry of the immutable, global datagram
// cipher suite table. The wire-visible name is what peers advertise in
// X-DTLS-CipherSuite; Version/Cipher/MAC name the record-layer
// collaborator's algorithm identifiers, not anything this package
// implements itself.
type CipherSuite struct {
	Name        string
	Version     string
	Cipher      string
	MAC         string
	ServerPrio  int
}

// CipherSuiteTable is the static, immutable, server-priority-ordered
// list of datagram cipher suites this deployment offers. It is
// table-driven selection, per spec §9: a flat array, no polymorphism.
var CipherSuiteTable = []CipherSuite{
	{
		Name:       "OC-DTLS1_2-AES256-GCM",
		Version:    "DTLS1.2",
		Cipher:     "AES-256-GCM",
		MAC:        "AEAD",
		ServerPrio: 100,
	},
	{
		Name:       "OC-DTLS1_2-AES128-GCM",
		Version:    "DTLS1.2",
		Cipher:     "AES-128-GCM",
		MAC:        "AEAD",
		ServerPrio: 90,
	},
	{
		Name:       "OC-DTLS1_2-CHACHA20-POLY1305",
		Version:    "DTLS1.2",
		Cipher:     "CHACHA20-POLY1305",
		MAC:        "AEAD",
		ServerPrio: 80,
	},
}

// SelectCipherSuite picks the highest-ServerPrio entry whose Name
// appears in offered. It returns ok=false if none match, in which case
// the caller must leave the session's datagram channel DISABLED
// (spec §3: ConfigError — no ciphersuite negotiated for UDP).
func SelectCipherSuite(offered []string) (cs CipherSuite, ok bool) {
	offeredSet := make(map[string]struct{}, len(offered))
	for _, name := range offered {
		offeredSet[name] = struct{}{}
	}

	best := -1
	for i, candidate := range CipherSuiteTable {
		if _, present := offeredSet[candidate.Name]; !present {
			continue
		}
		if best == -1 || candidate.ServerPrio > CipherSuiteTable[best].ServerPrio {
			best = i
		}
	}
	if best == -1 {
		return CipherSuite{}, false
	}
	return CipherSuiteTable[best], true
}
