package audio

import "strings"

// Catalog enumerates and classifies the host's audio endpoints.
type Catalog struct {
	host Host
}

func NewCatalog(host Host) *Catalog {
	return &Catalog{host: host}
}

// Enumerate returns a classified snapshot of every endpoint. Idempotent and
// safe to call repeatedly; an error means the subsystem itself failed and no
// partial result is returned.
func (c *Catalog) Enumerate() ([]Endpoint, error) {
	return c.host.Endpoints()
}

// loopbackMarkers are case-insensitive substrings that mark an endpoint as a
// loopback capture source regardless of its channel layout.
var loopbackMarkers = []string{
	"loopback",
	"stereo mix",
	"what u hear",
	"wave out mix",
}

// lowLatencyHostAPIs name the platform host APIs that expose output devices
// as capture sources (WASAPI on Windows, Core Audio on macOS).
var lowLatencyHostAPIs = []string{
	"wasapi",
	"core audio",
}

func isLowLatencyHostAPI(name string) bool {
	lower := strings.ToLower(name)
	for _, api := range lowLatencyHostAPIs {
		if strings.Contains(lower, api) {
			return true
		}
	}
	return false
}

// classifyLoopback reports whether an endpoint is a loopback capture source:
// either its name carries a known loopback marker (or the truncated trailing
// "(" typical of speaker-loopback monikers), or it is an input-only endpoint
// reached through a low-latency host API.
func classifyLoopback(ep Endpoint) bool {
	lower := strings.ToLower(ep.Name)
	for _, marker := range loopbackMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	if strings.HasSuffix(strings.TrimSpace(ep.Name), "(") {
		return true
	}
	if ep.MaxInputChannels > 0 && ep.MaxOutputChannels == 0 && isLowLatencyHostAPI(ep.HostAPI) {
		return true
	}
	return false
}
