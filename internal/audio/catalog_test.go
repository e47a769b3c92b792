package audio

import (
	"errors"
	"testing"
)

func TestClassifyLoopbackByName(t *testing.T) {
	cases := []struct {
		name     string
		endpoint Endpoint
		want     bool
	}{
		{"marker loopback", Endpoint{Name: "Speakers (Loopback)"}, true},
		{"marker stereo mix", Endpoint{Name: "Stereo Mix (Realtek Audio)"}, true},
		{"marker what u hear", Endpoint{Name: "What U Hear (Sound Blaster)"}, true},
		{"marker wave out mix", Endpoint{Name: "Wave Out Mix"}, true},
		{"case insensitive", Endpoint{Name: "STEREO MIX"}, true},
		{"trailing open paren", Endpoint{Name: "Speakers (Realtek("}, true},
		{"plain microphone", Endpoint{Name: "Microphone (USB Audio)", MaxInputChannels: 1, MaxOutputChannels: 0}, false},
		{"plain speakers", Endpoint{Name: "Speakers (Realtek Audio)", MaxOutputChannels: 2}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := classifyLoopback(tc.endpoint); got != tc.want {
				t.Fatalf("classifyLoopback(%q) = %v, want %v", tc.endpoint.Name, got, tc.want)
			}
		})
	}
}

func TestClassifyLoopbackByHostAPI(t *testing.T) {
	// Input-only endpoints on the low-latency host API are loopback even
	// without a name marker.
	ep := Endpoint{
		Name:              "Speakers [capture]",
		MaxInputChannels:  2,
		MaxOutputChannels: 0,
		HostAPI:           "Windows WASAPI",
	}
	if !classifyLoopback(ep) {
		t.Fatal("input-only WASAPI endpoint should classify as loopback")
	}

	ep.HostAPI = "MME"
	if classifyLoopback(ep) {
		t.Fatal("input-only MME endpoint should not classify as loopback")
	}

	ep.HostAPI = "Windows WASAPI"
	ep.MaxOutputChannels = 2
	if classifyLoopback(ep) {
		t.Fatal("endpoint with output channels should not classify as loopback via host API")
	}
}

func TestEnumerateDefaultsAndOrder(t *testing.T) {
	host := newFakeHost(
		Endpoint{Index: 0, Name: "Microphone", MaxInputChannels: 1},
		Endpoint{Index: 1, Name: "Speakers", MaxOutputChannels: 2},
		Endpoint{Index: 2, Name: "Stereo Mix", MaxInputChannels: 2, IsLoopback: true},
	)
	host.setDefaults(0, 1)
	// The fake pre-classifies; mirror what portAudioHost would compute.
	host.endpoints[0].IsDefault = true
	host.endpoints[1].IsDefault = true

	eps, err := NewCatalog(host).Enumerate()
	if err != nil {
		t.Fatalf("Enumerate: %v", err)
	}
	if len(eps) != 3 {
		t.Fatalf("expected 3 endpoints, got %d", len(eps))
	}
	for i, ep := range eps {
		if ep.Index != i {
			t.Fatalf("expected catalog order preserved, endpoint %d has index %d", i, ep.Index)
		}
	}
	if !eps[0].IsDefault || !eps[1].IsDefault || eps[2].IsDefault {
		t.Fatal("default flags not preserved through enumeration")
	}
}

func TestEnumerateFailsFatally(t *testing.T) {
	_, err := NewCatalog(failingHost{}).Enumerate()
	if !errors.Is(err, ErrDeviceUnavailable) {
		t.Fatalf("expected ErrDeviceUnavailable, got %v", err)
	}
}
