package audio

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Name pattern sets used by the scorer. All matched case-insensitively.
var (
	professionalPatterns = []string{
		"blue", "yeti", "rode", "shure", "elgato", "focusrite",
		"usb", "studio", "podcast", "broadcast", "professional", "headset",
	}
	speakerPatterns    = []string{"speaker", "output", "headphone"}
	microphonePatterns = []string{"microphone", "mic ", "mic)", "headset", "webcam"}
	problematicPatterns = []string{
		"generic", "chipset", "bluetooth", "hands-free", "a2dp",
	}
)

func matchesAny(name string, patterns []string) bool {
	lower := strings.ToLower(name)
	for _, p := range patterns {
		if strings.Contains(lower, p) {
			return true
		}
	}
	return false
}

// Score is the ephemeral result of scoring one endpoint against a context.
type Score struct {
	Endpoint Endpoint
	Value    int
	Tier     int
	Reasons  []string
	Ideal    bool
}

// Selector picks the best capture endpoint for a recording context,
// combining static heuristics with a learned success/failure history.
type Selector struct {
	catalog *Catalog
	store   *PrefStore
	log     zerolog.Logger

	mu      sync.Mutex
	prefs   map[string]Preference
	blocked map[string]bool
	now     func() time.Time
}

// NewSelector loads the persisted preference table and block-list.
func NewSelector(catalog *Catalog, store *PrefStore, log zerolog.Logger) (*Selector, error) {
	prefs, blocked, err := store.Load()
	if err != nil {
		return nil, err
	}
	return &Selector{
		catalog: catalog,
		store:   store,
		log:     log,
		prefs:   prefs,
		blocked: blocked,
		now:     time.Now,
	}, nil
}

// Select returns the highest-scoring endpoint for the context, or
// ErrDeviceUnavailable if no endpoint scores above zero. Blocked endpoints
// are never returned. Ties keep catalog order.
func (s *Selector) Select(ctx Context) (*Endpoint, error) {
	scores, err := s.Rank(ctx)
	if err != nil {
		return nil, err
	}
	if len(scores) == 0 || scores[0].Value <= 0 {
		return nil, fmt.Errorf("no capture endpoint scored above zero for context %s: %w", ctx, ErrDeviceUnavailable)
	}
	best := scores[0]
	s.log.Debug().
		Str("device", best.Endpoint.Name).
		Int("score", best.Value).
		Str("context", ctx.String()).
		Strs("reasons", best.Reasons).
		Msg("selected capture device")
	return &best.Endpoint, nil
}

// Rank scores every non-blocked endpoint for the context, best first. The
// sort is stable so equal scores keep catalog order.
func (s *Selector) Rank(ctx Context) ([]Score, error) {
	eps, err := s.catalog.Enumerate()
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	scores := make([]Score, 0, len(eps))
	for _, ep := range eps {
		if s.blocked[ep.Name] {
			continue
		}
		scores = append(scores, s.scoreLocked(ep, ctx))
	}
	sort.SliceStable(scores, func(i, j int) bool {
		return scores[i].Value > scores[j].Value
	})
	return scores, nil
}

func (s *Selector) scoreLocked(ep Endpoint, ctx Context) Score {
	sc := Score{Endpoint: ep}
	add := func(points int, reason string) {
		sc.Value += points
		sc.Reasons = append(sc.Reasons, fmt.Sprintf("%+d %s", points, reason))
	}

	switch ctx {
	case ContextMeetingCapture:
		if ep.IsLoopback {
			add(50, "loopback source for meeting capture")
			sc.Ideal = true
			if matchesAny(ep.Name, speakerPatterns) {
				add(20, "speaker/output loopback")
			}
		} else if ep.CanCapture() {
			if matchesAny(ep.Name, professionalPatterns) {
				add(30, "professional input device")
			} else {
				add(15, "generic input device")
			}
		}
		if ep.IsDefault {
			add(10, "system default device")
		}

	case ContextManualRecording:
		switch {
		case ep.IsLoopback:
			add(20, "loopback fallback")
		case ep.CanCapture() && (matchesAny(ep.Name, professionalPatterns) || matchesAny(ep.Name, microphonePatterns)):
			add(40, "dedicated microphone")
			sc.Ideal = true
		case ep.CanCapture():
			add(25, "generic input device")
		}
		if ep.DefaultSampleRate >= 44100 {
			add(5, "high sample rate")
		}

	default:
		if ep.IsLoopback {
			add(30, "loopback source")
		} else if ep.CanCapture() {
			add(20, "input device")
		}
		if ep.IsDefault {
			add(10, "system default device")
		}
	}

	// Universal adjustments.
	if matchesAny(ep.Name, problematicPatterns) {
		add(-5, "known-problematic device pattern")
	}
	if isLowLatencyHostAPI(ep.HostAPI) {
		add(15, "low-latency host API")
	}
	if ep.CanCapture() {
		add(5, "has input channels")
	}

	// Learned history.
	if pref, ok := s.prefs[prefKey(ctx, ep.Name)]; ok && pref.Attempts() >= 1 {
		ratio := pref.SuccessRatio()
		if ratio > 0.8 {
			add(20, "reliable history")
		} else if ratio < 0.3 {
			add(-15, "unreliable history")
		}
		if s.now().Sub(pref.LastUsed) < 24*time.Hour {
			add(10, "used recently")
		}
	}

	switch {
	case sc.Value >= 60:
		sc.Tier = 1
	case sc.Value >= 30:
		sc.Tier = 2
	case sc.Value > 0:
		sc.Tier = 3
	default:
		sc.Tier = 4
	}
	return sc
}

// RecordOutcome is the only mutator of learned state: it updates counts and
// last-used, evaluates the auto-block rule, then persists the full table and
// block-list atomically.
func (s *Selector) RecordOutcome(ep Endpoint, ctx Context, success bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := prefKey(ctx, ep.Name)
	pref := s.prefs[key]
	if success {
		pref.Success++
	} else {
		pref.Failure++
	}
	pref.LastUsed = s.now()
	s.prefs[key] = pref

	// Auto-block: persistently failing devices stop being candidates until
	// explicitly unblocked.
	if pref.Attempts() >= 5 && pref.SuccessRatio() < 0.2 {
		if !s.blocked[ep.Name] {
			s.blocked[ep.Name] = true
			s.log.Warn().
				Str("device", ep.Name).
				Int("attempts", pref.Attempts()).
				Msg("auto-blocked failing capture device")
		}
	}

	return s.store.Save(s.prefs, s.blocked)
}

// Block manually adds an endpoint name to the block-list and persists.
func (s *Selector) Block(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.blocked[name] = true
	return s.store.Save(s.prefs, s.blocked)
}

// Unblock removes an endpoint name from the block-list and persists.
func (s *Selector) Unblock(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.blocked, name)
	return s.store.Save(s.prefs, s.blocked)
}

// IsBlocked reports whether the endpoint name is on the block-list.
func (s *Selector) IsBlocked(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.blocked[name]
}
