package engine

// State is the lifecycle state of an engine instance.
//
//	Uninitialized ──open──▶ Ready ──play──▶ Playing ◀──play/pause──▶ Paused
//	                          │                │                       │
//	                          └──────stop──────┴─────────stop──────────┴──▶ Stopped
//	                                                                         │
//	Ready ◀──────────────────────────────open────────────────────────────────┘
//
//	any ──engine fault──▶ Errored (terminal, teardown and create again)
//
// Play while Playing, Pause while Paused, Stop while Stopped or
// Uninitialized are no-ops. Play or Pause without loaded media,
// Pause from Ready and Open from anything but Uninitialized or Stopped
// are rejected with ErrInvalidTransition. End of file moves an active
// instance to Stopped.
type State int32

const (
	Uninitialized State = iota
	Ready
	Playing
	Paused
	Stopped
	Errored
)

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "Uninitialized"
	case Ready:
		return "Ready"
	case Playing:
		return "Playing"
	case Paused:
		return "Paused"
	case Stopped:
		return "Stopped"
	case Errored:
		return "Errored"
	default:
		return "Unknown"
	}
}

func (s State) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// HasMedia returns true if some media is loaded (Ready, Playing or Paused).
func (s State) HasMedia() bool { return s == Ready || s == Playing || s == Paused }

// IsActive returns true if playback is started (Playing or Paused).
func (s State) IsActive() bool { return s == Playing || s == Paused }

func (s State) CanOpen() bool { return s == Uninitialized || s == Stopped }

func (s State) CanPlay() bool { return s == Ready || s == Paused }

func (s State) CanPause() bool { return s == Playing }
