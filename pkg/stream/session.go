package stream

import (
	"github.com/AlexxIT/go2a2dp/pkg/a2dp"
	"github.com/pion/rtp"
)

// Wait - pending sub operations of a session
type Wait uint16

const (
	WaitRoleSwitch Wait = 1 << iota // open deferred behind a role switch
	WaitStartRole                   // start waits for a role switch
	WaitCaps                        // get capabilities outstanding
	WaitStart                       // start request outstanding
	WaitSuspend                     // suspend request outstanding
	WaitReconfig                    // reconfigure after suspend
	WaitReopen                      // reconfigure by close and reopen
	WaitRestart                     // start again after reconfigure
)

// Session - one connection slot
type Session struct {
	Handle uint8     `json:"handle"`
	Role   a2dp.Role `json:"role"`

	Peer      string     `json:"peer,omitempty"`
	State     State      `json:"state"`
	Wait      Wait       `json:"wait,omitempty"`
	Endpoints []Endpoint `json:"endpoints,omitempty"`
	SEID      uint8      `json:"seid,omitempty"`
	Config    []byte     `json:"config,omitempty"`
	Retries   int        `json:"retries,omitempty"`

	Opened    bool `json:"opened"`
	Started   bool `json:"started"`
	MarkerBit bool `json:"marker_bit,omitempty"`
	Requested bool `json:"requested,omitempty"`

	SuspendSupported  bool `json:"suspend_supported"`
	ReconfigSupported bool `json:"reconfig_supported"`

	MTU     uint16 `json:"mtu,omitempty"`
	L2CID   uint16 `json:"l2cid,omitempty"`
	ACL     uint16 `json:"acl,omitempty"`
	Version uint16 `json:"avdtp_version,omitempty"`
	Delay   uint16 `json:"delay,omitempty"`

	scan   int
	status Status

	reconfigSEID   uint8
	reconfigConfig []byte

	media     []*rtp.Packet
	sequence  uint16
	timestamp uint32

	gens [timerCount]uint32
}

func NewSession(handle uint8, role a2dp.Role) *Session {
	s := &Session{Handle: handle, Role: role}
	s.Reset()
	return s
}

// Reset - back to Init, ready for the next connection attempt.
// Timer generations survive, so older timers stay stale.
func (s *Session) Reset() {
	gens := s.gens
	for i := range gens {
		gens[i]++
	}

	*s = Session{
		Handle:            s.Handle,
		Role:              s.Role,
		SuspendSupported:  true,
		ReconfigSupported: true,
		scan:              -1,
		status:            StatusFailStream,
		gens:              gens,
	}
}

func (s *Session) Waiting(w Wait) bool {
	return s.Wait&w != 0
}

// Queued - RTP packets not sent yet
func (s *Session) Queued() int {
	return len(s.media)
}

func (s *Session) startTimer(t Timer) Effect {
	s.gens[t]++
	return TimerStart{Timer: t, Gen: s.gens[t]}
}

func (s *Session) stopTimer(t Timer) Effect {
	s.gens[t]++
	return TimerStop{Timer: t}
}

func (s *Session) outcome(kind Kind, status Status) Notify {
	return Notify{Outcome: Outcome{
		Kind: kind, Handle: s.Handle, Peer: s.Peer, Status: status, Config: s.Config,
	}}
}

func (s *Session) request(op Op) Request {
	return Request{Op: op, Peer: s.Peer, SEID: s.SEID}
}

// EndpointOf - peer endpoint whose capabilities carry the codec of config
func (s *Session) EndpointOf(config []byte) (Endpoint, bool) {
	h, err := a2dp.ParseHeader(config)
	if err != nil {
		return Endpoint{}, false
	}
	return s.EndpointFor(h.ID)
}

// EndpointFor - first peer endpoint with capabilities of the codec
func (s *Session) EndpointFor(id a2dp.CodecID) (Endpoint, bool) {
	for _, ep := range s.Endpoints {
		if ep.Caps == nil {
			continue
		}
		if h, err := a2dp.ParseHeader(ep.Caps); err == nil && h.ID == id {
			return ep, true
		}
	}
	return Endpoint{}, false
}
