package stream

import (
	"fmt"

	"github.com/AlexxIT/go2a2dp/pkg/a2dp"
)

// Effect - side effect of a transition, executed by Machine.Handle
type Effect interface {
	effect()
}

// Op - transport primitive
type Op byte

const (
	OpConnect Op = iota + 1
	OpDisconnect
	OpDiscover
	OpGetCaps
	OpOpen
	OpStart
	OpSuspend
	OpClose
	OpReconfig
	OpConfigRsp
	OpSecurity
	OpSecurityRsp
	OpRoleSwitch
	OpBlockRoleSwitch
	OpUnblockRoleSwitch
)

var opNames = map[Op]string{
	OpConnect:           "connect",
	OpDisconnect:        "disconnect",
	OpDiscover:          "discover",
	OpGetCaps:           "get_caps",
	OpOpen:              "open",
	OpStart:             "start",
	OpSuspend:           "suspend",
	OpClose:             "close",
	OpReconfig:          "reconfig",
	OpConfigRsp:         "config_rsp",
	OpSecurity:          "security",
	OpSecurityRsp:       "security_rsp",
	OpRoleSwitch:        "role_switch",
	OpBlockRoleSwitch:   "block_role_switch",
	OpUnblockRoleSwitch: "unblock_role_switch",
}

func (o Op) String() string {
	if s, ok := opNames[o]; ok {
		return s
	}
	return fmt.Sprintf("op(%d)", byte(o))
}

func (o Op) MarshalText() ([]byte, error) {
	return []byte(o.String()), nil
}

// Request - transport primitive request
type Request struct {
	Op     Op     `json:"op"`
	Peer   string `json:"peer,omitempty"`
	SEID   uint8  `json:"seid,omitempty"`
	Config []byte `json:"config,omitempty"`
	Code   Code   `json:"code,omitempty"`
	Data   []byte `json:"data,omitempty"`
}

// Search - service discovery of the complementary role
type Search struct {
	Peer    string
	Service a2dp.Role
}

// Persist - store peer AVDTP version
type Persist struct {
	Peer    string
	Version uint16
}

type AudioOp byte

const (
	AudioUpdate AudioOp = iota + 1
	AudioStartSession
	AudioEndSession
	AudioStarted
	AudioSuspended
	AudioDelay
)

// AudioCall - audio back-end call
type AudioCall struct {
	Op     AudioOp
	Config []byte
	Ack    bool
	Delay  uint16
}

type TimerStart struct {
	Timer Timer
	Gen   uint32
}

type TimerStop struct {
	Timer Timer
}

type Notify struct {
	Outcome Outcome
}

// OffloadStart - request hardware encoding of the started stream
type OffloadStart struct{}

// OffloadCancel - stop hardware encoding of the session, if any
type OffloadCancel struct{}

// SendMedia - flush queued RTP packets
type SendMedia struct{}

func (Request) effect()       {}
func (Search) effect()        {}
func (Persist) effect()       {}
func (AudioCall) effect()     {}
func (TimerStart) effect()    {}
func (TimerStop) effect()     {}
func (Notify) effect()        {}
func (OffloadStart) effect()  {}
func (OffloadCancel) effect() {}
func (SendMedia) effect()     {}

type Kind byte

const (
	KindOpened Kind = iota + 1
	KindOpenFailed
	KindStarted
	KindStartFailed
	KindStopped
	KindSuspended
	KindClosed
	KindReconfigured
	KindReconfigFailed
	KindRejected
	KindProtectReq
	KindProtectRsp
	KindDelayReport
	KindOffload
	KindAudioRejected
)

var kindNames = map[Kind]string{
	KindOpened:         "opened",
	KindOpenFailed:     "open_failed",
	KindStarted:        "started",
	KindStartFailed:    "start_failed",
	KindStopped:        "stopped",
	KindSuspended:      "suspended",
	KindClosed:         "closed",
	KindReconfigured:   "reconfigured",
	KindReconfigFailed: "reconfig_failed",
	KindRejected:       "rejected",
	KindProtectReq:     "protect_req",
	KindProtectRsp:     "protect_rsp",
	KindDelayReport:    "delay_report",
	KindOffload:        "offload",
	KindAudioRejected:  "audio_rejected",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("kind(%d)", byte(k))
}

func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// Outcome - reported result of a request or an indication
type Outcome struct {
	Kind      Kind   `json:"kind"`
	Handle    uint8  `json:"handle"`
	Peer      string `json:"peer,omitempty"`
	Status    Status `json:"status"`
	Code      Code   `json:"code,omitempty"`
	Config    []byte `json:"config,omitempty"`
	Data      []byte `json:"data,omitempty"`
	Delay     uint16 `json:"delay,omitempty"`
	Initiator bool   `json:"initiator,omitempty"`
	Requested bool   `json:"requested,omitempty"` // local open request was pending
}
