package stream

import (
	"github.com/AlexxIT/go2a2dp/pkg/a2dp"
)

// Event - local request or transport indication, consumed by Machine.Step
type Event interface {
	event()
}

// local API requests

type APIOpen struct {
	Peer string
}

type APIClose struct{}

type APIStart struct{}

type APIStop struct {
	Suspend bool
}

type APIReconfig struct {
	SEID    uint8
	Config  []byte
	Suspend bool
}

type APIProtectReq struct {
	Data []byte
}

type APIProtectRsp struct {
	Code Code
	Data []byte
}

// transport and collaborator indications

type IncomingConnect struct {
	Peer string
}

type SDPResult struct {
	Found   bool
	Version uint16
}

type ConnectCfm struct {
	Code Code
}

type DisconnectInd struct{}

type DiscoverCfm struct {
	Endpoints []Endpoint
	Code      Code
}

type GetCapsCfm struct {
	Caps []byte
	Code Code
}

type ConfigInd struct {
	SEID   uint8
	Config []byte
}

type OpenCfm struct {
	Code  Code
	MTU   uint16
	L2CID uint16
	ACL   uint16
}

type StartCfm struct {
	Code      Code
	Initiator bool
}

type SuspendCfm struct {
	Code      Code
	Initiator bool
}

type CloseCfm struct {
	Code Code
}

type ReconfigCfm struct {
	Code   Code
	Config []byte
}

type SecurityInd struct {
	Data []byte
}

type SecurityCfm struct {
	Code Code
	Data []byte
}

type DelayReport struct {
	Delay uint16 // 1/10 ms
}

type RoleChange struct {
	Code Code
}

type Timeout struct {
	Timer Timer
	Gen   uint32
}

type OffloadResult struct {
	OK bool
}

type MediaReady struct {
	Payload []byte
	Samples uint32 // per channel, for the RTP timestamp
}

func (APIOpen) event()         {}
func (APIClose) event()        {}
func (APIStart) event()        {}
func (APIStop) event()         {}
func (APIReconfig) event()     {}
func (APIProtectReq) event()   {}
func (APIProtectRsp) event()   {}
func (IncomingConnect) event() {}
func (SDPResult) event()       {}
func (ConnectCfm) event()      {}
func (DisconnectInd) event()   {}
func (DiscoverCfm) event()     {}
func (GetCapsCfm) event()      {}
func (ConfigInd) event()       {}
func (OpenCfm) event()         {}
func (StartCfm) event()        {}
func (SuspendCfm) event()      {}
func (CloseCfm) event()        {}
func (ReconfigCfm) event()     {}
func (SecurityInd) event()     {}
func (SecurityCfm) event()     {}
func (DelayReport) event()     {}
func (RoleChange) event()      {}
func (Timeout) event()         {}
func (OffloadResult) event()   {}
func (MediaReady) event()      {}

// Endpoint - stream endpoint advertised by the peer
type Endpoint struct {
	SEID      uint8     `json:"seid"`
	InUse     bool      `json:"in_use"`
	MediaType byte      `json:"media_type"`
	Role      a2dp.Role `json:"role"`
	Caps      []byte    `json:"caps,omitempty"` // filled by get capabilities
}
