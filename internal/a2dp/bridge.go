package a2dp

import (
	"errors"
	"fmt"
	"sync"

	"github.com/AlexxIT/go2a2dp/internal/api/ws"
	"github.com/AlexxIT/go2a2dp/pkg/stream"
	"github.com/pion/rtp"
	"github.com/rs/zerolog"
)

var ErrNoBridge = errors.New("a2dp: lower stack is not attached")

// Bridge - AVDTP transport, HCI vendor commands and link state of the
// lower stack, attached over the websocket
type Bridge struct {
	tr *ws.Transport

	sco  map[string]bool
	role map[string]bool

	log zerolog.Logger
	mu  sync.Mutex
}

func NewBridge(log zerolog.Logger) *Bridge {
	return &Bridge{sco: map[string]bool{}, role: map[string]bool{}, log: log}
}

// Attach replaces the previous lower stack connection
func (b *Bridge) Attach(tr *ws.Transport) {
	b.mu.Lock()
	b.tr = tr
	b.mu.Unlock()

	tr.OnClose(func() {
		b.mu.Lock()
		if b.tr == tr {
			b.tr = nil
			b.sco = map[string]bool{}
			b.role = map[string]bool{}
		}
		b.mu.Unlock()
	})
}

func (b *Bridge) Attached() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.tr != nil
}

func (b *Bridge) write(msgType string, value any) error {
	b.mu.Lock()
	tr := b.tr
	b.mu.Unlock()

	if tr == nil {
		return ErrNoBridge
	}
	return tr.WriteErr(&ws.Message{Type: msgType, Value: value})
}

type request struct {
	Handle uint8 `json:"handle"`
	stream.Request
}

func (b *Bridge) Request(handle uint8, req stream.Request) error {
	return b.write("a2dp/request", request{Handle: handle, Request: req})
}

type media struct {
	Handle uint8  `json:"handle"`
	Data   []byte `json:"data"`
}

func (b *Bridge) SendMedia(handle uint8, packet *rtp.Packet) error {
	data, err := packet.Marshal()
	if err != nil {
		return err
	}
	return b.write("a2dp/media", media{Handle: handle, Data: data})
}

type vendorCommand struct {
	Opcode uint16 `json:"opcode"`
	Data   []byte `json:"data"`
}

func (b *Bridge) SendVendorCommand(opcode uint16, payload []byte) error {
	return b.write("a2dp/vendor_command", vendorCommand{Opcode: opcode, Data: payload})
}

// link - baseband state of one peer
type link struct {
	Peer       string `json:"peer"`
	SCO        bool   `json:"sco"`
	RoleSwitch bool   `json:"role_switch"`
}

func (b *Bridge) SetLink(l link) {
	b.mu.Lock()
	b.sco[l.Peer] = l.SCO
	b.role[l.Peer] = l.RoleSwitch
	b.mu.Unlock()
}

func (b *Bridge) SCOActive(peer string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.sco[peer]
}

func (b *Bridge) RoleSwitchNeeded(peer string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.role[peer]
}

// event - indication or confirmation of the lower stack
type event struct {
	Handle uint8       `json:"handle"`
	Event  string      `json:"event"`
	Code   stream.Code `json:"code"`

	Peer      string            `json:"peer"`
	SEID      uint8             `json:"seid"`
	Endpoints []stream.Endpoint `json:"endpoints"`
	Caps      []byte            `json:"caps"`
	Config    []byte            `json:"config"`
	Data      []byte            `json:"data"`
	Initiator bool              `json:"initiator"`

	MTU   uint16 `json:"mtu"`
	L2CID uint16 `json:"l2cid"`
	ACL   uint16 `json:"acl"`
	Delay uint16 `json:"delay"`

	Found   bool   `json:"found"`
	Version uint16 `json:"version"`

	Payload []byte `json:"payload"`
	Samples uint32 `json:"samples"`
}

func decodeEvent(e *event) (stream.Event, error) {
	switch e.Event {
	case "incoming":
		if e.Peer == "" {
			return nil, errors.New("a2dp: incoming without peer")
		}
		return stream.IncomingConnect{Peer: e.Peer}, nil
	case "sdp_result":
		return stream.SDPResult{Found: e.Found, Version: e.Version}, nil
	case "connect_cfm":
		return stream.ConnectCfm{Code: e.Code}, nil
	case "disconnect":
		return stream.DisconnectInd{}, nil
	case "discover_cfm":
		return stream.DiscoverCfm{Endpoints: e.Endpoints, Code: e.Code}, nil
	case "get_caps_cfm":
		return stream.GetCapsCfm{Caps: e.Caps, Code: e.Code}, nil
	case "config_ind":
		return stream.ConfigInd{SEID: e.SEID, Config: e.Config}, nil
	case "open_cfm":
		return stream.OpenCfm{Code: e.Code, MTU: e.MTU, L2CID: e.L2CID, ACL: e.ACL}, nil
	case "start_cfm":
		return stream.StartCfm{Code: e.Code, Initiator: e.Initiator}, nil
	case "suspend_cfm":
		return stream.SuspendCfm{Code: e.Code, Initiator: e.Initiator}, nil
	case "close_cfm":
		return stream.CloseCfm{Code: e.Code}, nil
	case "reconfig_cfm":
		return stream.ReconfigCfm{Code: e.Code, Config: e.Config}, nil
	case "security_ind":
		return stream.SecurityInd{Data: e.Data}, nil
	case "security_cfm":
		return stream.SecurityCfm{Code: e.Code, Data: e.Data}, nil
	case "delay_report":
		return stream.DelayReport{Delay: e.Delay}, nil
	case "role_change":
		return stream.RoleChange{Code: e.Code}, nil
	case "media":
		return stream.MediaReady{Payload: e.Payload, Samples: e.Samples}, nil
	}
	return nil, fmt.Errorf("a2dp: unknown event %q", e.Event)
}

// hub - websocket clients subscribed to outcomes
type hub struct {
	clients map[*ws.Transport]struct{}
	mu      sync.Mutex
}

func (h *hub) add(tr *ws.Transport) {
	h.mu.Lock()
	if h.clients == nil {
		h.clients = map[*ws.Transport]struct{}{}
	}
	h.clients[tr] = struct{}{}
	h.mu.Unlock()

	tr.OnClose(func() {
		h.mu.Lock()
		delete(h.clients, tr)
		h.mu.Unlock()
	})
}

func (h *hub) broadcast(o stream.Outcome) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for tr := range h.clients {
		tr.Write(&ws.Message{Type: "a2dp/outcome", Value: o})
	}
}

func wsBridge(tr *ws.Transport, msg *ws.Message) error {
	bridge.Attach(tr)
	log.Info().Str("remote", remoteAddr(tr)).Msg("[a2dp] lower stack attached")
	tr.Write(&ws.Message{Type: "a2dp/bridge", Value: machine.Sessions()})
	return nil
}

func wsEvent(tr *ws.Transport, msg *ws.Message) error {
	var e event
	if err := msg.Unmarshal(&e); err != nil {
		return err
	}

	ev, err := decodeEvent(&e)
	if err != nil {
		return err
	}

	return machine.Post(e.Handle, ev)
}

func wsVendor(tr *ws.Transport, msg *ws.Message) error {
	if controller == nil {
		return errors.New("a2dp: offload disabled")
	}

	var v struct {
		Data []byte `json:"data"`
	}
	if err := msg.Unmarshal(&v); err != nil {
		return err
	}

	controller.OnVendorResponse(v.Data)
	return nil
}

func wsLink(tr *ws.Transport, msg *ws.Message) error {
	var l link
	if err := msg.Unmarshal(&l); err != nil {
		return err
	}
	if l.Peer == "" {
		return errors.New("a2dp: link without peer")
	}

	bridge.SetLink(l)
	return nil
}

func wsSubscribe(tr *ws.Transport, msg *ws.Message) error {
	subscribers.add(tr)
	return nil
}

func remoteAddr(tr *ws.Transport) string {
	if tr.Request == nil {
		return ""
	}
	return tr.Request.RemoteAddr
}
