package stream

import (
	"github.com/AlexxIT/go2a2dp/pkg/a2dp"
)

// Step applies one event to the session and returns the new state with
// the effects to execute. It only reads other sessions, the codec registry
// and link state, it never calls the transport.
func (m *Machine) Step(s *Session, ev Event) (State, []Effect) {
	var fx []Effect

	switch ev := ev.(type) {
	case APIOpen:
		fx = m.onOpen(s, ev)
	case APIClose:
		fx = m.onClose(s)
	case APIStart:
		fx = m.onStart(s)
	case APIStop:
		fx = m.onStop(s, ev)
	case APIReconfig:
		fx = m.onReconfig(s, ev)
	case APIProtectReq:
		if s.State == StateOpen || s.State == StateOpening {
			fx = []Effect{Request{Op: OpSecurity, Peer: s.Peer, SEID: s.SEID, Data: ev.Data}}
		}
	case APIProtectRsp:
		if s.State == StateOpen || s.State == StateOpening {
			fx = []Effect{Request{Op: OpSecurityRsp, Peer: s.Peer, SEID: s.SEID, Code: ev.Code, Data: ev.Data}}
		}
	case IncomingConnect:
		fx = m.onIncoming(s, ev)
	case SDPResult:
		fx = m.onSDPResult(s, ev)
	case ConnectCfm:
		fx = m.onConnectCfm(s, ev)
	case DisconnectInd:
		if s.State != StateInit {
			fx = m.cleanup(s)
		}
	case DiscoverCfm:
		fx = m.onDiscoverCfm(s, ev)
	case GetCapsCfm:
		fx = m.onGetCapsCfm(s, ev)
	case ConfigInd:
		fx = m.onConfigInd(s, ev)
	case OpenCfm:
		fx = m.onOpenCfm(s, ev)
	case StartCfm:
		fx = m.onStartCfm(s, ev)
	case SuspendCfm:
		fx = m.onSuspendCfm(s, ev)
	case CloseCfm:
		fx = m.onCloseCfm(s, ev)
	case ReconfigCfm:
		fx = m.onReconfigCfm(s, ev)
	case SecurityInd:
		fx = m.onSecurityInd(s, ev)
	case SecurityCfm:
		if s.State != StateInit {
			n := s.outcome(KindProtectRsp, statusOf(ev.Code))
			n.Outcome.Code, n.Outcome.Data = ev.Code, ev.Data
			fx = []Effect{n}
		}
	case DelayReport:
		if s.State != StateInit {
			s.Delay = ev.Delay
			n := s.outcome(KindDelayReport, StatusOK)
			n.Outcome.Delay = ev.Delay
			fx = []Effect{AudioCall{Op: AudioDelay, Delay: ev.Delay}, n}
		}
	case RoleChange:
		fx = m.onRoleChange(s, ev)
	case Timeout:
		fx = m.onTimeout(s, ev)
	case OffloadResult:
		if s.State == StateOpen && s.Started {
			fx = []Effect{s.outcome(KindOffload, okStatus(ev.OK))}
		}
	case MediaReady:
		if s.State == StateOpen && s.Started {
			s.enqueue(ev.Payload, ev.Samples, m.cfg.MediaQueue)
			fx = []Effect{SendMedia{}}
		}
	}

	return s.State, fx
}

func statusOf(code Code) Status {
	if code == CodeOK {
		return StatusOK
	}
	return StatusFail
}

func okStatus(ok bool) Status {
	if ok {
		return StatusOK
	}
	return StatusFail
}

// roleCollision - another session waits for a role switch or the link needs one
func (m *Machine) roleCollision(s *Session) bool {
	for _, o := range m.sessions {
		if o != s && o.Waiting(WaitRoleSwitch|WaitStartRole) {
			return true
		}
	}
	return m.link != nil && m.link.RoleSwitchNeeded(s.Peer)
}

func (m *Machine) onOpen(s *Session, ev APIOpen) []Effect {
	switch s.State {
	case StateInit:
		s.Peer = ev.Peer
		s.Requested = true
		s.State = StateOpening

		if m.roleCollision(s) {
			s.Wait |= WaitRoleSwitch
			return []Effect{s.startTimer(TimerRoleSwitch)}
		}
		return []Effect{Search{Peer: s.Peer, Service: s.Role.Peer()}}

	case StateIncoming:
		s.Requested = true

	case StateOpen:
		n := s.outcome(KindOpened, StatusOK)
		n.Outcome.Requested = true
		return []Effect{n}
	}
	return nil
}

func (m *Machine) onIncoming(s *Session, ev IncomingConnect) []Effect {
	if s.State != StateInit {
		return nil
	}
	s.Peer = ev.Peer
	s.State = StateIncoming
	return []Effect{s.startTimer(TimerCollision)}
}

func (m *Machine) onSDPResult(s *Session, ev SDPResult) []Effect {
	if s.State != StateOpening || s.Waiting(WaitRoleSwitch) {
		return nil
	}

	var fx []Effect
	if ev.Found {
		s.Version = ev.Version
		fx = append(fx, Persist{Peer: s.Peer, Version: ev.Version})
	}
	// connect with the default version when the service is not found
	return append(fx, s.request(OpConnect))
}

func (m *Machine) onConnectCfm(s *Session, ev ConnectCfm) []Effect {
	if s.State != StateOpening {
		return nil
	}
	if ev.Code != CodeOK {
		s.status = StatusFailStream
		return m.cleanup(s)
	}
	return []Effect{s.request(OpDiscover)}
}

func (m *Machine) onDiscoverCfm(s *Session, ev DiscoverCfm) []Effect {
	switch {
	case s.State == StateOpening:
		if ev.Code != CodeOK {
			s.status = StatusFailStream
			return m.disconnect(s)
		}
		s.Endpoints = append([]Endpoint(nil), ev.Endpoints...)
		s.scan = -1
		return m.nextEndpoint(s)

	case s.State == StateReconfiguring && s.Waiting(WaitReopen):
		if ev.Code == CodeOK {
			endpoints := make([]Endpoint, len(ev.Endpoints))
			found := false
			for i, ep := range ev.Endpoints {
				// capabilities of a known endpoint stay valid
				for _, old := range s.Endpoints {
					if old.SEID == ep.SEID && ep.Caps == nil {
						ep.Caps = old.Caps
					}
				}
				endpoints[i] = ep
				found = found || ep.SEID == s.reconfigSEID
			}
			s.Endpoints = endpoints
			if found {
				return []Effect{s.reopen()}
			}
		}
		return m.reconfigFail(s)
	}
	return nil
}

// nextEndpoint requests capabilities of the next usable peer endpoint
func (m *Machine) nextEndpoint(s *Session) []Effect {
	for i := s.scan + 1; i < len(s.Endpoints); i++ {
		ep := &s.Endpoints[i]
		if ep.InUse || ep.MediaType != a2dp.MediaTypeAudio || ep.Role == s.Role {
			continue
		}
		s.scan = i
		s.Wait |= WaitCaps
		return []Effect{Request{Op: OpGetCaps, Peer: s.Peer, SEID: ep.SEID}}
	}

	s.Wait &^= WaitCaps
	return m.selectEndpoint(s)
}

// selectEndpoint opens the endpoint of the best codec the peer supports
func (m *Machine) selectEndpoint(s *Session) []Effect {
	var caps [][]byte
	for _, ep := range s.Endpoints {
		if ep.Caps != nil {
			caps = append(caps, ep.Caps)
		}
	}

	if caps == nil {
		if s.scan >= 0 {
			s.status = StatusFailGetCap
		} else {
			s.status = StatusFailStream
		}
		return m.disconnect(s)
	}

	config, err := m.codecs.Select(caps)
	if err != nil {
		m.log.Debug().Err(err).Msgf("[stream] handle=%d no common codec", s.Handle)
		s.status = StatusFailGetCap
		return m.disconnect(s)
	}

	ep, ok := s.EndpointOf(config)
	if !ok {
		s.status = StatusFailGetCap
		return m.disconnect(s)
	}

	s.SEID = ep.SEID
	s.Config = config

	req := s.request(OpOpen)
	req.Config = config
	return []Effect{req}
}

func (m *Machine) onGetCapsCfm(s *Session, ev GetCapsCfm) []Effect {
	if s.State != StateOpening || !s.Waiting(WaitCaps) {
		return nil
	}
	s.Wait &^= WaitCaps

	ep := &s.Endpoints[s.scan]
	if ev.Code == CodeOK {
		ep.Caps = ev.Caps
	} else {
		m.log.Debug().Msgf("[stream] handle=%d skip seid=%d code=%d", s.Handle, ep.SEID, ev.Code)
	}
	return m.nextEndpoint(s)
}

func (m *Machine) onConfigInd(s *Session, ev ConfigInd) []Effect {
	rsp := Request{Op: OpConfigRsp, Peer: s.Peer, SEID: ev.SEID}

	if s.State != StateIncoming {
		rsp.Code = CodeBadState
		return []Effect{rsp}
	}

	res, err := m.codecs.SetOtaConfig(ev.Config)
	if err != nil {
		m.log.Debug().Err(err).Msgf("[stream] handle=%d reject config", s.Handle)

		rsp.Code = CodeUnsupportedConfig
		fx := []Effect{s.stopTimer(TimerCollision), rsp, s.outcome(KindRejected, StatusFail)}
		s.Reset()
		return fx
	}

	s.SEID = ev.SEID
	s.Config = res.Config

	// wait for the peer to open, same guard as the collision
	return []Effect{rsp, s.startTimer(TimerCollision)}
}

func (m *Machine) onOpenCfm(s *Session, ev OpenCfm) []Effect {
	switch s.State {
	case StateOpening, StateIncoming:
		if ev.Code != CodeOK {
			s.status = StatusFailStream
			return m.disconnect(s)
		}

		s.State = StateOpen
		s.Opened = true
		s.MTU, s.L2CID, s.ACL = ev.MTU, ev.L2CID, ev.ACL

		n := s.outcome(KindOpened, StatusOK)
		n.Outcome.Requested = s.Requested
		s.Requested = false

		return []Effect{
			s.stopTimer(TimerCollision),
			AudioCall{Op: AudioUpdate, Config: s.Config},
			AudioCall{Op: AudioStartSession},
			n,
		}

	case StateReconfiguring:
		if !s.Waiting(WaitReopen) {
			return nil
		}
		if ev.Code != CodeOK {
			if s.Retries++; s.Retries > MaxReconfigRetries {
				return m.reconfigFail(s)
			}
			return []Effect{s.reopen()}
		}

		s.MTU, s.L2CID, s.ACL = ev.MTU, ev.L2CID, ev.ACL
		s.SEID, s.Config = s.reconfigSEID, s.reconfigConfig
		return m.reconfigured(s)
	}

	return nil
}

func (m *Machine) onStart(s *Session) []Effect {
	switch s.State {
	case StateOpen:
		return m.start(s)
	case StateReconfiguring:
		s.Wait |= WaitRestart
	}
	return nil
}

func (m *Machine) start(s *Session) []Effect {
	if s.Started {
		return []Effect{s.outcome(KindStarted, StatusOK)}
	}
	if m.link != nil && m.link.SCOActive(s.Peer) {
		// voice call owns the radio, no retry
		return []Effect{s.outcome(KindStartFailed, StatusFailResources)}
	}
	if s.Waiting(WaitStart | WaitStartRole) {
		return nil
	}
	if m.link != nil && m.link.RoleSwitchNeeded(s.Peer) {
		s.Wait |= WaitStartRole
		return []Effect{s.request(OpRoleSwitch), s.startTimer(TimerRoleSwitch)}
	}
	return m.startStream(s)
}

func (m *Machine) startStream(s *Session) []Effect {
	s.Wait |= WaitStart
	return []Effect{s.request(OpBlockRoleSwitch), s.request(OpStart)}
}

func (m *Machine) onStartCfm(s *Session, ev StartCfm) []Effect {
	if s.State != StateOpen {
		return nil
	}
	s.Wait &^= WaitStart

	if ev.Code != CodeOK {
		n := s.outcome(KindStartFailed, StatusFailStream)
		n.Outcome.Code = ev.Code
		n.Outcome.Initiator = ev.Initiator
		return []Effect{s.request(OpUnblockRoleSwitch), AudioCall{Op: AudioStarted, Ack: false}, n}
	}

	s.Started = true
	s.MarkerBit = m.codecs.MarkerBit()

	n := s.outcome(KindStarted, StatusOK)
	n.Outcome.Initiator = ev.Initiator

	fx := []Effect{AudioCall{Op: AudioStarted, Ack: true}, n}
	if m.cfg.Offload {
		fx = append(fx, OffloadStart{})
	}
	return fx
}

// stopStream - offload and queued media never survive a stop
func (m *Machine) stopStream(s *Session) []Effect {
	s.media = nil
	fx := []Effect{OffloadCancel{}}
	if s.Started {
		s.Started = false
		fx = append(fx, s.request(OpUnblockRoleSwitch))
	}
	s.Wait &^= WaitStart | WaitStartRole
	return fx
}

func (m *Machine) onStop(s *Session, ev APIStop) []Effect {
	if s.State != StateOpen {
		return nil
	}

	if ev.Suspend && s.Started && s.SuspendSupported {
		s.media = nil
		fx := []Effect{OffloadCancel{}}
		if !s.Waiting(WaitSuspend) {
			s.Wait |= WaitSuspend
			fx = append(fx, s.request(OpSuspend))
		}
		return fx
	}

	fx := m.stopStream(s)
	return append(fx, AudioCall{Op: AudioSuspended, Ack: true}, s.outcome(KindStopped, StatusOK))
}

func (m *Machine) onSuspendCfm(s *Session, ev SuspendCfm) []Effect {
	if !s.Started {
		// collision of suspend requests from both sides
		return nil
	}
	s.Wait &^= WaitSuspend

	failed := ev.Code != CodeOK
	if ev.Code == CodeBadState && m.cfg.SuspendPolicy == PolicyLenient {
		failed = false
	}

	if s.State == StateReconfiguring && s.Waiting(WaitReconfig) {
		s.Wait &^= WaitReconfig
		fx := m.stopStream(s)

		if !failed {
			req := Request{Op: OpReconfig, Peer: s.Peer, SEID: s.reconfigSEID, Config: s.reconfigConfig}
			return append(fx, req)
		}
		if ev.Code == CodeConnect {
			return append(fx, m.reconfigFail(s)...)
		}
		s.Wait |= WaitReopen
		return append(fx, s.request(OpClose))
	}

	if failed {
		n := s.outcome(KindSuspended, StatusFail)
		n.Outcome.Code = ev.Code
		n.Outcome.Initiator = ev.Initiator
		fx := []Effect{AudioCall{Op: AudioSuspended, Ack: false}, n}
		return append(fx, m.close(s)...)
	}

	fx := m.stopStream(s)
	n := s.outcome(KindSuspended, StatusOK)
	n.Outcome.Initiator = ev.Initiator
	return append(fx, AudioCall{Op: AudioSuspended, Ack: true}, n)
}

func (m *Machine) onReconfig(s *Session, ev APIReconfig) []Effect {
	if s.State != StateOpen {
		return nil
	}

	s.State = StateReconfiguring
	s.Retries = 0
	s.reconfigSEID, s.reconfigConfig = ev.SEID, ev.Config

	if s.Started {
		s.Wait |= WaitRestart
	}

	if ev.SEID == s.SEID && ev.Suspend && s.ReconfigSupported && s.SuspendSupported {
		if s.Started {
			s.Wait |= WaitSuspend | WaitReconfig
			s.media = nil
			return []Effect{OffloadCancel{}, s.request(OpSuspend)}
		}
		return []Effect{Request{Op: OpReconfig, Peer: s.Peer, SEID: ev.SEID, Config: ev.Config}}
	}

	s.Wait |= WaitReopen
	fx := m.stopStream(s)
	return append(fx, s.request(OpClose))
}

func (s *Session) reopen() Request {
	return Request{Op: OpOpen, Peer: s.Peer, SEID: s.reconfigSEID, Config: s.reconfigConfig}
}

func (m *Machine) reconfigured(s *Session) []Effect {
	s.State = StateOpen
	s.Wait &^= WaitReopen | WaitReconfig | WaitSuspend

	fx := []Effect{AudioCall{Op: AudioUpdate, Config: s.Config}, s.outcome(KindReconfigured, StatusOK)}

	if s.Waiting(WaitRestart) {
		s.Wait &^= WaitRestart
		fx = append(fx, m.start(s)...)
	}
	return fx
}

// reconfigFail - terminal, the session is abandoned
func (m *Machine) reconfigFail(s *Session) []Effect {
	s.Wait = 0
	fx := []Effect{s.outcome(KindReconfigFailed, StatusFail)}
	return append(fx, m.disconnect(s)...)
}

func (m *Machine) onReconfigCfm(s *Session, ev ReconfigCfm) []Effect {
	if s.State != StateReconfiguring || s.Waiting(WaitReopen) {
		return nil
	}

	if ev.Code == CodeOK {
		s.SEID = s.reconfigSEID
		if ev.Config != nil {
			s.Config = ev.Config
		} else {
			s.Config = s.reconfigConfig
		}
		return m.reconfigured(s)
	}

	// timeouts keep the feature, explicit rejections disable it
	if ev.Code != CodeTimeout {
		s.ReconfigSupported = false
	}
	if s.Retries++; s.Retries > MaxReconfigRetries {
		return m.reconfigFail(s)
	}
	s.Wait |= WaitReopen
	return []Effect{s.request(OpClose)}
}

func (m *Machine) onCloseCfm(s *Session, ev CloseCfm) []Effect {
	switch s.State {
	case StateReconfiguring:
		if !s.Waiting(WaitReopen) {
			return nil
		}
		if ev.Code != CodeOK {
			if s.Retries++; s.Retries > MaxReconfigRetries {
				return m.reconfigFail(s)
			}
			return []Effect{s.request(OpClose)}
		}
		// stream is closed, signalling stays: discover and open again
		return []Effect{s.request(OpDiscover)}

	case StateOpen:
		// closed by peer
		fx := m.stopStream(s)
		return append(fx, m.disconnect(s)...)

	case StateOpening, StateClosing:
		return []Effect{s.request(OpDisconnect)}
	}
	return nil
}

func (m *Machine) onClose(s *Session) []Effect {
	switch s.State {
	case StateIncoming, StateOpening:
		s.status = StatusFail
		fx := []Effect{s.stopTimer(TimerRoleSwitch), s.stopTimer(TimerCollision)}
		s.Wait = 0
		return append(fx, m.disconnect(s)...)
	case StateOpen, StateReconfiguring:
		return m.close(s)
	}
	return nil
}

// close the stream, the watchdog disconnects if the peer is silent
func (m *Machine) close(s *Session) []Effect {
	fx := m.stopStream(s)
	s.Wait = 0
	s.State = StateClosing
	return append(fx, s.request(OpClose), s.startTimer(TimerClose))
}

func (m *Machine) disconnect(s *Session) []Effect {
	s.State = StateClosing
	return []Effect{s.request(OpDisconnect), s.startTimer(TimerClose)}
}

// cleanup reports the result of the attempt and resets the session
func (m *Machine) cleanup(s *Session) []Effect {
	fx := []Effect{
		s.stopTimer(TimerRoleSwitch),
		s.stopTimer(TimerCollision),
		s.stopTimer(TimerClose),
		s.request(OpUnblockRoleSwitch),
		OffloadCancel{},
	}

	if s.Opened {
		fx = append(fx, AudioCall{Op: AudioEndSession}, s.outcome(KindClosed, StatusOK))
	} else {
		n := s.outcome(KindOpenFailed, s.status)
		n.Outcome.Requested = s.Requested
		fx = append(fx, n)
	}

	s.Reset()
	return fx
}

func (m *Machine) onSecurityInd(s *Session, ev SecurityInd) []Effect {
	if s.State != StateOpen && s.State != StateOpening {
		return []Effect{Request{Op: OpSecurityRsp, Peer: s.Peer, SEID: s.SEID, Code: CodeBadState}}
	}
	n := s.outcome(KindProtectReq, StatusOK)
	n.Outcome.Data = ev.Data
	return []Effect{n}
}

func (m *Machine) onRoleChange(s *Session, ev RoleChange) []Effect {
	switch {
	case s.State == StateOpening && s.Waiting(WaitRoleSwitch):
		s.Wait &^= WaitRoleSwitch
		if ev.Code != CodeOK {
			s.status = StatusFailRole
			return m.cleanup(s)
		}
		return []Effect{s.stopTimer(TimerRoleSwitch), Search{Peer: s.Peer, Service: s.Role.Peer()}}

	case s.State == StateOpen && s.Waiting(WaitStartRole):
		s.Wait &^= WaitStartRole
		fx := []Effect{s.stopTimer(TimerRoleSwitch)}
		if ev.Code != CodeOK {
			return append(fx, s.outcome(KindStartFailed, StatusFailRole))
		}
		return append(fx, m.startStream(s)...)
	}
	return nil
}

func (m *Machine) onTimeout(s *Session, ev Timeout) []Effect {
	if ev.Timer >= timerCount || ev.Gen != s.gens[ev.Timer] {
		return nil // superseded
	}

	switch ev.Timer {
	case TimerRoleSwitch:
		switch {
		case s.State == StateOpening && s.Waiting(WaitRoleSwitch):
			if m.roleCollision(s) {
				// still colliding, switch now and wait for RoleChange
				return []Effect{s.request(OpRoleSwitch)}
			}
			s.Wait &^= WaitRoleSwitch
			return []Effect{Search{Peer: s.Peer, Service: s.Role.Peer()}}

		case s.State == StateOpen && s.Waiting(WaitStartRole):
			// no role change in time, start anyway
			s.Wait &^= WaitStartRole
			return m.startStream(s)
		}

	case TimerCollision:
		if s.State != StateIncoming {
			return nil
		}
		// act as initiator
		s.State = StateOpening
		if s.Config != nil {
			req := s.request(OpOpen)
			req.Config = s.Config
			return []Effect{req}
		}
		return []Effect{s.request(OpDiscover)}

	case TimerClose:
		if s.State == StateClosing {
			fx := []Effect{s.request(OpDisconnect)}
			return append(fx, m.cleanup(s)...)
		}
	}

	return nil
}
