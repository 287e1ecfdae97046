package stream

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/AlexxIT/go2a2dp/pkg/a2dp"
	"github.com/AlexxIT/go2a2dp/pkg/offload"
	"github.com/pion/rtp"
	"github.com/rs/zerolog"
)

// Codecs - codec registry used by the transitions, *a2dp.Registry
type Codecs interface {
	Select(peerCaps [][]byte) ([]byte, error)
	SetOtaConfig(peerConfig []byte) (a2dp.Result, error)
	MarkerBit() bool
	OffloadParams() (a2dp.OffloadInfo, bool)
}

// Transport - AVDTP signalling and media channel
type Transport interface {
	Request(handle uint8, req Request) error
	SendMedia(handle uint8, packet *rtp.Packet) error
}

// Discovery - service search, the result is posted back as SDPResult
type Discovery interface {
	Search(handle uint8, peer string, service a2dp.Role) error
}

// AudioConfig - negotiated stream shape for the audio back-end
type AudioConfig struct {
	Handle uint8
	Codec  string
	Audio  a2dp.Audio
	Config []byte
}

type AudioBackend interface {
	// UpdateAudioConfig returns false if the back-end can't take this shape
	UpdateAudioConfig(cfg AudioConfig) bool
	StartSession(handle uint8) error
	EndSession(handle uint8) error
	StreamStarted(handle uint8, ack bool)
	StreamSuspended(handle uint8, ack bool)
	DelayReport(handle uint8, delay uint16)
}

// Storage - persistent peer records
type Storage interface {
	SetAVDTPVersion(peer string, version uint16) error
}

// Link - baseband state of the peer connection
type Link interface {
	SCOActive(peer string) bool
	RoleSwitchNeeded(peer string) bool
}

type Offloader interface {
	RequestStart(s offload.Stream, p offload.Params) error
	Cancel(handle uint8) error
}

// Deps - collaborators, only Codecs and Transport are required
type Deps struct {
	Codecs    Codecs
	Transport Transport
	Discovery Discovery
	Audio     AudioBackend
	Storage   Storage
	Link      Link
	Offload   Offloader
}

type item struct {
	handle uint8
	ev     Event
}

type timerKey struct {
	handle uint8
	timer  Timer
}

// Machine owns all sessions. Events are processed one at a time,
// either by Run from the queue or by a direct Handle call.
type Machine struct {
	// OnOutcome receives the outcomes of each Handle call in order,
	// after the session lock is released
	OnOutcome func(o Outcome)

	cfg Config

	codecs    Codecs
	transport Transport
	discovery Discovery
	audio     AudioBackend
	storage   Storage
	link      Link
	offload   Offloader

	sessions []*Session
	timers   map[timerKey]*time.Timer

	queue chan item
	done  chan struct{}
	once  sync.Once

	// events raised while handling, processed before Handle returns
	pending  []item
	outcomes []Outcome

	log zerolog.Logger
	mu  sync.Mutex
}

func NewMachine(cfg Config, deps Deps, slots int, log zerolog.Logger) *Machine {
	if deps.Codecs == nil || deps.Transport == nil {
		panic("stream: codecs and transport are required")
	}

	m := &Machine{
		cfg:       cfg,
		codecs:    deps.Codecs,
		transport: deps.Transport,
		discovery: deps.Discovery,
		audio:     deps.Audio,
		storage:   deps.Storage,
		link:      deps.Link,
		offload:   deps.Offload,
		timers:    map[timerKey]*time.Timer{},
		queue:     make(chan item, 64),
		done:      make(chan struct{}),
		log:       log,
	}

	for i := 0; i < slots; i++ {
		m.sessions = append(m.sessions, NewSession(uint8(i), cfg.Role))
	}

	return m
}

// Post queues the event for Run, safe from any goroutine
func (m *Machine) Post(handle uint8, ev Event) error {
	if int(handle) >= len(m.sessions) {
		return ErrUnknownHandle
	}
	select {
	case m.queue <- item{handle, ev}:
		return nil
	case <-m.done:
		return ErrQueueClosed
	}
}

// Run processes queued events until the context is done
func (m *Machine) Run(ctx context.Context) error {
	defer m.stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case it := <-m.queue:
			m.Handle(it.handle, it.ev)
		}
	}
}

func (m *Machine) stop() {
	m.once.Do(func() {
		close(m.done)
	})

	m.mu.Lock()
	for k, t := range m.timers {
		t.Stop()
		delete(m.timers, k)
	}
	m.mu.Unlock()
}

// Handle applies the event and executes the effects. An event for a
// handle outside the session table is a caller bug.
func (m *Machine) Handle(handle uint8, ev Event) {
	if int(handle) >= len(m.sessions) {
		panic(fmt.Sprintf("stream: %T for unknown handle %d", ev, handle))
	}

	m.mu.Lock()

	m.pending = append(m.pending, item{handle, ev})
	for len(m.pending) > 0 {
		it := m.pending[0]
		m.pending = m.pending[1:]
		m.step(it.handle, it.ev)
	}

	outcomes := m.outcomes
	m.outcomes = nil

	m.mu.Unlock()

	if m.OnOutcome != nil {
		for _, o := range outcomes {
			m.OnOutcome(o)
		}
	}
}

func (m *Machine) step(handle uint8, ev Event) {
	s := m.sessions[handle]
	prev := s.State

	state, fx := m.Step(s, ev)

	if state != prev {
		m.log.Debug().Msgf("[stream] handle=%d %s => %s on %T", handle, prev, state, ev)
	} else {
		m.log.Trace().Msgf("[stream] handle=%d %s on %T", handle, state, ev)
	}

	for _, f := range fx {
		m.execute(s, f)
	}
}

// Sessions - copy of the session table
func (m *Machine) Sessions() []Session {
	m.mu.Lock()
	defer m.mu.Unlock()

	sessions := make([]Session, len(m.sessions))
	for i, s := range m.sessions {
		sessions[i] = *s
		sessions[i].Endpoints = append([]Endpoint(nil), s.Endpoints...)
		sessions[i].media = nil
	}
	return sessions
}

// Acquire returns the session of the peer or a free one
func (m *Machine) Acquire(peer string) (uint8, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, s := range m.sessions {
		if s.State != StateInit && s.Peer == peer {
			return s.Handle, true
		}
	}
	for _, s := range m.sessions {
		if s.State == StateInit {
			return s.Handle, true
		}
	}
	return 0, false
}

func (m *Machine) execute(s *Session, f Effect) {
	h := s.Handle

	switch f := f.(type) {
	case Request:
		m.log.Trace().Msgf("[stream] handle=%d request %s seid=%d", h, f.Op, f.SEID)
		if err := m.transport.Request(h, f); err != nil {
			m.log.Warn().Err(err).Msgf("[stream] handle=%d request %s", h, f.Op)
			if ev := failed(f.Op); ev != nil {
				m.post(h, ev)
			}
		}

	case Search:
		if m.discovery == nil {
			m.post(h, SDPResult{})
			break
		}
		if err := m.discovery.Search(h, f.Peer, f.Service); err != nil {
			m.log.Warn().Err(err).Msgf("[stream] handle=%d search %s", h, f.Peer)
			m.post(h, SDPResult{})
		}

	case Persist:
		if m.storage == nil {
			break
		}
		if err := m.storage.SetAVDTPVersion(f.Peer, f.Version); err != nil {
			m.log.Warn().Err(err).Msgf("[stream] save version %s", f.Peer)
		}

	case AudioCall:
		m.audioCall(s, f)

	case TimerStart:
		m.arm(h, f.Timer, f.Gen)

	case TimerStop:
		m.disarm(h, f.Timer)

	case Notify:
		m.report(f.Outcome)

	case OffloadStart:
		m.startOffload(s)

	case OffloadCancel:
		if m.offload == nil {
			break
		}
		if err := m.offload.Cancel(h); err != nil {
			m.log.Warn().Err(err).Msgf("[stream] handle=%d offload cancel", h)
		}

	case SendMedia:
		for _, pkt := range s.dequeue() {
			if err := m.transport.SendMedia(h, pkt); err != nil {
				m.log.Trace().Err(err).Msgf("[stream] handle=%d drop seq=%d", h, pkt.SequenceNumber)
			}
		}
	}
}

// post queues a synthetic event behind the one being handled
func (m *Machine) post(handle uint8, ev Event) {
	m.pending = append(m.pending, item{handle, ev})
}

func (m *Machine) report(o Outcome) {
	m.log.Debug().Msgf("[stream] handle=%d %s status=%s", o.Handle, o.Kind, o.Status)
	m.outcomes = append(m.outcomes, o)
}

// failed - confirmation for a request the transport could not send
func failed(op Op) Event {
	switch op {
	case OpConnect:
		return ConnectCfm{Code: CodeConnect}
	case OpDisconnect:
		return DisconnectInd{}
	case OpDiscover:
		return DiscoverCfm{Code: CodeConnect}
	case OpGetCaps:
		return GetCapsCfm{Code: CodeConnect}
	case OpOpen:
		return OpenCfm{Code: CodeConnect}
	case OpStart:
		return StartCfm{Code: CodeConnect, Initiator: true}
	case OpSuspend:
		return SuspendCfm{Code: CodeConnect, Initiator: true}
	case OpClose:
		return CloseCfm{Code: CodeConnect}
	case OpReconfig:
		return ReconfigCfm{Code: CodeConnect}
	case OpRoleSwitch:
		return RoleChange{Code: CodeConnect}
	}
	return nil
}

func (m *Machine) audioCall(s *Session, f AudioCall) {
	h := s.Handle
	if m.audio == nil {
		return
	}

	var err error

	switch f.Op {
	case AudioUpdate:
		cfg, ok := audioConfig(h, f.Config)
		if !ok {
			m.log.Warn().Msgf("[stream] handle=%d unknown config %x", h, f.Config)
			return
		}
		if !m.audio.UpdateAudioConfig(cfg) {
			m.log.Warn().Msgf("[stream] handle=%d audio rejects %s", h, a2dp.DescribeConfig(f.Config))
			o := s.outcome(KindAudioRejected, StatusFail).Outcome
			o.Config = f.Config
			m.report(o)
		}
	case AudioStartSession:
		err = m.audio.StartSession(h)
	case AudioEndSession:
		err = m.audio.EndSession(h)
	case AudioStarted:
		m.audio.StreamStarted(h, f.Ack)
	case AudioSuspended:
		m.audio.StreamSuspended(h, f.Ack)
	case AudioDelay:
		m.audio.DelayReport(h, f.Delay)
	}

	if err != nil {
		m.log.Warn().Err(err).Msgf("[stream] handle=%d audio", h)
	}
}

func audioConfig(h uint8, b []byte) (AudioConfig, bool) {
	c, err := a2dp.Parse(b, false)
	if err != nil {
		return AudioConfig{}, false
	}
	p := a2dp.Lookup(c.ID)
	return AudioConfig{Handle: h, Codec: p.Name(), Audio: p.Audio(c), Config: b}, true
}

func (m *Machine) arm(h uint8, t Timer, gen uint32) {
	k := timerKey{h, t}
	if old := m.timers[k]; old != nil {
		old.Stop()
	}
	m.timers[k] = time.AfterFunc(m.cfg.timeout(t), func() {
		_ = m.Post(h, Timeout{Timer: t, Gen: gen})
	})
}

func (m *Machine) disarm(h uint8, t Timer) {
	k := timerKey{h, t}
	if old := m.timers[k]; old != nil {
		old.Stop()
		delete(m.timers, k)
	}
}

func (m *Machine) startOffload(s *Session) {
	if m.offload == nil {
		return
	}

	info, ok := m.codecs.OffloadParams()
	if !ok {
		return
	}

	p := offload.Params{
		CodecType:     info.CodecType,
		MaxLatency:    m.cfg.MaxLatency,
		SCMST:         m.cfg.SCMST,
		SampleRate:    info.Audio.SampleRate,
		BitsPerSample: info.Audio.BitsPerSample,
		ChannelMode:   byte(info.Audio.ChannelMode),
		Bitrate:       info.Bitrate,
		ACLHandle:     s.ACL,
		L2CID:         s.L2CID,
		MTU:           s.MTU,
		CodecInfo:     info.Config,
		VendorParams:  info.VendorParams,
		V2:            m.cfg.OffloadV2,
	}

	if err := m.offload.RequestStart(offload.Stream{Handle: s.Handle, Started: s.Started}, p); err != nil {
		m.log.Warn().Err(err).Msgf("[stream] handle=%d offload start", s.Handle)

		m.report(s.outcome(KindOffload, StatusFail).Outcome)
	}
}
