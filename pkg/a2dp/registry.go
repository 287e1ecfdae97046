package a2dp

import (
	"bytes"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/rs/zerolog"
)

// Role of the local endpoints
type Role byte

const (
	RoleSource Role = iota
	RoleSink
)

func (r Role) String() string {
	if r == RoleSink {
		return "sink"
	}
	return "source"
}

// Peer - complementary role, a source searches for sinks
func (r Role) Peer() Role {
	return 1 - r
}

// UserConfig - explicit configuration of one codec, zero value means none
type UserConfig struct {
	Codec    string `json:"codec,omitempty" yaml:"codec"`       // name, empty for the current codec
	Priority int    `json:"priority,omitempty" yaml:"priority"` // zero restores the default priority

	Preference `yaml:",inline"`
}

func (u UserConfig) IsZero() bool {
	return u.Priority == 0 && u.Preference.IsZero()
}

// Descriptor - registry record of one supported codec
type Descriptor struct {
	Plugin          Plugin      `json:"-"`
	Name            string      `json:"name"`
	Index           int         `json:"index"`
	Priority        int         `json:"priority"`
	DefaultPriority int         `json:"default_priority"`
	Local           *Capability `json:"local"`

	Config []byte     `json:"config,omitempty"` // last negotiated configuration
	Peer   []byte     `json:"peer,omitempty"`   // last peer capability
	User   UserConfig `json:"user"`
	Audio  Preference `json:"audio"`
}

// Result of a configuration change
type Result struct {
	Config        []byte `json:"config"`
	RestartInput  bool   `json:"restart_input"`
	RestartOutput bool   `json:"restart_output"`
	Updated       bool   `json:"updated"`
}

var (
	ErrNoCurrentCodec = errors.New("a2dp: no current codec")
	ErrNoPeerCaps     = errors.New("a2dp: no peer capability")
	ErrNoCommonCodec  = errors.New("a2dp: no common codec")
)

// Registry - priority ordered codecs and the current one.
// All state is guarded by one RMutex, methods may call each other.
type Registry struct {
	role    Role
	codecs  []*Descriptor // ordered
	current *Descriptor

	mu  RMutex
	log zerolog.Logger
}

func DefaultPriority(index int) int {
	return 1000*(index+1) + 1
}

// NewRegistry - plugins in index order, priorities by codec name (case insensitive)
func NewRegistry(role Role, plugins []Plugin, priorities map[string]int, log zerolog.Logger) *Registry {
	r := &Registry{role: role, log: log}

	for i, p := range plugins {
		d := &Descriptor{
			Plugin:          p,
			Name:            p.Name(),
			Index:           i,
			DefaultPriority: DefaultPriority(i),
		}
		d.Priority = d.DefaultPriority

		for name, priority := range priorities {
			if strings.EqualFold(name, d.Name) && priority > 0 {
				d.Priority = priority
			}
		}

		if role == RoleSource {
			d.Local = p.Source()
		} else {
			d.Local = p.Sink()
		}

		r.codecs = append(r.codecs, d)
	}

	r.sort()

	return r
}

func (r *Registry) Role() Role {
	return r.role
}

func (r *Registry) sort() {
	sort.SliceStable(r.codecs, func(i, j int) bool {
		a, b := r.codecs[i], r.codecs[j]
		if a.Priority != b.Priority {
			return a.Priority > b.Priority
		}
		return a.Index > b.Index
	})
}

// Ordered - snapshot of the codecs, best first
func (r *Registry) Ordered() []Descriptor {
	r.mu.Lock()
	defer r.mu.Unlock()

	list := make([]Descriptor, 0, len(r.codecs))
	for _, d := range r.codecs {
		list = append(list, *d)
	}
	return list
}

func (r *Registry) Current() (Descriptor, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.current == nil {
		return Descriptor{}, false
	}
	return *r.current, true
}

func (r *Registry) Find(name string) (Descriptor, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if d := r.find(name); d != nil {
		return *d, true
	}
	return Descriptor{}, false
}

func (r *Registry) find(name string) *Descriptor {
	for _, d := range r.codecs {
		if strings.EqualFold(d.Name, name) {
			return d
		}
	}
	return nil
}

// FindByWireBytes - descriptor of the codec in peer capability or configuration bytes
func (r *Registry) FindByWireBytes(b []byte) (Descriptor, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	d, err := r.findBytes(b)
	if err != nil {
		return Descriptor{}, err
	}
	return *d, nil
}

func (r *Registry) findBytes(b []byte) (*Descriptor, error) {
	h, err := ParseHeader(b)
	if err != nil {
		return nil, err
	}
	for _, d := range r.codecs {
		if d.Plugin.ID() == h.ID {
			return d, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownCodec, h.ID)
}

// Configure negotiates the codec of the peer capability and makes it current
func (r *Registry) Configure(peerCap []byte) ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	d, err := r.findBytes(peerCap)
	if err != nil {
		return nil, err
	}

	config, err := r.negotiate(d, d.User.Preference, d.Audio, peerCap, true)
	if err != nil {
		return nil, err
	}

	d.Config = config
	d.Peer = peerCap
	r.current = d

	r.log.Debug().Msgf("[a2dp] configure %s", DescribeConfig(config))

	return config, nil
}

// Select walks the codecs by priority and configures the first one
// that one of the peer capabilities supports
func (r *Registry) Select(peerCaps [][]byte) ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	err := ErrNoCommonCodec

	for _, d := range r.codecs {
		for _, peerCap := range peerCaps {
			if h, err := ParseHeader(peerCap); err != nil || h.ID != d.Plugin.ID() {
				continue
			}

			config, err2 := r.Configure(peerCap)
			if err2 == nil {
				return config, nil
			}

			r.log.Trace().Err(err2).Msgf("[a2dp] skip %s", d.Name)
			err = err2
		}
	}

	return nil, err
}

func (r *Registry) negotiate(d *Descriptor, user, audio Preference, peer []byte, asCapability bool) ([]byte, error) {
	info, err := d.Plugin.Parse(peer, asCapability)
	if err != nil {
		return nil, err
	}
	if !asCapability {
		// peer configuration must fit into local capability
		if err = d.Local.Contains(info); err != nil {
			return nil, err
		}
	}
	config, err := d.Plugin.Negotiate(d.Local, info, user, audio)
	if err != nil {
		return nil, err
	}
	return d.Plugin.Build(config)
}

// update renegotiates one codec, restores its state on failure
func (r *Registry) update(d *Descriptor, user UserConfig, audio Preference, peer []byte, asCapability bool) (res Result, err error) {
	if peer == nil {
		if peer = d.Peer; peer == nil {
			return res, ErrNoPeerCaps
		}
		asCapability = true
	}

	config, err := r.negotiate(d, user.Preference, audio, peer, asCapability)
	if err != nil {
		return res, err
	}

	res.Config = config
	res.RestartOutput = !bytes.Equal(config, d.Config)
	if d.Config == nil {
		res.RestartInput = true
	} else {
		res.RestartInput = r.audio(d, d.Config) != r.audio(d, config)
	}
	res.Updated = res.RestartInput || res.RestartOutput

	d.Config = config
	d.User = user
	d.Audio = audio
	if asCapability {
		d.Peer = peer
	}

	return res, nil
}

func (r *Registry) audio(d *Descriptor, config []byte) Audio {
	info, err := d.Plugin.Parse(config, false)
	if err != nil {
		return Audio{}
	}
	return d.Plugin.Audio(info)
}

// SetUserConfig applies an explicit user configuration to the named (or current)
// codec and updates its priority. A codec raised to the current codec priority
// or above becomes current.
func (r *Registry) SetUserConfig(user UserConfig, peerCap []byte) (res Result, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	last := r.current

	var d *Descriptor
	if user.Codec != "" {
		if d = r.find(user.Codec); d == nil {
			return res, fmt.Errorf("%w: %s", ErrUnknownCodec, user.Codec)
		}
	} else if d = last; d == nil {
		return res, ErrNoCurrentCodec
	}

	saved := *d

	if res, err = r.update(d, user, d.Audio, peerCap, true); err != nil {
		*d = saved
		r.current = last
		return res, err
	}

	oldPriority := d.Priority
	if user.Priority > 0 {
		d.Priority = user.Priority
	} else {
		d.Priority = d.DefaultPriority
	}

	switch {
	case last == nil:
		r.current = d
		res.RestartInput = true
		res.RestartOutput = true
	case d == last:
		if d.Priority != oldPriority {
			res.Updated = true
			if d.Priority < oldPriority {
				// another codec may be better now
				res.RestartOutput = true
			}
		}
	case d.Priority <= oldPriority:
		res.Updated = res.RestartInput || res.RestartOutput || d.Priority != oldPriority
		res.RestartInput = false
		res.RestartOutput = false
	default:
		res.Updated = true
		if d.Priority >= last.Priority {
			r.current = d
			last.Priority = last.DefaultPriority
			res.RestartInput = true
			res.RestartOutput = true
		}
	}

	r.sort()

	if res.RestartInput || res.RestartOutput {
		res.Updated = true
	}

	r.log.Debug().Msgf(
		"[a2dp] user config %s restart_input=%t restart_output=%t updated=%t",
		d.Name, res.RestartInput, res.RestartOutput, res.Updated,
	)

	return res, nil
}

// SetAudioConfig records the audio preference of the current codec and renegotiates it
func (r *Registry) SetAudioConfig(audio Preference, peerCap []byte) (res Result, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	d := r.current
	if d == nil {
		return res, ErrNoCurrentCodec
	}

	saved := *d
	if res, err = r.update(d, d.User, audio, peerCap, true); err != nil {
		*d = saved
		return res, err
	}

	// input was just restarted by the caller
	res.RestartInput = false
	res.Updated = res.RestartOutput

	return res, nil
}

// SetOtaConfig accepts a configuration proposed by the peer,
// unless the user has configured the current or the proposed codec
func (r *Registry) SetOtaConfig(peerConfig []byte) (res Result, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	last := r.current
	if last != nil && !last.User.IsZero() {
		r.log.Warn().Msgf("[a2dp] ignore peer config %s: user config for %s", DescribeConfig(peerConfig), last.Name)
		return res, ErrUserConfigured
	}

	d, err := r.findBytes(peerConfig)
	if err != nil {
		return res, err
	}
	if !d.User.IsZero() {
		r.log.Warn().Msgf("[a2dp] ignore peer config %s: user config for same codec", d.Name)
		return res, ErrUserConfigured
	}

	saved := *d
	r.current = d

	if res, err = r.update(d, d.User, d.Audio, peerConfig, false); err != nil {
		*d = saved
		r.current = last
		return res, err
	}

	if res.RestartInput || res.RestartOutput {
		res.Updated = true
	}

	return res, nil
}

// MarkerBit - RTP marker convention of the current codec
func (r *Registry) MarkerBit() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.current == nil {
		return false
	}
	return r.current.Plugin.UseMarkerBit()
}

// OffloadInfo - current configuration in the form the offload command needs
type OffloadInfo struct {
	CodecType uint32
	Bitrate   uint32
	Audio     Audio
	Config    []byte

	VendorParams []byte
}

func (r *Registry) OffloadParams() (info OffloadInfo, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	d := r.current
	if d == nil || d.Config == nil {
		return info, false
	}

	config, err := d.Plugin.Parse(d.Config, false)
	if err != nil {
		return info, false
	}

	info.CodecType, info.Bitrate = d.Plugin.Offload(config)
	info.Audio = d.Plugin.Audio(config)
	info.Config = d.Config
	info.VendorParams = d.Plugin.VendorParams(config)
	return info, true
}

// DescribeConfig - like Describe, but for single valued configurations
func DescribeConfig(b []byte) string {
	c, err := Parse(b, false)
	if err != nil {
		return Describe(b)
	}
	return Lookup(c.ID).Describe(c)
}
