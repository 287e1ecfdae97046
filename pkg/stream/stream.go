package stream

import (
	"errors"
	"fmt"
	"time"

	"github.com/AlexxIT/go2a2dp/pkg/a2dp"
)

type State byte

const (
	StateInit State = iota
	StateIncoming
	StateOpening
	StateOpen
	StateReconfiguring
	StateClosing
)

func (s State) String() string {
	switch s {
	case StateInit:
		return "init"
	case StateIncoming:
		return "incoming"
	case StateOpening:
		return "opening"
	case StateOpen:
		return "open"
	case StateReconfiguring:
		return "reconfiguring"
	case StateClosing:
		return "closing"
	}
	return fmt.Sprintf("state(%d)", byte(s))
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Code - AVDTP error code of a transport confirmation
type Code byte

const (
	CodeOK                Code = 0x00
	CodeBadACPSEID        Code = 0x12
	CodeSEPInUse          Code = 0x13
	CodeUnsupportedConfig Code = 0x29
	CodeBadState          Code = 0x31
	CodeConnect           Code = 0x81 // local: signalling channel failed
	CodeTimeout           Code = 0x86 // local: no response from peer
)

// Status of an Outcome
type Status byte

const (
	StatusOK Status = iota
	StatusFail
	StatusFailStream
	StatusFailGetCap
	StatusFailRole
	StatusFailResources
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusFail:
		return "fail"
	case StatusFailStream:
		return "fail_stream"
	case StatusFailGetCap:
		return "fail_get_cap"
	case StatusFailRole:
		return "fail_role"
	case StatusFailResources:
		return "fail_resources"
	}
	return fmt.Sprintf("status(%d)", byte(s))
}

func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Policy for a suspend rejected with CodeBadState
type Policy byte

const (
	// PolicyStrict closes the stream on every suspend rejection
	PolicyStrict Policy = iota
	// PolicyLenient treats CodeBadState as already suspended
	PolicyLenient
)

func (p *Policy) UnmarshalText(text []byte) error {
	switch s := string(text); s {
	case "", "strict":
		*p = PolicyStrict
	case "lenient":
		*p = PolicyLenient
	default:
		return fmt.Errorf("stream: unknown suspend policy %q", s)
	}
	return nil
}

// Timer - guard timers of a session
type Timer byte

const (
	TimerRoleSwitch Timer = iota
	TimerCollision
	TimerClose
	timerCount
)

func (t Timer) String() string {
	switch t {
	case TimerRoleSwitch:
		return "role_switch"
	case TimerCollision:
		return "collision"
	case TimerClose:
		return "close"
	}
	return fmt.Sprintf("timer(%d)", byte(t))
}

// MaxReconfigRetries - close/reopen attempts of one reconfiguration
const MaxReconfigRetries = 6

type Config struct {
	Role          a2dp.Role
	SuspendPolicy Policy

	RoleSwitchTimeout time.Duration
	CollisionTimeout  time.Duration
	CloseTimeout      time.Duration

	Offload    bool
	OffloadV2  bool
	MaxLatency uint16
	SCMST      [2]byte

	// MediaQueue - max queued RTP packets, oldest are dropped
	MediaQueue int
}

func DefaultConfig() Config {
	return Config{
		RoleSwitchTimeout: time.Second,
		CollisionTimeout:  2 * time.Second,
		CloseTimeout:      4 * time.Second,
		MediaQueue:        16,
	}
}

func (c *Config) timeout(t Timer) time.Duration {
	switch t {
	case TimerRoleSwitch:
		return c.RoleSwitchTimeout
	case TimerCollision:
		return c.CollisionTimeout
	}
	return c.CloseTimeout
}

var (
	ErrUnknownHandle = errors.New("stream: unknown handle")
	ErrQueueClosed   = errors.New("stream: queue closed")
)
