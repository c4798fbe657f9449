package session

import (
	"fmt"

	"channel-metrics-alerts/internal/fetcher"
)

// State is one step of the linear credential/verification wizard.
type State int

// Session states, in transition order.
const (
	Unauthenticated State = iota
	AuthorizedUnverified
	AuthorizedVerified
	Ready
)

func (s State) String() string {
	switch s {
	case Unauthenticated:
		return "unauthenticated"
	case AuthorizedUnverified:
		return "authorized-unverified"
	case AuthorizedVerified:
		return "authorized-verified"
	case Ready:
		return "ready"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// TransitionError reports an out-of-order state transition.
type TransitionError struct {
	From State
	To   State
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("session: cannot move from %s to %s", e.From, e.To)
}

// VerificationError reports that the target channel is not among the
// caller's accessible channels.
type VerificationError struct {
	ChannelID  string
	Accessible []fetcher.Channel
}

func (e *VerificationError) Error() string {
	return (&fetcher.PermissionError{ChannelID: e.ChannelID, Accessible: e.Accessible}).Error()
}

// Session carries per-run state explicitly through the pipeline instead of
// ambient globals. Single-writer: one command invocation owns it.
type Session struct {
	state      State
	channelID  string
	accessible []fetcher.Channel
}

// New starts an unauthenticated session targeting one channel.
func New(channelID string) *Session {
	return &Session{state: Unauthenticated, channelID: channelID}
}

// State returns the current wizard step.
func (s *Session) State() State {
	return s.state
}

// ChannelID returns the target channel.
func (s *Session) ChannelID() string {
	return s.channelID
}

// Accessible returns the channel list recorded at verification time.
func (s *Session) Accessible() []fetcher.Channel {
	return s.accessible
}

// Authorize records that a credential was obtained.
func (s *Session) Authorize() error {
	if s.state != Unauthenticated {
		return &TransitionError{From: s.state, To: AuthorizedUnverified}
	}
	s.state = AuthorizedUnverified
	return nil
}

// Verify checks the target channel against the accessible-channel list and
// advances the session on success.
func (s *Session) Verify(channels []fetcher.Channel) error {
	if s.state != AuthorizedUnverified {
		return &TransitionError{From: s.state, To: AuthorizedVerified}
	}

	s.accessible = channels
	for _, ch := range channels {
		if ch.ID == s.channelID {
			s.state = AuthorizedVerified
			return nil
		}
	}
	return &VerificationError{ChannelID: s.channelID, Accessible: channels}
}

// SkipVerification advances past the permission check for non-interactive
// credential sources that cannot enumerate their channels.
func (s *Session) SkipVerification() error {
	if s.state != AuthorizedUnverified {
		return &TransitionError{From: s.state, To: AuthorizedVerified}
	}
	s.state = AuthorizedVerified
	return nil
}

// BeginRun marks the session ready and the pipeline running.
func (s *Session) BeginRun() error {
	if s.state != AuthorizedVerified && s.state != Ready {
		return &TransitionError{From: s.state, To: Ready}
	}
	s.state = Ready
	return nil
}
