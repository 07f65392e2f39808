package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/avolkov/relaychat-server/internal/directory"
	"github.com/avolkov/relaychat-server/internal/store"
)

const botMarker = " [bot]"

// Options configures chat behaviour.
type Options struct {
	Admins      []string
	MOTD        string
	Channel     string
	HistorySize int
	AuthTimeout time.Duration
}

// Hub owns all shared chat state. Everything it holds is mutated from the
// single Run loop, so handlers never race each other.
type Hub struct {
	log   *zerolog.Logger
	auth  directory.Authenticator
	store store.Store

	admins      map[string]bool
	motd        string
	channel     string
	authTimeout time.Duration

	registry *Registry
	history  *History
	conns    map[*Session]struct{}

	register    chan *Session
	unregister  chan *Session
	commands    chan *Command
	authResults chan *authResult
	done        chan struct{}
}

type authResult struct {
	session   *Session
	identity  string
	givenName string
	err       error
}

// NewHub constructs the hub. Run must be started before sessions connect.
func NewHub(st store.Store, auth directory.Authenticator, opts Options, logger *zerolog.Logger) *Hub {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	if opts.Channel == "" {
		opts.Channel = "#general"
	}
	if opts.AuthTimeout <= 0 {
		opts.AuthTimeout = 10 * time.Second
	}

	admins := make(map[string]bool, len(opts.Admins))
	for _, a := range opts.Admins {
		admins[a] = true
	}

	return &Hub{
		log:         logger,
		auth:        auth,
		store:       st,
		admins:      admins,
		motd:        opts.MOTD,
		channel:     opts.Channel,
		authTimeout: opts.AuthTimeout,
		registry:    NewRegistry(),
		history:     NewHistory(opts.HistorySize),
		conns:       make(map[*Session]struct{}),
		register:    make(chan *Session),
		unregister:  make(chan *Session),
		commands:    make(chan *Command, 64),
		authResults: make(chan *authResult, 8),
		done:        make(chan struct{}),
	}
}

// Connect creates a session for a new connection and starts its command
// pump. The transport must close the session's Commands channel when the
// connection goes away.
func (h *Hub) Connect() *Session {
	s := newSession()
	select {
	case h.register <- s:
	case <-h.done:
		return s
	}

	go func() {
		for cmd := range s.Commands {
			cmd.session = s
			select {
			case h.commands <- cmd:
			case <-h.done:
				return
			}
		}
		select {
		case h.unregister <- s:
		case <-h.done:
		}
	}()

	return s
}

// Run processes registration, commands and authentication results until the
// context is cancelled. Pending session pumps unblock when it returns.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			return
		case s := <-h.register:
			h.conns[s] = struct{}{}
		case s := <-h.unregister:
			h.handleDisconnect(s)
		case cmd := <-h.commands:
			h.handleCommand(ctx, cmd)
		case res := <-h.authResults:
			h.finishLogin(res)
		}
	}
}

func (h *Hub) handleCommand(ctx context.Context, cmd *Command) {
	s := cmd.session
	if _, live := h.conns[s]; !live {
		return
	}

	switch cmd.Kind {
	case CommandLogin:
		h.handleLogin(ctx, s, cmd.Login)
	case CommandChat:
		h.handleChat(s, cmd.Text)
	default:
		h.log.Warn().Str("session_id", s.ID).Int("kind", int(cmd.Kind)).Msg("unknown command kind")
	}
}

// handleLogin drives Connected -> Authenticating. The bot-key path resolves
// synchronously; the username path hands off to the directory without
// blocking the loop.
func (h *Hub) handleLogin(ctx context.Context, s *Session, req LoginRequest) {
	if s.terminated() {
		return
	}
	if s.Authenticated || s.authenticating {
		h.log.Warn().Str("session_id", s.ID).Msg("duplicate login attempt")
		return
	}

	if req.Key != "" {
		h.loginWithKey(s, req.Key)
		return
	}

	identity := sanitizeIdentity(req.Username)
	if identity == "" {
		h.reject(s, "")
		return
	}

	if h.rejectIfBanned(s, identity) {
		return
	}

	if h.registry.Has(identity) {
		h.sendNotice(s, "This account is already connected elsewhere.")
		h.reject(s, identity)
		return
	}

	s.authenticating = true
	go func() {
		authCtx, cancel := context.WithTimeout(ctx, h.authTimeout)
		defer cancel()

		res := &authResult{session: s, identity: identity}
		dir, err := h.auth.Authenticate(authCtx, identity, req.Password)
		if err != nil {
			res.err = err
		} else {
			res.identity = dir.Identity
			res.givenName, res.err = h.auth.FetchProfile(authCtx, dir)
		}
		h.authResults <- res
	}()
}

func (h *Hub) loginWithKey(s *Session, key string) {
	identity, err := h.store.IdentityForKey(context.Background(), key)
	if err != nil {
		h.log.Error().Err(err).Msg("bot key lookup failed")
		h.reject(s, "")
		return
	}
	if identity == "" {
		h.log.Info().Str("session_id", s.ID).Msg("login with unknown bot key")
		h.reject(s, "")
		return
	}

	s.Bot = true
	if err := h.admit(s, identity, ""); err != nil {
		h.log.Error().Err(err).Str("identity", identity).Msg("bot login setup failed")
		h.reject(s, identity)
	}
}

// finishLogin resumes the username path when the directory round-trip
// completes. The session may have disconnected or lost a race in the
// meantime, so every check runs again on current state.
func (h *Hub) finishLogin(res *authResult) {
	s := res.session
	s.authenticating = false

	if _, live := h.conns[s]; !live || s.terminated() {
		return
	}

	if res.err != nil {
		if errors.Is(res.err, directory.ErrInvalidCredentials) {
			h.log.Info().Str("identity", res.identity).Msg("login rejected by directory")
		} else {
			h.log.Error().Err(res.err).Str("identity", res.identity).Msg("directory authentication failed")
		}
		h.reject(s, res.identity)
		return
	}

	if res.identity == "" {
		h.reject(s, "")
		return
	}
	if h.rejectIfBanned(s, res.identity) {
		return
	}
	if h.registry.Has(res.identity) {
		h.sendNotice(s, "This account is already connected elsewhere.")
		h.reject(s, res.identity)
		return
	}

	if err := h.admit(s, res.identity, res.givenName); err != nil {
		h.log.Error().Err(err).Str("identity", res.identity).Msg("login setup failed")
		h.reject(s, res.identity)
	}
}

// admit moves a session to Authenticated: resolves the display name, adds it
// to the registry, replays history and announces the join.
func (h *Hub) admit(s *Session, identity, givenName string) error {
	nick, err := h.store.GetNick(context.Background(), identity)
	if err != nil {
		return fmt.Errorf("load nickname: %w", err)
	}

	switch {
	case nick != "":
		s.DisplayName = nick
		s.CustomNick = true
	case givenName != "":
		s.DisplayName = givenName
	default:
		s.DisplayName = identity
		s.CustomNick = true
	}
	if s.Bot {
		s.DisplayName += botMarker
	}

	s.Identity = identity
	s.Admin = h.admins[identity]
	s.Authenticated = true

	h.registry.Add(s)
	s.send(&Event{Kind: EventLoginResult, LoggedIn: true})

	if h.motd != "" {
		h.sendNotice(s, h.motd)
	}
	for _, m := range h.history.All() {
		s.send(&Event{Kind: EventChat, Message: m})
	}

	h.broadcastNotice(s.Label()+" joined the chat.", s)
	h.log.Info().Str("identity", identity).Str("display", s.DisplayName).
		Bool("admin", s.Admin).Bool("bot", s.Bot).Msg("session authenticated")
	return nil
}

// rejectIfBanned sends the ban details and a failure ack when the identity
// has an active ban. Returns true if the login was stopped.
func (h *Hub) rejectIfBanned(s *Session, identity string) bool {
	rec, err := h.store.GetBan(context.Background(), identity)
	if err != nil {
		h.log.Error().Err(err).Str("identity", identity).Msg("ban lookup failed")
		h.reject(s, identity)
		return true
	}
	if rec == nil || !rec.Current {
		return false
	}

	h.sendNotice(s, fmt.Sprintf("You are banned from this server. Banned by %s on %s at %s.",
		rec.By, rec.Date, rec.Time))
	h.reject(s, identity)
	h.log.Info().Str("identity", identity).Str("banned_by", rec.By).Msg("banned identity refused")
	return true
}

func (h *Hub) reject(s *Session, identity string) {
	s.authenticating = false
	s.send(&Event{Kind: EventLoginResult, LoggedIn: false})
	if identity != "" {
		h.log.Info().Str("identity", identity).Str("session_id", s.ID).Msg("login failed")
	}
}

func (h *Hub) handleChat(s *Session, text string) {
	if !s.Authenticated {
		h.sendNotice(s, "You are not logged in.")
		return
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return
	}

	if strings.HasPrefix(text, commandPrefix) {
		h.dispatchCommand(s, text)
		return
	}

	date, clock := Stamp(time.Now())
	msg := Message{
		Sender:  s.Label(),
		Text:    text,
		Date:    date,
		Time:    clock,
		Channel: h.channel,
	}

	h.registry.Broadcast(&Event{Kind: EventChat, Message: msg}, s)
	s.send(&Event{Kind: EventChat, Message: msg})
	h.history.Append(msg)
}

func (h *Hub) handleDisconnect(s *Session) {
	delete(h.conns, s)

	if h.registry.Remove(s) && s.Authenticated {
		h.broadcastNotice(s.Label()+" left the chat.", s)
		h.log.Info().Str("identity", s.Identity).Msg("session disconnected")
	}
	s.Authenticated = false
	close(s.Events)
}

// broadcastNotice sends a server notice to every admitted session except the
// given one. Notices never enter the history buffer.
func (h *Hub) broadcastNotice(text string, except *Session) {
	date, clock := Stamp(time.Now())
	h.registry.Broadcast(&Event{Kind: EventChat, Message: Message{
		Sender:  SystemSender,
		Text:    text,
		Date:    date,
		Time:    clock,
		Channel: h.channel,
	}}, except)
}

func (h *Hub) sendNotice(s *Session, text string) {
	date, clock := Stamp(time.Now())
	s.notice(text, date, clock, h.channel)
}
