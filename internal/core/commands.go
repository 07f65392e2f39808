package core

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/avolkov/relaychat-server/internal/store"
)

const commandPrefix = "/"

type chatCommand struct {
	adminOnly bool
	usage     string
	run       func(h *Hub, s *Session, args []string)
}

var commandTable map[string]chatCommand

// Populated in init: cmdHelp and the usage lookups refer back to the table.
func init() {
	commandTable = map[string]chatCommand{
		"ban": {
			adminOnly: true,
			usage:     "/ban <user> - ban a user from the server",
			run:       (*Hub).cmdBan,
		},
		"unban": {
			adminOnly: true,
			usage:     "/unban <user> - lift a user's ban",
			run:       (*Hub).cmdUnban,
		},
		"kick": {
			adminOnly: true,
			usage:     "/kick <user> [reason] - disconnect a user",
			run:       (*Hub).cmdKick,
		},
		"whois": {
			adminOnly: true,
			usage:     "/whois <name> - show the account behind a name",
			run:       (*Hub).cmdWhois,
		},
		"nick": {
			usage: "/nick <name> - choose a display name",
			run:   (*Hub).cmdNick,
		},
		"bot": {
			usage: "/bot - get your bot login key",
			run:   (*Hub).cmdBot,
		},
		"list": {
			usage: "/list - list everyone online",
			run:   (*Hub).cmdList,
		},
		"help": {
			usage: "/help - show this help",
			run:   (*Hub).cmdHelp,
		},
	}
}

// dispatchCommand routes a slash-prefixed line to the command table. The
// caller has already verified the session is authenticated.
func (h *Hub) dispatchCommand(s *Session, text string) {
	fields := strings.Fields(strings.TrimPrefix(text, commandPrefix))
	if len(fields) == 0 {
		return
	}

	name := strings.ToLower(fields[0])
	cmd, ok := commandTable[name]
	if !ok {
		h.sendNotice(s, fmt.Sprintf("%q is not a valid command. Try /help.", name))
		return
	}
	if cmd.adminOnly && !s.Admin {
		h.sendNotice(s, "You do not have permission to use this command.")
		h.log.Info().Str("identity", s.Identity).Str("command", name).Msg("admin command refused")
		return
	}

	h.log.Debug().Str("identity", s.Identity).Str("command", name).Msg("command dispatched")
	cmd.run(h, s, fields[1:])
}

func (h *Hub) cmdBan(s *Session, args []string) {
	if len(args) < 1 {
		h.sendNotice(s, commandTable["ban"].usage)
		return
	}
	target := sanitizeIdentity(args[0])

	// Re-banning overwrites the active record; only an unban archives it.
	var history []store.BanStamp
	if prev, err := h.store.GetBan(context.Background(), target); err != nil {
		h.storeFailure(s, err, "ban lookup failed")
		return
	} else if prev != nil {
		history = prev.History
	}

	date, clock := Stamp(time.Now())
	rec := &store.BanRecord{
		Current: true,
		Date:    date,
		Time:    clock,
		By:      s.DisplayName,
		History: history,
	}
	if err := h.store.PutBan(context.Background(), target, rec); err != nil {
		h.storeFailure(s, err, "ban write failed")
		return
	}

	h.log.Info().Str("identity", target).Str("by", s.Identity).Msg("identity banned")
	h.sendNotice(s, fmt.Sprintf("%s is now banned.", target))

	if online := h.registry.ByIdentity(target); online != nil {
		h.kickSession(online, s, "Banned")
	}
}

func (h *Hub) cmdUnban(s *Session, args []string) {
	if len(args) < 1 {
		h.sendNotice(s, commandTable["unban"].usage)
		return
	}
	target := sanitizeIdentity(args[0])

	rec, err := h.store.GetBan(context.Background(), target)
	if err != nil {
		h.storeFailure(s, err, "ban lookup failed")
		return
	}
	if rec == nil || !rec.Current {
		h.sendNotice(s, fmt.Sprintf("%s is not banned.", target))
		return
	}

	rec.Current = false
	rec.History = append(rec.History, store.BanStamp{Date: rec.Date, Time: rec.Time, By: rec.By})
	if err := h.store.PutBan(context.Background(), target, rec); err != nil {
		h.storeFailure(s, err, "ban write failed")
		return
	}

	h.log.Info().Str("identity", target).Str("by", s.Identity).Msg("identity unbanned")
	h.sendNotice(s, fmt.Sprintf("%s is no longer banned.", target))
}

func (h *Hub) cmdKick(s *Session, args []string) {
	if len(args) < 1 {
		h.sendNotice(s, commandTable["kick"].usage)
		return
	}

	identity := sanitizeIdentity(args[0])
	target := h.registry.ByIdentity(identity)
	if target == nil {
		h.sendNotice(s, fmt.Sprintf("%s is not online.", identity))
		return
	}

	reason := "None"
	if len(args) > 1 {
		reason = strings.Join(args[1:], " ")
	}
	h.kickSession(target, s, reason)
}

// kickSession notifies the target, removes it from the registry and tells
// the transport to drop the connection. Used by /kick and /ban.
func (h *Hub) kickSession(target, by *Session, reason string) {
	h.sendNotice(target, fmt.Sprintf("You have been kicked by %s for %q", by.DisplayName, reason))
	// The notice is best-effort, the termination is not: done cannot be
	// dropped by a full event buffer.
	target.terminate()

	h.registry.Remove(target)
	// Later handler invocations for this session must no-op.
	target.Authenticated = false

	h.broadcastNotice(fmt.Sprintf("%s was kicked by %s.", target.Label(), by.DisplayName), target)
	h.log.Info().Str("identity", target.Identity).Str("by", by.Identity).
		Str("reason", reason).Msg("session kicked")
}

func (h *Hub) cmdWhois(s *Session, args []string) {
	if len(args) < 1 {
		h.sendNotice(s, commandTable["whois"].usage)
		return
	}

	name := args[0]
	for _, online := range h.registry.List() {
		if online.Identity == name || online.DisplayName == name || online.Label() == name {
			h.sendNotice(s, fmt.Sprintf("%s is %s.", online.Label(), online.Identity))
			return
		}
	}
	// No match: stay silent.
}

func (h *Hub) cmdNick(s *Session, args []string) {
	if len(args) < 1 {
		h.sendNotice(s, commandTable["nick"].usage)
		return
	}

	nick := sanitizeNick(strings.Join(args, " "))
	if nick == "" {
		h.sendNotice(s, "That nickname is empty after sanitizing.")
		return
	}

	owner, err := h.store.NickOwner(context.Background(), nick)
	if err != nil {
		h.storeFailure(s, err, "nickname lookup failed")
		return
	}
	if owner != "" && owner != s.Identity {
		h.sendNotice(s, fmt.Sprintf("The nickname %q is already taken.", nick))
		return
	}

	if err := h.store.PutNick(context.Background(), s.Identity, nick); err != nil {
		h.storeFailure(s, err, "nickname write failed")
		return
	}

	old := s.Label()
	s.DisplayName = nick
	if s.Bot {
		s.DisplayName += botMarker
	}
	s.CustomNick = true

	h.broadcastNotice(fmt.Sprintf("%s is now known as %s.", old, s.Label()), nil)
	h.log.Info().Str("identity", s.Identity).Str("nick", nick).Msg("nickname changed")
}

func (h *Hub) cmdBot(s *Session, _ []string) {
	key, err := h.store.GetBotKey(context.Background(), s.Identity)
	if err != nil {
		h.storeFailure(s, err, "bot key lookup failed")
		return
	}
	if key == "" {
		key, err = newBotKey(s.Identity)
		if err != nil {
			h.storeFailure(s, err, "bot key generation failed")
			return
		}
		if err := h.store.PutBotKey(context.Background(), s.Identity, key); err != nil {
			h.storeFailure(s, err, "bot key write failed")
			return
		}
		h.log.Info().Str("identity", s.Identity).Msg("bot key generated")
	}

	h.sendNotice(s, "Your bot key is: "+key)
}

func (h *Hub) cmdList(s *Session, _ []string) {
	sessions := h.registry.List()
	h.sendNotice(s, fmt.Sprintf("%d online:", len(sessions)))
	for _, online := range sessions {
		h.sendNotice(s, fmt.Sprintf("  %s (%s)", online.Label(), online.Identity))
	}
}

func (h *Hub) cmdHelp(s *Session, _ []string) {
	names := make([]string, 0, len(commandTable))
	for name := range commandTable {
		names = append(names, name)
	}
	sort.Strings(names)

	h.sendNotice(s, "Available commands:")
	for _, name := range names {
		cmd := commandTable[name]
		if cmd.adminOnly && !s.Admin {
			continue
		}
		h.sendNotice(s, "  "+cmd.usage)
	}
}

func (h *Hub) storeFailure(s *Session, err error, msg string) {
	h.log.Error().Err(err).Str("identity", s.Identity).Msg(msg)
	h.sendNotice(s, "Something went wrong, try again later.")
}
