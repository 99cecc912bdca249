// Package nameserver implements the user task pinned at tid 1: a bounded
// arena of registered names and a tid-to-(offset,length) map, driven
// entirely through the eleven public syscalls like any other task. The
// kernel never special-cases it beyond checking it landed on
// task.NameServerTid at boot.
package nameserver

import (
	"github.com/choochoos/kernel/internal/kconfig"
	"github.com/choochoos/kernel/internal/syscalls"
	"github.com/choochoos/kernel/nameserver/wire"
)

type registration struct {
	tid    int
	offset int
	length int
}

// server holds the name server's private state across its Receive/Reply
// loop iterations — this is the task's own memory, not kernel state.
type server struct {
	arena    []byte
	entries  []registration
	maxSize  int
	maxCount int
}

func newServer(cfg kconfig.Config) *server {
	return &server{
		arena:    make([]byte, 0, cfg.NameServerArenaBytes),
		maxSize:  cfg.NameServerArenaBytes,
		maxCount: cfg.NameServerMaxEntries,
	}
}

// registerAs appends name to the arena (even if tid already has an
// earlier registration — the old copy leaks; names are never
// unregistered) and records the newest mapping for future WhoIs lookups.
// A tid's new registration always overwrites whatever that tid
// previously had, regardless of whether the name changed, so once tid is
// reused by a different task under a different name, WhoIs on the old
// name no longer resolves to it.
func (s *server) registerAs(tid int, name string) {
	if len(s.arena)+len(name) > s.maxSize {
		return // arena exhausted; registration silently dropped
	}
	offset := len(s.arena)
	s.arena = append(s.arena, name...)

	for i := range s.entries {
		if s.entries[i].tid == tid {
			s.entries[i] = registration{tid: tid, offset: offset, length: len(name)}
			return
		}
	}
	if len(s.entries) >= s.maxCount {
		s.entries = s.entries[1:] // oldest registration evicted first
	}
	s.entries = append(s.entries, registration{tid: tid, offset: offset, length: len(name)})
}

func (s *server) nameAt(r registration) string {
	return string(s.arena[r.offset : r.offset+r.length])
}

// whoIs returns the most recently registered tid for name, searching
// newest-first so a re-registration under an existing name wins.
func (s *server) whoIs(name string) (int, bool) {
	for i := len(s.entries) - 1; i >= 0; i-- {
		if s.nameAt(s.entries[i]) == name {
			return s.entries[i].tid, true
		}
	}
	return 0, false
}

// Task is the name server's entry function, registered as the boot
// sequence's NameServerTask. It never returns.
func Task(cfg kconfig.Config) syscalls.TaskFunc {
	return func(c *syscalls.Client) {
		s := newServer(cfg)
		buf := make([]byte, cfg.NameServerArenaBytes)
		for {
			senderTid, n := c.Receive(buf)
			tag, name, ok := wire.DecodeRequest(buf[:n])
			if !ok {
				c.Reply(senderTid, nil)
				continue
			}
			switch tag {
			case wire.TagRegisterAs:
				s.registerAs(senderTid, name)
				c.Reply(senderTid, nil)
			case wire.TagWhoIs:
				if tid, found := s.whoIs(name); found {
					c.Reply(senderTid, wire.EncodeWhoIsReply(tid))
				} else {
					c.Reply(senderTid, nil)
				}
			default:
				c.Reply(senderTid, nil)
			}
		}
	}
}

// RegisterAs is the client-side helper a task calls to register name
// under its own tid with the name server.
func RegisterAs(c *syscalls.Client, nameServerTid int, name string) error {
	_, err := c.Send(nameServerTid, wire.EncodeRegisterAs(name), nil)
	return err
}

// WhoIs is the client-side helper a task calls to resolve name to a tid.
func WhoIs(c *syscalls.Client, nameServerTid int, name string) (int, bool, error) {
	reply := make([]byte, 4)
	n, err := c.Send(nameServerTid, wire.EncodeWhoIs(name), reply)
	if err != nil {
		return 0, false, err
	}
	tid, ok := wire.DecodeWhoIsReply(reply[:n])
	return tid, ok, nil
}
