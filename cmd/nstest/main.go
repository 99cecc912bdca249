// Command nstest is a smoke test for the name server: it registers three
// names from three different tasks, resolves all three (plus one
// unregistered name, expected to fail) from a fourth task, and exits
// non-zero if any registered name fails to resolve or the unregistered
// one resolves. The resolved tids themselves are not compared. Useful as
// a quick manual check independent of the full kernel test suite.
package main

import (
	"context"
	"fmt"
	"os"
	"sync/atomic"
	"time"

	"github.com/choochoos/kernel/internal/kconfig"
	"github.com/choochoos/kernel/internal/kernel"
	"github.com/choochoos/kernel/internal/logging"
	"github.com/choochoos/kernel/internal/kmetrics"
	"github.com/choochoos/kernel/internal/platform/hostsim"
	"github.com/choochoos/kernel/internal/syscalls"
	"github.com/choochoos/kernel/internal/task"
	"github.com/choochoos/kernel/nameserver"
)

var names = []string{"alpha", "bravo", "charlie"}

var registered atomic.Int32

// registrant registers a name and exits immediately. WhoIs resolves names
// out of the name server's own arena, so the registering task does not need
// to stay alive for the lookup to succeed; parking it would only starve
// lower-priority tasks forever once more than one registrant shares a
// priority with the checker.
func registrant(name string) syscalls.TaskFunc {
	return func(c *syscalls.Client) {
		if err := nameserver.RegisterAs(c, int(task.NameServerTid), name); err != nil {
			fmt.Printf("FAIL: register %q: %v\n", name, err)
			os.Exit(1)
		}
		registered.Add(1)
		c.Exit()
	}
}

func checker(c *syscalls.Client) {
	for registered.Load() < int32(len(names)) {
		c.Yield()
	}

	ok := true
	for _, name := range names {
		if _, found, err := nameserver.WhoIs(c, int(task.NameServerTid), name); err != nil || !found {
			fmt.Printf("FAIL: whois %q: found=%v err=%v\n", name, found, err)
			ok = false
		}
	}
	if _, found, _ := nameserver.WhoIs(c, int(task.NameServerTid), "does-not-exist"); found {
		fmt.Println("FAIL: whois for unregistered name unexpectedly succeeded")
		ok = false
	}
	if !ok {
		os.Exit(1)
	}
	fmt.Println("PASS")
	c.Shutdown()
}

func firstUserTask(c *syscalls.Client) {
	for _, name := range names {
		if _, err := c.Create(1, registrant(name)); err != nil {
			fmt.Printf("FAIL: create registrant %q: %v\n", name, err)
			os.Exit(1)
		}
	}
	if _, err := c.Create(1, checker); err != nil {
		fmt.Printf("FAIL: create checker: %v\n", err)
		os.Exit(1)
	}
	c.Exit()
}

func main() {
	log := logging.NewLogger(logging.DefaultConfig())
	cfg := kconfig.FromEnv()
	plat := hostsim.New(cfg.EventTableCapacity)
	metrics := kmetrics.NewMetrics(time.Now())

	k := kernel.New(cfg, plat, log, metrics)
	if err := k.Boot(context.Background(), firstUserTask, nameserver.Task(cfg)); err != nil {
		log.Error("boot failed", "error", err)
		os.Exit(1)
	}
}
