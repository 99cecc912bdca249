// Command k1 is a priority-ordering demo: a first user task creates four
// children at priorities 3, 1, 4, 2 (in that order) and exits; each child
// prints its own tid and priority and then exits. The first user task
// runs at priority 0, so each child outranks it and runs to completion
// as soon as it is created: the prints come out in creation order
// (3, 1, 4, 2), with tids 2, 3, 4, 5.
package main

import (
	"context"
	"flag"
	"fmt"
	"time"

	"github.com/choochoos/kernel/internal/kconfig"
	"github.com/choochoos/kernel/internal/kernel"
	"github.com/choochoos/kernel/internal/logging"
	"github.com/choochoos/kernel/internal/kmetrics"
	"github.com/choochoos/kernel/internal/platform/hostsim"
	"github.com/choochoos/kernel/internal/syscalls"
	"github.com/choochoos/kernel/nameserver"
)

func childEntry(priority int) syscalls.TaskFunc {
	return func(c *syscalls.Client) {
		tid := c.MyTid()
		fmt.Printf("tid %d priority %d\n", tid, priority)
		c.Exit()
	}
}

func firstUserTask(c *syscalls.Client) {
	for _, priority := range []int{3, 1, 4, 2} {
		if _, err := c.Create(priority, childEntry(priority)); err != nil {
			fmt.Printf("create at priority %d failed: %v\n", priority, err)
		}
	}
	c.Exit()
}

func main() {
	verbose := flag.Bool("v", false, "enable debug logging")
	flag.Parse()

	logCfg := logging.DefaultConfig()
	if *verbose {
		logCfg.Level = logging.LevelDebug
	}
	log := logging.NewLogger(logCfg)

	cfg := kconfig.FromEnv()
	plat := hostsim.New(cfg.EventTableCapacity)
	metrics := kmetrics.NewMetrics(time.Now())

	k := kernel.New(cfg, plat, log, metrics)
	ctx := context.Background()
	if err := k.Boot(ctx, firstUserTask, nameserver.Task(cfg)); err != nil {
		log.Error("boot failed", "error", err)
	}
}
