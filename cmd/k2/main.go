// Command k2 is a send/receive/reply and name-server demo: a client task
// registers with the name server, a server task looks the client up by
// name, then the two rendezvous directly through Send/Reply, independent
// of the name server afterward.
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
	"github.com/choochoos/kernel/internal/task"
	"github.com/choochoos/kernel/nameserver"
)

const clientName = "greeter-client"

func clientEntry(c *syscalls.Client) {
	if err := nameserver.RegisterAs(c, int(task.NameServerTid), clientName); err != nil {
		fmt.Printf("client: RegisterAs failed: %v\n", err)
		c.Exit()
		return
	}
	reply := make([]byte, 32)
	senderTid, n := c.Receive(reply)
	fmt.Printf("client: got %q from tid %d\n", reply[:n], senderTid)
	c.Reply(senderTid, []byte("thanks"))
	c.Exit()
}

func serverEntry(c *syscalls.Client) {
	var clientTid int
	for {
		tid, found, err := nameserver.WhoIs(c, int(task.NameServerTid), clientName)
		if err != nil {
			fmt.Printf("server: WhoIs failed: %v\n", err)
			c.Exit()
			return
		}
		if found {
			clientTid = tid
			break
		}
		c.Yield()
	}
	ack := make([]byte, 32)
	n, err := c.Send(clientTid, []byte("hello from server"), ack)
	if err != nil {
		fmt.Printf("server: Send failed: %v\n", err)
		c.Exit()
		return
	}
	fmt.Printf("server: client replied %q\n", ack[:n])
	c.Exit()
}

func firstUserTask(c *syscalls.Client) {
	if _, err := c.Create(2, clientEntry); err != nil {
		fmt.Printf("create client failed: %v\n", err)
	}
	if _, err := c.Create(2, serverEntry); err != nil {
		fmt.Printf("create server failed: %v\n", err)
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
