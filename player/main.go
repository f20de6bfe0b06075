// Command player replays a capture against a running daemon and fails when
// the daemon answers differently from the recorded run.
//
//	player [-C] [-u] [-addr URL] capture.rec
//	player [-C] [-u] -sql sqlite3 capture.db
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"

	log "github.com/sirupsen/logrus"

	"sairedis/client"
	"sairedis/replay"
	"sairedis/store"
	"sairedis/transport"
)

func main() {
	skipNotify := flag.Bool("C", false, "skip recorded view transitions")
	tempView := flag.Bool("u", false, "replay inside a single view transition")
	addr := flag.String("addr", "http://localhost:6380", "daemon address")
	sqlDriver := flag.String("sql", "", "read the capture from a database with this driver; the argument is the DSN")
	level := flag.String("loglevel", "info", "log level")
	flag.Parse()

	lvl, err := log.ParseLevel(*level)
	if err != nil {
		log.Fatalf("loglevel: %v", err)
	}
	log.SetLevel(lvl)

	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: player [flags] <capture file | dsn>")
		flag.PrintDefaults()
		os.Exit(2)
	}

	var lines []replay.Line
	if *sqlDriver != "" {
		lines, err = replay.LoadSQL(*sqlDriver, flag.Arg(0))
	} else {
		lines, err = replay.ReadFile(flag.Arg(0))
	}
	if err != nil {
		log.Fatalf("read capture: %v", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	h := transport.NewHTTP(*addr)
	c := client.New(client.Options{
		Commands:  h.Queue(store.CommandQueue),
		Responses: h.Queue(store.ResponseQueue),
	})
	if err := c.Initialize(ctx); err != nil {
		log.Fatal(err)
	}
	defer c.Uninitialize()

	p := replay.NewPlayer(c, replay.PlayerOptions{
		SkipNotifySyncd: *skipNotify,
		UseTempView:     *tempView,
	})
	if err := p.Play(ctx, lines); err != nil {
		log.Errorf("replay failed: %v", err)
		os.Exit(1)
	}
	pairs, _ := p.Pairs()
	log.Infof("replayed %d lines, %d handles matched", len(lines), len(pairs))
}
