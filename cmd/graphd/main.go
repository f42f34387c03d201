// Copyright (C) 2024 graphd, Inc.
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <http://www.gnu.org/licenses/>.

// Command graphd is the query evaluation daemon: it accepts
// constraint-language requests over a plain TCP text protocol and, in
// --smp-role=leader mode, coordinates write-suspend with a pool of
// follower processes over a second, binary-framed port.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/graphd/graphd/internal/diag"
	"github.com/graphd/graphd/internal/store"
)

var version = "development"

func main() {
	args := os.Args[1:]
	listenAddr := flag.String("listen", "127.0.0.1:7000", "address to listen on for client requests")
	smpAddr := flag.String("smp-listen", "", "address to listen on for follower connections (leader role only)")
	smpRole := flag.String("smp-role", "", "\"leader\" or \"follower\"; empty runs standalone with no SMP coordination")
	leaderAddr := flag.String("smp-leader", "", "leader's smp-listen address (follower role only)")
	stragglerTimeout := flag.Duration("smp-straggler-timeout", 2*time.Second, "how long a follower may take to pause before it is signalled")
	costLimit := flag.Int64("cost-limit", 0, "per-request cost ceiling (0 uses the session default)")
	deadline := flag.Duration("deadline", 30*time.Second, "per-request wall-clock deadline")
	debug := flag.Bool("debug", false, "log at debug level")
	flag.CommandLine.Parse(args)

	level := diag.LevelInfo
	if *debug {
		level = diag.LevelDebug
	}
	logger := diag.New(level)
	stdlog := log.New(os.Stderr, "", log.LstdFlags)

	role := strings.ToLower(*smpRole)
	if role != "" && role != "leader" && role != "follower" {
		stdlog.Fatalf("invalid -smp-role %q: want \"leader\" or \"follower\"", *smpRole)
	}
	if role == "follower" && *leaderAddr == "" {
		stdlog.Fatalf("-smp-role=follower requires -smp-leader")
	}

	st := store.NewMemory(instanceID())
	srv := newServer(st, logger, *costLimit, *deadline)

	clientListener, err := net.Listen("tcp", *listenAddr)
	if err != nil {
		stdlog.Fatalf("listen %s: %v", *listenAddr, err)
	}
	stdlog.Printf("graphd %s listening for requests on %v", version, clientListener.Addr())

	var leader *leaderCoordinator
	if role == "leader" {
		addr := *smpAddr
		if addr == "" {
			stdlog.Fatalf("-smp-role=leader requires -smp-listen")
		}
		smpListener, err := net.Listen("tcp", addr)
		if err != nil {
			stdlog.Fatalf("listen %s: %v", addr, err)
		}
		leader = newLeaderCoordinator(*stragglerTimeout, logger)
		go leader.serve(smpListener)
		stdlog.Printf("graphd %s accepting followers on %v", version, smpListener.Addr())
		srv.leader = leader
	}
	if role == "follower" {
		fc := newFollowerClient(*leaderAddr, logger)
		go fc.run(context.Background())
	}

	go func() {
		if err := srv.serve(clientListener); err != nil {
			stdlog.Printf("client listener stopped: %v", err)
		}
	}()

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	<-c

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	clientListener.Close()
	if leader != nil {
		leader.shutdown()
	}
	<-ctx.Done()
	fmt.Fprintln(os.Stderr, "graphd: shutdown complete")
}

// instanceID picks the writer instance id this process stamps its
// primitives with. A single-process deployment can always use 1; a
// real multi-writer deployment would assign these out of band (the
// persistent store's provisioning step, not something graphd
// negotiates at startup).
func instanceID() uint64 { return 1 }
