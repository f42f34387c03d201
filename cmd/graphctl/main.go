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

// Command graphctl is a thin client for graphd: it sends each
// argument (or, with -f, each line of a file) to a running graphd
// process as one request and prints back the reply line it gets.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"io"
	"net"
	"os"
	"strings"
	"time"
)

var (
	dashaddr    string
	dashf       bool
	dasho       string
	dashtimeout time.Duration
	printStats  bool
)

func init() {
	flag.StringVar(&dashaddr, "addr", "127.0.0.1:7000", "address of the graphd process to connect to")
	flag.BoolVar(&dashf, "f", false, "read arguments as files containing one request per line")
	flag.StringVar(&dasho, "o", "", "file for output (default is stdout)")
	flag.DurationVar(&dashtimeout, "timeout", 30*time.Second, "per-request round-trip timeout")
	flag.BoolVar(&printStats, "S", false, "print request count and elapsed time on stderr")
}

func main() {
	flag.Parse()
	args := flag.Args()
	if len(args) == 0 {
		flag.Usage()
		os.Exit(1)
	}

	dst := io.Writer(os.Stdout)
	if dasho != "" {
		f, err := os.Create(dasho)
		if err != nil {
			exit(err)
		}
		defer f.Close()
		dst = f
	}

	conn, err := net.Dial("tcp", dashaddr)
	if err != nil {
		exit(fmt.Errorf("dial %s: %w", dashaddr, err))
	}
	defer conn.Close()
	c := &client{conn: conn, r: bufio.NewReader(conn), timeout: dashtimeout}

	start := time.Now()
	count := 0
	for _, arg := range args {
		if dashf {
			n, err := c.runFile(arg, dst)
			if err != nil {
				exit(err)
			}
			count += n
			continue
		}
		if err := c.runOne(arg, dst); err != nil {
			exit(err)
		}
		count++
	}

	if printStats {
		fmt.Fprintf(os.Stderr, "%d request(s) in %v\n", count, time.Since(start))
	}
}

// client sends request lines over a single persistent connection and
// reads back one reply line per request, matching graphd's
// one-line-in-one-line-out protocol.
type client struct {
	conn    net.Conn
	r       *bufio.Reader
	timeout time.Duration
}

func (c *client) runOne(req string, dst io.Writer) error {
	req = strings.TrimSpace(req)
	if req == "" {
		return nil
	}
	c.conn.SetDeadline(time.Now().Add(c.timeout))
	if _, err := c.conn.Write([]byte(req + "\n")); err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	line, err := c.r.ReadString('\n')
	if err != nil {
		return fmt.Errorf("read reply: %w", err)
	}
	_, err = fmt.Fprint(dst, line)
	return err
}

func (c *client) runFile(path string, dst io.Writer) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	scanner := bufio.NewScanner(f)
	count := 0
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if err := c.runOne(line, dst); err != nil {
			return count, fmt.Errorf("%s: %w", path, err)
		}
		count++
	}
	return count, scanner.Err()
}

func exit(err error) {
	fmt.Fprintln(os.Stderr, "graphctl:", err)
	os.Exit(1)
}
