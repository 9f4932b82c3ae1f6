package server

import (
	"bufio"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

const gearhulkVersion = "1.0.0"

// adminLoop serves the line-oriented administrative protocol: plain text
// commands in, plain text replies out; the list replies ("status",
// "workers") end with a line holding just a dot (spec §8). It runs entirely on the reader's own goroutine and
// writes straight to the socket rather than through the binary Packet
// outbox, since admin is a simple synchronous request/response exchange
// with no job-assignment traffic to interleave with.
func (c *Connection) adminLoop(r *bufio.Reader) {
	w := bufio.NewWriter(c.conn)
	defer func() {
		c.server.connDied(c)
	}()
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			return
		}
		line = strings.TrimRight(line, "\r\n")
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		verb := fields[0]
		args := fields[1:]

		s := c.server
		switch verb {
		case "status":
			s.adminStatus(w)
		case "workers":
			s.adminWorkers(w)
		case "maxqueue":
			s.adminMaxQueue(w, args)
		case "shutdown":
			graceful := len(args) > 0 && args[0] == "graceful"
			fmt.Fprint(w, "OK\n")
			w.Flush()
			go s.Stop(graceful)
			return
		case "version":
			fmt.Fprintf(w, "%s\n", gearhulkVersion)
		default:
			fmt.Fprint(w, "ERR unknown_command Unknown+server+command\n")
		}
		if err := w.Flush(); err != nil {
			return
		}
	}
}

// adminStatus writes one line per known function:
// name\tqueued\trunning\tworkers, terminated by a lone dot (the classic
// gearmand "status" verb format).
func (s *Server) adminStatus(w *bufio.Writer) {
	s.mu.Lock()
	names := make([]string, 0, len(s.functions.entries))
	for name := range s.functions.entries {
		names = append(names, name)
	}
	sort.Strings(names)

	running := make(map[string]int)
	for _, j := range s.jobs.byHandle {
		if j.State == jobRunning {
			running[j.Function]++
		}
	}

	for _, name := range names {
		fe := s.functions.entries[name]
		fmt.Fprintf(w, "%s\t%d\t%d\t%d\n", name, fe.queueLen(), running[name], len(fe.workers))
	}
	s.mu.Unlock()
	fmt.Fprint(w, ".\n")
}

// adminWorkers lists every connected worker, one space-separated line
// each: "<conn-id> <remote-addr> - : fn1 fn2 ...", terminated by a lone dot.
func (s *Server) adminWorkers(w *bufio.Writer) {
	s.mu.Lock()
	seen := make(map[*Connection][]string)
	for name, fe := range s.functions.entries {
		for conn := range fe.workers {
			seen[conn] = append(seen[conn], name)
		}
	}
	for conn, fns := range seen {
		sort.Strings(fns)
		fmt.Fprintf(w, "%d %s %s : %s\n", conn.id, conn.conn.RemoteAddr(), "-", strings.Join(fns, " "))
	}
	s.mu.Unlock()
	fmt.Fprint(w, ".\n")
}

// adminMaxQueue sets (or clears, with no count argument) the maximum
// queue length enforced for one function.
func (s *Server) adminMaxQueue(w *bufio.Writer, args []string) {
	if len(args) < 1 {
		fmt.Fprint(w, "ERR invalid_arguments maxqueue+requires+a+function+name\n")
		return
	}
	n := 0
	if len(args) >= 2 {
		if v, err := strconv.Atoi(args[1]); err == nil {
			n = v
		}
	}
	s.mu.Lock()
	fe := s.functions.getOrCreate(args[0])
	fe.maxQueue = n
	s.mu.Unlock()
	fmt.Fprint(w, "OK\n")
}
