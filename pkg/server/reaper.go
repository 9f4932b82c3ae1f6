package server

import (
	"os"
	"syscall"

	golibsignal "github.com/mikespook/golib/signal"
)

// reaper watches for the operating system signal configured as
// Config.GracefulSignal and turns it into a graceful Stop, draining
// in-flight jobs instead of dropping every connection outright. SIGQUIT
// triggers an immediate Stop.
//
// cmd/server.go never wired this up in the teacher repo even though
// mikespook/golib was already a dependency; startReaper is what actually
// exercises it.
type reaper struct {
	handler *golibsignal.Handler
}

func signalFor(name string) os.Signal {
	switch name {
	case "SIGINT":
		return syscall.SIGINT
	case "SIGHUP":
		return syscall.SIGHUP
	case "SIGTERM", "":
		return syscall.SIGTERM
	default:
		return syscall.SIGTERM
	}
}

func (s *Server) startReaper() {
	h := golibsignal.NewHandler()
	h.Bind(signalFor(s.cfg.GracefulSignal), func(os.Signal) uint {
		s.log.Infof("gearhulk: received graceful shutdown signal")
		s.Stop(true)
		return 0
	})
	h.Bind(syscall.SIGQUIT, func(os.Signal) uint {
		s.log.Infof("gearhulk: received immediate shutdown signal")
		s.Stop(false)
		return 0
	})
	go h.Loop()
	s.reap = &reaper{handler: h}
}
