package server

// registerWorkerFunc records that conn (a worker-role Connection) can
// perform name, with an optional per-function timeout (spec §3
// *Worker-Registration*). Must be called with s.mu held.
func (s *Server) registerWorkerFunc(conn *Connection, name string, timeout uint32) {
	fe := s.functions.getOrCreate(name)
	fe.workers[conn] = struct{}{}
	conn.funcs[name] = timeout
	registeredWorkers.WithLabelValues(name).Set(float64(len(fe.workers)))
}

// unregisterWorkerFunc undoes registerWorkerFunc for one function. Must
// be called with s.mu held.
func (s *Server) unregisterWorkerFunc(conn *Connection, name string) {
	if fe := s.functions.get(name); fe != nil {
		delete(fe.workers, conn)
		fe.sleeping.remove(conn)
		registeredWorkers.WithLabelValues(name).Set(float64(len(fe.workers)))
	}
	delete(conn.funcs, name)
}

// unregisterWorkerAll drops every function registration conn holds, used
// on RESET_ABILITIES and on connection teardown. Must be called with
// s.mu held.
func (s *Server) unregisterWorkerAll(conn *Connection) {
	for name := range conn.funcs {
		s.unregisterWorkerFunc(conn, name)
	}
}
