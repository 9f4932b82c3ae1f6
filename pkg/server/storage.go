package server

import (
	"bytes"
	"encoding/gob"
	"time"

	"github.com/syndtr/goleveldb/leveldb"
)

// jobStore persists background jobs so they survive a server restart
// (spec §3 "Background jobs outlive the submitting client" extended to
// outlive the process too — teacher's go.mod pulls in goleveldb and
// cmd/server.go's --storage-dir flag for exactly this, but the teacher
// repo itself never got around to wiring it up).
type jobStore struct {
	db *leveldb.DB
}

// persistedJob is the subset of Job that survives a restart: queue
// position is not persisted, so on restore every job re-enters the back
// of its function's FIFO for its own priority via enqueue.
type persistedJob struct {
	Handle     string
	Function   string
	Priority   byte
	UniqueID   string
	Payload    []byte
	Background bool
}

func openJobStore(dir string) (*jobStore, error) {
	db, err := leveldb.OpenFile(dir, nil)
	if err != nil {
		return nil, err
	}
	return &jobStore{db: db}, nil
}

func (st *jobStore) Close() error {
	return st.db.Close()
}

func (st *jobStore) Put(j *Job) error {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(persistedJob{
		Handle:     j.Handle,
		Function:   j.Function,
		Priority:   j.Priority,
		UniqueID:   j.UniqueID,
		Payload:    j.Payload,
		Background: j.Background,
	}); err != nil {
		return err
	}
	return st.db.Put([]byte(j.Handle), buf.Bytes(), nil)
}

func (st *jobStore) Delete(handle string) error {
	return st.db.Delete([]byte(handle), nil)
}

// loadAll returns every persisted job, e.g. for restore on startup.
func (st *jobStore) loadAll() ([]persistedJob, error) {
	var out []persistedJob
	iter := st.db.NewIterator(nil, nil)
	defer iter.Release()
	for iter.Next() {
		var pj persistedJob
		if err := gob.NewDecoder(bytes.NewReader(iter.Value())).Decode(&pj); err != nil {
			continue
		}
		out = append(out, pj)
	}
	return out, iter.Error()
}

// restoreBackgroundJobs re-queues every job persisted from a previous
// run. Called once during Start, before the server begins accepting
// connections, so no handler can observe a partially-restored job table.
func (s *Server) restoreBackgroundJobs() {
	jobs, err := s.store.loadAll()
	if err != nil {
		s.log.Errorf("gearhulk: failed to load persisted jobs: %v", err)
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, pj := range jobs {
		j := &Job{
			Handle:      pj.Handle,
			Function:    pj.Function,
			Priority:    pj.Priority,
			UniqueID:    pj.UniqueID,
			Payload:     pj.Payload,
			Background:  true,
			State:       jobQueued,
			SubmittedAt: time.Now(),
		}
		s.jobs.add(j)
		fe := s.functions.getOrCreate(j.Function)
		fe.enqueue(j)
	}
}
