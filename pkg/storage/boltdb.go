package storage

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/cuemby/hardwared/pkg/errs"
	"github.com/cuemby/hardwared/pkg/types"
	"github.com/google/uuid"
	bolt "go.etcd.io/bbolt"
)

var (
	bucketHardware = []byte("hardware")
	bucketWindows  = []byte("availability_windows")
	bucketTasks    = []byte("worker_tasks")
	bucketCounters = []byte("counters")
)

const (
	counterHardware = "hardware"
	counterWindow   = "availability_window"
	counterTask     = "worker_task"
)

// BoltStore implements Store on top of bbolt, one bucket per entity, JSON
// rows keyed by UUID (teacher idiom: pkg/storage/boltdb.go). Secondary
// lookups that the bucket's natural key doesn't serve -- name uniqueness
// among non-deleted hardware, (hardware_uuid, worker_type) uniqueness for
// tasks, and monotonic ids for keyset pagination -- are kept as in-memory
// indices rebuilt on open and updated inside the same bbolt transaction
// that mutates the primary bucket, under mu.
type BoltStore struct {
	db *bolt.DB
	mu sync.Mutex

	// uuid of the non-deleted hardware row with this name
	nameIndex map[string]string
	// "hardwareUUID\x00workerType" -> task uuid
	taskIndex map[string]string

	counters map[string]int64
}

// NewBoltStore opens (creating if absent) the bbolt file under dataDir and
// rebuilds the in-memory secondary indices from its current contents.
func NewBoltStore(dataDir string) (*BoltStore, error) {
	dbPath := filepath.Join(dataDir, "hardwared.db")

	db, err := bolt.Open(dbPath, 0600, &bolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, b := range [][]byte{bucketHardware, bucketWindows, bucketTasks, bucketCounters} {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return fmt.Errorf("create bucket %s: %w", b, err)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	s := &BoltStore{
		db:        db,
		nameIndex: make(map[string]string),
		taskIndex: make(map[string]string),
		counters:  make(map[string]int64),
	}
	if err := s.rebuildIndices(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *BoltStore) rebuildIndices() error {
	return s.db.View(func(tx *bolt.Tx) error {
		hb := tx.Bucket(bucketHardware)
		if err := hb.ForEach(func(_, v []byte) error {
			var hw types.Hardware
			if err := json.Unmarshal(v, &hw); err != nil {
				return err
			}
			if !hw.Deleted {
				s.nameIndex[hw.Name] = hw.UUID
			}
			if hw.ID > s.counters[counterHardware] {
				s.counters[counterHardware] = hw.ID
			}
			return nil
		}); err != nil {
			return err
		}

		wb := tx.Bucket(bucketWindows)
		if err := wb.ForEach(func(_, v []byte) error {
			var w types.AvailabilityWindow
			if err := json.Unmarshal(v, &w); err != nil {
				return err
			}
			if w.ID > s.counters[counterWindow] {
				s.counters[counterWindow] = w.ID
			}
			return nil
		}); err != nil {
			return err
		}

		tb := tx.Bucket(bucketTasks)
		return tb.ForEach(func(_, v []byte) error {
			var t types.WorkerTask
			if err := json.Unmarshal(v, &t); err != nil {
				return err
			}
			s.taskIndex[taskKey(t.HardwareUUID, t.WorkerType)] = t.UUID
			if t.ID > s.counters[counterTask] {
				s.counters[counterTask] = t.ID
			}
			return nil
		})
	})
}

func taskKey(hardwareUUID, workerType string) string {
	return hardwareUUID + "\x00" + workerType
}

func (s *BoltStore) nextID(counter string) int64 {
	s.counters[counter]++
	return s.counters[counter]
}

// Close closes the underlying database file.
func (s *BoltStore) Close() error {
	return s.db.Close()
}

// --- Hardware ---

func (s *BoltStore) CreateHardware(hw *types.Hardware, enabledWorkers []string, initialState types.WorkerState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.nameIndex[hw.Name]; exists {
		return errs.HardwareDuplicateName(hw.Name)
	}

	return s.db.Update(func(tx *bolt.Tx) error {
		hb := tx.Bucket(bucketHardware)
		if hb.Get([]byte(hw.UUID)) != nil {
			return errs.HardwareAlreadyExists(hw.UUID)
		}

		hw.ID = s.nextID(counterHardware)
		now := txNow()
		hw.CreatedAt = now
		hw.UpdatedAt = now

		data, err := json.Marshal(hw)
		if err != nil {
			return err
		}
		if err := hb.Put([]byte(hw.UUID), data); err != nil {
			return err
		}

		tb := tx.Bucket(bucketTasks)
		for _, wt := range enabledWorkers {
			task := &types.WorkerTask{
				ID:           s.nextID(counterTask),
				UUID:         newTaskUUID(),
				HardwareUUID: hw.UUID,
				WorkerType:   wt,
				State:        initialState,
				StateDetails: map[string]any{},
				UpdatedAt:    now,
			}
			data, err := json.Marshal(task)
			if err != nil {
				return err
			}
			if err := tb.Put([]byte(task.UUID), data); err != nil {
				return err
			}
			s.taskIndex[taskKey(hw.UUID, wt)] = task.UUID
		}

		s.nameIndex[hw.Name] = hw.UUID
		return nil
	})
}

func (s *BoltStore) UpdateHardware(hw *types.Hardware) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.db.Update(func(tx *bolt.Tx) error {
		hb := tx.Bucket(bucketHardware)
		existing := hb.Get([]byte(hw.UUID))
		if existing == nil {
			return errs.HardwareNotFound(hw.UUID)
		}
		var prev types.Hardware
		if err := json.Unmarshal(existing, &prev); err != nil {
			return err
		}

		if prev.Name != hw.Name {
			if owner, exists := s.nameIndex[hw.Name]; exists && owner != hw.UUID {
				return errs.HardwareDuplicateName(hw.Name)
			}
		}

		hw.CreatedAt = prev.CreatedAt
		hw.UpdatedAt = txNow()
		data, err := json.Marshal(hw)
		if err != nil {
			return err
		}
		if err := hb.Put([]byte(hw.UUID), data); err != nil {
			return err
		}

		if prev.Name != hw.Name {
			delete(s.nameIndex, prev.Name)
			if !hw.Deleted {
				s.nameIndex[hw.Name] = hw.UUID
			}
		}
		return nil
	})
}

func (s *BoltStore) DestroyHardware(uuid string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.db.Update(func(tx *bolt.Tx) error {
		hb := tx.Bucket(bucketHardware)
		existing := hb.Get([]byte(uuid))
		if existing == nil {
			return errs.HardwareNotFound(uuid)
		}
		var hw types.Hardware
		if err := json.Unmarshal(existing, &hw); err != nil {
			return err
		}
		now := txNow()
		hw.Deleted = true
		hw.DeletedAt = &now
		hw.UpdatedAt = now

		data, err := json.Marshal(&hw)
		if err != nil {
			return err
		}
		if err := hb.Put([]byte(uuid), data); err != nil {
			return err
		}
		delete(s.nameIndex, hw.Name)

		wb := tx.Bucket(bucketWindows)
		c := wb.Cursor()
		var toDelete [][]byte
		for k, v := c.First(); k != nil; k, v = c.Next() {
			var w types.AvailabilityWindow
			if err := json.Unmarshal(v, &w); err != nil {
				return err
			}
			if w.HardwareUUID == uuid {
				toDelete = append(toDelete, append([]byte(nil), k...))
			}
		}
		for _, k := range toDelete {
			if err := wb.Delete(k); err != nil {
				return err
			}
		}

		return requeueHardwareTasks(tx, uuid)
	})
}

func requeueHardwareTasks(tx *bolt.Tx, hardwareUUID string) error {
	tb := tx.Bucket(bucketTasks)
	return tb.ForEach(func(k, v []byte) error {
		var t types.WorkerTask
		if err := json.Unmarshal(v, &t); err != nil {
			return err
		}
		if t.HardwareUUID != hardwareUUID || t.State == types.WorkerStateInProgress {
			return nil
		}
		if !types.CanTransition(t.State, types.WorkerStatePending) {
			return nil
		}
		t.State = types.WorkerStatePending
		t.UpdatedAt = txNow()
		data, err := json.Marshal(&t)
		if err != nil {
			return err
		}
		return tb.Put(k, data)
	})
}

func (s *BoltStore) GetHardwareByUUID(uuid string) (*types.Hardware, error) {
	var hw types.Hardware
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketHardware).Get([]byte(uuid))
		if data == nil {
			return errs.HardwareNotFound(uuid)
		}
		return json.Unmarshal(data, &hw)
	})
	if err != nil {
		return nil, err
	}
	return &hw, nil
}

func (s *BoltStore) GetHardwareByName(name string) (*types.Hardware, error) {
	s.mu.Lock()
	uuid, ok := s.nameIndex[name]
	s.mu.Unlock()
	if !ok {
		return nil, errs.HardwareNotFound(name)
	}
	return s.GetHardwareByUUID(uuid)
}

func (s *BoltStore) ListHardware(opts ListOptions) ([]*types.Hardware, error) {
	var all []*types.Hardware
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketHardware).ForEach(func(_, v []byte) error {
			var hw types.Hardware
			if err := json.Unmarshal(v, &hw); err != nil {
				return err
			}
			if hw.Deleted && !opts.IncludeDeleted {
				return nil
			}
			if !opts.AllProjects && opts.ProjectID != "" && hw.ProjectID != opts.ProjectID {
				return nil
			}
			all = append(all, &hw)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	desc := opts.SortDir == "desc"
	sort.Slice(all, func(i, j int) bool {
		less := sortLess(all[i], all[j], opts.SortKey)
		if desc {
			return !less && all[i].UUID != all[j].UUID
		}
		return less
	})

	start := 0
	if opts.Marker != "" {
		for i, hw := range all {
			if hw.UUID == opts.Marker {
				start = i + 1
				break
			}
		}
	}
	if start > len(all) {
		start = len(all)
	}
	all = all[start:]

	if opts.Limit > 0 && len(all) > opts.Limit {
		all = all[:opts.Limit]
	}
	return all, nil
}

func sortLess(a, b *types.Hardware, sortKey string) bool {
	switch sortKey {
	case "name":
		return a.Name < b.Name
	default:
		return a.ID < b.ID
	}
}

// --- AvailabilityWindow ---

func (s *BoltStore) CreateAvailabilityWindow(w *types.AvailabilityWindow) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Update(func(tx *bolt.Tx) error {
		if tx.Bucket(bucketHardware).Get([]byte(w.HardwareUUID)) == nil {
			return errs.HardwareNotFound(w.HardwareUUID)
		}
		w.ID = s.nextID(counterWindow)
		data, err := json.Marshal(w)
		if err != nil {
			return err
		}
		return tx.Bucket(bucketWindows).Put([]byte(w.UUID), data)
	})
}

func (s *BoltStore) UpdateAvailabilityWindow(w *types.AvailabilityWindow) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		wb := tx.Bucket(bucketWindows)
		if wb.Get([]byte(w.UUID)) == nil {
			return errs.AvailabilityWindowNotFound(w.UUID)
		}
		data, err := json.Marshal(w)
		if err != nil {
			return err
		}
		return wb.Put([]byte(w.UUID), data)
	})
}

func (s *BoltStore) DestroyAvailabilityWindow(uuid string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		wb := tx.Bucket(bucketWindows)
		if wb.Get([]byte(uuid)) == nil {
			return errs.AvailabilityWindowNotFound(uuid)
		}
		return wb.Delete([]byte(uuid))
	})
}

func (s *BoltStore) ListAvailabilityForHardware(hardwareUUID string) ([]*types.AvailabilityWindow, error) {
	var windows []*types.AvailabilityWindow
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketWindows).ForEach(func(_, v []byte) error {
			var w types.AvailabilityWindow
			if err := json.Unmarshal(v, &w); err != nil {
				return err
			}
			if w.HardwareUUID == hardwareUUID {
				windows = append(windows, &w)
			}
			return nil
		})
	})
	return windows, err
}

func (s *BoltStore) ListAvailabilityAll() ([]*types.AvailabilityWindow, error) {
	var windows []*types.AvailabilityWindow
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketWindows).ForEach(func(_, v []byte) error {
			var w types.AvailabilityWindow
			if err := json.Unmarshal(v, &w); err != nil {
				return err
			}
			windows = append(windows, &w)
			return nil
		})
	})
	return windows, err
}

// ApplyPatch commits the Hardware update plus window adds/updates/removes
// and task requeue in one bbolt transaction (spec §4.4, invariant I4).
func (s *BoltStore) ApplyPatch(hw *types.Hardware, toAdd, toUpdate []*types.AvailabilityWindow, toRemove []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.db.Update(func(tx *bolt.Tx) error {
		hb := tx.Bucket(bucketHardware)
		existing := hb.Get([]byte(hw.UUID))
		if existing == nil {
			return errs.HardwareNotFound(hw.UUID)
		}
		var prev types.Hardware
		if err := json.Unmarshal(existing, &prev); err != nil {
			return err
		}
		if prev.Name != hw.Name {
			if owner, exists := s.nameIndex[hw.Name]; exists && owner != hw.UUID {
				return errs.HardwareDuplicateName(hw.Name)
			}
		}
		hw.CreatedAt = prev.CreatedAt
		hw.UpdatedAt = txNow()

		data, err := json.Marshal(hw)
		if err != nil {
			return err
		}
		if err := hb.Put([]byte(hw.UUID), data); err != nil {
			return err
		}
		if prev.Name != hw.Name {
			delete(s.nameIndex, prev.Name)
			s.nameIndex[hw.Name] = hw.UUID
		}

		wb := tx.Bucket(bucketWindows)
		for _, w := range toAdd {
			w.ID = s.nextID(counterWindow)
			data, err := json.Marshal(w)
			if err != nil {
				return err
			}
			if err := wb.Put([]byte(w.UUID), data); err != nil {
				return err
			}
		}
		for _, w := range toUpdate {
			data, err := json.Marshal(w)
			if err != nil {
				return err
			}
			if err := wb.Put([]byte(w.UUID), data); err != nil {
				return err
			}
		}
		for _, uuid := range toRemove {
			if err := wb.Delete([]byte(uuid)); err != nil {
				return err
			}
		}

		return requeueHardwareTasks(tx, hw.UUID)
	})
}

// --- WorkerTask ---

func (s *BoltStore) CreateWorkerTask(t *types.WorkerTask) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := taskKey(t.HardwareUUID, t.WorkerType)
	if _, exists := s.taskIndex[key]; exists {
		return errs.WorkerTaskAlreadyExists(t.UUID)
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		t.ID = s.nextID(counterTask)
		if t.StateDetails == nil {
			t.StateDetails = map[string]any{}
		}
		t.UpdatedAt = txNow()
		data, err := json.Marshal(t)
		if err != nil {
			return err
		}
		if err := tx.Bucket(bucketTasks).Put([]byte(t.UUID), data); err != nil {
			return err
		}
		s.taskIndex[key] = t.UUID
		return nil
	})
}

func (s *BoltStore) UpdateWorkerTask(t *types.WorkerTask) error {
	if t.StateDetails == nil {
		t.StateDetails = map[string]any{}
	}
	t.UpdatedAt = txNow()
	return s.db.Update(func(tx *bolt.Tx) error {
		tb := tx.Bucket(bucketTasks)
		if tb.Get([]byte(t.UUID)) == nil {
			return errs.WorkerTaskNotFound(t.UUID)
		}
		data, err := json.Marshal(t)
		if err != nil {
			return err
		}
		return tb.Put([]byte(t.UUID), data)
	})
}

func (s *BoltStore) GetWorkerTask(uuid string) (*types.WorkerTask, error) {
	var t types.WorkerTask
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketTasks).Get([]byte(uuid))
		if data == nil {
			return errs.WorkerTaskNotFound(uuid)
		}
		return json.Unmarshal(data, &t)
	})
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (s *BoltStore) GetWorkerTasksInState(state types.WorkerState, enabledWorkers map[string]bool) ([]*types.WorkerTask, error) {
	var tasks []*types.WorkerTask
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketTasks).ForEach(func(_, v []byte) error {
			var t types.WorkerTask
			if err := json.Unmarshal(v, &t); err != nil {
				return err
			}
			if t.State != state {
				return nil
			}
			if enabledWorkers != nil && !enabledWorkers[t.WorkerType] {
				return nil
			}
			tasks = append(tasks, &t)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(tasks, func(i, j int) bool { return tasks[i].ID < tasks[j].ID })
	return tasks, nil
}

func (s *BoltStore) ListWorkerTasksForHardware(hardwareUUID string) ([]*types.WorkerTask, error) {
	var tasks []*types.WorkerTask
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketTasks).ForEach(func(_, v []byte) error {
			var t types.WorkerTask
			if err := json.Unmarshal(v, &t); err != nil {
				return err
			}
			if t.HardwareUUID == hardwareUUID {
				tasks = append(tasks, &t)
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(tasks, func(i, j int) bool { return tasks[i].ID < tasks[j].ID })
	return tasks, nil
}

func (s *BoltStore) RequeuePendingForHardware(hardwareUUID string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return requeueHardwareTasks(tx, hardwareUUID)
	})
}

func txNow() time.Time { return time.Now().UTC() }

// newTaskUUID generates an identifier for a freshly created WorkerTask.
// Extracted as a var so tests can substitute a deterministic generator.
var newTaskUUID = func() string { return uuid.NewString() }
