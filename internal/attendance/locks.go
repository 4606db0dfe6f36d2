package attendance

import "sync"

// employeeLocks serializes check-in/check-out per employee. Entries are
// never evicted; the key space is bounded by the size of the workforce.
type employeeLocks struct {
	locks sync.Map // uint -> *sync.Mutex
}

func (l *employeeLocks) lock(employeeID uint) func() {
	mu, _ := l.locks.LoadOrStore(employeeID, &sync.Mutex{})
	mutex := mu.(*sync.Mutex)
	mutex.Lock()
	return mutex.Unlock
}
