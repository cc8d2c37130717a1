package smtpdata

import (
	"sync"
)

// Notes is a free-form key-value store that travels with a [Transaction].
// Session drivers, filters and sinks use it to hand state to each other
// without the transaction interpreting any of it.
// A Notes is safe for concurrent use by multiple goroutines.
//
// The zero value is an empty store ready for use.
type Notes struct {
	mutex  sync.RWMutex
	values map[string]interface{}
}

// Get returns the value stored under name, or nil.
func (n *Notes) Get(name string) interface{} {
	v, _ := n.GetEx(name)
	return v
}

// GetEx returns the value stored under name and whether it was present.
func (n *Notes) GetEx(name string) (value interface{}, ok bool) {
	n.mutex.RLock()
	defer n.mutex.RUnlock()
	value, ok = n.values[name]
	return
}

// Set stores value under name, replacing any previous value.
func (n *Notes) Set(name string, value interface{}) {
	n.mutex.Lock()
	defer n.mutex.Unlock()
	if n.values == nil {
		n.values = make(map[string]interface{})
	}
	n.values[name] = value
}

// Delete removes the value stored under name.
func (n *Notes) Delete(name string) {
	n.mutex.Lock()
	defer n.mutex.Unlock()
	delete(n.values, name)
}

// Copy copies the notes into a new independent store. The values themselves
// are shared, not deep-copied.
func (n *Notes) Copy() *Notes {
	n.mutex.RLock()
	defer n.mutex.RUnlock()
	values := make(map[string]interface{}, len(n.values))
	for k, v := range n.values {
		values[k] = v
	}
	return &Notes{values: values}
}
