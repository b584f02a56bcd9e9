package export

// Listener receives export progress updates. done counts measurements
// already written, total is the measurement count at export start.
// Listeners are invoked synchronously from the export goroutine and must
// not block.
type Listener interface {
	Notify(done, total int)
}

// ListenerFunc adapts a function to the Listener interface.
type ListenerFunc func(done, total int)

func (f ListenerFunc) Notify(done, total int) { f(done, total) }
