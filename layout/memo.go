package layout

// Thunk re-reads one dependency. Thunks must be cheap and side-effect free;
// the memo re-invokes them on every validity check.
type Thunk func() any

// Memo caches a computed value together with a snapshot of every dependency
// read that produced it. The cache is valid while re-reading each dependency
// reproduces its recorded value; comparison is by value, never by identity,
// so an unchanged reading keeps the cache even when the producer rebuilt its
// wrappers. Dependency values must be comparable.
type Memo[T any] struct {
	deps []memoDep
	val  T
	ok   bool
}

type memoDep struct {
	thunk Thunk
	last  any
}

// Get returns the cached value when every recorded dependency still
// reproduces its snapshot, and recomputes otherwise. compute declares its
// dependencies by reading them through read; the dependency set recorded is
// exactly the set of reads the latest computation performed.
func (m *Memo[T]) Get(compute func(read func(Thunk) any) T) T {
	if m.ok && !m.stale() {
		return m.val
	}
	m.deps = m.deps[:0]
	m.val = compute(func(t Thunk) any {
		v := t()
		m.deps = append(m.deps, memoDep{thunk: t, last: v})
		return v
	})
	m.ok = true
	return m.val
}

func (m *Memo[T]) stale() bool {
	for _, d := range m.deps {
		if d.thunk() != d.last {
			return true
		}
	}
	return false
}
