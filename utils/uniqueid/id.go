package uniqueid

import "sync/atomic"

// UniqueID genera PIDs crecientes. El contador es atómico porque la admisión
// (sin el lock de colas) y la generación batch (desde el lazo de ticks) piden
// IDs en paralelo.
type UniqueID struct {
	nextID atomic.Int32
}

func Init() *UniqueID {
	u := &UniqueID{}
	u.nextID.Store(1) // El primer ID es 1
	return u
}

func (u *UniqueID) GetUniqueID() int {
	return int(u.nextID.Add(1) - 1)
}
