// Package dim defines the registry of supported measurement dimensions.
//
// A dimension is an externally-defined measurement axis (elapsed time,
// CPU time, ...) identified by a stable integer id. The registry is a
// fixed ordered list; element 0 is the default dimension used for
// regression deviation.
package dim

// Dim is an immutable measurement dimension.
type Dim struct {
	ID   int32
	Name string
	Unit string
}

// String returns the dimension name.
func (d Dim) String() string {
	return d.Name
}

// Dimension ids are stable and must never be reused: they are persisted
// in binary result records and in the results store.
const (
	IDElapsedProcess int32 = 2
	IDCPUTime        int32 = 3
	IDHeapAlloc      int32 = 4
	IDRSS            int32 = 5
	IDPageFaults     int32 = 6
)

var supported = []Dim{
	{ID: IDElapsedProcess, Name: "elapsed_process", Unit: "ms"},
	{ID: IDCPUTime, Name: "cpu_time", Unit: "ms"},
	{ID: IDHeapAlloc, Name: "heap_alloc", Unit: "bytes"},
	{ID: IDRSS, Name: "rss", Unit: "bytes"},
	{ID: IDPageFaults, Name: "page_faults", Unit: "count"},
}

// Supported returns the ordered list of supported dimensions.
// The returned slice is a copy; callers may not mutate the registry.
func Supported() []Dim {
	out := make([]Dim, len(supported))
	copy(out, supported)
	return out
}

// Default returns the default dimension (element 0 of the registry),
// used for the current-build regression deviation.
func Default() Dim {
	return supported[0]
}

// ByID returns the dimension with the given id.
func ByID(id int32) (Dim, bool) {
	for _, d := range supported {
		if d.ID == id {
			return d, true
		}
	}
	return Dim{}, false
}

// ByName returns the dimension with the given name.
func ByName(name string) (Dim, bool) {
	for _, d := range supported {
		if d.Name == name {
			return d, true
		}
	}
	return Dim{}, false
}
