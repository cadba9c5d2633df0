package capability

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
)

func TestEnsure_RunsOnce(t *testing.T) {
	var p Probe
	var runs int

	for i := 0; i < 5; i++ {
		s := p.Ensure(func() error {
			runs++
			return nil
		})
		if s != Available {
			t.Fatalf("call %d: state=%v", i, s)
		}
	}
	if runs != 1 {
		t.Errorf("probe ran %d times", runs)
	}
}

func TestEnsure_FailureCached(t *testing.T) {
	var p Probe
	var runs int

	for i := 0; i < 3; i++ {
		s := p.Ensure(func() error {
			runs++
			return errors.New("no driver")
		})
		if s != Unavailable {
			t.Fatalf("call %d: state=%v", i, s)
		}
	}
	if runs != 1 {
		t.Errorf("failed probe retried: %d runs", runs)
	}
	if p.State() != Unavailable {
		t.Errorf("cached state=%v", p.State())
	}
}

func TestEnsure_Concurrent(t *testing.T) {
	var p Probe
	var runs atomic.Int32
	var wg sync.WaitGroup

	start := make(chan struct{})
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			s := p.Ensure(func() error {
				runs.Add(1)
				return nil
			})
			if s != Available {
				t.Errorf("state=%v", s)
			}
		}()
	}
	close(start)
	wg.Wait()

	if n := runs.Load(); n != 1 {
		t.Errorf("probe ran %d times", n)
	}
}

func TestState_Zero(t *testing.T) {
	var p Probe
	if p.State() != Unknown {
		t.Errorf("zero state=%v", p.State())
	}
	if Unknown.String() != "unknown" || Available.String() != "available" || Unavailable.String() != "unavailable" {
		t.Error("state strings")
	}
}
