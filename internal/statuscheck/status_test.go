package statuscheck

import (
	"context"
	"errors"
	"strings"
	"testing"
)

type fakeProbe struct {
	name  string
	avail bool
}

func (f fakeProbe) Name() string    { return f.name }
func (f fakeProbe) Available() bool { return f.avail }

type fakePinger struct{ err error }

func (f fakePinger) Ping(context.Context) error { return f.err }

func TestCheckRaster(t *testing.T) {
	if st := checkRaster(nil); st.OK {
		t.Error("nil probe reported OK")
	}
	if st := checkRaster(fakeProbe{name: "gofitz", avail: false}); st.OK {
		t.Error("unavailable probe reported OK")
	}
	st := checkRaster(fakeProbe{name: "gofitz", avail: true})
	if !st.OK || st.Message != "gofitz" {
		t.Errorf("status = %+v", st)
	}
}

func TestCheckRedis(t *testing.T) {
	c := New(Options{})
	if st := c.checkRedis(context.Background()); st.OK {
		t.Error("missing redis reported OK")
	}

	c = New(Options{Redis: fakePinger{}})
	if st := c.checkRedis(context.Background()); !st.OK {
		t.Errorf("healthy redis reported %+v", st)
	}

	c = New(Options{Redis: fakePinger{err: errors.New("connection refused")}})
	st := c.checkRedis(context.Background())
	if st.OK || !strings.Contains(st.Message, "connection refused") {
		t.Errorf("status = %+v", st)
	}
}

func TestTrimErrorTruncates(t *testing.T) {
	long := errors.New(strings.Repeat("x", 300))
	if got := trimError(long); len(got) != 120 {
		t.Errorf("len = %d, want 120", len(got))
	}
	if trimError(nil) != "" {
		t.Error("nil error produced a message")
	}
}
