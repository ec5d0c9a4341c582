package pipeline

import "testing"

func TestCloseIsIdempotentAndRejectsFurtherCapture(t *testing.T) {
	p := &Pipeline{}
	p.state.Store(int32(stateOpen))

	p.Close()
	p.Close() // must not panic on a second call

	_, err := p.Capture()
	if err == nil {
		t.Fatal("expected an error after Close")
	}
	if _, ok := err.(*ErrPipelineClosed); !ok {
		t.Fatalf("got %T, want *ErrPipelineClosed", err)
	}
}

func TestGrabAlsoRejectedAfterClose(t *testing.T) {
	p := &Pipeline{}
	p.state.Store(int32(stateOpen))
	p.Close()

	if _, err := p.Grab(); err == nil {
		t.Fatal("expected an error after Close")
	}
}
