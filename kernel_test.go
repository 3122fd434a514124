// © nanokern authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package nanokern_test

import (
	"errors"
	"testing"

	"github.com/emberkernel/nanokern"
)

func TestForkExitWaitReapsChild(t *testing.T) {
	k := nanokern.New(8).Build()
	child, err := k.Fork(k.Init(), "child", nil)
	if err != nil {
		t.Fatalf("Fork: %v", err)
	}

	k.Exit(child, 42)

	id, retval, err := k.Wait(k.Init())
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if id != child.ID {
		t.Fatalf("Wait id: got %d, want %d", id, child.ID)
	}
	if retval != 42 {
		t.Fatalf("Wait retval: got %d, want 42", retval)
	}
}

func TestWaitOnChildlessParentReturnsErrNotOurChild(t *testing.T) {
	k := nanokern.New(8).Build()
	leaf, err := k.Fork(k.Init(), "leaf", nil)
	if err != nil {
		t.Fatalf("Fork: %v", err)
	}
	if _, _, err := k.Wait(leaf); !errors.Is(err, nanokern.ErrNotOurChild) {
		t.Fatalf("Wait on childless task: got %v, want ErrNotOurChild", err)
	}
}

func TestExitReparentsChildrenToInit(t *testing.T) {
	k := nanokern.New(8).Build()
	mid, err := k.Fork(k.Init(), "mid", nil)
	if err != nil {
		t.Fatalf("Fork mid: %v", err)
	}
	grandchild, err := k.Fork(mid, "grandchild", nil)
	if err != nil {
		t.Fatalf("Fork grandchild: %v", err)
	}

	k.Exit(mid, 0)
	if _, _, err := k.Wait(k.Init()); err != nil {
		t.Fatalf("Wait reaping mid: %v", err)
	}

	k.Exit(grandchild, 7)
	id, retval, err := k.Wait(k.Init())
	if err != nil {
		t.Fatalf("Wait reaping reparented grandchild: %v", err)
	}
	if id != grandchild.ID || retval != 7 {
		t.Fatalf("Wait: got (%d,%d), want (%d,7)", id, retval, grandchild.ID)
	}
}

func TestForkExhaustsTaskTable(t *testing.T) {
	k := nanokern.New(2).Build() // init occupies one slot
	if _, err := k.Fork(k.Init(), "only-room-for-one", nil); err != nil {
		t.Fatalf("Fork: %v", err)
	}
	if _, err := k.Fork(k.Init(), "no-room", nil); !nanokern.IsWouldBlock(err) {
		t.Fatalf("Fork on full table: got %v, want a WouldBlock error", err)
	}
}

func TestSetCPUShareAndGetLevSyscalls(t *testing.T) {
	k := nanokern.New(8).Build()
	child, err := k.Fork(k.Init(), "child", nil)
	if err != nil {
		t.Fatalf("Fork: %v", err)
	}
	if lvl := k.GetLev(child); lvl != 0 {
		t.Fatalf("GetLev fresh fork: got %d, want 0", lvl)
	}
	if err := k.SetCPUShare(child, 10); err != nil {
		t.Fatalf("SetCPUShare: %v", err)
	}
	if lvl := k.GetLev(child); lvl != -1 {
		t.Fatalf("GetLev stride-managed: got %d, want -1", lvl)
	}
	if err := k.SetCPUShare(child, 0); !errors.Is(err, nanokern.ErrInvalidShare) {
		t.Fatalf("SetCPUShare(0): got %v, want ErrInvalidShare", err)
	}
}
