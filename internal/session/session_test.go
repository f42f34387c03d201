// Copyright (C) 2024 graphd, Inc.
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <http://www.gnu.org/licenses/>.

package session

import (
	"context"
	"testing"
	"time"

	"github.com/graphd/graphd/internal/dateline"
)

func TestNewDefaultsCostLimit(t *testing.T) {
	r := New(context.Background(), 0, time.Second, nil)
	if r.CostLimit != DefaultCostLimit {
		t.Fatalf("CostLimit = %d, want %d", r.CostLimit, DefaultCostLimit)
	}
}

func TestCancelObservableThroughContext(t *testing.T) {
	r := New(context.Background(), 100, time.Second, nil)
	if r.Cancelled() {
		t.Fatal("should not be cancelled yet")
	}
	r.Cancel()
	if !r.Cancelled() {
		t.Fatal("should be cancelled after Cancel")
	}
	select {
	case <-r.Context().Done():
	default:
		t.Fatal("context.Done() should be closed after Cancel")
	}
}

func TestParentCancellationPropagates(t *testing.T) {
	parent, cancel := context.WithCancel(context.Background())
	r := New(parent, 100, time.Second, nil)
	cancel()
	if !r.Cancelled() {
		t.Fatal("request should observe parent cancellation")
	}
}

func TestBudgetReflectsRemainingCost(t *testing.T) {
	r := New(context.Background(), 100, time.Second, nil)
	r.Stats.Cost = 40
	b := r.Budget()
	if b.Remaining != 60 {
		t.Fatalf("Remaining = %d, want 60", b.Remaining)
	}
}

func TestChargeErrorsOverCostLimit(t *testing.T) {
	r := New(context.Background(), 10, time.Second, nil)
	b := r.Budget()
	before := b.Remaining
	b.Spend(15)
	if err := r.Charge(b, before); err == nil {
		t.Fatal("expected cost-limit error")
	}
}

func TestStartStampsDatelineAndClock(t *testing.T) {
	r := New(context.Background(), 100, time.Second, nil)
	dl := dateline.New(dateline.Entry{InstanceID: 1, MaxLocalID: 5})
	r.Start(dl)
	if r.Dateline.Compare(dl) != 0 {
		t.Fatal("dateline not stamped")
	}
	if r.Stats.Started.IsZero() {
		t.Fatal("Stats.Started not stamped")
	}
}
