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

package read

// orState is one or-branch's current resolution within one read
// request's evaluation: which side (head or tail) is still
// worth trying, or whether the branch is done (succeeded, so the
// sibling is skipped, or failed on both sides).
type orState uint8

const (
	orTryHead orState = iota
	orTryTail
	orSucceeded
	orFailed
)

// OrMap is the bitset-like table tracking which OR branch is active:
// one state per dense or-branch index. Evaluate builds one OrMap per
// request and shares it across every candidate's descent, so a head
// failure discovered deep in the tree is visible to every
// other reference to that branch index.
type OrMap struct {
	st []orState
}

// NewOrMap builds a map with n branches, all starting at "try head".
func NewOrMap(n int) *OrMap {
	return &OrMap{st: make([]orState, n)}
}

func (m *OrMap) valid(idx int) bool { return idx >= 0 && idx < len(m.st) }

// HeadActive reports whether branch idx's head alternative should
// still be attempted.
func (m *OrMap) HeadActive(idx int) bool {
	return !m.valid(idx) || m.st[idx] == orTryHead
}

// TailActive reports whether branch idx's tail alternative should be
// attempted (only true once the head has failed).
func (m *OrMap) TailActive(idx int) bool {
	return m.valid(idx) && m.st[idx] == orTryTail
}

// FailHead records that branch idx's head alternative did not match.
// hasTail selects whether the branch falls through to its tail or is
// immediately exhausted.
func (m *OrMap) FailHead(idx int, hasTail bool) {
	if !m.valid(idx) {
		return
	}
	if hasTail {
		m.st[idx] = orTryTail
	} else {
		m.st[idx] = orFailed
	}
}

// FailTail records that branch idx's tail alternative (its last
// chance) did not match either.
func (m *OrMap) FailTail(idx int) {
	if m.valid(idx) {
		m.st[idx] = orFailed
	}
}

// Succeed records that branch idx matched (on whichever side was
// tried), pruning its sibling from further consideration.
func (m *OrMap) Succeed(idx int) {
	if m.valid(idx) {
		m.st[idx] = orSucceeded
	}
}

// Viable reports whether branch idx has not been exhausted on both
// sides. oneFrame hands it to pattern.Context as OrActive; Evaluate's
// top-level success check does not consult it.
func (m *OrMap) Viable(idx int) bool {
	return !m.valid(idx) || m.st[idx] != orFailed
}
