// Copyright 2015 Google Inc. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package jakefs

// maxSymlinkHops bounds the symlink resolver against cycles (spec §4.4, §9):
// the source this was distilled from has no cycle guard at all, which is an
// open bug the spec calls out explicitly. 40 matches the traditional POSIX
// SYMLOOP_MAX-style convention.
const maxSymlinkHops = 40

// resolveSymlink walks the target chain starting at start to a terminal
// non-symlink inode (spec §4.4). It returns nil if start is not a symlink or
// if the chain exceeds maxSymlinkHops (a cycle). If a broken link is found
// (target == 0) or a linked-to inode is missing from the store, it returns
// the last symlink reached, i.e. the last inode successfully looked up.
func (s *store) resolveSymlink(start *inode) *inode {
	if !start.isSymlink() {
		return nil
	}

	cur := start
	for hop := 0; hop < maxSymlinkHops; hop++ {
		if cur.target == 0 {
			return cur
		}

		next := s.get(cur.target)
		if next == nil {
			return cur
		}

		if !next.isSymlink() {
			return next
		}

		cur = next
	}

	// Hop limit exceeded: treat as an unresolvable chain (likely a cycle).
	return nil
}
