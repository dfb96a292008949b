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

import "os"

// The three POSIX permission bit triplets, spec §4.2.
const (
	modeOwnerRead os.FileMode = 0400
	modeGroupRead os.FileMode = 0040
	modeOtherRead os.FileMode = 0004

	modeOwnerWrite os.FileMode = 0200
	modeGroupWrite os.FileMode = 0020
	modeOtherWrite os.FileMode = 0002

	modeOwnerExec os.FileMode = 0100
	modeGroupExec os.FileMode = 0010
	modeOtherExec os.FileMode = 0001
)

// isRoot reports whether the requester is root, per spec §4.2 case (d): note
// the intentional simplification that this checks both uid and gid being
// zero, not just uid.
func isRoot(reqUID, reqGID uint32) bool {
	return reqUID == 0 && reqGID == 0
}

// canRead implements spec §4.2's can_read predicate. Group membership is
// treated as single-group equality, not POSIX supplementary groups — an
// intentional simplification the spec calls out explicitly.
func canRead(mode os.FileMode, ownerUID, ownerGID, reqUID, reqGID uint32) bool {
	return checkBits(mode, modeOwnerRead, modeGroupRead, modeOtherRead, ownerUID, ownerGID, reqUID, reqGID)
}

// canWrite implements spec §4.2's can_write predicate.
func canWrite(mode os.FileMode, ownerUID, ownerGID, reqUID, reqGID uint32) bool {
	return checkBits(mode, modeOwnerWrite, modeGroupWrite, modeOtherWrite, ownerUID, ownerGID, reqUID, reqGID)
}

// canExecute implements spec §4.2's can_execute predicate.
func canExecute(mode os.FileMode, ownerUID, ownerGID, reqUID, reqGID uint32) bool {
	return checkBits(mode, modeOwnerExec, modeGroupExec, modeOtherExec, ownerUID, ownerGID, reqUID, reqGID)
}

func checkBits(
	mode os.FileMode,
	ownerBit, groupBit, otherBit os.FileMode,
	ownerUID, ownerGID, reqUID, reqGID uint32) bool {
	perm := mode.Perm()

	if perm&ownerBit != 0 && reqUID == ownerUID {
		return true
	}
	if perm&groupBit != 0 && reqGID == ownerGID {
		return true
	}
	if perm&otherBit != 0 {
		return true
	}
	if isRoot(reqUID, reqGID) {
		return true
	}

	return false
}
