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

import "syscall"

// Errno values returned by handlers, aliased the way the driver dependency's
// own errors.go aliases bazilfuse.Errno: a flat list of kernel errno values.
// Every one except ENOTEMPTY is returned by some handler; ENOTEMPTY is not
// returned anywhere.
const (
	ENOENT    = syscall.ENOENT
	EACCES    = syscall.EACCES
	EPERM     = syscall.EPERM
	EBADF     = syscall.EBADF
	EINVAL    = syscall.EINVAL
	EEXIST    = syscall.EEXIST
	ENOSYS    = syscall.ENOSYS
	ENOTEMPTY = syscall.ENOTEMPTY
)
