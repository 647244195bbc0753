// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package streamhandler

import (
	"errors"
	"os"
	"strconv"
	"syscall"
)

// libcMessages maps errno values to the libc strerror text the original
// implementation's io::Error Display surfaces on the wire (capitalized,
// Unix phrasing); Go's syscall.Errno.Error() uses lowercase errno(3)
// strings and would not match this wire-visible vocabulary.
var libcMessages = map[syscall.Errno]string{
	syscall.ENOENT:  "No such file or directory",
	syscall.EACCES:  "Permission denied",
	syscall.EISDIR:  "Is a directory",
	syscall.ENOTDIR: "Not a directory",
	syscall.EEXIST:  "File exists",
}

// osErrorMessage renders err the way the original implementation's host
// platform renders a raw OS error, e.g. "No such file or directory (os
// error 2)" for ENOENT on Unix. An errno missing from libcMessages is
// rendered with Go's errno text and the same "(os error N)" suffix; an
// error carrying no errno at all falls back to err.Error(), except that a
// not-exist error still renders as the ENOENT message.
func osErrorMessage(err error) string {
	var errno syscall.Errno
	if errors.As(err, &errno) {
		n := strconv.Itoa(int(errno))
		if msg, ok := libcMessages[errno]; ok {
			return msg + " (os error " + n + ")"
		}
		return errno.Error() + " (os error " + n + ")"
	}
	if os.IsNotExist(err) {
		return "No such file or directory (os error 2)"
	}
	return err.Error()
}
