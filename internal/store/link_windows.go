//go:build windows

package store

import (
	"encoding/binary"
	"os"
	"syscall"

	"golang.org/x/sys/windows"

	"github.com/govm-project/govm/internal/govmerr"
)

// Windows has no cheap equivalent of a Unix symlink that doesn't require
// elevated privileges, so activation uses a directory junction (a
// reparse point resolved entirely by the filesystem, no admin rights
// needed), built via FSCTL_SET_REPARSE_POINT the way NTFS junction tools
// traditionally do it.

const (
	reparseTagMountPoint = 0xA0000003
	fsctlSetReparsePoint = 0x000900A4
)

// createActivationLink creates a directory junction at linkPath pointing
// at target.
func createActivationLink(target, linkPath string) error {
	if err := os.Mkdir(linkPath, 0o755); err != nil {
		return govmerr.New(govmerr.IO, linkPath, err)
	}

	handle, err := openReparseHandle(linkPath)
	if err != nil {
		_ = os.Remove(linkPath)
		return govmerr.New(govmerr.IO, linkPath, err)
	}
	defer windows.CloseHandle(handle)

	buf := buildMountPointReparseBuffer(target)
	var bytesReturned uint32
	err = windows.DeviceIoControl(handle, fsctlSetReparsePoint,
		&buf[0], uint32(len(buf)), nil, 0, &bytesReturned, nil)
	if err != nil {
		_ = os.Remove(linkPath)
		return govmerr.New(govmerr.IO, linkPath, err)
	}
	return nil
}

func openReparseHandle(path string) (windows.Handle, error) {
	p, err := windows.UTF16PtrFromString(path)
	if err != nil {
		return 0, err
	}
	return windows.CreateFile(p,
		windows.GENERIC_WRITE,
		0,
		nil,
		windows.OPEN_EXISTING,
		windows.FILE_FLAG_OPEN_REPARSE_POINT|windows.FILE_FLAG_BACKUP_SEMANTICS,
		0)
}

// buildMountPointReparseBuffer encodes target as the REPARSE_DATA_BUFFER
// a mount-point (junction) reparse point requires: the non-parsed path
// must carry the \??\ NT-namespace prefix and be NUL-terminated within
// the substitute-name field.
func buildMountPointReparseBuffer(target string) []byte {
	ntPath := `\??\` + target
	subName := utf16Bytes(ntPath)
	printName := utf16Bytes(target)

	// REPARSE_DATA_BUFFER header (8 bytes) + MountPointReparseBuffer
	// header (8 bytes) + the two NUL-terminated UTF-16 names.
	dataLen := 8 + len(subName) + 2 + len(printName) + 2
	buf := make([]byte, 8+dataLen)

	binary.LittleEndian.PutUint32(buf[0:4], reparseTagMountPoint)
	binary.LittleEndian.PutUint16(buf[4:6], uint16(dataLen))
	// buf[6:8] reserved, left zero

	off := 8
	binary.LittleEndian.PutUint16(buf[off:off+2], 0)                         // SubstituteNameOffset
	binary.LittleEndian.PutUint16(buf[off+2:off+4], uint16(len(subName)))    // SubstituteNameLength
	binary.LittleEndian.PutUint16(buf[off+4:off+6], uint16(len(subName)+2))  // PrintNameOffset
	binary.LittleEndian.PutUint16(buf[off+6:off+8], uint16(len(printName)))  // PrintNameLength
	off += 8

	copy(buf[off:], subName)
	off += len(subName)
	off += 2 // NUL terminator for substitute name
	copy(buf[off:], printName)

	return buf
}

func utf16Bytes(s string) []byte {
	u16, _ := syscall.UTF16FromString(s)
	// drop the implicit trailing NUL syscall.UTF16FromString adds; the
	// buffer layout adds its own terminator explicitly.
	u16 = u16[:len(u16)-1]
	b := make([]byte, len(u16)*2)
	for i, v := range u16 {
		binary.LittleEndian.PutUint16(b[i*2:], v)
	}
	return b
}

func readActivationLink(linkPath string) (string, error) {
	handle, err := openReparseHandle(linkPath)
	if err != nil {
		return "", err
	}
	defer windows.CloseHandle(handle)

	buf := make([]byte, 16*1024)
	var bytesReturned uint32
	err = windows.DeviceIoControl(handle, windows.FSCTL_GET_REPARSE_POINT,
		nil, 0, &buf[0], uint32(len(buf)), &bytesReturned, nil)
	if err != nil {
		return "", err
	}

	subOffset := binary.LittleEndian.Uint16(buf[8:10])
	subLen := binary.LittleEndian.Uint16(buf[10:12])
	nameStart := 16 + int(subOffset)
	nameBytes := buf[nameStart : nameStart+int(subLen)]

	u16 := make([]uint16, len(nameBytes)/2)
	for i := range u16 {
		u16[i] = binary.LittleEndian.Uint16(nameBytes[i*2:])
	}
	target := syscall.UTF16ToString(u16)
	const ntPrefix = `\??\`
	if len(target) >= len(ntPrefix) && target[:len(ntPrefix)] == ntPrefix {
		target = target[len(ntPrefix):]
	}
	return target, nil
}

func removeActivationLink(linkPath string) error {
	return os.Remove(linkPath)
}

// commitActivation replaces the junction at linkPath with the one staged
// at tmpLinkPath. Unlike a plain file, a junction is a directory entry, and
// MoveFileEx's MOVEFILE_REPLACE_EXISTING (what os.Rename uses under the
// hood) is documented as invalid when either path names a directory — so
// an existing junction must be removed before the rename rather than
// replaced by it. Removing a junction only deletes the reparse point; it
// never touches the directory it points at.
func commitActivation(tmpLinkPath, linkPath string) error {
	if _, err := os.Lstat(linkPath); err == nil {
		if err := removeActivationLink(linkPath); err != nil {
			return govmerr.New(govmerr.IO, linkPath, err)
		}
	} else if !os.IsNotExist(err) {
		return govmerr.New(govmerr.IO, linkPath, err)
	}

	if err := os.Rename(tmpLinkPath, linkPath); err != nil {
		return govmerr.New(govmerr.IO, linkPath, err)
	}
	return nil
}
