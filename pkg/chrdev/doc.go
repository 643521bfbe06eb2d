// Package chrdev is a small in-process character device framework.
//
// A Registration reserves a contiguous range of minor numbers under one
// device name. Drivers implement Device and register it on one or more
// minors; the framework dispatches Open to the Device registered on the
// requested minor and hands back a File. The same Device may be registered
// on several minors, in which case all of them share its state.
//
// Files take the offset on every call. The framework keeps no cursor and
// performs no bounds checking of its own; the driver decides.
//
// KernelLog is a fixed-size ring of log lines, comparable to a kernel
// message buffer. KernelLog.Handler wraps a slog.Handler so that everything
// logged at Info or above is also kept in the ring.
package chrdev
