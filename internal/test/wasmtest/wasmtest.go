// Package wasmtest contains hand-assembled WASI modules for tests.
package wasmtest

// Empty is a valid module with no exports.
var Empty = []byte{
	0x00, 0x61, 0x73, 0x6d, // magic
	0x01, 0x00, 0x00, 0x00, // version
}

// Nop exports a _start function that returns immediately.
var Nop = []byte{
	0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00,

	// type section: [() -> ()]
	0x01, 0x04, 0x01, 0x60, 0x00, 0x00,

	// function section: [type 0]
	0x03, 0x02, 0x01, 0x00,

	// export section: "_start" -> func 0
	0x07, 0x0a, 0x01,
	0x06, '_', 's', 't', 'a', 'r', 't', 0x00, 0x00,

	// code section
	0x0a, 0x04, 0x01,
	0x02, 0x00, 0x0b, // no locals; end
}

// Exit3 exports a _start function that calls proc_exit(3).
var Exit3 = []byte{
	0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00,

	// type section: [(i32) -> (), () -> ()]
	0x01, 0x08, 0x02,
	0x60, 0x01, 0x7f, 0x00,
	0x60, 0x00, 0x00,

	// import section: wasi_snapshot_preview1.proc_exit (type 0)
	0x02, 0x24, 0x01,
	0x16, 'w', 'a', 's', 'i', '_', 's', 'n', 'a', 'p', 's', 'h', 'o', 't', '_', 'p', 'r', 'e', 'v', 'i', 'e', 'w', '1',
	0x09, 'p', 'r', 'o', 'c', '_', 'e', 'x', 'i', 't',
	0x00, 0x00,

	// function section: [type 1]
	0x03, 0x02, 0x01, 0x01,

	// export section: "_start" -> func 1
	0x07, 0x0a, 0x01,
	0x06, '_', 's', 't', 'a', 'r', 't', 0x00, 0x01,

	// code section
	0x0a, 0x08, 0x01,
	0x06, 0x00, // body size; no locals
	0x41, 0x03, // i32.const 3
	0x10, 0x00, // call proc_exit
	0x0b, // end
}

// HelloOutput is what Hello writes to stdout.
const HelloOutput = "a\nb"

// Hello exports a _start function that writes HelloOutput to stdout
// with a single fd_write call, then returns.
var Hello = []byte{
	0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00,

	// type section: [(i32, i32, i32, i32) -> (i32), () -> ()]
	0x01, 0x0c, 0x02,
	0x60, 0x04, 0x7f, 0x7f, 0x7f, 0x7f, 0x01, 0x7f,
	0x60, 0x00, 0x00,

	// import section: wasi_snapshot_preview1.fd_write (type 0)
	0x02, 0x23, 0x01,
	0x16, 'w', 'a', 's', 'i', '_', 's', 'n', 'a', 'p', 's', 'h', 'o', 't', '_', 'p', 'r', 'e', 'v', 'i', 'e', 'w', '1',
	0x08, 'f', 'd', '_', 'w', 'r', 'i', 't', 'e',
	0x00, 0x00,

	// function section: [type 1]
	0x03, 0x02, 0x01, 0x01,

	// memory section: one page
	0x05, 0x03, 0x01, 0x00, 0x01,

	// export section: "_start" -> func 1, "memory" -> memory 0
	0x07, 0x13, 0x02,
	0x06, '_', 's', 't', 'a', 'r', 't', 0x00, 0x01,
	0x06, 'm', 'e', 'm', 'o', 'r', 'y', 0x02, 0x00,

	// code section
	0x0a, 0x0f, 0x01,
	0x0d, 0x00, // body size; no locals
	0x41, 0x01, // i32.const 1 (stdout)
	0x41, 0x00, // i32.const 0 (iovs)
	0x41, 0x01, // i32.const 1 (iovs_len)
	0x41, 0x14, // i32.const 20 (nwritten)
	0x10, 0x00, // call fd_write
	0x1a, // drop
	0x0b, // end

	// data section: iovec{buf: 8, len: 3} at 0, payload at 8
	0x0b, 0x11, 0x01,
	0x00, 0x41, 0x00, 0x0b, // memory 0, offset i32.const 0
	0x0b,
	0x08, 0x00, 0x00, 0x00,
	0x03, 0x00, 0x00, 0x00,
	'a', '\n', 'b',
}
