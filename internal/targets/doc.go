// Package targets is the embedded catalog of boards fwdump knows about.
//
// A catalog entry supplies the memory map and the register numbering for
// GDB servers that do not publish them. Servers that answer
// qXfer:memory-map:read and qXfer:features:read never need the catalog.
package targets
