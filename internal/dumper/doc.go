// Package dumper runs the crash dump: boot ROM, first RAM region and core
// registers, in that order, from one probe session.
package dumper
