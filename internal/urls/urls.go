package urls

// Documentation URLs for probe setup and troubleshooting.

// OpenOCDGDBServer describes OpenOCD's GDB server, its port (3333 by
// default) and the adapter speed command.
const OpenOCDGDBServer = "https://openocd.org/doc/html/GDB-and-OpenOCD.html"

// OpenOCDAdapterSpeed documents the `adapter speed` command used to set
// the probe clock.
const OpenOCDAdapterSpeed = "https://openocd.org/doc/html/Debug-Adapter-Configuration.html"

// PyOCDGDBServer covers `pyocd gdbserver`, an alternative GDB server for
// CMSIS-DAP probes.
const PyOCDGDBServer = "https://pyocd.io/docs/gdb_setup.html"

// GDBRemoteProtocol is the reference for the GDB remote serial protocol.
const GDBRemoteProtocol = "https://sourceware.org/gdb/current/onlinedocs/gdb.html/Remote-Protocol.html"

// ArmToolchain is where arm-none-eabi-gdb is downloaded from.
const ArmToolchain = "https://developer.arm.com/downloads/-/arm-gnu-toolchain-downloads"

// UVisionDebugIni describes the debugger initialization files uVision
// runs when a debug session starts.
const UVisionDebugIni = "https://developer.arm.com/documentation/101407/latest/Debug-Commands"
