package scripts

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/muurk/fwdump/internal/probe"
)

var (
	// 0   y  	0x00000000 0x00100000 flash blocksize 0x1000 nocache
	infoMemPattern = regexp.MustCompile(`^(\d+)\s+([yn])\s+(0x[0-9a-fA-F]+)\s+(0x[0-9a-fA-F]+)\s+(.*)$`)
	// r0             0x20000400          536871936
	infoRegPattern = regexp.MustCompile(`^([A-Za-z_][\w]*)\s+(0x[0-9a-fA-F]+)\b`)
)

// ParseInfoMem parses GDB's `info mem` table. Disabled regions are
// skipped. The high address of each row is exclusive.
func ParseInfoMem(output string) ([]probe.Region, error) {
	var regions []probe.Region
	counts := make(map[probe.RegionType]int)

	for _, line := range strings.Split(output, "\n") {
		m := infoMemPattern.FindStringSubmatch(strings.TrimSpace(line))
		if m == nil || m[2] != "y" {
			continue
		}

		lo, err := parseAddr(m[3])
		if err != nil {
			return nil, err
		}
		hi, err := parseAddr(m[4])
		if err != nil {
			return nil, err
		}
		if lo > 0xFFFFFFFF || hi <= lo || hi-lo > 0xFFFFFFFF {
			return nil, fmt.Errorf("invalid memory region %s-%s", m[3], m[4])
		}

		typ, blockSize, err := parseMemAttrs(m[5])
		if err != nil {
			return nil, fmt.Errorf("memory region %s-%s: %w", m[3], m[4], err)
		}

		regions = append(regions, probe.Region{
			Name:      fmt.Sprintf("%s%d", typ, counts[typ]),
			Type:      typ,
			Start:     uint32(lo),
			Length:    uint32(hi - lo),
			BlockSize: blockSize,
		})
		counts[typ]++
	}

	return regions, nil
}

// parseMemAttrs maps the Attrs column: "flash" wins, then "ro", then "rw".
func parseMemAttrs(attrs string) (probe.RegionType, uint32, error) {
	fields := strings.Fields(attrs)
	var typ probe.RegionType
	var blockSize uint32

	for i, f := range fields {
		switch f {
		case "flash":
			typ = probe.RegionFlash
		case "ro", "wo":
			if typ == "" {
				typ = probe.RegionROM
			}
		case "rw":
			if typ == "" {
				typ = probe.RegionRAM
			}
		case "blocksize":
			if i+1 < len(fields) {
				v, err := parseAddr(fields[i+1])
				if err == nil {
					blockSize = uint32(v)
				}
			}
		}
	}

	if typ == "" {
		return "", 0, fmt.Errorf("no access mode in attributes %q", attrs)
	}
	return typ, blockSize, nil
}

// ParseInfoRegisters parses GDB's `info registers` / `info all-registers`
// output into lowercase register names. Rows without a hex value (vector
// and floating point registers) are skipped.
func ParseInfoRegisters(output string) map[string]uint32 {
	regs := make(map[string]uint32)
	for _, line := range strings.Split(output, "\n") {
		m := infoRegPattern.FindStringSubmatch(strings.TrimSpace(line))
		if m == nil {
			continue
		}
		v, err := parseAddr(m[2])
		if err != nil || v > 0xFFFFFFFF {
			continue
		}
		regs[strings.ToLower(m[1])] = uint32(v)
	}
	return regs
}

func parseAddr(s string) (uint64, error) {
	v, err := strconv.ParseUint(strings.TrimPrefix(strings.ToLower(s), "0x"), 16, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid address %q: %w", s, err)
	}
	return v, nil
}
